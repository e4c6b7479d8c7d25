package models

import "time"

// Presence record sources.
const (
	PresenceSourceManual    = "manual"
	PresenceSourceAutomatic = "automatic"
)

// PresenceRecord is a subject's current location claim. Exactly one active
// row exists per subject; superseded rows move to PresenceHistory.
type PresenceRecord struct {
	SubjectID  string    `gorm:"primaryKey;size:64" json:"subject_id"`
	BuildingID *string   `gorm:"size:64" json:"building_id,omitempty"`
	Source     string    `gorm:"size:16;not null" json:"source"`
	CapturedAt time.Time `gorm:"index;not null" json:"captured_at"`
}

// PresenceHistory holds superseded presence records until the retention
// window elapses. Fed by the presence store on overwrite, drained by the
// retention sweep and the office-hours reconciliation job.
type PresenceHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SubjectID  string    `gorm:"size:64;index" json:"subject_id"`
	BuildingID *string   `gorm:"size:64" json:"building_id,omitempty"`
	Source     string    `gorm:"size:16;not null" json:"source"`
	CapturedAt time.Time `gorm:"index;not null" json:"captured_at"`
}

// StaleAt reports whether the record is older than the retention window at
// the given instant. Stale records must be treated as absent.
func (p PresenceRecord) StaleAt(now time.Time, retention time.Duration) bool {
	return now.Sub(p.CapturedAt) > retention
}

// ValidPresenceSource reports whether the value is a known record source.
func ValidPresenceSource(source string) bool {
	return source == PresenceSourceManual || source == PresenceSourceAutomatic
}
