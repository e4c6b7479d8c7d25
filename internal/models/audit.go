package models

import "time"

// Policy decision outcomes.
const (
	OutcomeAllowBuilding = "allow_building"
	OutcomeAllowCampus   = "allow_campus"
	OutcomeDeny          = "deny"
)

// Deny reason codes. ReasonNone accompanies allow outcomes.
const (
	ReasonNone            = "none"
	ReasonSystemDisabled  = "system_disabled"
	ReasonNotSharing      = "not_sharing"
	ReasonQuietHours      = "quiet_hours"
	ReasonRoleRestricted  = "role_restricted"
	ReasonEvaluationError = "evaluation_error"
)

// AuditEntry is an immutable, append-only disclosure record. Audit rows are
// exempt from the presence retention sweep and from campus purges.
type AuditEntry struct {
	Seq         uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	ViewerID    string    `gorm:"size:64;index" json:"viewer_id"`
	ViewerRole  string    `gorm:"size:32" json:"viewer_role"`
	SubjectID   string    `gorm:"size:64;index" json:"subject_id"`
	CampusID    string    `gorm:"size:64;index" json:"campus_id"`
	Outcome     string    `gorm:"size:32;not null" json:"outcome"`
	Reason      string    `gorm:"size:32;not null" json:"reason"`
	BuildingID  *string   `gorm:"size:64" json:"building_id,omitempty"`
	RequestedAt time.Time `gorm:"index;not null" json:"requested_at"`
	CreatedAt   time.Time `json:"created_at"`
}
