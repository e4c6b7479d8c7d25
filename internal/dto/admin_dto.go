package dto

import (
	"time"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// KillSwitchRequest toggles campus-wide sharing.
type KillSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

// RetentionRequest sets the campus data retention period.
type RetentionRequest struct {
	Hours int `json:"hours" validate:"required"`
}

// QuietHoursRequest configures the campus quiet window.
type QuietHoursRequest struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start" validate:"omitempty,datetime=15:04"`
	End     string `json:"end" validate:"omitempty,datetime=15:04"`
}

// VisibilityRequest replaces the per-department visibility policy.
type VisibilityRequest struct {
	Policy map[string]models.DepartmentVisibility `json:"policy" validate:"required"`
}

// CampusConfigResponse is the admin view of campus configuration.
type CampusConfigResponse struct {
	ID                string                                 `json:"id"`
	Name              string                                 `json:"name"`
	SharingEnabled    bool                                   `json:"sharing_enabled"`
	RetentionHours    int                                    `json:"retention_hours"`
	QuietHoursEnabled bool                                   `json:"quiet_hours_enabled"`
	QuietStart        string                                 `json:"quiet_start,omitempty"`
	QuietEnd          string                                 `json:"quiet_end,omitempty"`
	Visibility        map[string]models.DepartmentVisibility `json:"visibility"`
}

// NewCampusConfigResponse converts a model into a DTO.
func NewCampusConfigResponse(campus models.Campus) CampusConfigResponse {
	policy := campus.VisibilityPolicy()
	if policy == nil {
		policy = map[string]models.DepartmentVisibility{}
	}

	return CampusConfigResponse{
		ID:                campus.ID,
		Name:              campus.Name,
		SharingEnabled:    campus.SharingEnabled,
		RetentionHours:    campus.RetentionHours,
		QuietHoursEnabled: campus.QuietHoursEnabled,
		QuietStart:        campus.QuietStart,
		QuietEnd:          campus.QuietEnd,
		Visibility:        policy,
	}
}

// PlatformStatsResponse aggregates the numbers shown on the admin dashboard.
type PlatformStatsResponse struct {
	CampusID          string    `json:"campus_id"`
	TotalSubjects     int64     `json:"total_subjects"`
	ConsentedSubjects int64     `json:"consented_subjects"`
	ActivelySharing   int64     `json:"actively_sharing"`
	OptInRatePercent  float64   `json:"opt_in_rate_percent"`
	BuildingsActive   int64     `json:"buildings_active"`
	DisclosuresToday  int64     `json:"disclosures_today"`
	RetentionHours    int       `json:"retention_hours"`
	SharingEnabled    bool      `json:"sharing_enabled"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// PurgeResponse reports the result of a campus-wide purge.
type PurgeResponse struct {
	CampusID       string    `json:"campus_id"`
	RecordsDeleted int64     `json:"records_deleted"`
	PurgedAt       time.Time `json:"purged_at"`
}

// BuildingImportRequest carries a building reference-data import. The raw
// payload is validated against the embedded JSON schema before decoding.
type BuildingImportRequest struct {
	Buildings []BuildingImportEntry `json:"buildings"`
}

// BuildingImportEntry is one building in an import payload.
type BuildingImportEntry struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CampusID    string       `json:"campus_id"`
	Description string       `json:"description,omitempty"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	Footprint   [][2]float64 `json:"footprint,omitempty"`
}

// BuildingImportResponse reports how many buildings an import touched.
type BuildingImportResponse struct {
	Imported int `json:"imported"`
}
