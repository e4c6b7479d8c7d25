package dto

import "time"

// DirectoryEntryResponse is one professor row in a viewer's directory. The
// location fields carry only what the policy evaluator allowed for this
// viewer: BuildingID and BuildingName are empty unless the subject shares at
// building granularity, and OnCampus is false unless any disclosure was
// allowed at all.
type DirectoryEntryResponse struct {
	SubjectID     string     `json:"subject_id"`
	Name          string     `json:"name"`
	Department    string     `json:"department"`
	Courses       []string   `json:"courses"`
	OnCampus      bool       `json:"on_campus"`
	BuildingID    string     `json:"building_id,omitempty"`
	BuildingName  string     `json:"building_name,omitempty"`
	StatusMessage string     `json:"status_message,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	IsFavorite    bool       `json:"is_favorite"`
	InOfficeHours bool       `json:"in_office_hours"`
}

// DirectoryResponse wraps the per-viewer directory listing.
type DirectoryResponse struct {
	Entries []DirectoryEntryResponse `json:"entries"`
	Total   int                      `json:"total"`
}
