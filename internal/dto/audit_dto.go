package dto

import (
	"time"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// AuditEntryResponse is the serialized representation of one disclosure
// audit record.
type AuditEntryResponse struct {
	Seq         uint64    `json:"seq"`
	ViewerID    string    `json:"viewer_id"`
	ViewerRole  string    `json:"viewer_role"`
	SubjectID   string    `json:"subject_id"`
	CampusID    string    `json:"campus_id"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
	BuildingID  *string   `json:"building_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewAuditEntryResponse converts a model into a DTO.
func NewAuditEntryResponse(entry models.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		Seq:         entry.Seq,
		ViewerID:    entry.ViewerID,
		ViewerRole:  entry.ViewerRole,
		SubjectID:   entry.SubjectID,
		CampusID:    entry.CampusID,
		Outcome:     entry.Outcome,
		Reason:      entry.Reason,
		BuildingID:  entry.BuildingID,
		RequestedAt: entry.RequestedAt,
	}
}

// NewAuditEntryResponseSlice converts a slice of models into DTOs.
func NewAuditEntryResponseSlice(entries []models.AuditEntry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewAuditEntryResponse(entry))
	}

	return responses
}

// AuditPageResponse is a cursor-paginated slice of the audit trail, newest
// entries first. NextCursor is zero when the page is the last one.
type AuditPageResponse struct {
	Entries    []AuditEntryResponse `json:"entries"`
	NextCursor uint64               `json:"next_cursor,omitempty"`
}
