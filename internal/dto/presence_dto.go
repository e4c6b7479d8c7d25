package dto

import (
	"time"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// SetPresenceRequest describes a location push from a subject's client.
// A nil BuildingID means the subject is on campus but not in a tracked
// building (or shares at campus granularity only).
type SetPresenceRequest struct {
	BuildingID *string `json:"building_id" validate:"omitempty,min=1,max=64"`
	Source     string  `json:"source" validate:"omitempty,oneof=manual automatic"`
}

// StatusMessageRequest updates the subject's free-text status label.
type StatusMessageRequest struct {
	Message string `json:"message" validate:"required,max=255"`
}

// GranularityRequest updates the subject's disclosure granularity.
type GranularityRequest struct {
	Granularity string `json:"granularity" validate:"required,oneof=building campus"`
}

// AutoShareRequest toggles office-hours auto-share.
type AutoShareRequest struct {
	Enabled bool `json:"enabled"`
}

// PresenceResponse is the owner-facing view of the active presence record.
type PresenceResponse struct {
	SubjectID  string    `json:"subject_id"`
	BuildingID *string   `json:"building_id,omitempty"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewPresenceResponse converts a model into a DTO.
func NewPresenceResponse(record models.PresenceRecord) PresenceResponse {
	return PresenceResponse{
		SubjectID:  record.SubjectID,
		BuildingID: record.BuildingID,
		Source:     record.Source,
		CapturedAt: record.CapturedAt,
	}
}

// SubjectProfileResponse is the owner-facing view of sharing settings.
type SubjectProfileResponse struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Email         string                  `json:"email"`
	Department    string                  `json:"department"`
	Courses       []string                `json:"courses"`
	OfficeHours   []models.OfficeHourSlot `json:"office_hours"`
	SharingState  string                  `json:"sharing_state"`
	Granularity   string                  `json:"granularity"`
	StatusMessage string                  `json:"status_message"`
	AutoShare     bool                    `json:"auto_share"`
	Consented     bool                    `json:"consented"`
	ConsentedAt   *time.Time              `json:"consented_at,omitempty"`
}

// NewSubjectProfileResponse converts a model into a DTO.
func NewSubjectProfileResponse(subject models.Subject) SubjectProfileResponse {
	courses := subject.CourseList()
	if courses == nil {
		courses = []string{}
	}
	slots := subject.OfficeHourSlots()
	if slots == nil {
		slots = []models.OfficeHourSlot{}
	}

	return SubjectProfileResponse{
		ID:            subject.ID,
		Name:          subject.Name,
		Email:         subject.Email,
		Department:    subject.Department,
		Courses:       courses,
		OfficeHours:   slots,
		SharingState:  subject.SharingState,
		Granularity:   subject.Granularity,
		StatusMessage: subject.StatusMessage,
		AutoShare:     subject.AutoShare,
		Consented:     subject.Consented,
		ConsentedAt:   subject.ConsentedAt,
	}
}

// SubjectExportResponse is the stable serialized form returned by the data
// export endpoint: everything the system still holds about the subject.
type SubjectExportResponse struct {
	ExportID    string                 `json:"export_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Profile     SubjectProfileResponse `json:"profile"`
	Active      *PresenceResponse      `json:"active_presence,omitempty"`
	History     []PresenceResponse     `json:"history"`
}
