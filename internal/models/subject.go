package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Sharing states a subject can be in. Disabled is terminal until the
// subject opts in again.
const (
	SharingStateDisabled = "disabled"
	SharingStateSharing  = "sharing"
	SharingStatePaused   = "paused"
)

// Disclosure granularity levels.
const (
	GranularityBuilding = "building"
	GranularityCampus   = "campus"
)

// StatusMessagePresets are the stock status labels offered in the client
// UI. Subjects may also set free text; these are the ones the map legend
// knows how to bucket.
var StatusMessagePresets = []string{
	"Office Hours",
	"In Class",
	"Busy - Do Not Disturb",
	"Away",
}

// Subject is a professor or staff member whose campus presence may be shared.
type Subject struct {
	ID            string         `gorm:"primaryKey;size:64" json:"id"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Email         string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Department    string         `gorm:"size:128;index" json:"department"`
	Courses       datatypes.JSON `gorm:"type:json" json:"-"`
	OfficeHours   datatypes.JSON `gorm:"type:json" json:"-"`
	CampusID      string         `gorm:"size:64;index;not null" json:"campus_id"`
	SharingState  string         `gorm:"size:16;not null;default:disabled" json:"sharing_state"`
	Granularity   string         `gorm:"size:16;not null;default:building" json:"granularity"`
	StatusMessage string         `gorm:"size:255" json:"status_message"`
	AutoShare     bool           `json:"auto_share"`
	Consented     bool           `json:"consented"`
	ConsentedAt   *time.Time     `json:"consented_at,omitempty"`
	PausedAt      *time.Time     `json:"paused_at,omitempty"`
	OfficeBldgID  *string        `gorm:"size:64" json:"office_building_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OfficeHourSlot is one recurring weekly slot in a subject's declared schedule.
// Start and End use the "15:04" clock format, local to the campus.
type OfficeHourSlot struct {
	Weekday time.Weekday `json:"weekday"`
	Start   string       `json:"start"`
	End     string       `json:"end"`
}

// CourseList decodes the JSON-encoded courses column.
func (s Subject) CourseList() []string {
	if len(s.Courses) == 0 {
		return nil
	}
	var courses []string
	if err := json.Unmarshal(s.Courses, &courses); err != nil {
		return nil
	}
	return courses
}

// SetCourseList encodes courses into the JSON column.
func (s *Subject) SetCourseList(courses []string) error {
	if courses == nil {
		courses = []string{}
	}
	data, err := json.Marshal(courses)
	if err != nil {
		return err
	}
	s.Courses = datatypes.JSON(data)
	return nil
}

// OfficeHourSlots decodes the JSON-encoded office hours column.
func (s Subject) OfficeHourSlots() []OfficeHourSlot {
	if len(s.OfficeHours) == 0 {
		return nil
	}
	var slots []OfficeHourSlot
	if err := json.Unmarshal(s.OfficeHours, &slots); err != nil {
		return nil
	}
	return slots
}

// SetOfficeHourSlots encodes the schedule into the JSON column.
func (s *Subject) SetOfficeHourSlots(slots []OfficeHourSlot) error {
	if slots == nil {
		slots = []OfficeHourSlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	s.OfficeHours = datatypes.JSON(data)
	return nil
}

// InOfficeHours reports whether t falls inside one of the subject's declared
// office-hour slots.
func (s Subject) InOfficeHours(t time.Time) bool {
	for _, slot := range s.OfficeHourSlots() {
		if slot.Contains(t) {
			return true
		}
	}
	return false
}

// Contains reports whether t falls inside the slot.
func (o OfficeHourSlot) Contains(t time.Time) bool {
	if t.Weekday() != o.Weekday {
		return false
	}
	start, err := time.Parse("15:04", o.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", o.End)
	if err != nil {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= start.Hour()*60+start.Minute() && minutes < end.Hour()*60+end.Minute()
}

// ValidSharingState reports whether the value is a known sharing state.
func ValidSharingState(state string) bool {
	switch state {
	case SharingStateDisabled, SharingStateSharing, SharingStatePaused:
		return true
	default:
		return false
	}
}

// ValidGranularity reports whether the value is a known granularity level.
func ValidGranularity(granularity string) bool {
	return granularity == GranularityBuilding || granularity == GranularityCampus
}

// ValidateSharingTransition enforces the subject sharing state machine.
func ValidateSharingTransition(from, to string) error {
	if !ValidSharingState(from) || !ValidSharingState(to) {
		return fmt.Errorf("unknown sharing state transition %q -> %q", from, to)
	}
	if from == to {
		return nil
	}
	switch {
	case to == SharingStateDisabled:
		// Opt-out is allowed from anywhere.
		return nil
	case from == SharingStateDisabled && to == SharingStateSharing:
		return nil
	case from == SharingStateSharing && to == SharingStatePaused:
		return nil
	case from == SharingStatePaused && to == SharingStateSharing:
		return nil
	default:
		return fmt.Errorf("invalid sharing state transition %q -> %q", from, to)
	}
}
