package models

import "time"

// Viewer roles.
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleAdmin     = "admin"
)

// Viewer identifies a user requesting presence data. Viewers never own
// subject or presence state; they only carry read requests.
type Viewer struct {
	ID          string
	Role        string
	Departments []string
}

// PolicyDecision is the ephemeral outcome of evaluating a (viewer, subject)
// pair. It is not persisted beyond the audit trail.
type PolicyDecision struct {
	ViewerID      string
	ViewerRole    string
	SubjectID     string
	CampusID      string
	RequestedAt   time.Time
	Outcome       string
	Reason        string
	BuildingID    *string
	StatusMessage string
	OnCampus      bool
}

// Allowed reports whether the decision discloses anything.
func (d PolicyDecision) Allowed() bool {
	return d.Outcome == OutcomeAllowBuilding || d.Outcome == OutcomeAllowCampus
}
