package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Retention periods an administrator may choose, in hours.
var AllowedRetentionHours = []int{24, 48, 72}

// Visibility policy modes for department-scoped access control.
const (
	VisibilityModeAllow = "allow"
	VisibilityModeDeny  = "deny"
)

// Campus holds campus-wide sharing configuration. SharingEnabled is the
// kill switch: it must be read at evaluation time, never cached.
type Campus struct {
	ID                string         `gorm:"primaryKey;size:64" json:"id"`
	Name              string         `gorm:"size:255;not null" json:"name"`
	SharingEnabled    bool           `gorm:"not null;default:true" json:"sharing_enabled"`
	RetentionHours    int            `gorm:"not null;default:72" json:"retention_hours"`
	QuietHoursEnabled bool           `json:"quiet_hours_enabled"`
	QuietStart        string         `gorm:"size:8" json:"quiet_start"`
	QuietEnd          string         `gorm:"size:8" json:"quiet_end"`
	Visibility        datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DepartmentVisibility is the configured visibility rule for one department.
// Mode "allow" exposes the department only to the listed roles; mode "deny"
// hides it from them.
type DepartmentVisibility struct {
	Mode  string   `json:"mode"`
	Roles []string `json:"roles"`
}

// RetentionWindow returns the configured retention period as a duration.
func (c Campus) RetentionWindow() time.Duration {
	hours := c.RetentionHours
	if hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}

// VisibilityPolicy decodes the per-department visibility configuration.
// A missing or malformed column means no department restrictions.
func (c Campus) VisibilityPolicy() map[string]DepartmentVisibility {
	if len(c.Visibility) == 0 {
		return nil
	}
	var policy map[string]DepartmentVisibility
	if err := json.Unmarshal(c.Visibility, &policy); err != nil {
		return nil
	}
	return policy
}

// SetVisibilityPolicy encodes the per-department visibility configuration.
func (c *Campus) SetVisibilityPolicy(policy map[string]DepartmentVisibility) error {
	if policy == nil {
		policy = map[string]DepartmentVisibility{}
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	c.Visibility = datatypes.JSON(data)
	return nil
}

// InQuietHours reports whether t falls inside the configured quiet window.
// A window that crosses midnight (e.g. 22:00-06:00) is handled.
func (c Campus) InQuietHours(t time.Time) bool {
	if !c.QuietHoursEnabled {
		return false
	}
	start, err := time.Parse("15:04", c.QuietStart)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", c.QuietEnd)
	if err != nil {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}
	return minutes >= startMin || minutes < endMin
}

// ValidRetentionHours reports whether hours is one of the allowed periods.
func ValidRetentionHours(hours int) bool {
	for _, allowed := range AllowedRetentionHours {
		if hours == allowed {
			return true
		}
	}
	return false
}
