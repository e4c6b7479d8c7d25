package models

import "time"

// Favorite pins a subject in a viewer's directory listing.
type Favorite struct {
	ViewerID  string    `gorm:"primaryKey;size:64" json:"viewer_id"`
	SubjectID string    `gorm:"primaryKey;size:64" json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
}
