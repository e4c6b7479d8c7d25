package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Building is immutable campus reference data owned by administration.
type Building struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	CampusID    string         `gorm:"size:64;index;not null" json:"campus_id"`
	Description string         `gorm:"size:512" json:"description"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Footprint   datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FootprintPolygon decodes the building's geographic footprint as an ordered
// list of [lat, lng] vertices.
func (b Building) FootprintPolygon() [][2]float64 {
	if len(b.Footprint) == 0 {
		return nil
	}
	var polygon [][2]float64
	if err := json.Unmarshal(b.Footprint, &polygon); err != nil {
		return nil
	}
	return polygon
}

// SetFootprintPolygon encodes the footprint into the JSON column.
func (b *Building) SetFootprintPolygon(polygon [][2]float64) error {
	if polygon == nil {
		polygon = [][2]float64{}
	}
	data, err := json.Marshal(polygon)
	if err != nil {
		return err
	}
	b.Footprint = datatypes.JSON(data)
	return nil
}
