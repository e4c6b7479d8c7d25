package dto

import (
	"time"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// BuildingResponse is the map-surface view of a building.
type BuildingResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CampusID    string       `json:"campus_id"`
	Description string       `json:"description"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	Footprint   [][2]float64 `json:"footprint"`
}

// NewBuildingResponse converts a model into a DTO.
func NewBuildingResponse(building models.Building) BuildingResponse {
	footprint := building.FootprintPolygon()
	if footprint == nil {
		footprint = [][2]float64{}
	}

	return BuildingResponse{
		ID:          building.ID,
		Name:        building.Name,
		CampusID:    building.CampusID,
		Description: building.Description,
		Latitude:    building.Latitude,
		Longitude:   building.Longitude,
		Footprint:   footprint,
	}
}

// NewBuildingResponseSlice converts a slice of models into DTOs.
func NewBuildingResponseSlice(buildings []models.Building) []BuildingResponse {
	responses := make([]BuildingResponse, 0, len(buildings))
	for _, building := range buildings {
		responses = append(responses, NewBuildingResponse(building))
	}

	return responses
}

// BuildingOccupancy is one `(building, occupant count, status color)` tuple
// the map surface renders. Derived per viewer; never raw presence data.
type BuildingOccupancy struct {
	BuildingID    string `json:"building_id"`
	BuildingName  string `json:"building_name"`
	OccupantCount int    `json:"occupant_count"`
	StatusColor   string `json:"status_color"`
}

// OccupancyResponse is the per-viewer campus occupancy snapshot.
type OccupancyResponse struct {
	CampusID        string              `json:"campus_id"`
	Buildings       []BuildingOccupancy `json:"buildings"`
	CampusOnlyCount int                 `json:"campus_only_count"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// PresenceEvent is broadcast to live map feed subscribers whenever a
// subject's visible presence may have changed. It intentionally carries no
// location payload: clients re-fetch occupancy through the evaluator.
type PresenceEvent struct {
	CampusID  string    `json:"campus_id"`
	SubjectID string    `json:"subject_id"`
	Kind      string    `json:"kind"`
	SentAt    time.Time `json:"sent_at"`
}
