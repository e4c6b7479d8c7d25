package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// Status colors rendered on the map, keyed by coarse availability.
const (
	statusColorAvailable = "#059669"
	statusColorBusy      = "#d97706"
	statusColorAway      = "#6b7280"
)

// MapService derives the per-viewer occupancy tuples the map surface
// renders. It only ever sees evaluator output, never raw presence rows, so
// the map can not leak what the policy withheld.
type MapService interface {
	Buildings(ctx context.Context, campusID string) ([]dto.BuildingResponse, error)
	Occupancy(ctx context.Context, viewer models.Viewer, campusID string) (dto.OccupancyResponse, error)
	InvalidateCampus(ctx context.Context, campusID string)
}

type mapService struct {
	policy    PolicyService
	buildings repository.BuildingRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMapService builds the map aggregation service. The cache is optional;
// the TTL is kept short so occupancy trails policy changes by seconds, not
// minutes.
func NewMapService(policy PolicyService, buildings repository.BuildingRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) MapService {
	return &mapService{
		policy:    policy,
		buildings: buildings,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "map_service").Logger(),
		now:       time.Now,
	}
}

func (s *mapService) Buildings(ctx context.Context, campusID string) ([]dto.BuildingResponse, error) {
	buildings, err := s.buildings.ListByCampus(ctx, campusID)
	if err != nil {
		return nil, err
	}

	return dto.NewBuildingResponseSlice(buildings), nil
}

func (s *mapService) Occupancy(ctx context.Context, viewer models.Viewer, campusID string) (dto.OccupancyResponse, error) {
	cacheKey := fmt.Sprintf("occupancy:%s:%s", campusID, viewer.Role)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.OccupancyResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("campus_id", campusID).Msg("occupancy cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read occupancy cache")
		}
	}

	decisions, err := s.policy.EvaluateAll(ctx, viewer, campusID)
	if err != nil {
		return dto.OccupancyResponse{}, err
	}

	buildings, err := s.buildings.ListByCampus(ctx, campusID)
	if err != nil {
		return dto.OccupancyResponse{}, err
	}
	names := make(map[string]string, len(buildings))
	for _, building := range buildings {
		names[building.ID] = building.Name
	}

	response := s.aggregate(campusID, decisions, names)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store occupancy cache")
			}
		}
	}

	return response, nil
}

// InvalidateCampus drops the cached occupancy snapshots for a campus. Wired
// to the presence event stream so a presence change is visible on the next
// occupancy read instead of after the TTL.
func (s *mapService) InvalidateCampus(ctx context.Context, campusID string) {
	if s.cache == nil {
		return
	}
	for _, role := range []string{models.RoleStudent, models.RoleProfessor, models.RoleAdmin} {
		key := fmt.Sprintf("occupancy:%s:%s", campusID, role)
		if err := s.cache.Del(ctx, key).Err(); err != nil {
			s.logger.Warn().Err(err).Str("campus_id", campusID).Msg("failed to invalidate occupancy cache")
		}
	}
}

func (s *mapService) aggregate(campusID string, decisions []models.PolicyDecision, names map[string]string) dto.OccupancyResponse {
	type bucket struct {
		count    int
		statuses []string
	}
	buckets := make(map[string]*bucket)
	campusOnly := 0

	for _, decision := range decisions {
		if !decision.Allowed() || !decision.OnCampus {
			continue
		}
		if decision.Outcome == models.OutcomeAllowBuilding && decision.BuildingID != nil {
			b, ok := buckets[*decision.BuildingID]
			if !ok {
				b = &bucket{}
				buckets[*decision.BuildingID] = b
			}
			b.count++
			b.statuses = append(b.statuses, decision.StatusMessage)
			continue
		}
		campusOnly++
	}

	occupancies := make([]dto.BuildingOccupancy, 0, len(buckets))
	for buildingID, b := range buckets {
		occupancies = append(occupancies, dto.BuildingOccupancy{
			BuildingID:    buildingID,
			BuildingName:  names[buildingID],
			OccupantCount: b.count,
			StatusColor:   aggregateStatusColor(b.statuses),
		})
	}
	sort.Slice(occupancies, func(i, j int) bool {
		return occupancies[i].BuildingID < occupancies[j].BuildingID
	})

	return dto.OccupancyResponse{
		CampusID:        campusID,
		Buildings:       occupancies,
		CampusOnlyCount: campusOnly,
		GeneratedAt:     s.now().UTC(),
	}
}

// aggregateStatusColor maps the occupants' status labels to a single color:
// green if anyone is approachable, amber if everyone present is busy, grey
// otherwise.
func aggregateStatusColor(statuses []string) string {
	anyBusy := false
	for _, status := range statuses {
		switch availability(status) {
		case "available":
			return statusColorAvailable
		case "busy":
			anyBusy = true
		}
	}
	if anyBusy {
		return statusColorBusy
	}
	return statusColorAway
}

// availability coarsens a free-text status label into the three buckets the
// map legend uses. Unknown labels count as available presence.
func availability(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "office hours", "available", "":
		return "available"
	case "in class", "busy - do not disturb", "busy":
		return "busy"
	case "away":
		return "away"
	default:
		return "available"
	}
}
