package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// Directory availability filters, mirroring the app's filter chips.
const (
	DirectoryFilterAll         = "all"
	DirectoryFilterAvailable   = "available"
	DirectoryFilterOfficeHours = "office_hours"
	DirectoryFilterFavorites   = "favorites"
)

// DirectoryService produces the per-viewer professor directory. Location
// fields come exclusively from the policy evaluator's allow-branch output;
// the directory never reads the presence store directly.
type DirectoryService interface {
	List(ctx context.Context, viewer models.Viewer, campusID, search, filter string) (dto.DirectoryResponse, error)
	AddFavorite(ctx context.Context, viewerID, subjectID string) error
	RemoveFavorite(ctx context.Context, viewerID, subjectID string) error
}

type directoryService struct {
	subjects  repository.SubjectRepository
	buildings repository.BuildingRepository
	favorites repository.FavoriteRepository
	policy    PolicyService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDirectoryService builds the directory query service.
func NewDirectoryService(
	subjects repository.SubjectRepository,
	buildings repository.BuildingRepository,
	favorites repository.FavoriteRepository,
	policy PolicyService,
	logger zerolog.Logger,
) DirectoryService {
	return &directoryService{
		subjects:  subjects,
		buildings: buildings,
		favorites: favorites,
		policy:    policy,
		logger:    logger.With().Str("component", "directory_service").Logger(),
		now:       time.Now,
	}
}

func (s *directoryService) List(ctx context.Context, viewer models.Viewer, campusID, search, filter string) (dto.DirectoryResponse, error) {
	subjects, err := s.subjects.List(ctx, repository.SubjectFilter{CampusID: campusID, Search: search})
	if err != nil {
		return dto.DirectoryResponse{}, err
	}

	decisions, err := s.policy.EvaluateAll(ctx, viewer, campusID)
	if err != nil {
		return dto.DirectoryResponse{}, err
	}
	decisionsBySubject := make(map[string]models.PolicyDecision, len(decisions))
	for _, decision := range decisions {
		decisionsBySubject[decision.SubjectID] = decision
	}

	buildings, err := s.buildings.ListByCampus(ctx, campusID)
	if err != nil {
		return dto.DirectoryResponse{}, err
	}
	buildingNames := make(map[string]string, len(buildings))
	for _, building := range buildings {
		buildingNames[building.ID] = building.Name
	}

	favoriteSet := make(map[string]struct{})
	if favorites, err := s.favorites.ListByViewer(ctx, viewer.ID); err == nil {
		for _, favorite := range favorites {
			favoriteSet[favorite.SubjectID] = struct{}{}
		}
	} else {
		s.logger.Warn().Err(err).Str("viewer_id", viewer.ID).Msg("failed to load favorites")
	}

	now := s.now()
	entries := make([]dto.DirectoryEntryResponse, 0, len(subjects))
	for _, subject := range subjects {
		entry := s.buildEntry(subject, decisionsBySubject[subject.ID], buildingNames, favoriteSet, now)
		if !matchesFilter(entry, filter) {
			continue
		}
		entries = append(entries, entry)
	}

	return dto.DirectoryResponse{Entries: entries, Total: len(entries)}, nil
}

func (s *directoryService) buildEntry(
	subject models.Subject,
	decision models.PolicyDecision,
	buildingNames map[string]string,
	favorites map[string]struct{},
	now time.Time,
) dto.DirectoryEntryResponse {
	courses := subject.CourseList()
	if courses == nil {
		courses = []string{}
	}

	_, isFavorite := favorites[subject.ID]
	entry := dto.DirectoryEntryResponse{
		SubjectID:     subject.ID,
		Name:          subject.Name,
		Department:    subject.Department,
		Courses:       courses,
		IsFavorite:    isFavorite,
		InOfficeHours: subject.InOfficeHours(now),
	}

	if !decision.Allowed() {
		return entry
	}

	entry.OnCampus = decision.OnCampus
	entry.StatusMessage = decision.StatusMessage
	if decision.OnCampus {
		requestedAt := decision.RequestedAt
		entry.LastSeen = &requestedAt
	}
	if decision.Outcome == models.OutcomeAllowBuilding && decision.BuildingID != nil {
		entry.BuildingID = *decision.BuildingID
		entry.BuildingName = buildingNames[*decision.BuildingID]
	}

	return entry
}

func (s *directoryService) AddFavorite(ctx context.Context, viewerID, subjectID string) error {
	if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
		return ErrSubjectNotFound
	}
	return s.favorites.Add(ctx, viewerID, subjectID)
}

func (s *directoryService) RemoveFavorite(ctx context.Context, viewerID, subjectID string) error {
	return s.favorites.Remove(ctx, viewerID, subjectID)
}

func matchesFilter(entry dto.DirectoryEntryResponse, filter string) bool {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", DirectoryFilterAll:
		return true
	case DirectoryFilterAvailable:
		return entry.OnCampus && availability(entry.StatusMessage) == "available"
	case DirectoryFilterOfficeHours:
		return entry.InOfficeHours
	case DirectoryFilterFavorites:
		return entry.IsFavorite
	default:
		return true
	}
}
