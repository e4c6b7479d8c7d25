package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/observability"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// Sentinel errors surfaced by the presence store.
var (
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrNotConsented     = errors.New("subject has not consented to location sharing")
	ErrSystemPaused     = errors.New("campus-wide sharing is disabled")
	ErrUnknownBuilding  = errors.New("building not found on subject's campus")
	ErrInvalidSource    = errors.New("invalid presence source")
	ErrStatusEmpty      = errors.New("status message empty after sanitization")
	ErrBadGranularity   = errors.New("invalid sharing granularity")
	ErrSharingSuspended = errors.New("sharing is disabled for this subject")
)

// PresenceService is the presence store: it owns every mutation of a
// subject's location claim and sharing state. All writes for one subject are
// serialized through a per-subject lock.
type PresenceService interface {
	SetPresence(ctx context.Context, subjectID string, buildingID *string, source string) (dto.PresenceResponse, error)
	ClearAutomatic(ctx context.Context, subjectID string) error
	GetPresence(ctx context.Context, subjectID, callerID string) (*dto.PresenceResponse, error)
	Pause(ctx context.Context, subjectID string) error
	Resume(ctx context.Context, subjectID string) error
	SetStatusMessage(ctx context.Context, subjectID, message string) (dto.SubjectProfileResponse, error)
	SetGranularity(ctx context.Context, subjectID, granularity string) error
	SetAutoShare(ctx context.Context, subjectID string, enabled bool) error
	GetProfile(ctx context.Context, subjectID string) (dto.SubjectProfileResponse, error)
}

type presenceService struct {
	subjects  repository.SubjectRepository
	presence  repository.PresenceRepository
	campuses  repository.CampusRepository
	buildings repository.BuildingRepository
	events    PresenceEvents
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	locks     *SubjectLocks
	now       func() time.Time
}

// NewPresenceService builds the presence store. The lock registry must be
// the same instance the consent service uses: both mutate the same subject
// rows and presence records.
func NewPresenceService(
	subjects repository.SubjectRepository,
	presence repository.PresenceRepository,
	campuses repository.CampusRepository,
	buildings repository.BuildingRepository,
	events PresenceEvents,
	validate *validator.Validate,
	locks *SubjectLocks,
	logger zerolog.Logger,
) PresenceService {
	if locks == nil {
		locks = NewSubjectLocks()
	}

	return &presenceService{
		subjects:  subjects,
		presence:  presence,
		campuses:  campuses,
		buildings: buildings,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "presence_service").Logger(),
		tracer:    otel.Tracer("github.com/prmsu-campus/presence-api/internal/service/presence"),
		locks:     locks,
		now:       time.Now,
	}
}

func (s *presenceService) SetPresence(ctx context.Context, subjectID string, buildingID *string, source string) (dto.PresenceResponse, error) {
	if source == "" {
		source = models.PresenceSourceManual
	}
	if !models.ValidPresenceSource(source) {
		return dto.PresenceResponse{}, ErrInvalidSource
	}

	attrs := []attribute.KeyValue{
		attribute.String("presence.subject_id", subjectID),
		attribute.String("presence.source", source),
	}
	spanCtx, span := s.tracer.Start(ctx, "presence.set", trace.WithAttributes(attrs...))
	defer span.End()

	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.loadSubject(spanCtx, subjectID)
	if err != nil {
		return dto.PresenceResponse{}, err
	}

	if !subject.Consented {
		return dto.PresenceResponse{}, ErrNotConsented
	}

	campus, err := s.campuses.GetByID(spanCtx, subject.CampusID)
	if err != nil {
		span.RecordError(err)
		return dto.PresenceResponse{}, err
	}
	if !campus.SharingEnabled {
		return dto.PresenceResponse{}, ErrSystemPaused
	}

	if buildingID != nil {
		building, err := s.buildings.GetByID(spanCtx, *buildingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.PresenceResponse{}, ErrUnknownBuilding
			}
			span.RecordError(err)
			return dto.PresenceResponse{}, err
		}
		if building.CampusID != subject.CampusID {
			return dto.PresenceResponse{}, ErrUnknownBuilding
		}
	}

	if previous, err := s.presence.GetActive(spanCtx, subjectID); err == nil {
		history := models.PresenceHistory{
			SubjectID:  previous.SubjectID,
			BuildingID: previous.BuildingID,
			Source:     previous.Source,
			CapturedAt: previous.CapturedAt,
		}
		if err := s.presence.AppendHistory(spanCtx, &history); err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("failed to archive superseded presence record")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.PresenceResponse{}, err
	}

	record := models.PresenceRecord{
		SubjectID:  subjectID,
		BuildingID: buildingID,
		Source:     source,
		CapturedAt: s.now().UTC(),
	}
	if err := s.presence.SetActive(spanCtx, &record); err != nil {
		span.RecordError(err)
		return dto.PresenceResponse{}, err
	}

	observability.PresenceUpdatesTotal().WithLabelValues(source).Inc()
	s.events.Publish(spanCtx, subject.CampusID, subjectID, EventPresenceUpdated)
	s.logger.Info().Str("subject_id", subjectID).Str("source", source).Msg("presence updated")

	return dto.NewPresenceResponse(record), nil
}

// ClearAutomatic removes an automatically-set presence record at the end of
// an office-hour slot. Manual records are left untouched.
func (s *presenceService) ClearAutomatic(ctx context.Context, subjectID string) error {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	record, err := s.presence.GetActive(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if record.Source != models.PresenceSourceAutomatic {
		return nil
	}

	history := models.PresenceHistory{
		SubjectID:  record.SubjectID,
		BuildingID: record.BuildingID,
		Source:     record.Source,
		CapturedAt: record.CapturedAt,
	}
	if err := s.presence.AppendHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("failed to archive cleared presence record")
	}

	if err := s.presence.DeleteActive(ctx, subjectID); err != nil {
		return err
	}

	subject, err := s.loadSubject(ctx, subjectID)
	if err == nil {
		s.events.Publish(ctx, subject.CampusID, subjectID, EventPresenceCleared)
	}

	return nil
}

// GetPresence returns the caller-visible active record, or nil when no
// current record exists. Stale records are treated as absent, and a paused
// or disabled subject is invisible to everyone but themselves.
func (s *presenceService) GetPresence(ctx context.Context, subjectID, callerID string) (*dto.PresenceResponse, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if subject.SharingState != models.SharingStateSharing && callerID != subjectID {
		return nil, nil
	}

	campus, err := s.campuses.GetByID(ctx, subject.CampusID)
	if err != nil {
		return nil, err
	}

	record, err := s.presence.GetActive(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if record.StaleAt(s.now().UTC(), campus.RetentionWindow()) {
		return nil, nil
	}

	response := dto.NewPresenceResponse(record)
	return &response, nil
}

func (s *presenceService) Pause(ctx context.Context, subjectID string) error {
	return s.transition(ctx, subjectID, models.SharingStatePaused)
}

func (s *presenceService) Resume(ctx context.Context, subjectID string) error {
	return s.transition(ctx, subjectID, models.SharingStateSharing)
}

func (s *presenceService) transition(ctx context.Context, subjectID, target string) error {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	if subject.SharingState == models.SharingStateDisabled {
		return ErrSharingSuspended
	}
	if subject.SharingState == target {
		// Idempotent: pausing a paused subject is a no-op.
		return nil
	}
	if err := models.ValidateSharingTransition(subject.SharingState, target); err != nil {
		return err
	}

	now := s.now().UTC()
	subject.SharingState = target
	if target == models.SharingStatePaused {
		subject.PausedAt = &now
	} else {
		subject.PausedAt = nil
	}

	if err := s.subjects.Save(ctx, &subject); err != nil {
		return err
	}

	s.events.Publish(ctx, subject.CampusID, subjectID, EventSharingChanged)
	s.logger.Info().Str("subject_id", subjectID).Str("sharing_state", target).Msg("sharing state changed")

	return nil
}

func (s *presenceService) SetStatusMessage(ctx context.Context, subjectID, message string) (dto.SubjectProfileResponse, error) {
	clean := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if clean == "" {
		return dto.SubjectProfileResponse{}, ErrStatusEmpty
	}

	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return dto.SubjectProfileResponse{}, err
	}

	subject.StatusMessage = clean
	if err := s.subjects.Save(ctx, &subject); err != nil {
		return dto.SubjectProfileResponse{}, err
	}

	s.events.Publish(ctx, subject.CampusID, subjectID, EventPresenceUpdated)

	return dto.NewSubjectProfileResponse(subject), nil
}

func (s *presenceService) SetGranularity(ctx context.Context, subjectID, granularity string) error {
	if !models.ValidGranularity(granularity) {
		return ErrBadGranularity
	}

	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	subject.Granularity = granularity
	if err := s.subjects.Save(ctx, &subject); err != nil {
		return err
	}

	s.events.Publish(ctx, subject.CampusID, subjectID, EventSharingChanged)

	return nil
}

func (s *presenceService) SetAutoShare(ctx context.Context, subjectID string, enabled bool) error {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	subject.AutoShare = enabled
	return s.subjects.Save(ctx, &subject)
}

func (s *presenceService) GetProfile(ctx context.Context, subjectID string) (dto.SubjectProfileResponse, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return dto.SubjectProfileResponse{}, err
	}

	return dto.NewSubjectProfileResponse(subject), nil
}

func (s *presenceService) loadSubject(ctx context.Context, subjectID string) (models.Subject, error) {
	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Subject{}, ErrSubjectNotFound
		}
		return models.Subject{}, err
	}

	return subject, nil
}
