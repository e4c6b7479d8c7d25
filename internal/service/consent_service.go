package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/observability"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// ErrInvalidRetentionPeriod rejects retention values outside the allowed set.
var ErrInvalidRetentionPeriod = errors.New("retention period must be 24, 48 or 72 hours")

// ConsentService tracks opt-in state and enforces data retention. The sweep
// and the campus purge delete presence data only; audit entries are a
// compliance record with their own lifetime and are never touched here.
type ConsentService interface {
	OptIn(ctx context.Context, subjectID string) (dto.SubjectProfileResponse, error)
	OptOut(ctx context.Context, subjectID string) error
	SetRetentionHours(ctx context.Context, campusID string, hours int) (dto.CampusConfigResponse, error)
	ExportData(ctx context.Context, subjectID string) (dto.SubjectExportResponse, error)
	PurgeAll(ctx context.Context, campusID string) (dto.PurgeResponse, error)
	Sweep(ctx context.Context) (int64, error)
	Start(ctx context.Context)
}

type consentService struct {
	subjects      repository.SubjectRepository
	presence      repository.PresenceRepository
	campuses      repository.CampusRepository
	events        PresenceEvents
	logger        zerolog.Logger
	locks         *SubjectLocks
	sweepInterval time.Duration
	now           func() time.Time
}

// NewConsentService builds the consent and retention manager. The lock
// registry must be the same instance the presence service uses so that an
// opt-out and an in-flight presence write for one subject cannot interleave.
func NewConsentService(
	subjects repository.SubjectRepository,
	presence repository.PresenceRepository,
	campuses repository.CampusRepository,
	events PresenceEvents,
	locks *SubjectLocks,
	sweepInterval time.Duration,
	logger zerolog.Logger,
) ConsentService {
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Minute
	}
	if locks == nil {
		locks = NewSubjectLocks()
	}

	return &consentService{
		subjects:      subjects,
		presence:      presence,
		campuses:      campuses,
		events:        events,
		logger:        logger.With().Str("component", "consent_service").Logger(),
		locks:         locks,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

func (s *consentService) OptIn(ctx context.Context, subjectID string) (dto.SubjectProfileResponse, error) {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectProfileResponse{}, ErrSubjectNotFound
		}
		return dto.SubjectProfileResponse{}, err
	}

	if subject.Consented && subject.SharingState != models.SharingStateDisabled {
		return dto.NewSubjectProfileResponse(subject), nil
	}

	now := s.now().UTC()
	subject.Consented = true
	subject.ConsentedAt = &now
	subject.SharingState = models.SharingStateSharing
	subject.PausedAt = nil

	if err := s.subjects.Save(ctx, &subject); err != nil {
		return dto.SubjectProfileResponse{}, err
	}

	s.events.Publish(ctx, subject.CampusID, subjectID, EventSharingChanged)
	s.logger.Info().Str("subject_id", subjectID).Msg("subject opted in")

	return dto.NewSubjectProfileResponse(subject), nil
}

// OptOut revokes consent. It is terminal until a fresh opt-in: the sharing
// state drops to disabled and the active presence record is deleted
// immediately, not left to the sweep.
func (s *consentService) OptOut(ctx context.Context, subjectID string) error {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return err
	}

	subject.Consented = false
	subject.ConsentedAt = nil
	subject.SharingState = models.SharingStateDisabled
	subject.PausedAt = nil

	if err := s.subjects.Save(ctx, &subject); err != nil {
		return err
	}

	if err := s.presence.DeleteActive(ctx, subjectID); err != nil {
		return err
	}

	s.events.Publish(ctx, subject.CampusID, subjectID, EventSharingChanged)
	s.logger.Info().Str("subject_id", subjectID).Msg("subject opted out, presence cleared")

	return nil
}

func (s *consentService) SetRetentionHours(ctx context.Context, campusID string, hours int) (dto.CampusConfigResponse, error) {
	if !models.ValidRetentionHours(hours) {
		return dto.CampusConfigResponse{}, ErrInvalidRetentionPeriod
	}

	campus, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return dto.CampusConfigResponse{}, err
	}

	campus.RetentionHours = hours
	if err := s.campuses.Save(ctx, &campus); err != nil {
		return dto.CampusConfigResponse{}, err
	}

	s.logger.Info().Str("campus_id", campusID).Int("hours", hours).Msg("retention period updated")

	return dto.NewCampusConfigResponse(campus), nil
}

// ExportData returns everything the system still holds for the subject in a
// stable serializable form. Purged and stale data is gone and stays gone.
func (s *consentService) ExportData(ctx context.Context, subjectID string) (dto.SubjectExportResponse, error) {
	subject, err := s.subjects.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubjectExportResponse{}, ErrSubjectNotFound
		}
		return dto.SubjectExportResponse{}, err
	}

	campus, err := s.campuses.GetByID(ctx, subject.CampusID)
	if err != nil {
		return dto.SubjectExportResponse{}, err
	}

	now := s.now().UTC()
	cutoff := now.Add(-campus.RetentionWindow())

	export := dto.SubjectExportResponse{
		ExportID:    uuid.NewString(),
		GeneratedAt: now,
		Profile:     dto.NewSubjectProfileResponse(subject),
		History:     []dto.PresenceResponse{},
	}

	if record, err := s.presence.GetActive(ctx, subjectID); err == nil {
		if !record.StaleAt(now, campus.RetentionWindow()) {
			response := dto.NewPresenceResponse(record)
			export.Active = &response
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubjectExportResponse{}, err
	}

	history, err := s.presence.ListHistory(ctx, subjectID, cutoff)
	if err != nil {
		return dto.SubjectExportResponse{}, err
	}
	for _, entry := range history {
		export.History = append(export.History, dto.PresenceResponse{
			SubjectID:  entry.SubjectID,
			BuildingID: entry.BuildingID,
			Source:     entry.Source,
			CapturedAt: entry.CapturedAt,
		})
	}

	return export, nil
}

// PurgeAll irreversibly deletes all presence data for a campus. Audit
// entries survive: the compliance trail outlives the presence data.
func (s *consentService) PurgeAll(ctx context.Context, campusID string) (dto.PurgeResponse, error) {
	if _, err := s.campuses.GetByID(ctx, campusID); err != nil {
		return dto.PurgeResponse{}, err
	}

	deleted, err := s.presence.DeleteByCampus(ctx, campusID)
	if err != nil {
		return dto.PurgeResponse{}, err
	}

	observability.RetentionDeletionsTotal().Add(float64(deleted))
	s.logger.Warn().Str("campus_id", campusID).Int64("deleted", deleted).Msg("campus presence data purged")

	return dto.PurgeResponse{
		CampusID:       campusID,
		RecordsDeleted: deleted,
		PurgedAt:       s.now().UTC(),
	}, nil
}

// Sweep deletes presence rows older than each campus's retention window.
// Staleness is also enforced at read time, so a delayed sweep never widens
// disclosure; the sweep only reclaims storage.
func (s *consentService) Sweep(ctx context.Context) (int64, error) {
	campuses, err := s.campuses.List(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, campus := range campuses {
		cutoff := s.now().UTC().Add(-campus.RetentionWindow())
		deleted, err := s.presence.DeleteStale(ctx, campus.ID, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Str("campus_id", campus.ID).Msg("retention sweep failed for campus")
			continue
		}
		total += deleted
	}

	if total > 0 {
		observability.RetentionDeletionsTotal().Add(float64(total))
		s.logger.Info().Int64("deleted", total).Msg("retention sweep completed")
	}

	return total, nil
}

// Start runs the sweep on a fixed interval until ctx is cancelled.
func (s *consentService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error().Err(err).Msg("retention sweep failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
