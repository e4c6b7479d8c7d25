package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

// ScheduleService drives office-hours auto-share: at the start of a
// configured slot it pushes an automatic presence record for the subject's
// office building, and at the end it clears it again. A manual pause always
// wins: paused subjects are skipped for the whole paused interval,
// regardless of the auto-share flag.
type ScheduleService interface {
	Reconcile(ctx context.Context) error
	Start(ctx context.Context)
}

type scheduleService struct {
	subjects repository.SubjectRepository
	presence repository.PresenceRepository
	store    PresenceService
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewScheduleService builds the auto-share reconciliation job.
func NewScheduleService(
	subjects repository.SubjectRepository,
	presence repository.PresenceRepository,
	store PresenceService,
	interval time.Duration,
	logger zerolog.Logger,
) ScheduleService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &scheduleService{
		subjects: subjects,
		presence: presence,
		store:    store,
		logger:   logger.With().Str("component", "schedule_service").Logger(),
		interval: interval,
		now:      time.Now,
	}
}

// Reconcile walks every auto-share subject once and converges their
// automatic presence with the current office-hours schedule.
func (s *scheduleService) Reconcile(ctx context.Context) error {
	subjects, err := s.subjects.ListAutoShare(ctx, "")
	if err != nil {
		return err
	}

	now := s.now()
	for _, subject := range subjects {
		if err := s.reconcileSubject(ctx, subject, now); err != nil {
			s.logger.Warn().Err(err).Str("subject_id", subject.ID).Msg("auto-share reconciliation failed for subject")
		}
	}

	return nil
}

func (s *scheduleService) reconcileSubject(ctx context.Context, subject models.Subject, now time.Time) error {
	inHours := subject.InOfficeHours(now)

	if !inHours {
		// Slot ended: drop the automatic record, leave manual ones alone.
		return s.store.ClearAutomatic(ctx, subject.ID)
	}

	// Explicit user action wins over automation: a manually paused subject
	// stays invisible until they resume.
	if subject.SharingState == models.SharingStatePaused {
		return nil
	}
	if subject.SharingState != models.SharingStateSharing {
		return nil
	}

	record, err := s.presence.GetActive(ctx, subject.ID)
	if err == nil {
		if record.Source == models.PresenceSourceManual {
			// A manual claim is fresher intent than the schedule.
			return nil
		}
		if record.Source == models.PresenceSourceAutomatic && sameBuilding(record.BuildingID, subject.OfficeBldgID) {
			return nil
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if _, err := s.store.SetPresence(ctx, subject.ID, subject.OfficeBldgID, models.PresenceSourceAutomatic); err != nil {
		// Consent or the kill switch may have flipped since listing.
		if errors.Is(err, ErrNotConsented) || errors.Is(err, ErrSystemPaused) {
			return nil
		}
		return err
	}

	s.logger.Info().Str("subject_id", subject.ID).Msg("office-hours auto-share activated")

	return nil
}

// Start runs the reconciliation loop until ctx is cancelled.
func (s *scheduleService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Reconcile(ctx); err != nil {
					s.logger.Error().Err(err).Msg("auto-share reconciliation failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func sameBuilding(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
