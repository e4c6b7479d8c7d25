package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/prmsu-campus/presence-api/internal/models"
)

func autoShareSubject(id string, now time.Time) models.Subject {
	subject := sharingSubject(id, "main")
	subject.AutoShare = true
	subject.OfficeBldgID = strPtr("bldg-office")
	_ = subject.SetOfficeHourSlots([]models.OfficeHourSlot{{
		Weekday: now.Weekday(),
		Start:   "08:00",
		End:     "17:00",
	}})
	return subject
}

func newScheduleFixture(subject models.Subject, campus models.Campus) (*scheduleService, *fakePresenceRepo, *fakeSubjectRepo) {
	subjects := newFakeSubjectRepo(subject)
	presence := newFakePresenceRepo()
	presence.campusBySubject[subject.ID] = campus.ID
	campuses := newFakeCampusRepo(campus)
	buildings := newFakeBuildingRepo(models.Building{ID: "bldg-office", Name: "Faculty Center", CampusID: campus.ID})

	store := NewPresenceService(subjects, presence, campuses, buildings, &recordingEvents{}, validator.New(validator.WithRequiredStructEnabled()), NewSubjectLocks(), testLogger())
	svc := NewScheduleService(subjects, presence, store, time.Minute, testLogger()).(*scheduleService)
	return svc, presence, subjects
}

func TestReconcileActivatesDuringOfficeHours(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	subject := autoShareSubject("prof-maria", now)
	campus := models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72}
	svc, presence, _ := newScheduleFixture(subject, campus)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Reconcile(context.Background()))

	record, err := presence.GetActive(context.Background(), "prof-maria")
	require.NoError(t, err)
	require.Equal(t, models.PresenceSourceAutomatic, record.Source)
	require.Equal(t, "bldg-office", *record.BuildingID)
}

func TestReconcileClearsAfterHours(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	subject := autoShareSubject("prof-maria", now)
	campus := models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72}
	svc, presence, _ := newScheduleFixture(subject, campus)

	require.NoError(t, presence.SetActive(context.Background(), &models.PresenceRecord{
		SubjectID:  "prof-maria",
		BuildingID: strPtr("bldg-office"),
		Source:     models.PresenceSourceAutomatic,
		CapturedAt: now,
	}))

	svc.now = func() time.Time {
		return time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC)
	}
	require.NoError(t, svc.Reconcile(context.Background()))

	_, err := presence.GetActive(context.Background(), "prof-maria")
	require.Error(t, err)
}

func TestReconcileManualPauseWins(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	subject := autoShareSubject("prof-maria", now)
	subject.SharingState = models.SharingStatePaused
	campus := models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72}
	svc, presence, _ := newScheduleFixture(subject, campus)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Reconcile(context.Background()))

	_, err := presence.GetActive(context.Background(), "prof-maria")
	require.Error(t, err)
}

func TestReconcileManualRecordNotOverridden(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	subject := autoShareSubject("prof-maria", now)
	campus := models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72}
	svc, presence, _ := newScheduleFixture(subject, campus)
	svc.now = func() time.Time { return now }

	require.NoError(t, presence.SetActive(context.Background(), &models.PresenceRecord{
		SubjectID:  "prof-maria",
		BuildingID: strPtr("bldg-lib"),
		Source:     models.PresenceSourceManual,
		CapturedAt: now,
	}))

	require.NoError(t, svc.Reconcile(context.Background()))

	record, err := presence.GetActive(context.Background(), "prof-maria")
	require.NoError(t, err)
	require.Equal(t, models.PresenceSourceManual, record.Source)
	require.Equal(t, "bldg-lib", *record.BuildingID)
}

func TestReconcileToleratesKillSwitch(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	subject := autoShareSubject("prof-maria", now)
	campus := models.Campus{ID: "main", SharingEnabled: false, RetentionHours: 72}
	svc, presence, _ := newScheduleFixture(subject, campus)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Reconcile(context.Background()))

	_, err := presence.GetActive(context.Background(), "prof-maria")
	require.Error(t, err)
}
