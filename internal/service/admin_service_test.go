package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
)

type adminFixture struct {
	campuses  *fakeCampusRepo
	subjects  *fakeSubjectRepo
	presence  *fakePresenceRepo
	buildings *fakeBuildingRepo
	audit     *fakeAuditRepo
	svc       *adminService
}

func newAdminFixture(t *testing.T, campus models.Campus, subjects ...models.Subject) *adminFixture {
	t.Helper()
	fixture := &adminFixture{
		campuses:  newFakeCampusRepo(campus),
		subjects:  newFakeSubjectRepo(subjects...),
		presence:  newFakePresenceRepo(),
		buildings: newFakeBuildingRepo(),
		audit:     &fakeAuditRepo{},
	}
	svc, err := NewAdminService(fixture.campuses, fixture.subjects, fixture.presence, fixture.buildings, fixture.audit, validator.New(), testLogger())
	require.NoError(t, err)
	fixture.svc = svc.(*adminService)
	return fixture
}

func TestAdminSetKillSwitchPersists(t *testing.T) {
	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72})

	config, err := fixture.svc.SetKillSwitch(context.Background(), "main", false)
	require.NoError(t, err)
	require.False(t, config.SharingEnabled)

	stored, err := fixture.campuses.GetByID(context.Background(), "main")
	require.NoError(t, err)
	require.False(t, stored.SharingEnabled)
}

func TestAdminGetCampusConfigUnknownCampus(t *testing.T) {
	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72})

	_, err := fixture.svc.GetCampusConfig(context.Background(), "satellite")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAdminSetQuietHoursRequiresWindowWhenEnabled(t *testing.T) {
	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72})

	_, err := fixture.svc.SetQuietHours(context.Background(), "main", dto.QuietHoursRequest{Enabled: true, Start: "22:00"})
	require.ErrorIs(t, err, ErrInvalidQuietHours)

	config, err := fixture.svc.SetQuietHours(context.Background(), "main", dto.QuietHoursRequest{Enabled: true, Start: "22:00", End: "06:00"})
	require.NoError(t, err)
	require.True(t, config.QuietHoursEnabled)
	require.Equal(t, "22:00", config.QuietStart)
	require.Equal(t, "06:00", config.QuietEnd)
}

func TestAdminSetQuietHoursRejectsBadClockFormat(t *testing.T) {
	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72})

	_, err := fixture.svc.SetQuietHours(context.Background(), "main", dto.QuietHoursRequest{Enabled: true, Start: "10pm", End: "06:00"})
	require.Error(t, err)
	require.IsType(t, validator.ValidationErrors{}, err)
}

func TestAdminSetVisibilityPolicyValidatesModes(t *testing.T) {
	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72})

	_, err := fixture.svc.SetVisibilityPolicy(context.Background(), "main", map[string]models.DepartmentVisibility{
		"Computer Science": {Mode: "whitelist"},
	})
	require.ErrorIs(t, err, ErrInvalidVisibility)

	config, err := fixture.svc.SetVisibilityPolicy(context.Background(), "main", map[string]models.DepartmentVisibility{
		"Computer Science": {Mode: models.VisibilityModeAllow, Roles: []string{models.RoleProfessor}},
	})
	require.NoError(t, err)
	require.Equal(t, models.VisibilityModeAllow, config.Visibility["Computer Science"].Mode)
}

func TestAdminPlatformStats(t *testing.T) {
	sharing := sharingSubject("prof-a", "main")
	consentedOnly := sharingSubject("prof-b", "main")
	consentedOnly.SharingState = models.SharingStateDisabled
	outsider := sharingSubject("prof-c", "main")
	outsider.Consented = false
	outsider.SharingState = models.SharingStateDisabled

	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72}, sharing, consentedOnly, outsider)
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	fixture.svc.now = func() time.Time { return now }

	fixture.presence.campusBySubject["prof-a"] = "main"
	require.NoError(t, fixture.presence.SetActive(context.Background(), &models.PresenceRecord{
		SubjectID:  "prof-a",
		BuildingID: strPtr("bldg-sci"),
		Source:     models.PresenceSourceManual,
		CapturedAt: now.Add(-time.Hour),
	}))

	require.NoError(t, fixture.audit.Append(context.Background(), &models.AuditEntry{
		ViewerID: "student-1", SubjectID: "prof-a", CampusID: "main",
		Outcome: models.OutcomeAllowBuilding, RequestedAt: now.Add(-time.Minute),
	}))
	require.NoError(t, fixture.audit.Append(context.Background(), &models.AuditEntry{
		ViewerID: "student-1", SubjectID: "prof-a", CampusID: "main",
		Outcome: models.OutcomeAllowBuilding, RequestedAt: now.Add(-30 * time.Hour),
	}))

	stats, err := fixture.svc.PlatformStats(context.Background(), "main")
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalSubjects)
	require.Equal(t, int64(2), stats.ConsentedSubjects)
	require.Equal(t, int64(1), stats.ActivelySharing)
	require.InDelta(t, 66.66, stats.OptInRatePercent, 0.1)
	require.Equal(t, int64(1), stats.BuildingsActive)
	require.Equal(t, int64(1), stats.DisclosuresToday)
}

func TestAdminImportBuildingsValidatesSchema(t *testing.T) {
	fixture := newAdminFixture(t, models.Campus{ID: "main", SharingEnabled: true, RetentionHours: 72})

	_, err := fixture.svc.ImportBuildings(context.Background(), []byte(`{"buildings": []}`))
	require.ErrorIs(t, err, ErrInvalidImport)

	_, err = fixture.svc.ImportBuildings(context.Background(), []byte(`{"buildings": [{"id": "b1", "name": "Science Hall", "campus_id": "main", "latitude": 120.5, "longitude": 15.0}]}`))
	require.ErrorIs(t, err, ErrInvalidImport)

	_, err = fixture.svc.ImportBuildings(context.Background(), []byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidImport)

	response, err := fixture.svc.ImportBuildings(context.Background(), []byte(`{
		"buildings": [
			{"id": "b1", "name": "Science Hall", "campus_id": "main", "latitude": 15.34, "longitude": 119.98, "footprint": [[15.34, 119.98], [15.35, 119.99]]},
			{"id": "b2", "name": "Library", "campus_id": "main", "latitude": 15.33, "longitude": 119.97}
		]
	}`))
	require.NoError(t, err)
	require.Equal(t, 2, response.Imported)

	exported, err := fixture.svc.ExportBuildings(context.Background(), "main")
	require.NoError(t, err)
	require.Len(t, exported, 2)
}
