package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/dto"
	"github.com/prmsu-campus/presence-api/internal/models"
	"github.com/prmsu-campus/presence-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeSubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]models.Subject
}

func newFakeSubjectRepo(subjects ...models.Subject) *fakeSubjectRepo {
	repo := &fakeSubjectRepo{subjects: make(map[string]models.Subject)}
	for _, subject := range subjects {
		repo.subjects[subject.ID] = subject
	}
	return repo
}

func (f *fakeSubjectRepo) GetByID(ctx context.Context, id string) (models.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject, ok := f.subjects[id]
	if !ok {
		return models.Subject{}, gorm.ErrRecordNotFound
	}
	return subject, nil
}

func (f *fakeSubjectRepo) List(ctx context.Context, filter repository.SubjectFilter) ([]models.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Subject
	for _, subject := range f.subjects {
		if filter.CampusID != "" && subject.CampusID != filter.CampusID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(subject.Name), strings.ToLower(filter.Search)) {
			continue
		}
		result = append(result, subject)
	}
	return result, nil
}

func (f *fakeSubjectRepo) ListAutoShare(ctx context.Context, campusID string) ([]models.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Subject
	for _, subject := range f.subjects {
		if !subject.AutoShare {
			continue
		}
		if campusID != "" && subject.CampusID != campusID {
			continue
		}
		result = append(result, subject)
	}
	return result, nil
}

func (f *fakeSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects[subject.ID] = *subject
	return nil
}

func (f *fakeSubjectRepo) Save(ctx context.Context, subject *models.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects[subject.ID] = *subject
	return nil
}

type fakePresenceRepo struct {
	mu              sync.Mutex
	active          map[string]models.PresenceRecord
	history         []models.PresenceHistory
	campusBySubject map[string]string
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{
		active:          make(map[string]models.PresenceRecord),
		campusBySubject: make(map[string]string),
	}
}

func (f *fakePresenceRepo) GetActive(ctx context.Context, subjectID string) (models.PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.active[subjectID]
	if !ok {
		return models.PresenceRecord{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakePresenceRepo) SetActive(ctx context.Context, record *models.PresenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[record.SubjectID] = *record
	return nil
}

func (f *fakePresenceRepo) DeleteActive(ctx context.Context, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, subjectID)
	return nil
}

func (f *fakePresenceRepo) AppendHistory(ctx context.Context, entry *models.PresenceHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uint(len(f.history) + 1)
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakePresenceRepo) ListHistory(ctx context.Context, subjectID string, since time.Time) ([]models.PresenceHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.PresenceHistory
	for _, entry := range f.history {
		if entry.SubjectID != subjectID {
			continue
		}
		if entry.CapturedAt.Before(since) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (f *fakePresenceRepo) ListActiveByCampus(ctx context.Context, campusID string) ([]models.PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.PresenceRecord
	for subjectID, record := range f.active {
		if f.campusBySubject[subjectID] != campusID {
			continue
		}
		result = append(result, record)
	}
	return result, nil
}

func (f *fakePresenceRepo) DeleteStale(ctx context.Context, campusID string, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for subjectID, record := range f.active {
		if f.campusBySubject[subjectID] != campusID {
			continue
		}
		if record.CapturedAt.Before(cutoff) {
			delete(f.active, subjectID)
			deleted++
		}
	}
	kept := f.history[:0]
	for _, entry := range f.history {
		if f.campusBySubject[entry.SubjectID] == campusID && entry.CapturedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	f.history = kept
	return deleted, nil
}

func (f *fakePresenceRepo) DeleteByCampus(ctx context.Context, campusID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for subjectID := range f.active {
		if f.campusBySubject[subjectID] != campusID {
			continue
		}
		delete(f.active, subjectID)
		deleted++
	}
	kept := f.history[:0]
	for _, entry := range f.history {
		if f.campusBySubject[entry.SubjectID] == campusID {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	f.history = kept
	return deleted, nil
}

type fakeCampusRepo struct {
	mu       sync.Mutex
	campuses map[string]models.Campus
}

func newFakeCampusRepo(campuses ...models.Campus) *fakeCampusRepo {
	repo := &fakeCampusRepo{campuses: make(map[string]models.Campus)}
	for _, campus := range campuses {
		repo.campuses[campus.ID] = campus
	}
	return repo
}

func (f *fakeCampusRepo) GetByID(ctx context.Context, id string) (models.Campus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	campus, ok := f.campuses[id]
	if !ok {
		return models.Campus{}, gorm.ErrRecordNotFound
	}
	return campus, nil
}

func (f *fakeCampusRepo) List(ctx context.Context) ([]models.Campus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Campus
	for _, campus := range f.campuses {
		result = append(result, campus)
	}
	return result, nil
}

func (f *fakeCampusRepo) Save(ctx context.Context, campus *models.Campus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campuses[campus.ID] = *campus
	return nil
}

type fakeBuildingRepo struct {
	mu        sync.Mutex
	buildings map[string]models.Building
}

func newFakeBuildingRepo(buildings ...models.Building) *fakeBuildingRepo {
	repo := &fakeBuildingRepo{buildings: make(map[string]models.Building)}
	for _, building := range buildings {
		repo.buildings[building.ID] = building
	}
	return repo
}

func (f *fakeBuildingRepo) GetByID(ctx context.Context, id string) (models.Building, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	building, ok := f.buildings[id]
	if !ok {
		return models.Building{}, gorm.ErrRecordNotFound
	}
	return building, nil
}

func (f *fakeBuildingRepo) ListByCampus(ctx context.Context, campusID string) ([]models.Building, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Building
	for _, building := range f.buildings {
		if building.CampusID != campusID {
			continue
		}
		result = append(result, building)
	}
	return result, nil
}

func (f *fakeBuildingRepo) UpsertMany(ctx context.Context, buildings []models.Building) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, building := range buildings {
		f.buildings[building.ID] = building
	}
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (f *fakeAuditRepo) Append(ctx context.Context, entry *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.Seq = uint64(len(f.entries) + 1)
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) Query(ctx context.Context, filter repository.AuditFilter) ([]models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var result []models.AuditEntry
	for i := len(f.entries) - 1; i >= 0 && len(result) < limit; i-- {
		entry := f.entries[i]
		if filter.ViewerID != "" && entry.ViewerID != filter.ViewerID {
			continue
		}
		if filter.SubjectID != "" && entry.SubjectID != filter.SubjectID {
			continue
		}
		if filter.CampusID != "" && entry.CampusID != filter.CampusID {
			continue
		}
		if filter.BeforeSeq > 0 && entry.Seq >= filter.BeforeSeq {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (f *fakeAuditRepo) CountSince(ctx context.Context, campusID string, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, entry := range f.entries {
		if campusID != "" && entry.CampusID != campusID {
			continue
		}
		if !since.IsZero() && entry.RequestedAt.Before(since) {
			continue
		}
		total++
	}
	return total, nil
}

type fakeFavoriteRepo struct {
	mu        sync.Mutex
	favorites map[string]map[string]struct{}
}

func newFakeFavoriteRepo() *fakeFavoriteRepo {
	return &fakeFavoriteRepo{favorites: make(map[string]map[string]struct{})}
}

func (f *fakeFavoriteRepo) ListByViewer(ctx context.Context, viewerID string) ([]models.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Favorite
	for subjectID := range f.favorites[viewerID] {
		result = append(result, models.Favorite{ViewerID: viewerID, SubjectID: subjectID})
	}
	return result, nil
}

func (f *fakeFavoriteRepo) Add(ctx context.Context, viewerID, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.favorites[viewerID]; !ok {
		f.favorites[viewerID] = make(map[string]struct{})
	}
	f.favorites[viewerID][subjectID] = struct{}{}
	return nil
}

func (f *fakeFavoriteRepo) Remove(ctx context.Context, viewerID, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.favorites[viewerID], subjectID)
	return nil
}

// recordingEvents captures published presence events without any fan-out.
type recordingEvents struct {
	mu     sync.Mutex
	events []dto.PresenceEvent
}

func (r *recordingEvents) Publish(ctx context.Context, campusID, subjectID, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, dto.PresenceEvent{CampusID: campusID, SubjectID: subjectID, Kind: kind})
}

func (r *recordingEvents) Subscribe(campusID string) (<-chan dto.PresenceEvent, func()) {
	ch := make(chan dto.PresenceEvent)
	return ch, func() { close(ch) }
}

func (r *recordingEvents) OnEvent(fn func(dto.PresenceEvent)) {}

func (r *recordingEvents) Start(ctx context.Context) {}

func (r *recordingEvents) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, event := range r.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// recordingAudit captures decisions handed to the audit logger.
type recordingAudit struct {
	mu        sync.Mutex
	decisions []models.PolicyDecision
}

func (r *recordingAudit) Record(decision models.PolicyDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, decision)
}

func (r *recordingAudit) Query(ctx context.Context, filter repository.AuditFilter) (dto.AuditPageResponse, error) {
	return dto.AuditPageResponse{}, nil
}

func (r *recordingAudit) Start(ctx context.Context) {}

func (r *recordingAudit) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.decisions)
}
