package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// PresenceRepository defines persistence operations for active presence
// records and their short-lived history.
type PresenceRepository interface {
	GetActive(ctx context.Context, subjectID string) (models.PresenceRecord, error)
	SetActive(ctx context.Context, record *models.PresenceRecord) error
	DeleteActive(ctx context.Context, subjectID string) error
	AppendHistory(ctx context.Context, entry *models.PresenceHistory) error
	ListHistory(ctx context.Context, subjectID string, since time.Time) ([]models.PresenceHistory, error)
	ListActiveByCampus(ctx context.Context, campusID string) ([]models.PresenceRecord, error)
	DeleteStale(ctx context.Context, campusID string, cutoff time.Time) (int64, error)
	DeleteByCampus(ctx context.Context, campusID string) (int64, error)
}

type presenceRepository struct {
	db *gorm.DB
}

// NewPresenceRepository instantiates a GORM-backed repository.
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepository{db: db}
}

func (r *presenceRepository) GetActive(ctx context.Context, subjectID string) (models.PresenceRecord, error) {
	var record models.PresenceRecord
	if err := r.db.WithContext(ctx).First(&record, "subject_id = ?", subjectID).Error; err != nil {
		return models.PresenceRecord{}, err
	}

	return record, nil
}

func (r *presenceRepository) SetActive(ctx context.Context, record *models.PresenceRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

func (r *presenceRepository) DeleteActive(ctx context.Context, subjectID string) error {
	return r.db.WithContext(ctx).Delete(&models.PresenceRecord{}, "subject_id = ?", subjectID).Error
}

func (r *presenceRepository) AppendHistory(ctx context.Context, entry *models.PresenceHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *presenceRepository) ListHistory(ctx context.Context, subjectID string, since time.Time) ([]models.PresenceHistory, error) {
	var entries []models.PresenceHistory
	query := r.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if !since.IsZero() {
		query = query.Where("captured_at >= ?", since)
	}
	if err := query.Order("captured_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *presenceRepository) ListActiveByCampus(ctx context.Context, campusID string) ([]models.PresenceRecord, error) {
	var records []models.PresenceRecord
	err := r.db.WithContext(ctx).
		Where("subject_id IN (?)", r.db.Model(&models.Subject{}).Select("id").Where("campus_id = ?", campusID)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *presenceRepository) DeleteStale(ctx context.Context, campusID string, cutoff time.Time) (int64, error) {
	subjects := r.db.Model(&models.Subject{}).Select("id").Where("campus_id = ?", campusID)

	active := r.db.WithContext(ctx).
		Where("captured_at < ? AND subject_id IN (?)", cutoff, subjects).
		Delete(&models.PresenceRecord{})
	if active.Error != nil {
		return 0, active.Error
	}

	history := r.db.WithContext(ctx).
		Where("captured_at < ? AND subject_id IN (?)", cutoff, subjects).
		Delete(&models.PresenceHistory{})
	if history.Error != nil {
		return active.RowsAffected, history.Error
	}

	return active.RowsAffected + history.RowsAffected, nil
}

func (r *presenceRepository) DeleteByCampus(ctx context.Context, campusID string) (int64, error) {
	subjects := r.db.Model(&models.Subject{}).Select("id").Where("campus_id = ?", campusID)

	active := r.db.WithContext(ctx).
		Where("subject_id IN (?)", subjects).
		Delete(&models.PresenceRecord{})
	if active.Error != nil {
		return 0, active.Error
	}

	history := r.db.WithContext(ctx).
		Where("subject_id IN (?)", subjects).
		Delete(&models.PresenceHistory{})
	if history.Error != nil {
		return active.RowsAffected, history.Error
	}

	return active.RowsAffected + history.RowsAffected, nil
}
