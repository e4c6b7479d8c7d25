package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// CampusRepository defines persistence operations for campus configuration.
// Callers must not cache the returned configuration across evaluations: the
// kill switch is expected to propagate on the next read.
type CampusRepository interface {
	GetByID(ctx context.Context, id string) (models.Campus, error)
	List(ctx context.Context) ([]models.Campus, error)
	Save(ctx context.Context, campus *models.Campus) error
}

type campusRepository struct {
	db *gorm.DB
}

// NewCampusRepository instantiates a GORM-backed repository.
func NewCampusRepository(db *gorm.DB) CampusRepository {
	return &campusRepository{db: db}
}

func (r *campusRepository) GetByID(ctx context.Context, id string) (models.Campus, error) {
	var campus models.Campus
	if err := r.db.WithContext(ctx).First(&campus, "id = ?", id).Error; err != nil {
		return models.Campus{}, err
	}

	return campus, nil
}

func (r *campusRepository) List(ctx context.Context) ([]models.Campus, error) {
	var campuses []models.Campus
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&campuses).Error; err != nil {
		return nil, err
	}

	return campuses, nil
}

func (r *campusRepository) Save(ctx context.Context, campus *models.Campus) error {
	return r.db.WithContext(ctx).Save(campus).Error
}
