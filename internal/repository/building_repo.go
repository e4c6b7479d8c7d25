package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// BuildingRepository defines persistence operations for building reference data.
type BuildingRepository interface {
	GetByID(ctx context.Context, id string) (models.Building, error)
	ListByCampus(ctx context.Context, campusID string) ([]models.Building, error)
	UpsertMany(ctx context.Context, buildings []models.Building) error
}

type buildingRepository struct {
	db *gorm.DB
}

// NewBuildingRepository instantiates a GORM-backed repository.
func NewBuildingRepository(db *gorm.DB) BuildingRepository {
	return &buildingRepository{db: db}
}

func (r *buildingRepository) GetByID(ctx context.Context, id string) (models.Building, error) {
	var building models.Building
	if err := r.db.WithContext(ctx).First(&building, "id = ?", id).Error; err != nil {
		return models.Building{}, err
	}

	return building, nil
}

func (r *buildingRepository) ListByCampus(ctx context.Context, campusID string) ([]models.Building, error) {
	var buildings []models.Building
	query := r.db.WithContext(ctx)
	if campusID != "" {
		query = query.Where("campus_id = ?", campusID)
	}
	if err := query.Order("name ASC").Find(&buildings).Error; err != nil {
		return nil, err
	}

	return buildings, nil
}

func (r *buildingRepository) UpsertMany(ctx context.Context, buildings []models.Building) error {
	if len(buildings) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&buildings).Error
}
