package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// FavoriteRepository persists a viewer's pinned subjects.
type FavoriteRepository interface {
	ListByViewer(ctx context.Context, viewerID string) ([]models.Favorite, error)
	Add(ctx context.Context, viewerID, subjectID string) error
	Remove(ctx context.Context, viewerID, subjectID string) error
}

type favoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository instantiates a GORM-backed repository.
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) ListByViewer(ctx context.Context, viewerID string) ([]models.Favorite, error) {
	var favorites []models.Favorite
	if err := r.db.WithContext(ctx).Where("viewer_id = ?", viewerID).Find(&favorites).Error; err != nil {
		return nil, err
	}

	return favorites, nil
}

func (r *favoriteRepository) Add(ctx context.Context, viewerID, subjectID string) error {
	favorite := models.Favorite{ViewerID: viewerID, SubjectID: subjectID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&favorite).Error
}

func (r *favoriteRepository) Remove(ctx context.Context, viewerID, subjectID string) error {
	return r.db.WithContext(ctx).
		Where("viewer_id = ? AND subject_id = ?", viewerID, subjectID).
		Delete(&models.Favorite{}).Error
}
