package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// SubjectFilter describes search options for directory listings.
type SubjectFilter struct {
	CampusID string
	Search   string
}

// SubjectRepository defines persistence operations for subjects.
type SubjectRepository interface {
	GetByID(ctx context.Context, id string) (models.Subject, error)
	List(ctx context.Context, filter SubjectFilter) ([]models.Subject, error)
	ListAutoShare(ctx context.Context, campusID string) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Save(ctx context.Context, subject *models.Subject) error
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository instantiates a GORM-backed repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) GetByID(ctx context.Context, id string) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).First(&subject, "id = ?", id).Error; err != nil {
		return models.Subject{}, err
	}

	return subject, nil
}

func (r *subjectRepository) List(ctx context.Context, filter SubjectFilter) ([]models.Subject, error) {
	query := r.db.WithContext(ctx).Model(&models.Subject{})

	if filter.CampusID != "" {
		query = query.Where("campus_id = ?", filter.CampusID)
	}

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(department) LIKE ? OR LOWER(courses) LIKE ?", pattern, pattern, pattern)
	}

	var subjects []models.Subject
	if err := query.Order("name ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}

	return subjects, nil
}

func (r *subjectRepository) ListAutoShare(ctx context.Context, campusID string) ([]models.Subject, error) {
	var subjects []models.Subject
	query := r.db.WithContext(ctx).
		Where("auto_share = ? AND consented = ?", true, true)
	if campusID != "" {
		query = query.Where("campus_id = ?", campusID)
	}
	if err := query.Find(&subjects).Error; err != nil {
		return nil, err
	}

	return subjects, nil
}

func (r *subjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *subjectRepository) Save(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Save(subject).Error
}
