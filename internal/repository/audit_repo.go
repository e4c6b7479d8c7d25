package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/models"
)

// AuditFilter narrows audit trail queries. BeforeSeq is a cursor: only
// entries with a smaller sequence number are returned.
type AuditFilter struct {
	ViewerID  string
	SubjectID string
	CampusID  string
	From      time.Time
	To        time.Time
	BeforeSeq uint64
	Limit     int
}

// AuditRepository persists disclosure audit entries. The log is append-only:
// there is no update or delete path.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]models.AuditEntry, error)
	CountSince(ctx context.Context, campusID string, since time.Time) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository constructs the audit repository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) Query(ctx context.Context, filter AuditFilter) ([]models.AuditEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})

	if filter.ViewerID != "" {
		query = query.Where("viewer_id = ?", filter.ViewerID)
	}

	if filter.SubjectID != "" {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}

	if filter.CampusID != "" {
		query = query.Where("campus_id = ?", filter.CampusID)
	}

	if !filter.From.IsZero() {
		query = query.Where("requested_at >= ?", filter.From)
	}

	if !filter.To.IsZero() {
		query = query.Where("requested_at <= ?", filter.To)
	}

	if filter.BeforeSeq > 0 {
		query = query.Where("seq < ?", filter.BeforeSeq)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []models.AuditEntry
	if err := query.Order("seq DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *auditRepository) CountSince(ctx context.Context, campusID string, since time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if campusID != "" {
		query = query.Where("campus_id = ?", campusID)
	}
	if !since.IsZero() {
		query = query.Where("requested_at >= ?", since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}
