package repository

import (
	"context"

	"github.com/timmy/ninjascan/internal/domain"
	"gorm.io/gorm"
)

// ScreenshotRepository handles persisted screenshot records.
type ScreenshotRepository struct {
	db *gorm.DB
}

// NewScreenshotRepository creates a new ScreenshotRepository.
func NewScreenshotRepository(db *gorm.DB) *ScreenshotRepository {
	return &ScreenshotRepository{db: db}
}

// Create inserts a new screenshot record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - shot: record to persist.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *ScreenshotRepository) Create(ctx context.Context, shot *domain.Screenshot) error {
	return r.db.WithContext(ctx).Create(shot).Error
}

// LatestByHost returns the most recent record for host, optionally limited
// to a status. gorm.ErrRecordNotFound is returned when nothing matches.
func (r *ScreenshotRepository) LatestByHost(ctx context.Context, host string, status domain.CaptureStatus) (*domain.Screenshot, error) {
	query := r.db.WithContext(ctx).Where("host = ?", host)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var shot domain.Screenshot
	if err := query.Order("captured_at DESC").First(&shot).Error; err != nil {
		return nil, err
	}
	return &shot, nil
}

// ListRecent returns records ordered by capture time, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records.
//   - offset: number of records to skip.
//
// Returns:
//   - []domain.Screenshot: page of records.
//   - int64: total record count.
//   - error: non-nil if the query fails.
func (r *ScreenshotRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.Screenshot, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Screenshot{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var shots []domain.Screenshot
	err := r.db.WithContext(ctx).
		Order("captured_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&shots).Error
	return shots, total, err
}

// DeleteByHost removes every record for host and returns them so callers can
// clean up archived objects.
func (r *ScreenshotRepository) DeleteByHost(ctx context.Context, host string) ([]domain.Screenshot, error) {
	var shots []domain.Screenshot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("host = ?", host).Find(&shots).Error; err != nil {
			return err
		}
		return tx.Where("host = ?", host).Delete(&domain.Screenshot{}).Error
	})
	if err != nil {
		return nil, err
	}
	return shots, nil
}

// CountByStorageKey returns how many records reference an archived object.
func (r *ScreenshotRepository) CountByStorageKey(ctx context.Context, key string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Screenshot{}).
		Where("storage_key = ?", key).
		Count(&count).Error
	return count, err
}
