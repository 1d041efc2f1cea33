package repository

import (
	"context"
	"errors"

	"github.com/replate/replate-backend/internal/cache"
	"github.com/replate/replate-backend/internal/models"

	"gorm.io/gorm"
)

// AnnouncementRepository defines persistence operations for announcements.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	GetByID(ctx context.Context, id uint) (*models.Announcement, error)
	Update(ctx context.Context, a *models.Announcement) error
	UpdateModeration(ctx context.Context, id uint, status string, score *float64) error
	Delete(ctx context.Context, id uint) error
	ListByStatus(ctx context.Context, status string) ([]models.Announcement, error)

	// ApplyClassification persists a classification result. The write is
	// guarded: it only lands while the record still carries imageKey and is
	// still PENDING_REVIEW, so a result computed for superseded content can
	// never clobber a newer admin decision or donor edit. It reports whether
	// the write was applied.
	ApplyClassification(ctx context.Context, id uint, imageKey, status string, score float64) (bool, error)
}

type announcementRepository struct {
	db *gorm.DB
}

// NewAnnouncementRepository returns a new AnnouncementRepository implementation.
func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *announcementRepository) GetByID(ctx context.Context, id uint) (*models.Announcement, error) {
	var a models.Announcement
	err := cache.Aside(ctx, cache.AnnouncementKey(id), &a, cache.AnnouncementTTL, func() error {
		if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Announcement", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *announcementRepository) Update(ctx context.Context, a *models.Announcement) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.AnnouncementKey(a.ID))
	return nil
}

// UpdateModeration records a review decision. Only the status column is
// written, plus the score column when score is non-nil; nothing else from
// the possibly cached in-memory copy reaches the database.
func (r *announcementRepository) UpdateModeration(ctx context.Context, id uint, status string, score *float64) error {
	updates := map[string]interface{}{"moderation_status": status}
	if score != nil {
		updates["moderation_score"] = *score
	}
	res := r.db.WithContext(ctx).
		Model(&models.Announcement{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Announcement", id)
	}
	cache.Invalidate(ctx, cache.AnnouncementKey(id))
	return nil
}

func (r *announcementRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Announcement{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.AnnouncementKey(id))
	return nil
}

func (r *announcementRepository) ListByStatus(ctx context.Context, status string) ([]models.Announcement, error) {
	var list []models.Announcement
	if err := r.db.WithContext(ctx).
		Where("moderation_status = ?", status).
		Order("created_at ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return list, nil
}

func (r *announcementRepository) ApplyClassification(ctx context.Context, id uint, imageKey, status string, score float64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Announcement{}).
		Where("id = ? AND image_key = ? AND moderation_status = ?", id, imageKey, models.StatusPendingReview).
		Updates(map[string]interface{}{
			"moderation_status": status,
			"moderation_score":  score,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	cache.Invalidate(ctx, cache.AnnouncementKey(id))
	return true, nil
}
