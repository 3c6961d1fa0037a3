package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/models"
)

// AnnouncementFilter describes pagination options for announcement listings.
type AnnouncementFilter struct {
	Page     int
	PageSize int
}

// AnnouncementRepository defines persistence operations for announcements.
type AnnouncementRepository interface {
	ListActive(ctx context.Context, filter AnnouncementFilter) ([]models.Announcement, int64, error)
	GetByID(ctx context.Context, id uint) (models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id uint) error
}

type announcementRepository struct {
	db *gorm.DB
}

// NewAnnouncementRepository instantiates a GORM-backed repository.
func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) ListActive(ctx context.Context, filter AnnouncementFilter) ([]models.Announcement, int64, error) {
	now := time.Now()
	query := r.db.WithContext(ctx).Model(&models.Announcement{}).
		Where("starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at >= ?", now)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("is_pinned DESC, starts_at DESC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var announcements []models.Announcement
	if err := query.Find(&announcements).Error; err != nil {
		return nil, 0, err
	}

	return announcements, total, nil
}

func (r *announcementRepository) GetByID(ctx context.Context, id uint) (models.Announcement, error) {
	var announcement models.Announcement
	if err := r.db.WithContext(ctx).First(&announcement, id).Error; err != nil {
		return models.Announcement{}, err
	}

	return announcement, nil
}

func (r *announcementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Create(announcement).Error
}

func (r *announcementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Save(announcement).Error
}

func (r *announcementRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Announcement{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
