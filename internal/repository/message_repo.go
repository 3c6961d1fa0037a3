package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/models"
)

// MessageFilter narrows message queries.
type MessageFilter struct {
	SenderID    *uint
	RecipientID *uint
	Status      *string
	Limit       int
}

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	List(ctx context.Context, filter MessageFilter) ([]models.Message, error)
	Conversation(ctx context.Context, userA, userB uint, limit int) ([]models.Message, error)
	GetByID(ctx context.Context, id uint) (models.Message, error)
	Create(ctx context.Context, message *models.Message) error
	UpdateStatus(ctx context.Context, id uint, status string) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository instantiates a GORM-backed repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) List(ctx context.Context, filter MessageFilter) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{})

	if filter.SenderID != nil {
		query = query.Where("sender_id = ?", *filter.SenderID)
	}

	if filter.RecipientID != nil {
		query = query.Where("recipient_id = ?", *filter.RecipientID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var messages []models.Message
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) Conversation(ctx context.Context, userA, userB uint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userA, userB, userB, userA).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return models.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
