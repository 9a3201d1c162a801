package repository

import (
	"context"

	"autosms-dashboard/backend/internal/models"

	"gorm.io/gorm"
)

// MessageRepository provides access to the local mirror of conversation
// messages. The remote system is authoritative; this store is append-only
// from the dashboard's point of view.
type MessageRepository interface {
	ListByChat(ctx context.Context, chatID string) ([]models.Message, error)
	Create(ctx context.Context, message *models.Message) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("message_timestamp ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}
