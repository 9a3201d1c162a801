package repository

import (
	"context"
	"time"

	"autosms-dashboard/backend/internal/models"

	"gorm.io/gorm"
)

// ConversationRepository provides access to conversation threads. Listing is
// always scoped to one account and takes the raw (unwrapped) account id;
// unwrapping is the session store's job and wrapped ids must never reach a
// query here.
type ConversationRepository interface {
	ListActiveByAccount(ctx context.Context, accountRawID string) ([]models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	SetBotActive(ctx context.Context, id string, active bool) error
	TouchLastInteraction(ctx context.Context, id string, at time.Time) error
}

type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) ListActiveByAccount(ctx context.Context, accountRawID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("instagram_account_id = ? AND status = ?", accountRawID, models.ConversationStatusActive).
		Order("last_interaction DESC").
		Find(&conversations).Error
	return conversations, err
}

func (r *GormConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *GormConversationRepository) SetBotActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("bot_active", active).Error
}

func (r *GormConversationRepository) TouchLastInteraction(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("last_interaction", at).Error
}
