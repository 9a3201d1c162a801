package repository

import (
	"context"

	"autosms-dashboard/backend/internal/models"

	"gorm.io/gorm"
)

// AccountRepository provides access to connected Instagram accounts
type AccountRepository interface {
	// ListActiveByProfile returns the profile's active accounts, most
	// recently connected first. The explicit ordering keeps default account
	// selection deterministic across fetches.
	ListActiveByProfile(ctx context.Context, profileID string) ([]models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	UpdateBotConfig(ctx context.Context, id string, config models.BotConfig) error
}

type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) ListActiveByProfile(ctx context.Context, profileID string) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND status = ?", profileID, models.AccountStatusActive).
		Order("created_at DESC").
		Find(&accounts).Error
	return accounts, err
}

func (r *GormAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *GormAccountRepository) UpdateBotConfig(ctx context.Context, id string, config models.BotConfig) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("bot_config", config).Error
}
