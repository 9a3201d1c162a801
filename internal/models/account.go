package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Account statuses
const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// BotConfig holds the automated responder settings for an account
type BotConfig struct {
	Instruction string `json:"instruction,omitempty"`
	Context     string `json:"context,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`
}

// Value implements driver.Valuer
func (c BotConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *BotConfig) Scan(value interface{}) error {
	if value == nil {
		*c = BotConfig{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for BotConfig: %T", value)
	}

	return json.Unmarshal(data, c)
}

// Account represents a connected Instagram business account
type Account struct {
	ID              string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProfileID       string     `json:"profile_id" gorm:"index"`
	UserAppScopedID string     `json:"user_app_scoped_id"`
	Username        string     `json:"instagram_username" gorm:"column:instagram_username"`
	AccessToken     string     `json:"-"` // opaque credential, never returned
	TokenExpiresAt  time.Time  `json:"token_expires_at"`
	Status          string     `json:"status" gorm:"index;default:active"`
	Metadata        JSONMap    `json:"metadata" gorm:"type:jsonb"`
	BotActive       bool       `json:"bot_active"`
	BotConfig       *BotConfig `json:"bot_config,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName maps the model to the backing store table
func (Account) TableName() string {
	return "instagram_accounts"
}

// IsActive reports whether the account can be selected in the dashboard
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
