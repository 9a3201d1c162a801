package models

import (
	"time"
)

// Conversation statuses
const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
)

// Conversation represents a message thread between an Instagram account and
// one external counterparty
type Conversation struct {
	ID              string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	AccountID       string    `json:"instagram_account_id" gorm:"column:instagram_account_id;index"`
	ParticipantSID  string    `json:"participant_sid" gorm:"index"`
	State           JSONMap   `json:"state" gorm:"type:jsonb"`
	Usage           JSONMap   `json:"usage" gorm:"type:jsonb"`
	LastInteraction time.Time `json:"last_interaction" gorm:"index"`
	Status          string    `json:"status" gorm:"index;default:active"`
	BotActive       bool      `json:"bot_active"`
	Metadata        JSONMap   `json:"metadata" gorm:"type:jsonb"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName maps the model to the backing store table
func (Conversation) TableName() string {
	return "instagram_chats"
}

// Username returns the counterparty handle, falling back to the raw
// participant id when no profile metadata is present
func (c *Conversation) Username() string {
	if u := c.Metadata.Map("participantProfile").String("username"); u != "" {
		return u
	}
	return c.ParticipantSID
}

// DisplayName returns the counterparty display name with the same fallback
// chain the dashboard shows: profile name, then username, then participant id
func (c *Conversation) DisplayName() string {
	if n := c.Metadata.Map("participantProfile").String("name"); n != "" {
		return n
	}
	return c.Username()
}

// HasCustomer reports whether a customer record is attached to the thread
func (c *Conversation) HasCustomer() bool {
	if c.Metadata == nil {
		return false
	}
	customer, ok := c.Metadata["customer"]
	if !ok || customer == nil {
		return false
	}
	// An empty object is not a customer record
	if m, ok := customer.(map[string]interface{}); ok {
		return len(m) > 0
	}
	return true
}
