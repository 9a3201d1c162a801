package models

import (
	"time"
)

// Message directions
const (
	DirectionIncoming   = "incoming"
	DirectionOutgoing   = "outgoing"
	DirectionHumanAgent = "human_agent"
)

// Message content types
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
)

// Message represents one message unit within a conversation. Ordering is by
// Timestamp (milliseconds) ascending; the remote system is authoritative and
// the client only ever appends.
type Message struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ChatID      string    `json:"chat_id" gorm:"index"`
	ExternalID  string    `json:"instagram_message_id" gorm:"column:instagram_message_id;index"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Direction   string    `json:"type" gorm:"column:type"`
	ContentType string    `json:"message_type" gorm:"column:message_type"`
	Timestamp   int64     `json:"message_timestamp" gorm:"column:message_timestamp;index"`
	Metadata    JSONMap   `json:"metadata" gorm:"type:jsonb"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName maps the model to the backing store table
func (Message) TableName() string {
	return "instagram_messages"
}

// Text returns the message body for text messages
func (m *Message) Text() string {
	return m.Metadata.String("text")
}

// IsOutgoing reports whether the message left the business account, either
// from the bot or from a human agent
func (m *Message) IsOutgoing() bool {
	return m.Direction == DirectionOutgoing || m.Direction == DirectionHumanAgent
}
