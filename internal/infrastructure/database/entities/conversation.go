package entities

import (
	"time"

	"moveon-server/services/messaging-api/internal/domain/conversation"
)

// Conversation represents the database schema for 1:1 conversations.
// The (user_low, user_high) unique index enforces one row per unordered pair.
type Conversation struct {
	ID             string    `gorm:"type:varchar(50);primaryKey"`
	UserLow        string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_pair,priority:1"`
	UserHigh       string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_pair,priority:2;index:idx_conversation_user_high"`
	LastSequence   int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
	LastActivityAt time.Time `gorm:"not null;index:idx_conversation_last_activity"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// EtoD converts database entity to domain model
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:             c.ID,
		UserLow:        c.UserLow,
		UserHigh:       c.UserHigh,
		LastSequence:   c.LastSequence,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
	}
}

// NewSchemaConversation creates a database entity from domain model
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		ID:             c.ID,
		UserLow:        c.UserLow,
		UserHigh:       c.UserHigh,
		LastSequence:   c.LastSequence,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
	}
}
