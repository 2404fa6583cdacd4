package entities

import (
	"time"

	"moveon-server/services/messaging-api/internal/domain/message"
)

// Message represents the database schema for conversation messages.
type Message struct {
	ID             string `gorm:"type:varchar(50);primaryKey"`
	ConversationID string `gorm:"type:varchar(50);not null;uniqueIndex:idx_message_conversation_sequence,priority:1"`
	Sequence       int64  `gorm:"not null;uniqueIndex:idx_message_conversation_sequence,priority:2"`
	SenderID       string `gorm:"type:varchar(64);not null"`
	ReceiverID     string `gorm:"type:varchar(64);not null;index:idx_message_receiver_unread,priority:1"`
	Content        string `gorm:"type:text;not null"`
	IsRead         bool   `gorm:"not null;default:false;index:idx_message_receiver_unread,priority:2"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_message_created_at"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// EtoD converts database entity to domain model
func (m *Message) EtoD() *message.Message {
	return &message.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sequence:       m.Sequence,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}

// NewSchemaMessage creates a database entity from domain model
func NewSchemaMessage(m *message.Message) *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sequence:       m.Sequence,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}
