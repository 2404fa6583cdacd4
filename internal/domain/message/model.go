package message

import (
	"time"

	"moveon-server/services/messaging-api/internal/domain/conversation"
)

const (
	DefaultPageSize  = 50
	MaxPageSize      = 200
	DefaultMaxLength = 2000
	previewLength    = 50
)

// Message is a single ordered unit of content within a conversation.
// Sequence is the total order key inside ConversationID.
type Message struct {
	ID             string
	ConversationID string
	Sequence       int64
	SenderID       string
	ReceiverID     string
	Content        string
	IsRead         bool
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Preview returns a shortened form of the content for conversation lists.
func (m *Message) Preview() string {
	runes := []rune(m.Content)
	if len(runes) <= previewLength {
		return m.Content
	}
	return string(runes[:previewLength]) + "..."
}

// ListFilter narrows a conversation's message listing.
type ListFilter struct {
	Pagination conversation.Pagination
	// UnreadFor restricts the listing to unread messages addressed to this user.
	UnreadFor string
}

// UnreadSummary aggregates a user's unread messages.
type UnreadSummary struct {
	Total          int64
	ByConversation map[string]int64
}

// NewUnreadSummary builds a summary from per-conversation counts.
func NewUnreadSummary(byConversation map[string]int64) *UnreadSummary {
	summary := &UnreadSummary{ByConversation: make(map[string]int64, len(byConversation))}
	for id, count := range byConversation {
		if count <= 0 {
			continue
		}
		summary.ByConversation[id] = count
		summary.Total += count
	}
	return summary
}

// UnreadRecipient is a user with unread messages waiting.
type UnreadRecipient struct {
	UserID string
	Count  int64
}
