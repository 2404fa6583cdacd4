// Package messageres contains HTTP response DTOs for message endpoints.
package messageres

import (
	"sort"
	"time"

	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
)

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID             string     `json:"id"`
	Object         string     `json:"object"`
	ConversationID string     `json:"conversation_id"`
	Sequence       int64      `json:"sequence"`
	SenderID       string     `json:"sender_id"`
	ReceiverID     string     `json:"receiver_id"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MessageListResponse is a page of messages in ascending sequence order.
type MessageListResponse struct {
	Object string             `json:"object"`
	Data   []*MessageResponse `json:"data"`
	responses.PageInfo
}

// MarkReadResponse reports whether a single message changed state.
type MarkReadResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Updated bool   `json:"updated"`
}

// MarkConversationReadResponse reports how many messages were marked read.
type MarkConversationReadResponse struct {
	ConversationID string `json:"conversation_id"`
	Object         string `json:"object"`
	Marked         int64  `json:"marked"`
}

// UnreadSummaryResponse aggregates the caller's unread messages.
type UnreadSummaryResponse struct {
	Object                          string                `json:"object"`
	TotalUnreadMessages             int64                 `json:"total_unread_messages"`
	ConversationsWithUnreadMessages int                   `json:"conversations_with_unread_messages"`
	ConversationCounts              []*ConversationUnread `json:"conversation_counts"`
}

// ConversationUnread is the unread count for one conversation.
type ConversationUnread struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}

func NewMessageResponse(msg *message.Message) *MessageResponse {
	return &MessageResponse{
		ID:             msg.ID,
		Object:         "message",
		ConversationID: msg.ConversationID,
		Sequence:       msg.Sequence,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Content:        msg.Content,
		IsRead:         msg.IsRead,
		ReadAt:         msg.ReadAt,
		CreatedAt:      msg.CreatedAt,
	}
}

func NewMessageListResponse(msgs []*message.Message, page responses.PageInfo) *MessageListResponse {
	data := make([]*MessageResponse, len(msgs))
	for i, m := range msgs {
		data[i] = NewMessageResponse(m)
	}
	return &MessageListResponse{
		Object:   "list",
		Data:     data,
		PageInfo: page,
	}
}

func NewMarkReadResponse(id string, updated bool) *MarkReadResponse {
	return &MarkReadResponse{ID: id, Object: "message.read", Updated: updated}
}

func NewMarkConversationReadResponse(conversationID string, marked int64) *MarkConversationReadResponse {
	return &MarkConversationReadResponse{
		ConversationID: conversationID,
		Object:         "conversation.read",
		Marked:         marked,
	}
}

// NewUnreadSummaryResponse orders per-conversation counts by count, then id.
func NewUnreadSummaryResponse(summary *message.UnreadSummary) *UnreadSummaryResponse {
	counts := make([]*ConversationUnread, 0, len(summary.ByConversation))
	for id, n := range summary.ByConversation {
		counts = append(counts, &ConversationUnread{ConversationID: id, UnreadCount: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].UnreadCount != counts[j].UnreadCount {
			return counts[i].UnreadCount > counts[j].UnreadCount
		}
		return counts[i].ConversationID < counts[j].ConversationID
	})

	return &UnreadSummaryResponse{
		Object:                          "unread_summary",
		TotalUnreadMessages:             summary.Total,
		ConversationsWithUnreadMessages: len(counts),
		ConversationCounts:              counts,
	}
}
