// Package conversationres contains HTTP response DTOs for conversation endpoints.
package conversationres

import (
	"time"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
)

// ConversationResponse is a conversation as seen by one participant.
type ConversationResponse struct {
	ID             string               `json:"id"`
	Object         string               `json:"object"`
	OtherUserID    string               `json:"other_user_id"`
	IsOnline       bool                 `json:"is_online"`
	UnreadCount    int64                `json:"unread_count"`
	LastMessage    *LastMessageResponse `json:"last_message,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	LastActivityAt time.Time            `json:"last_activity_at"`
}

// LastMessageResponse previews the newest message of a conversation.
type LastMessageResponse struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Preview   string    `json:"preview"`
	Sequence  int64     `json:"sequence"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationListResponse is a page of conversations.
type ConversationListResponse struct {
	Object string                  `json:"object"`
	Data   []*ConversationResponse `json:"data"`
	responses.PageInfo
}

// Decoration carries the per-viewer fields that do not live on the conversation.
type Decoration struct {
	IsOnline    bool
	UnreadCount int64
	LastMessage *message.Message
}

// NewConversationResponse builds the response for viewerID.
func NewConversationResponse(conv *conversation.Conversation, viewerID string, d Decoration) *ConversationResponse {
	resp := &ConversationResponse{
		ID:             conv.ID,
		Object:         "conversation",
		OtherUserID:    conv.OtherParticipant(viewerID),
		IsOnline:       d.IsOnline,
		UnreadCount:    d.UnreadCount,
		CreatedAt:      conv.CreatedAt,
		LastActivityAt: conv.LastActivityAt,
	}
	if msg := d.LastMessage; msg != nil {
		resp.LastMessage = &LastMessageResponse{
			ID:        msg.ID,
			SenderID:  msg.SenderID,
			Preview:   msg.Preview(),
			Sequence:  msg.Sequence,
			IsRead:    msg.IsRead,
			CreatedAt: msg.CreatedAt,
		}
	}
	return resp
}

// NewConversationListResponse wraps a page of conversations.
func NewConversationListResponse(data []*ConversationResponse, page responses.PageInfo) *ConversationListResponse {
	if data == nil {
		data = []*ConversationResponse{}
	}
	return &ConversationListResponse{
		Object:   "list",
		Data:     data,
		PageInfo: page,
	}
}
