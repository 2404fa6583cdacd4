// Package conversationreq contains HTTP request DTOs for conversation endpoints.
package conversationreq

// CreateConversationRequest starts or resumes the conversation with another user.
type CreateConversationRequest struct {
	OtherUserID string `json:"other_user_id" binding:"required"`
}
