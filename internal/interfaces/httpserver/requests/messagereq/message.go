// Package messagereq contains HTTP request DTOs for message endpoints.
package messagereq

import "moveon-server/services/messaging-api/internal/interfaces/httpserver/requests"

// SendMessageRequest is the body of POST /v1/conversations/:id/messages.
// Length and blank checks are enforced by the ledger.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListMessagesQuery filters a conversation's message listing.
type ListMessagesQuery struct {
	requests.PageQuery
	UnreadOnly bool `form:"unread_only"`
}
