package handlers

import (
	"context"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests/messagereq"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses/messageres"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// MessageHandler handles message-related HTTP requests.
type MessageHandler struct {
	ledger message.Service
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(ledger message.Service) *MessageHandler {
	return &MessageHandler{ledger: ledger}
}

// Send appends a message from userID to the conversation.
func (h *MessageHandler) Send(ctx context.Context, userID, conversationID string, req messagereq.SendMessageRequest) (*messageres.MessageResponse, error) {
	msg, err := h.ledger.Append(ctx, conversationID, userID, req.Content)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to send message")
	}
	metrics.RecordMessageSent("http")
	return messageres.NewMessageResponse(msg), nil
}

// List returns a page of the conversation's messages in ascending sequence order.
func (h *MessageHandler) List(ctx context.Context, userID, conversationID string, q messagereq.ListMessagesQuery) (*messageres.MessageListResponse, error) {
	pagination := conversation.NormalizePagination(q.Page, q.PageSize, message.DefaultPageSize, message.MaxPageSize)

	msgs, total, err := h.ledger.ListForConversation(ctx, conversationID, userID, pagination.Page, pagination.PageSize, q.UnreadOnly)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list messages")
	}
	return messageres.NewMessageListResponse(msgs, responses.NewPageInfo(total, pagination.Page, pagination.PageSize)), nil
}

// MarkRead marks a single message read. Unknown, foreign or already read
// messages report updated=false.
func (h *MessageHandler) MarkRead(ctx context.Context, userID, messageID string) (*messageres.MarkReadResponse, error) {
	updated, err := h.ledger.MarkRead(ctx, messageID, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to mark message read")
	}
	if updated {
		metrics.RecordMessagesRead("message", 1)
	}
	return messageres.NewMarkReadResponse(messageID, updated), nil
}

// MarkConversationRead marks every unread message addressed to userID in the conversation.
func (h *MessageHandler) MarkConversationRead(ctx context.Context, userID, conversationID string) (*messageres.MarkConversationReadResponse, error) {
	marked, err := h.ledger.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to mark conversation read")
	}
	metrics.RecordMessagesRead("conversation", marked)
	return messageres.NewMarkConversationReadResponse(conversationID, marked), nil
}

// Unread returns the user's unread totals.
func (h *MessageHandler) Unread(ctx context.Context, userID string) (*messageres.UnreadSummaryResponse, error) {
	summary, err := h.ledger.UnreadSummary(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to count unread messages")
	}
	return messageres.NewUnreadSummaryResponse(summary), nil
}
