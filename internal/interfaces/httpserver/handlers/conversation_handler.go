package handlers

import (
	"context"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests/conversationreq"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses/conversationres"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// PresenceChecker reports whether a user has a live connection.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// ConversationHandler handles conversation-related HTTP requests.
type ConversationHandler struct {
	conversations conversation.Service
	ledger        message.Service
	presence      PresenceChecker
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(conversations conversation.Service, ledger message.Service, presence PresenceChecker) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		ledger:        ledger,
		presence:      presence,
	}
}

// CreateOrGet returns the conversation between userID and the requested
// user. created is true when this call created it.
func (h *ConversationHandler) CreateOrGet(
	ctx context.Context,
	userID string,
	req conversationreq.CreateConversationRequest,
) (*conversationres.ConversationResponse, bool, error) {
	conv, created, err := h.conversations.GetOrCreate(ctx, userID, req.OtherUserID)
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to open conversation")
	}
	if created {
		metrics.RecordConversationCreated()
	}

	resp, err := h.decorate(ctx, userID, []*conversation.Conversation{conv})
	if err != nil {
		return nil, false, err
	}
	return resp[0], created, nil
}

// Get returns a conversation the user participates in.
func (h *ConversationHandler) Get(ctx context.Context, userID, conversationID string) (*conversationres.ConversationResponse, error) {
	conv, err := h.conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get conversation")
	}

	resp, err := h.decorate(ctx, userID, []*conversation.Conversation{conv})
	if err != nil {
		return nil, err
	}
	return resp[0], nil
}

// List returns a page of the user's conversations, most recently active first.
func (h *ConversationHandler) List(ctx context.Context, userID string, q requests.PageQuery) (*conversationres.ConversationListResponse, error) {
	pagination := conversation.NormalizePagination(q.Page, q.PageSize, conversation.DefaultPageSize, conversation.MaxPageSize)

	convs, total, err := h.conversations.ListForUser(ctx, userID, pagination)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to list conversations")
	}

	data, err := h.decorate(ctx, userID, convs)
	if err != nil {
		return nil, err
	}
	return conversationres.NewConversationListResponse(
		data,
		responses.NewPageInfo(total, pagination.Page, pagination.PageSize),
	), nil
}

// decorate attaches the viewer's unread counts, the latest message and the
// other participant's presence.
func (h *ConversationHandler) decorate(ctx context.Context, viewerID string, convs []*conversation.Conversation) ([]*conversationres.ConversationResponse, error) {
	if len(convs) == 0 {
		return []*conversationres.ConversationResponse{}, nil
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}

	latest, err := h.ledger.LatestByConversation(ctx, ids)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to load last messages")
	}
	unread, err := h.ledger.UnreadCountsByConversation(ctx, viewerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to load unread counts")
	}

	out := make([]*conversationres.ConversationResponse, len(convs))
	for i, c := range convs {
		out[i] = conversationres.NewConversationResponse(c, viewerID, conversationres.Decoration{
			IsOnline:    h.presence.IsOnline(c.OtherParticipant(viewerID)),
			UnreadCount: unread[c.ID],
			LastMessage: latest[c.ID],
		})
	}
	return out, nil
}
