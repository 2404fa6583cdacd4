package handlers

import (
	"github.com/google/wire"

	domainrealtime "moveon-server/services/messaging-api/internal/domain/realtime"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Conversation *ConversationHandler
	Message      *MessageHandler
	Presence     *PresenceHandler
	Realtime     *RealtimeHandler
}

// NewProvider creates a new handler provider.
func NewProvider(
	conversation *ConversationHandler,
	message *MessageHandler,
	presence *PresenceHandler,
	realtime *RealtimeHandler,
) *Provider {
	return &Provider{
		Conversation: conversation,
		Message:      message,
		Presence:     presence,
		Realtime:     realtime,
	}
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	wire.Bind(new(PresenceChecker), new(*domainrealtime.Gateway)),
	NewConversationHandler,
	NewMessageHandler,
	NewPresenceHandler,
	NewRealtimeHandler,
	NewProvider,
)
