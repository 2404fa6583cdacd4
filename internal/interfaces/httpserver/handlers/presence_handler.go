package handlers

import (
	"context"
	"strings"

	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses/presenceres"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// PresenceHandler answers presence lookups from this instance's registry.
type PresenceHandler struct {
	presence PresenceChecker
}

func NewPresenceHandler(presence PresenceChecker) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) Get(ctx context.Context, userID string) (*presenceres.PresenceResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"user id is required", nil, "presence-user-missing")
	}
	return presenceres.NewPresenceResponse(userID, h.presence.IsOnline(userID)), nil
}
