package v1

import (
	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/infrastructure/auth"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// Routes holds the v1 route configuration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes creates a new v1 routes instance.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register registers all v1 routes on the engine.
// If authMiddleware is provided, it will be applied to all v1 routes.
func (r *Routes) Register(engine *gin.Engine, authMiddleware gin.HandlerFunc) {
	v1 := engine.Group("/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}
	RegisterConversationRoutes(v1, r.handlers.Conversation, r.handlers.Message)
	RegisterMessageRoutes(v1, r.handlers.Message)
	RegisterPresenceRoutes(v1, r.handlers.Presence)
	RegisterRealtimeRoutes(v1, r.handlers.Realtime)
}

// requireUser returns the authenticated user or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID := auth.UserID(c)
	if userID == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "auth-user-missing")
		return "", false
	}
	return userID, true
}
