package v1

import (
	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
)

// RegisterRealtimeRoutes registers the websocket endpoint.
func RegisterRealtimeRoutes(router gin.IRoutes, handler *handlers.RealtimeHandler) {
	router.GET("/realtime/ws", connectRealtime(handler))
}

// connectRealtime godoc
// @Summary      Open a realtime connection
// @Description  Upgrades to a websocket. Browsers may pass the token as ?access_token=.
// @Description  Server events: user_online, user_offline, receive_message, receive_group_message,
// @Description  message_read, typing, error. Client frames: send_message, join_group, leave_group,
// @Description  group_message, typing, mark_read.
// @Tags         Realtime API
// @Param        access_token query string false "Bearer token for clients that cannot set headers"
// @Success      101 "Switching Protocols"
// @Failure      401 {object} responses.ErrorResponse
// @Failure      426 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/realtime/ws [get]
func connectRealtime(handler *handlers.RealtimeHandler) gin.HandlerFunc {
	return handler.ServeWS
}
