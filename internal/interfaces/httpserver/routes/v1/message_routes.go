package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
)

// RegisterMessageRoutes registers routes addressed by message rather than conversation.
func RegisterMessageRoutes(router gin.IRoutes, handler *handlers.MessageHandler) {
	router.GET("/messages/unread", unreadCounts(handler))
	router.POST("/messages/:id/read", markMessageRead(handler))
}

// unreadCounts godoc
// @Summary      Get unread counts
// @Description  Returns the caller's total unread messages and the per-conversation breakdown.
// @Tags         Messages API
// @Produce      json
// @Success      200 {object} messageres.UnreadSummaryResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/messages/unread [get]
func unreadCounts(handler *handlers.MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		resp, err := handler.Unread(c.Request.Context(), userID)
		if err != nil {
			responses.HandleError(c, err, "failed to count unread messages")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// markMessageRead godoc
// @Summary      Mark a message read
// @Description  Idempotent. Only the receiver can mark a message read; other callers,
// @Description  unknown ids and already read messages return updated=false.
// @Tags         Messages API
// @Produce      json
// @Param        id path string true "Message ID"
// @Success      200 {object} messageres.MarkReadResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/messages/{id}/read [post]
func markMessageRead(handler *handlers.MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		resp, err := handler.MarkRead(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "failed to mark message read")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
