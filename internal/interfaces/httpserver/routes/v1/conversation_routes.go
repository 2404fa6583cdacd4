package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests/conversationreq"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests/messagereq"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// RegisterConversationRoutes registers conversation and conversation-scoped message routes.
func RegisterConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler, messages *handlers.MessageHandler) {
	router.POST("/conversations", createConversation(handler))
	router.GET("/conversations", listConversations(handler))
	router.GET("/conversations/:id", getConversation(handler))

	router.POST("/conversations/:id/messages", sendMessage(messages))
	router.GET("/conversations/:id/messages", listMessages(messages))
	router.POST("/conversations/:id/read", markConversationRead(messages))
}

// createConversation godoc
// @Summary      Create or get a conversation
// @Description  Returns the 1:1 conversation with other_user_id, creating it on first use.
// @Description  Responds 201 when the conversation was created and 200 when it already existed.
// @Tags         Conversations API
// @Accept       json
// @Produce      json
// @Param        payload body conversationreq.CreateConversationRequest true "Other participant"
// @Success      201 {object} conversationres.ConversationResponse
// @Success      200 {object} conversationres.ConversationResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations [post]
func createConversation(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		var req conversationreq.CreateConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "other_user_id is required", "conversation-request-invalid")
			return
		}

		resp, created, err := handler.CreateOrGet(c.Request.Context(), userID, req)
		if err != nil {
			responses.HandleError(c, err, "failed to open conversation")
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, resp)
	}
}

// listConversations godoc
// @Summary      List conversations
// @Description  Lists the caller's conversations, most recently active first.
// @Tags         Conversations API
// @Produce      json
// @Param        page      query int false "Page number (default 1)"
// @Param        page_size query int false "Page size (default 20, max 100)"
// @Success      200 {object} conversationres.ConversationListResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations [get]
func listConversations(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		q, err := requests.BindPageQuery(c)
		if err != nil {
			responses.HandleError(c, err, "invalid pagination")
			return
		}

		resp, err := handler.List(c.Request.Context(), userID, q)
		if err != nil {
			responses.HandleError(c, err, "failed to list conversations")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// getConversation godoc
// @Summary      Get a conversation
// @Description  Returns a conversation the caller participates in. Conversations the
// @Description  caller is not part of are reported as not found.
// @Tags         Conversations API
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} conversationres.ConversationResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id} [get]
func getConversation(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		resp, err := handler.Get(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "failed to get conversation")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// sendMessage godoc
// @Summary      Send a message
// @Description  Appends a message to the conversation and pushes it to the receiver when online.
// @Tags         Messages API
// @Accept       json
// @Produce      json
// @Param        id      path string                        true "Conversation ID"
// @Param        payload body messagereq.SendMessageRequest true "Message content (1-2000 characters)"
// @Success      201 {object} messageres.MessageResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id}/messages [post]
func sendMessage(handler *handlers.MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		var req messagereq.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "message content is required", "message-content-empty")
			return
		}

		resp, err := handler.Send(c.Request.Context(), userID, c.Param("id"), req)
		if err != nil {
			responses.HandleError(c, err, "failed to send message")
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// listMessages godoc
// @Summary      List messages
// @Description  Lists the conversation's messages in ascending sequence order.
// @Tags         Messages API
// @Produce      json
// @Param        id          path  string true  "Conversation ID"
// @Param        page        query int    false "Page number (default 1)"
// @Param        page_size   query int    false "Page size (default 50, max 200)"
// @Param        unread_only query bool   false "Only unread messages addressed to the caller"
// @Success      200 {object} messageres.MessageListResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id}/messages [get]
func listMessages(handler *handlers.MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		var q messagereq.ListMessagesQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid query parameters", "pagination-invalid")
			return
		}

		resp, err := handler.List(c.Request.Context(), userID, c.Param("id"), q)
		if err != nil {
			responses.HandleError(c, err, "failed to list messages")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// markConversationRead godoc
// @Summary      Mark a conversation read
// @Description  Marks every unread message addressed to the caller in the conversation as read.
// @Tags         Messages API
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} messageres.MarkConversationReadResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id}/read [post]
func markConversationRead(handler *handlers.MessageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		resp, err := handler.MarkConversationRead(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "failed to mark conversation read")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
