package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
)

func RegisterPresenceRoutes(router gin.IRoutes, handler *handlers.PresenceHandler) {
	router.GET("/presence/:user_id", getPresence(handler))
}

// getPresence godoc
// @Summary      Get presence
// @Description  Reports whether the user has a live websocket connection on this instance.
// @Tags         Presence API
// @Produce      json
// @Param        user_id path string true "User ID"
// @Success      200 {object} presenceres.PresenceResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/presence/{user_id} [get]
func getPresence(handler *handlers.PresenceHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}

		resp, err := handler.Get(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			responses.HandleError(c, err, "failed to get presence")
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
