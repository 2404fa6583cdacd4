package responses

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// HandleError writes err using its platform error type. Unknown errors
// become a 500 carrying message.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().
		Str("path", c.Request.URL.Path).
		Str("context", message).
		Logger()

	platformerrors.WriteError(c, err, logger)
}

// HandleNewError writes a typed error that did not come from a lower layer,
// such as a malformed body.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message, code string) {
	c.JSON(platformerrors.ErrorTypeToHTTPStatus(errorType), platformerrors.HTTPErrorResponse{
		Error: &platformerrors.HTTPErrorDetail{
			Message:   message,
			Type:      platformerrors.ErrorTypeToString(errorType),
			Code:      code,
			RequestID: c.GetString("request_id"),
		},
	})
}
