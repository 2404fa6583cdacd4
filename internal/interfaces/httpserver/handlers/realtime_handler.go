package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/domain/message"
	domainrealtime "moveon-server/services/messaging-api/internal/domain/realtime"
	"moveon-server/services/messaging-api/internal/infrastructure/auth"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
	"moveon-server/services/messaging-api/internal/infrastructure/realtime"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/requests/realtimereq"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses"
	"moveon-server/services/messaging-api/internal/utils/idgen"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

const (
	codeInvalidFrame = "invalid-frame"
	codeInternal     = "internal-error"
)

// RealtimeHandler upgrades websocket connections and dispatches their frames.
type RealtimeHandler struct {
	gateway  *domainrealtime.Gateway
	ledger   message.Service
	upgrader *websocket.Upgrader
	opts     realtime.Options
	validate *validator.Validate
	log      zerolog.Logger
}

func NewRealtimeHandler(
	gateway *domainrealtime.Gateway,
	ledger message.Service,
	upgrader *websocket.Upgrader,
	opts realtime.Options,
	log zerolog.Logger,
) *RealtimeHandler {
	return &RealtimeHandler{
		gateway:  gateway,
		ledger:   ledger,
		upgrader: upgrader,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "realtime-handler").Logger(),
	}
}

// ServeWS upgrades the request and blocks until the connection ends.
// The connection is detached on every exit path.
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "realtime-unauthenticated")
		return
	}

	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusUpgradeRequired, platformerrors.HTTPErrorResponse{
			Error: &platformerrors.HTTPErrorDetail{
				Message:   "websocket upgrade required",
				Type:      platformerrors.ErrorTypeToString(platformerrors.ErrorTypeValidation),
				Code:      "realtime-upgrade-required",
				RequestID: c.GetString("request_id"),
			},
		})
		return
	}

	connID, err := idgen.ConnectionID()
	if err != nil {
		responses.HandleError(c, err, "failed to allocate connection id")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConnection(connID, userID, ws, h.opts, h.log)
	h.gateway.Attach(conn)
	defer h.gateway.Detach(conn)

	h.log.Info().Str("connection_id", connID).Str("user_id", userID).Msg("websocket connected")
	conn.Serve(c.Request.Context(), func(ctx context.Context, conn *realtime.Connection, payload []byte) {
		h.Dispatch(ctx, conn, payload)
	})
	h.log.Info().Str("connection_id", connID).Str("user_id", userID).Msg("websocket disconnected")
}

// Dispatch handles one inbound frame from conn. Failures are reported to conn
// as an error event and never close the connection.
func (h *RealtimeHandler) Dispatch(ctx context.Context, conn domainrealtime.Conn, payload []byte) {
	var frame realtimereq.InboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		metrics.RecordInboundFrame("unknown", "invalid")
		h.gateway.Send(ctx, conn, domainrealtime.Error(codeInvalidFrame, "frame is not valid JSON"))
		return
	}
	if err := h.validate.Struct(frame); err != nil {
		metrics.RecordInboundFrame(frameLabel(frame.Type), "invalid")
		h.gateway.Send(ctx, conn, domainrealtime.Error(codeInvalidFrame, err.Error()))
		return
	}

	if err := h.handleFrame(ctx, conn, frame); err != nil {
		metrics.RecordInboundFrame(string(frame.Type), "error")
		h.replyError(ctx, conn, frame, err)
		return
	}
	metrics.RecordInboundFrame(string(frame.Type), "ok")
}

func (h *RealtimeHandler) handleFrame(ctx context.Context, conn domainrealtime.Conn, frame realtimereq.InboundFrame) error {
	userID := conn.UserID()

	switch frame.Type {
	case realtimereq.FrameSendMessage:
		if _, err := h.ledger.Append(ctx, frame.ConversationID, userID, frame.Content); err != nil {
			return err
		}
		metrics.RecordMessageSent("websocket")
	case realtimereq.FrameJoinGroup:
		return h.gateway.JoinGroup(ctx, conn, frame.Group)
	case realtimereq.FrameLeaveGroup:
		return h.gateway.LeaveGroup(ctx, conn, frame.Group)
	case realtimereq.FrameGroupMessage:
		_, err := h.gateway.BroadcastToGroup(ctx, frame.Group, userID, frame.Content)
		return err
	case realtimereq.FrameTyping:
		return h.gateway.Typing(ctx, frame.ConversationID, userID)
	case realtimereq.FrameMarkRead:
		updated, err := h.ledger.MarkRead(ctx, frame.MessageID, userID)
		if err != nil {
			return err
		}
		if updated {
			metrics.RecordMessagesRead("message", 1)
		}
	}
	return nil
}

func (h *RealtimeHandler) replyError(ctx context.Context, conn domainrealtime.Conn, frame realtimereq.InboundFrame, err error) {
	code, msg := codeInternal, "internal server error"
	if perr := platformerrors.GetPlatformError(err); perr != nil && perr.Type != platformerrors.ErrorTypeInternal && perr.Type != platformerrors.ErrorTypeDatabaseError {
		code, msg = perr.Code, perr.Message
	} else {
		h.log.Error().Err(err).
			Str("connection_id", conn.ID()).
			Str("frame", string(frame.Type)).
			Msg("frame handling failed")
	}
	h.gateway.Send(ctx, conn, domainrealtime.Error(code, msg))
}

// frameLabel bounds metric label cardinality to the known frame types.
func frameLabel(t realtimereq.FrameType) string {
	switch t {
	case realtimereq.FrameSendMessage, realtimereq.FrameJoinGroup, realtimereq.FrameLeaveGroup,
		realtimereq.FrameGroupMessage, realtimereq.FrameTyping, realtimereq.FrameMarkRead:
		return string(t)
	}
	return "unknown"
}
