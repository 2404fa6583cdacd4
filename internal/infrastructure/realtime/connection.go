package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"moveon-server/services/messaging-api/internal/config"
	domain "moveon-server/services/messaging-api/internal/domain/realtime"
)

// Options tune a single websocket connection.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	RateLimit      rate.Limit
	RateBurst      int
}

// OptionsFromConfig maps service configuration onto connection options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SendBuffer:     cfg.WSSendBuffer,
		WriteWait:      cfg.WSWriteWait,
		PongWait:       cfg.WSPongWait,
		PingPeriod:     cfg.WSPingPeriod(),
		MaxMessageSize: cfg.WSMaxMessageSize,
		RateLimit:      rate.Limit(cfg.WSRateLimit),
		RateBurst:      cfg.WSRateBurst,
	}
}

// FrameHandler processes one inbound text frame.
type FrameHandler func(ctx context.Context, conn *Connection, payload []byte)

// ErrRateLimited is reported to the client when it sends frames too quickly.
var ErrRateLimited = errors.New("too many frames")

// Connection is a websocket client with a bounded outbound queue. Outbound
// events are written by a single writer goroutine.
type Connection struct {
	id     string
	userID string

	ws       *websocket.Conn
	send     chan domain.Event
	closed   chan struct{}
	once     sync.Once
	lastSeen atomic.Int64
	limiter  *rate.Limiter
	opts     Options
	log      zerolog.Logger
}

var _ domain.Conn = (*Connection)(nil)

func NewConnection(id, userID string, ws *websocket.Conn, opts Options, log zerolog.Logger) *Connection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 128
	}
	c := &Connection{
		id:      id,
		userID:  userID,
		ws:      ws,
		send:    make(chan domain.Event, opts.SendBuffer),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		opts:    opts,
		log: log.With().
			Str("connection_id", id).
			Str("user_id", userID).
			Logger(),
	}
	c.touch()
	return c
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Send enqueues evt without blocking. It returns false when the queue is full
// or the connection is closed.
func (c *Connection) Send(evt domain.Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// Close stops both pumps. Safe to call from any goroutine, any number of times.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteWait),
		)
		err = c.ws.Close()
	})
	return err
}

// Serve runs the write pump in the background and the read pump on the
// calling goroutine. It returns once the client disconnects or Close is called.
func (c *Connection) Serve(ctx context.Context, handle FrameHandler) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump(ctx, handle)
	_ = c.Close()
	<-done
}

func (c *Connection) readPump(ctx context.Context, handle FrameHandler) {
	if c.opts.MaxMessageSize > 0 {
		c.ws.SetReadLimit(c.opts.MaxMessageSize)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		msgType, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		if !c.limiter.Allow() {
			c.Send(domain.Error("rate-limited", ErrRateLimited.Error()))
			continue
		}
		handle(ctx, c, payload)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case evt := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.ws.WriteJSON(evt); err != nil {
				c.log.Debug().Err(err).Str("event", string(evt.Type)).Msg("write failed")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func (c *Connection) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// NewUpgrader accepts origins listed in allowed. "*" or an empty list accepts any origin.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	allowAll := len(allowed) == 0
	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		origins[origin] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := origins[origin]
			return ok
		},
	}
}
