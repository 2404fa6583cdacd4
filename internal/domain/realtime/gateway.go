package realtime

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/domain/presence"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

const MaxGroupNameLength = 100

// Recorder receives gateway counters. Implemented by the metrics package.
type Recorder interface {
	EventPushed(t EventType)
	EventDropped(t EventType)
	ConnectionsChanged(connections, users int)
}

type noopRecorder struct{}

func (noopRecorder) EventPushed(EventType)       {}
func (noopRecorder) EventDropped(EventType)      {}
func (noopRecorder) ConnectionsChanged(int, int) {}

// Gateway fans ledger writes and presence changes out to live connections.
// Delivery is at most once: a connection whose queue is full misses the event.
type Gateway struct {
	registry      *presence.Registry
	conversations conversation.Service
	recorder      Recorder
	log           zerolog.Logger
	now           func() time.Time

	mu          sync.RWMutex
	groups      map[string]map[string]Conn
	memberships map[string]map[string]struct{}
}

var _ message.Listener = (*Gateway)(nil)

// NewGateway creates a gateway and subscribes it to registry presence events.
func NewGateway(
	registry *presence.Registry,
	conversations conversation.Service,
	recorder Recorder,
	log zerolog.Logger,
) *Gateway {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	g := &Gateway{
		registry:      registry,
		conversations: conversations,
		recorder:      recorder,
		log:           log.With().Str("component", "realtime-gateway").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
		groups:        make(map[string]map[string]Conn),
		memberships:   make(map[string]map[string]struct{}),
	}
	registry.Subscribe(g.onPresence)
	return g
}

// Attach registers conn with the presence registry.
func (g *Gateway) Attach(conn Conn) {
	first := g.registry.Connect(conn)
	g.recordConnections()
	g.log.Debug().
		Str("connection_id", conn.ID()).
		Str("user_id", conn.UserID()).
		Bool("first", first).
		Msg("connection attached")
}

// Detach removes conn from every group and from the registry. Safe to call twice.
func (g *Gateway) Detach(conn Conn) {
	g.mu.Lock()
	for group := range g.memberships[conn.ID()] {
		g.removeMemberLocked(group, conn.ID())
	}
	delete(g.memberships, conn.ID())
	g.mu.Unlock()

	last := g.registry.Disconnect(conn)
	g.recordConnections()
	g.log.Debug().
		Str("connection_id", conn.ID()).
		Str("user_id", conn.UserID()).
		Bool("last", last).
		Msg("connection detached")
}

// IsOnline reports whether the user has at least one live connection here.
func (g *Gateway) IsOnline(userID string) bool {
	return g.registry.IsOnline(userID)
}

func (g *Gateway) OnMessageAppended(ctx context.Context, msg *message.Message) {
	g.pushToUser(ctx, msg.ReceiverID, ReceiveMessage(msg))
}

func (g *Gateway) OnMessageRead(ctx context.Context, msg *message.Message) {
	g.pushToUser(ctx, msg.SenderID, MessageRead(msg))
}

func (g *Gateway) JoinGroup(ctx context.Context, conn Conn, group string) error {
	group, err := validateGroup(ctx, group)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.groups[group]
	if !ok {
		members = make(map[string]Conn)
		g.groups[group] = members
	}
	members[conn.ID()] = conn

	joined, ok := g.memberships[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		g.memberships[conn.ID()] = joined
	}
	joined[group] = struct{}{}
	return nil
}

func (g *Gateway) LeaveGroup(ctx context.Context, conn Conn, group string) error {
	group, err := validateGroup(ctx, group)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeMemberLocked(group, conn.ID())
	if joined, ok := g.memberships[conn.ID()]; ok {
		delete(joined, group)
		if len(joined) == 0 {
			delete(g.memberships, conn.ID())
		}
	}
	return nil
}

// BroadcastToGroup pushes content to every current member of group. Nothing is stored.
func (g *Gateway) BroadcastToGroup(ctx context.Context, group, senderID, content string) (int, error) {
	group, err := validateGroup(ctx, group)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(content) == "" {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRealtime, platformerrors.ErrorTypeValidation,
			"group message content is required", nil, "group-content-empty")
	}

	members := g.GroupMembers(group)
	evt := ReceiveGroupMessage(group, senderID, content, g.now())
	delivered := 0
	for _, conn := range members {
		if g.push(ctx, conn, evt) {
			delivered++
		}
	}
	return delivered, nil
}

// GroupMembers returns a snapshot of the connections in group.
func (g *Gateway) GroupMembers(group string) []Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := g.groups[group]
	out := make([]Conn, 0, len(members))
	for _, conn := range members {
		out = append(out, conn)
	}
	return out
}

// Typing tells the other participant that userID is composing a message.
func (g *Gateway) Typing(ctx context.Context, conversationID, userID string) error {
	conv, err := g.conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	g.pushToUser(ctx, conv.OtherParticipant(userID), Typing(conv.ID, userID))
	return nil
}

// Send pushes evt to a single connection, typically an error reply.
func (g *Gateway) Send(ctx context.Context, conn Conn, evt Event) bool {
	return g.push(ctx, conn, evt)
}

func (g *Gateway) onPresence(evt presence.Event) {
	var out Event
	switch evt.Kind {
	case presence.EventOnline:
		out = UserOnline(evt.UserID)
	case presence.EventOffline:
		out = UserOffline(evt.UserID)
	default:
		return
	}

	ctx := context.Background()
	for _, h := range g.registry.Handles() {
		if h.UserID() == evt.UserID {
			continue
		}
		if conn, ok := h.(Conn); ok {
			g.push(ctx, conn, out)
		}
	}
}

func (g *Gateway) pushToUser(ctx context.Context, userID string, evt Event) {
	for _, h := range g.registry.ConnectionsFor(userID) {
		if conn, ok := h.(Conn); ok {
			g.push(ctx, conn, evt)
		}
	}
}

func (g *Gateway) push(ctx context.Context, conn Conn, evt Event) bool {
	if conn.Send(evt) {
		g.recorder.EventPushed(evt.Type)
		return true
	}
	g.recorder.EventDropped(evt.Type)
	g.log.Warn().
		Str("connection_id", conn.ID()).
		Str("user_id", conn.UserID()).
		Str("event", string(evt.Type)).
		Str("request_id", platformerrors.RequestIDFromContext(ctx)).
		Msg("push dropped")
	return false
}

func (g *Gateway) removeMemberLocked(group, connID string) {
	members, ok := g.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(g.groups, group)
	}
}

func (g *Gateway) recordConnections() {
	g.recorder.ConnectionsChanged(g.registry.Count(), len(g.registry.OnlineUsers()))
}

func validateGroup(ctx context.Context, group string) (string, error) {
	group = strings.TrimSpace(group)
	if group == "" || utf8.RuneCountInString(group) > MaxGroupNameLength {
		return "", platformerrors.NewError(ctx, platformerrors.LayerRealtime, platformerrors.ErrorTypeValidation,
			"group name must be between 1 and 100 characters", nil, "group-name-invalid")
	}
	return group, nil
}
