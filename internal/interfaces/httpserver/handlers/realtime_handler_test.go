package handlers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/domain/presence"
	domainrealtime "moveon-server/services/messaging-api/internal/domain/realtime"
	"moveon-server/services/messaging-api/internal/infrastructure/realtime"
	conversationrepo "moveon-server/services/messaging-api/internal/infrastructure/repository/conversation"
	messagerepo "moveon-server/services/messaging-api/internal/infrastructure/repository/message"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
)

type recordingConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []domainrealtime.Event
}

func (c *recordingConn) ID() string          { return c.id }
func (c *recordingConn) UserID() string      { return c.userID }
func (c *recordingConn) LastSeen() time.Time { return time.Now() }
func (c *recordingConn) Close() error        { return nil }

func (c *recordingConn) Send(evt domainrealtime.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return true
}

func (c *recordingConn) last(t *testing.T) domainrealtime.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		t.Fatal("expected an event")
	}
	return c.events[len(c.events)-1]
}

func (c *recordingConn) count(kind domainrealtime.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, evt := range c.events {
		if evt.Type == kind {
			n++
		}
	}
	return n
}

type dispatchFixture struct {
	handler       *handlers.RealtimeHandler
	gateway       *domainrealtime.Gateway
	conversations conversation.Service
	ledger        message.Service
}

func newDispatchFixture() *dispatchFixture {
	log := zerolog.Nop()
	conversations := conversation.NewService(conversationrepo.NewInMemoryRepository(), nil, log)
	gateway := domainrealtime.NewGateway(presence.NewRegistry(), conversations, nil, log)
	ledger := message.NewService(messagerepo.NewInMemoryRepository(), conversations, nil, nil, gateway, message.Config{}, log)
	handler := handlers.NewRealtimeHandler(gateway, ledger, realtime.NewUpgrader(nil), realtime.Options{}, log)
	return &dispatchFixture{handler: handler, gateway: gateway, conversations: conversations, ledger: ledger}
}

func expectError(t *testing.T, conn *recordingConn, code string) {
	t.Helper()
	evt := conn.last(t)
	if evt.Type != domainrealtime.EventError {
		t.Fatalf("expected error event, got %s", evt.Type)
	}
	payload := evt.Data.(domainrealtime.ErrorPayload)
	if payload.Code != code {
		t.Fatalf("expected code %q, got %q (%s)", code, payload.Code, payload.Message)
	}
}

func TestDispatchRejectsMalformedFrames(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()
	conn := &recordingConn{id: "c1", userID: "alice"}
	f.gateway.Attach(conn)

	f.handler.Dispatch(ctx, conn, []byte("{not json"))
	expectError(t, conn, "invalid-frame")

	f.handler.Dispatch(ctx, conn, []byte(`{"type":"dance"}`))
	expectError(t, conn, "invalid-frame")

	f.handler.Dispatch(ctx, conn, []byte(`{"type":"send_message","content":"hi"}`))
	expectError(t, conn, "invalid-frame")

	f.handler.Dispatch(ctx, conn, []byte(`{"type":"mark_read"}`))
	expectError(t, conn, "invalid-frame")
}

func TestDispatchSendMessageReachesReceiver(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()
	conv, _, err := f.conversations.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	alice := &recordingConn{id: "c-alice", userID: "alice"}
	bob := &recordingConn{id: "c-bob", userID: "bob"}
	f.gateway.Attach(alice)
	f.gateway.Attach(bob)

	f.handler.Dispatch(ctx, alice, []byte(`{"type":"send_message","conversation_id":"`+conv.ID+`","content":"hi bob"}`))

	if got := bob.count(domainrealtime.EventReceiveMessage); got != 1 {
		t.Fatalf("expected bob to receive one message, got %d", got)
	}
	if got := alice.count(domainrealtime.EventError); got != 0 {
		t.Fatalf("expected no error for alice, got %d", got)
	}

	unread, err := f.ledger.UnreadCount(ctx, "bob")
	if err != nil || unread != 1 {
		t.Fatalf("expected one unread message, got %d (err=%v)", unread, err)
	}
}

func TestDispatchReportsDomainErrors(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()
	conv, _, err := f.conversations.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	mallory := &recordingConn{id: "c-mallory", userID: "mallory"}
	f.gateway.Attach(mallory)

	f.handler.Dispatch(ctx, mallory, []byte(`{"type":"send_message","conversation_id":"`+conv.ID+`","content":"hi"}`))
	expectError(t, mallory, "message-sender-not-participant")

	f.handler.Dispatch(ctx, mallory, []byte(`{"type":"typing","conversation_id":"`+conv.ID+`"}`))
	expectError(t, mallory, "conversation-not-found")

	f.handler.Dispatch(ctx, mallory, []byte(`{"type":"send_message","conversation_id":"conv_missing","content":"hi"}`))
	expectError(t, mallory, "conversation-not-found")
}

func TestDispatchGroupFrames(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()

	alice := &recordingConn{id: "c-alice", userID: "alice"}
	bob := &recordingConn{id: "c-bob", userID: "bob"}
	f.gateway.Attach(alice)
	f.gateway.Attach(bob)

	f.handler.Dispatch(ctx, alice, []byte(`{"type":"join_group","group":"morning-run"}`))
	f.handler.Dispatch(ctx, bob, []byte(`{"type":"join_group","group":"morning-run"}`))
	f.handler.Dispatch(ctx, alice, []byte(`{"type":"group_message","group":"morning-run","content":"6am at the park"}`))

	if got := bob.count(domainrealtime.EventReceiveGroupMessage); got != 1 {
		t.Fatalf("expected bob to get the group message, got %d", got)
	}

	f.handler.Dispatch(ctx, bob, []byte(`{"type":"leave_group","group":"morning-run"}`))
	f.handler.Dispatch(ctx, alice, []byte(`{"type":"group_message","group":"morning-run","content":"again"}`))
	if got := bob.count(domainrealtime.EventReceiveGroupMessage); got != 1 {
		t.Fatalf("expected no delivery after leaving, got %d", got)
	}
}

func TestDispatchMarkReadSendsReceipt(t *testing.T) {
	f := newDispatchFixture()
	ctx := context.Background()
	conv, _, err := f.conversations.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	msg, err := f.ledger.Append(ctx, conv.ID, "alice", "hello")
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	alice := &recordingConn{id: "c-alice", userID: "alice"}
	bob := &recordingConn{id: "c-bob", userID: "bob"}
	f.gateway.Attach(alice)
	f.gateway.Attach(bob)

	f.handler.Dispatch(ctx, bob, []byte(`{"type":"mark_read","message_id":"`+msg.ID+`"}`))
	f.handler.Dispatch(ctx, bob, []byte(`{"type":"mark_read","message_id":"`+msg.ID+`"}`))

	if got := alice.count(domainrealtime.EventMessageRead); got != 1 {
		t.Fatalf("expected exactly one read receipt, got %d", got)
	}
	unread, err := f.ledger.UnreadCount(ctx, "bob")
	if err != nil || unread != 0 {
		t.Fatalf("expected no unread messages, got %d (err=%v)", unread, err)
	}
}
