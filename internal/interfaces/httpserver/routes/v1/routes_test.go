package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/domain/presence"
	domainrealtime "moveon-server/services/messaging-api/internal/domain/realtime"
	"moveon-server/services/messaging-api/internal/infrastructure/auth"
	"moveon-server/services/messaging-api/internal/infrastructure/realtime"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/handlers"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses/conversationres"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses/messageres"
	"moveon-server/services/messaging-api/internal/interfaces/httpserver/responses/presenceres"
	v1 "moveon-server/services/messaging-api/internal/interfaces/httpserver/routes/v1"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

type stubConn struct {
	id     string
	userID string
}

func (c *stubConn) ID() string                         { return c.id }
func (c *stubConn) UserID() string                     { return c.userID }
func (c *stubConn) LastSeen() time.Time                { return time.Now() }
func (c *stubConn) Close() error                       { return nil }
func (c *stubConn) Send(evt domainrealtime.Event) bool { return true }

type testServer struct {
	engine  *gin.Engine
	gateway *domainrealtime.Gateway
}

func newTestServer(conversations *MockConversationService, ledger *MockMessageService) *testServer {
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	gateway := domainrealtime.NewGateway(presence.NewRegistry(), conversations, nil, log)
	provider := handlers.NewProvider(
		handlers.NewConversationHandler(conversations, ledger, gateway),
		handlers.NewMessageHandler(ledger),
		handlers.NewPresenceHandler(gateway),
		handlers.NewRealtimeHandler(gateway, ledger, realtime.NewUpgrader(nil), realtime.Options{}, log),
	)

	engine := gin.New()
	validator := auth.NewValidatorWithTokens(nil, log)
	v1.NewRoutes(provider).Register(engine, validator.Middleware())
	return &testServer{engine: engine, gateway: gateway}
}

func (s *testServer) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *platformerrors.HTTPErrorDetail {
	t.Helper()
	var resp platformerrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func testConversation() *conversation.Conversation {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &conversation.Conversation{
		ID:             "conv_1",
		UserLow:        "alice",
		UserHigh:       "bob",
		LastSequence:   2,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func notFound(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "conversation-not-found")
}

func TestCreateConversationStatus(t *testing.T) {
	created := true
	conversations := &MockConversationService{
		GetOrCreateFunc: func(ctx context.Context, userA, userB string) (*conversation.Conversation, bool, error) {
			if userA != "alice" || userB != "bob" {
				t.Fatalf("unexpected pair %s/%s", userA, userB)
			}
			return testConversation(), created, nil
		},
	}
	srv := newTestServer(conversations, &MockMessageService{})

	w := srv.do(http.MethodPost, "/v1/conversations", "alice", map[string]string{"other_user_id": "bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp conversationres.ConversationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conv_1", resp.ID)
	assert.Equal(t, "bob", resp.OtherUserID)

	created = false
	w = srv.do(http.MethodPost, "/v1/conversations", "alice", map[string]string{"other_user_id": "bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an existing conversation, got %d", w.Code)
	}
}

func TestCreateConversationValidation(t *testing.T) {
	conversations := &MockConversationService{
		GetOrCreateFunc: func(ctx context.Context, userA, userB string) (*conversation.Conversation, bool, error) {
			return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				"cannot start a conversation with yourself", nil, "conversation-self-pair")
		},
	}
	srv := newTestServer(conversations, &MockMessageService{})

	w := srv.do(http.MethodPost, "/v1/conversations", "alice", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing other_user_id, got %d", w.Code)
	}

	w = srv.do(http.MethodPost, "/v1/conversations", "alice", map[string]string{"other_user_id": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self conversation, got %d", w.Code)
	}
	assert.Equal(t, "conversation-self-pair", decodeError(t, w).Code)
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	srv := newTestServer(&MockConversationService{}, &MockMessageService{})

	w := srv.do(http.MethodGet, "/v1/conversations", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestGetConversationNotFoundForNonParticipant(t *testing.T) {
	conversations := &MockConversationService{
		GetFunc: func(ctx context.Context, id, requestingUser string) (*conversation.Conversation, error) {
			if requestingUser == "mallory" {
				return nil, notFound(ctx)
			}
			return testConversation(), nil
		},
	}
	srv := newTestServer(conversations, &MockMessageService{})

	w := srv.do(http.MethodGet, "/v1/conversations/conv_1", "mallory", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	assert.Equal(t, "conversation-not-found", decodeError(t, w).Code)

	w = srv.do(http.MethodGet, "/v1/conversations/conv_1", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListConversationsDecoratesEntries(t *testing.T) {
	conv := testConversation()
	last := &message.Message{
		ID:             "msg_2",
		ConversationID: conv.ID,
		Sequence:       2,
		SenderID:       "bob",
		ReceiverID:     "alice",
		Content:        "see you at the gym tomorrow morning, bring the resistance bands please",
		CreatedAt:      conv.LastActivityAt,
	}
	conversations := &MockConversationService{
		ListForUserFunc: func(ctx context.Context, userID string, pagination conversation.Pagination) ([]*conversation.Conversation, int64, error) {
			assert.Equal(t, 2, pagination.Page)
			assert.Equal(t, conversation.MaxPageSize, pagination.PageSize)
			return []*conversation.Conversation{conv}, 101, nil
		},
	}
	ledger := &MockMessageService{
		LatestByConversationFunc: func(ctx context.Context, ids []string) (map[string]*message.Message, error) {
			return map[string]*message.Message{conv.ID: last}, nil
		},
		UnreadCountsByConversationFunc: func(ctx context.Context, userID string) (map[string]int64, error) {
			return map[string]int64{conv.ID: 1}, nil
		},
	}
	srv := newTestServer(conversations, ledger)
	srv.gateway.Attach(&stubConn{id: "c1", userID: "bob"})

	w := srv.do(http.MethodGet, "/v1/conversations?page=2&page_size=500", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp conversationres.ConversationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	entry := resp.Data[0]
	assert.True(t, entry.IsOnline)
	assert.Equal(t, int64(1), entry.UnreadCount)
	require.NotNil(t, entry.LastMessage)
	assert.Equal(t, last.Preview(), entry.LastMessage.Preview)
	assert.Equal(t, int64(101), resp.TotalCount)
	assert.Equal(t, 2, resp.TotalPages)
	assert.False(t, resp.HasNextPage)
}

func TestListConversationsRejectsNegativePage(t *testing.T) {
	srv := newTestServer(&MockConversationService{}, &MockMessageService{})

	w := srv.do(http.MethodGet, "/v1/conversations?page=-1", "alice", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSendMessageStatusMapping(t *testing.T) {
	ledger := &MockMessageService{
		AppendFunc: func(ctx context.Context, conversationID, senderID, content string) (*message.Message, error) {
			switch senderID {
			case "mallory":
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
					"sender is not a participant of this conversation", nil, "message-sender-not-participant")
			case "ghost":
				return nil, notFound(ctx)
			case "broken":
				return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
					"failed to insert message", nil, "message-insert")
			}
			return &message.Message{
				ID:             "msg_1",
				ConversationID: conversationID,
				Sequence:       1,
				SenderID:       senderID,
				ReceiverID:     "bob",
				Content:        content,
				CreatedAt:      time.Now().UTC(),
			}, nil
		},
	}
	srv := newTestServer(&MockConversationService{}, ledger)
	body := map[string]string{"content": "hello"}

	cases := []struct {
		user   string
		status int
	}{
		{"alice", http.StatusCreated},
		{"mallory", http.StatusForbidden},
		{"ghost", http.StatusNotFound},
		{"broken", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := srv.do(http.MethodPost, "/v1/conversations/conv_1/messages", tc.user, body)
		if w.Code != tc.status {
			t.Fatalf("user %s: expected %d, got %d: %s", tc.user, tc.status, w.Code, w.Body.String())
		}
	}

	w := srv.do(http.MethodPost, "/v1/conversations/conv_1/messages", "alice", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing content, got %d", w.Code)
	}
}

func TestListMessagesPassesFilters(t *testing.T) {
	var gotPage, gotSize int
	var gotUnread bool
	ledger := &MockMessageService{
		ListForConversationFunc: func(ctx context.Context, conversationID, requestingUser string, page, pageSize int, unreadOnly bool) ([]*message.Message, int64, error) {
			gotPage, gotSize, gotUnread = page, pageSize, unreadOnly
			return []*message.Message{{ID: "msg_1", Sequence: 1}, {ID: "msg_2", Sequence: 2}}, 2, nil
		},
	}
	srv := newTestServer(&MockConversationService{}, ledger)

	w := srv.do(http.MethodGet, "/v1/conversations/conv_1/messages?unread_only=true", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, gotPage)
	assert.Equal(t, message.DefaultPageSize, gotSize)
	assert.True(t, gotUnread)

	var resp messageres.MessageListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Sequence)
	assert.Equal(t, int64(2), resp.Data[1].Sequence)
}

func TestMarkMessageReadIsIdempotent(t *testing.T) {
	calls := 0
	ledger := &MockMessageService{
		MarkReadFunc: func(ctx context.Context, messageID, requestingUser string) (bool, error) {
			calls++
			return calls == 1, nil
		},
	}
	srv := newTestServer(&MockConversationService{}, ledger)

	for i, want := range []bool{true, false} {
		w := srv.do(http.MethodPost, "/v1/messages/msg_1/read", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp messageres.MarkReadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		if resp.Updated != want {
			t.Fatalf("call %d: expected updated=%v", i, want)
		}
	}
}

func TestMarkConversationRead(t *testing.T) {
	ledger := &MockMessageService{
		MarkConversationReadFunc: func(ctx context.Context, conversationID, requestingUser string) (int64, error) {
			return 3, nil
		},
	}
	srv := newTestServer(&MockConversationService{}, ledger)

	w := srv.do(http.MethodPost, "/v1/conversations/conv_1/read", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp messageres.MarkConversationReadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Marked)
	assert.Equal(t, "conv_1", resp.ConversationID)
}

func TestUnreadSummary(t *testing.T) {
	ledger := &MockMessageService{
		UnreadSummaryFunc: func(ctx context.Context, userID string) (*message.UnreadSummary, error) {
			return message.NewUnreadSummary(map[string]int64{"conv_a": 1, "conv_b": 4, "conv_c": 0}), nil
		},
	}
	srv := newTestServer(&MockConversationService{}, ledger)

	w := srv.do(http.MethodGet, "/v1/messages/unread", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp messageres.UnreadSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.TotalUnreadMessages)
	assert.Equal(t, 2, resp.ConversationsWithUnreadMessages)
	require.Len(t, resp.ConversationCounts, 2)
	assert.Equal(t, "conv_b", resp.ConversationCounts[0].ConversationID)
}

func TestPresenceLookup(t *testing.T) {
	srv := newTestServer(&MockConversationService{}, &MockMessageService{})
	conn := &stubConn{id: "c1", userID: "bob"}
	srv.gateway.Attach(conn)

	w := srv.do(http.MethodGet, "/v1/presence/bob", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp presenceres.PresenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsOnline)

	srv.gateway.Detach(conn)
	w = srv.do(http.MethodGet, "/v1/presence/bob", "alice", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsOnline)
}

func TestRealtimeRequiresUpgrade(t *testing.T) {
	srv := newTestServer(&MockConversationService{}, &MockMessageService{})

	w := srv.do(http.MethodGet, "/v1/realtime/ws", "alice", nil)
	if w.Code != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", w.Code)
	}
}
