package message_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
	conversationrepo "moveon-server/services/messaging-api/internal/infrastructure/repository/conversation"
	messagerepo "moveon-server/services/messaging-api/internal/infrastructure/repository/message"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

type recordingListener struct {
	mu       sync.Mutex
	appended []*message.Message
	read     []*message.Message
}

func (l *recordingListener) OnMessageAppended(_ context.Context, msg *message.Message) {
	l.mu.Lock()
	l.appended = append(l.appended, msg)
	l.mu.Unlock()
}

func (l *recordingListener) OnMessageRead(_ context.Context, msg *message.Message) {
	l.mu.Lock()
	l.read = append(l.read, msg)
	l.mu.Unlock()
}

type cacheKey struct {
	userID     string
	generation int64
}

type mapCache struct {
	mu          sync.Mutex
	entries     map[cacheKey]map[string]int64
	generations map[string]int64
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{
		entries:     make(map[cacheKey]map[string]int64),
		generations: make(map[string]int64),
	}
}

func (c *mapCache) GetUnread(_ context.Context, userID string) (map[string]int64, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[userID]
	counts, ok := c.entries[cacheKey{userID, gen}]
	return counts, gen, ok, nil
}

func (c *mapCache) SetUnread(_ context.Context, userID string, generation int64, counts map[string]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{userID, generation}] = counts
	return nil
}

func (c *mapCache) InvalidateUnread(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		c.generations[id]++
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

// gatedCache holds the first SetUnread until release is closed.
type gatedCache struct {
	*mapCache
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *gatedCache) SetUnread(ctx context.Context, userID string, generation int64, counts map[string]int64) error {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return c.mapCache.SetUnread(ctx, userID, generation, counts)
}

// gatedConversations holds the first Advance call until release is closed.
type gatedConversations struct {
	conversation.Service
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *gatedConversations) Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return c.Service.Advance(ctx, id, at)
}

type fixture struct {
	conversations conversation.Service
	ledger        message.Service
	listener      *recordingListener
	cache         *mapCache
	conv          *conversation.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	conversations := conversation.NewService(conversationrepo.NewInMemoryRepository(), nil, log)
	listener := &recordingListener{}
	cache := newMapCache()
	ledger := message.NewService(messagerepo.NewInMemoryRepository(), conversations, nil, cache, listener, message.Config{}, log)

	conv, _, err := conversations.GetOrCreate(context.Background(), "alice", "bob")
	require.NoError(t, err)

	return &fixture{conversations: conversations, ledger: ledger, listener: listener, cache: cache, conv: conv}
}

func TestAppendAssignsAscendingSequences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, sender := range []string{"alice", "bob", "alice"} {
		msg, err := f.ledger.Append(ctx, f.conv.ID, sender, "hello")
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), msg.Sequence)
		assert.False(t, msg.IsRead)
	}

	messages, total, err := f.ledger.ListForConversation(ctx, f.conv.ID, "bob", 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 3)
	for i := 1; i < len(messages); i++ {
		assert.Less(t, messages[i-1].Sequence, messages[i].Sequence)
	}
	assert.Equal(t, "bob", messages[0].ReceiverID)
	assert.Equal(t, "alice", messages[1].ReceiverID)

	conv, err := f.conversations.Find(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), conv.LastSequence)
	assert.False(t, conv.LastActivityAt.Before(messages[2].CreatedAt))

	assert.Len(t, f.listener.appended, 3)
}

func TestConcurrentAppendsHaveUniqueSequences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 0 {
				sender = "bob"
			}
			if _, err := f.ledger.Append(ctx, f.conv.ID, sender, "race"); err != nil {
				t.Errorf("Append returned error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	messages, total, err := f.ledger.ListForConversation(ctx, f.conv.ID, "alice", 1, message.MaxPageSize, false)
	require.NoError(t, err)
	require.Equal(t, int64(writers), total)
	for i, msg := range messages {
		assert.Equal(t, int64(i+1), msg.Sequence)
	}
}

func TestCreatedAtFollowsSequenceWhenAppendsInterleave(t *testing.T) {
	log := zerolog.Nop()
	ctx := context.Background()
	base := conversation.NewService(conversationrepo.NewInMemoryRepository(), nil, log)
	gated := &gatedConversations{Service: base, entered: make(chan struct{}), release: make(chan struct{})}
	listener := &recordingListener{}
	ledger := message.NewService(messagerepo.NewInMemoryRepository(), gated, nil, nil, listener, message.Config{}, log)

	conv, _, err := base.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		_, err := ledger.Append(ctx, conv.ID, "alice", "first")
		done <- err
	}()

	// "first" has taken its timestamp but not its sequence.
	<-gated.entered
	time.Sleep(5 * time.Millisecond)
	second, err := ledger.Append(ctx, conv.ID, "bob", "second")
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Sequence)
	close(gated.release)
	require.NoError(t, <-done)

	messages, _, err := ledger.ListForConversation(ctx, conv.ID, "alice", 1, 50, false)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Content)
	assert.Equal(t, "first", messages[1].Content)
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Fatalf("created_at decreased at sequence %d: %v before %v",
				messages[i].Sequence, messages[i].CreatedAt, messages[i-1].CreatedAt)
		}
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.Len(t, listener.appended, 2)
	for _, pushed := range listener.appended {
		stored := messages[pushed.Sequence-1]
		assert.True(t, pushed.CreatedAt.Equal(stored.CreatedAt), "pushed timestamp differs from stored one")
	}
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, f.conv.ID, "alice", "   \n\t")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = f.ledger.Append(ctx, f.conv.ID, "alice", strings.Repeat("a", message.DefaultMaxLength+1))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = f.ledger.Append(ctx, f.conv.ID, "alice", strings.Repeat("é", message.DefaultMaxLength))
	assert.NoError(t, err, "length is counted in characters")

	_, err = f.ledger.Append(ctx, f.conv.ID, "mallory", "hi")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = f.ledger.Append(ctx, "conv_missing", "alice", "hi")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	assert.Len(t, f.listener.appended, 1)
}

func TestListRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.ledger.ListForConversation(ctx, f.conv.ID, "mallory", 1, 10, false)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, _, err = f.ledger.ListForConversation(ctx, "conv_missing", "alice", 1, 10, false)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	messages, total, err := f.ledger.ListForConversation(ctx, f.conv.ID, "alice", 1, 10, false)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, messages)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.ledger.Append(ctx, f.conv.ID, "alice", "hi")
	require.NoError(t, err)

	before, err := f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), before)

	changed, err := f.ledger.MarkRead(ctx, msg.ID, "alice")
	require.NoError(t, err)
	assert.False(t, changed, "sender cannot mark their own message read")

	changed, err = f.ledger.MarkRead(ctx, msg.ID, "bob")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.ledger.MarkRead(ctx, msg.ID, "bob")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.ledger.MarkRead(ctx, "msg_missing", "bob")
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, before-1, after)

	require.Len(t, f.listener.read, 1)
	assert.NotNil(t, f.listener.read[0].ReadAt)
	assert.Contains(t, f.cache.invalidated, "bob")
}

func TestUnreadArithmetic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, _, err := f.conversations.GetOrCreate(ctx, "carol", "bob")
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		msg, err := f.ledger.Append(ctx, f.conv.ID, "alice", "ping")
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	_, err = f.ledger.Append(ctx, other.ID, "carol", "yo")
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, f.conv.ID, "bob", "reply")
	require.NoError(t, err)

	for _, id := range ids[:2] {
		_, err := f.ledger.MarkRead(ctx, id, "bob")
		require.NoError(t, err)
	}

	summary, err := f.ledger.UnreadSummary(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Total)
	assert.Equal(t, int64(3), summary.ByConversation[f.conv.ID])
	assert.Equal(t, int64(1), summary.ByConversation[other.ID])

	aliceCount, err := f.ledger.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliceCount)

	unread, total, err := f.ledger.ListForConversation(ctx, f.conv.ID, "bob", 1, 50, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, msg := range unread {
		assert.Equal(t, "bob", msg.ReceiverID)
		assert.False(t, msg.IsRead)
	}
}

func TestUnreadSummaryUsesCacheUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, f.conv.ID, "alice", "one")
	require.NoError(t, err)

	first, err := f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	cached, _, ok, _ := f.cache.GetUnread(ctx, "bob")
	require.True(t, ok)
	assert.Equal(t, int64(1), cached[f.conv.ID])

	_, err = f.ledger.Append(ctx, f.conv.ID, "alice", "two")
	require.NoError(t, err)
	_, _, ok, _ = f.cache.GetUnread(ctx, "bob")
	assert.False(t, ok, "append must invalidate the receiver's cache entry")

	second, err := f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)
}

func TestUnreadCountSurvivesInvalidationDuringCacheFill(t *testing.T) {
	log := zerolog.Nop()
	ctx := context.Background()
	conversations := conversation.NewService(conversationrepo.NewInMemoryRepository(), nil, log)
	cache := &gatedCache{mapCache: newMapCache(), entered: make(chan struct{}), release: make(chan struct{})}
	ledger := message.NewService(messagerepo.NewInMemoryRepository(), conversations, nil, cache, nil, message.Config{}, log)

	conv, _, err := conversations.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	done := make(chan int64)
	go func() {
		count, err := ledger.UnreadCount(ctx, "bob")
		if err != nil {
			t.Errorf("UnreadCount returned error: %v", err)
		}
		done <- count
	}()

	// The reader has computed zero and is about to store it.
	<-cache.entered
	_, err = ledger.Append(ctx, conv.ID, "alice", "hi")
	require.NoError(t, err)
	close(cache.release)
	assert.Equal(t, int64(0), <-done)

	count, err := ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkConversationRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.Append(ctx, f.conv.ID, "alice", "hey")
		require.NoError(t, err)
	}
	_, err := f.ledger.Append(ctx, f.conv.ID, "bob", "hey back")
	require.NoError(t, err)

	_, err = f.ledger.MarkConversationRead(ctx, f.conv.ID, "mallory")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	changed, err := f.ledger.MarkConversationRead(ctx, f.conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	changed, err = f.ledger.MarkConversationRead(ctx, f.conv.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, changed)

	bobCount, err := f.ledger.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, bobCount)

	aliceCount, err := f.ledger.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliceCount)
}

func TestLatestByConversationAndPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, f.conv.ID, "alice", "first")
	require.NoError(t, err)
	long := strings.Repeat("x", 80)
	_, err = f.ledger.Append(ctx, f.conv.ID, "bob", long)
	require.NoError(t, err)

	latest, err := f.ledger.LatestByConversation(ctx, []string{f.conv.ID, "conv_empty"})
	require.NoError(t, err)
	require.Contains(t, latest, f.conv.ID)
	assert.NotContains(t, latest, "conv_empty")
	assert.Equal(t, int64(2), latest[f.conv.ID].Sequence)
	assert.Equal(t, strings.Repeat("x", 50)+"...", latest[f.conv.ID].Preview())
}

func TestUsersWithUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Append(ctx, f.conv.ID, "alice", "hi")
	require.NoError(t, err)

	recipients, err := f.ledger.UsersWithUnread(ctx, -time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "bob", recipients[0].UserID)
	assert.Equal(t, int64(1), recipients[0].Count)

	recipients, err = f.ledger.UsersWithUnread(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, recipients)
}
