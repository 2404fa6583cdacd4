package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"moveon-server/services/messaging-api/internal/domain/message"
)

const (
	unreadKeyPattern           = "unread:" + CacheVersion + ":%s:%d"
	unreadGenerationKeyPattern = "unread-gen:" + CacheVersion + ":%s"

	// Generation keys outlive any entry stored under them.
	generationTTL = 24 * time.Hour
)

// UnreadCache stores per-conversation unread counts for a user, keyed by the
// user's current generation.
type UnreadCache struct {
	cache *RedisCache
	ttl   time.Duration
}

var _ message.UnreadCache = (*UnreadCache)(nil)

func NewUnreadCache(cache *RedisCache, ttl time.Duration) *UnreadCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &UnreadCache{cache: cache, ttl: ttl}
}

func unreadKey(userID string, generation int64) string {
	return fmt.Sprintf(unreadKeyPattern, userID, generation)
}

func unreadGenerationKey(userID string) string {
	return fmt.Sprintf(unreadGenerationKeyPattern, userID)
}

func (c *UnreadCache) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.cache.client.Get(ctx, unreadGenerationKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read unread generation: %w", err)
	}
	return gen, nil
}

func (c *UnreadCache) GetUnread(ctx context.Context, userID string) (map[string]int64, int64, bool, error) {
	gen, err := c.generation(ctx, userID)
	if err != nil {
		return nil, 0, false, err
	}

	counts, err := GetJSON[map[string]int64](ctx, c.cache, unreadKey(userID, gen))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, false, nil
		}
		return nil, gen, false, err
	}
	if *counts == nil {
		return map[string]int64{}, gen, true, nil
	}
	return *counts, gen, true, nil
}

func (c *UnreadCache) SetUnread(ctx context.Context, userID string, generation int64, counts map[string]int64) error {
	return SetJSON(ctx, c.cache, unreadKey(userID, generation), counts, c.ttl)
}

// InvalidateUnread bumps each user's generation so entries written under an
// older one are never read again; they expire on their own TTL.
func (c *UnreadCache) InvalidateUnread(ctx context.Context, userIDs ...string) error {
	pipe := c.cache.client.Pipeline()
	queued := 0
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		key := unreadGenerationKey(id)
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, generationTTL)
		queued++
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to bump unread generation: %w", err)
	}
	return nil
}
