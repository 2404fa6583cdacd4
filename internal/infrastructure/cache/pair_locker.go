package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/rs/zerolog/log"

	"moveon-server/services/messaging-api/internal/domain/conversation"
)

// PairLocker serializes conversation creation for a participant pair across instances.
type PairLocker struct {
	cache *RedisCache
	ttl   time.Duration
}

var _ conversation.PairLocker = (*PairLocker)(nil)

func NewPairLocker(cache *RedisCache, ttl time.Duration) *PairLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &PairLocker{cache: cache, ttl: ttl}
}

func (l *PairLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.cache.rs.NewMutex(
		fmt.Sprintf("conversation:pair:%s", key),
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(16),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire pair lock: %w", err)
	}

	return func() {
		if _, err := mutex.Unlock(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("failed to release pair lock")
		}
	}, nil
}
