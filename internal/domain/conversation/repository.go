package conversation

import (
	"context"
	"time"
)

// Repository persists conversations.
type Repository interface {
	// FindByPair returns the conversation for a normalized pair or a NOT_FOUND error.
	FindByPair(ctx context.Context, pair Pair) (*Conversation, error)

	// InsertIfAbsent inserts conv unless a conversation for the same pair exists.
	// It reports whether the row was created.
	InsertIfAbsent(ctx context.Context, conv *Conversation) (bool, error)

	// FindByID returns the conversation or a NOT_FOUND error.
	FindByID(ctx context.Context, id string) (*Conversation, error)

	// ListForUser returns the user's conversations, most recently active first.
	ListForUser(ctx context.Context, userID string, pagination Pagination) ([]*Conversation, error)

	// CountForUser returns the number of conversations the user takes part in.
	CountForUser(ctx context.Context, userID string) (int64, error)

	// Advance increments the conversation's sequence, moves its last activity
	// forward to at (never backwards) and returns the new sequence together
	// with the stored activity time.
	Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error)
}

// PairLocker serializes conversation creation for a pair across instances.
type PairLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NoopLocker returns a PairLocker that relies on the storage unique constraint alone.
func NoopLocker() PairLocker {
	return noopLocker{}
}
