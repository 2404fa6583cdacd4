package message

import (
	"context"
	"time"
)

// Repository persists messages.
type Repository interface {
	Create(ctx context.Context, msg *Message) error
	FindByID(ctx context.Context, id string) (*Message, error)
	ListForConversation(ctx context.Context, conversationID string, filter ListFilter) ([]*Message, error)
	CountForConversation(ctx context.Context, conversationID string, filter ListFilter) (int64, error)

	// MarkRead flips an unread message addressed to receiverID and reports
	// whether a row changed.
	MarkRead(ctx context.Context, id, receiverID string, at time.Time) (bool, error)
	// MarkConversationRead flips every unread message addressed to receiverID
	// in the conversation and returns the number changed.
	MarkConversationRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error)

	UnreadByConversation(ctx context.Context, userID string) (map[string]int64, error)
	LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]*Message, error)
	UsersWithUnread(ctx context.Context, createdBefore time.Time, limit int) ([]UnreadRecipient, error)
}

// Transactor runs fn inside a single storage transaction. Repositories pick
// the transaction up from the context passed to fn.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UnreadCache is a cache-aside store for per-conversation unread counts.
//
// Entries are versioned by a per-user generation. GetUnread reports the
// generation it looked under, SetUnread stores under that generation, and
// InvalidateUnread moves the user to a new one. Counts computed before an
// invalidation therefore land under a generation nobody reads again.
type UnreadCache interface {
	GetUnread(ctx context.Context, userID string) (counts map[string]int64, generation int64, ok bool, err error)
	SetUnread(ctx context.Context, userID string, generation int64, counts map[string]int64) error
	InvalidateUnread(ctx context.Context, userIDs ...string) error
}

// Listener is notified after ledger writes commit.
type Listener interface {
	OnMessageAppended(ctx context.Context, msg *Message)
	OnMessageRead(ctx context.Context, msg *Message)
}

type passthroughTransactor struct{}

func (passthroughTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// NoTransaction runs functions directly; used with in-memory repositories.
func NoTransaction() Transactor {
	return passthroughTransactor{}
}
