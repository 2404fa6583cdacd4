package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// InMemoryRepository is a thread-safe conversation repository for tests and local runs.
type InMemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Conversation
	pairIndex map[domain.Pair]string
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:      make(map[string]*domain.Conversation),
		pairIndex: make(map[domain.Pair]string),
	}
}

// FindByPair returns the conversation for a normalized pair.
func (r *InMemoryRepository) FindByPair(ctx context.Context, pair domain.Pair) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.pairIndex[pair]
	if !ok {
		return nil, pairNotFound(ctx, pair)
	}
	return clone(r.byID[id]), nil
}

// InsertIfAbsent stores conv unless its pair is already taken.
func (r *InMemoryRepository) InsertIfAbsent(ctx context.Context, conv *domain.Conversation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair := domain.Pair{Low: conv.UserLow, High: conv.UserHigh}
	if _, exists := r.pairIndex[pair]; exists {
		return false, nil
	}
	r.byID[conv.ID] = clone(conv)
	r.pairIndex[pair] = conv.ID
	return true, nil
}

// FindByID returns the conversation by id.
func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.byID[id]
	if !ok {
		return nil, idNotFound(ctx, id)
	}
	return clone(conv), nil
}

// ListForUser returns the user's conversations, most recent activity first.
func (r *InMemoryRepository) ListForUser(ctx context.Context, userID string, pagination domain.Pagination) ([]*domain.Conversation, error) {
	r.mu.RLock()
	result := make([]*domain.Conversation, 0)
	for _, conv := range r.byID {
		if conv.HasParticipant(userID) {
			result = append(result, clone(conv))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].LastActivityAt.Equal(result[j].LastActivityAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].LastActivityAt.After(result[j].LastActivityAt)
	})

	offset := pagination.Offset()
	if offset >= len(result) {
		return []*domain.Conversation{}, nil
	}
	end := offset + pagination.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// CountForUser counts the user's conversations.
func (r *InMemoryRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, conv := range r.byID {
		if conv.HasParticipant(userID) {
			count++
		}
	}
	return count, nil
}

// Advance increments the sequence and stamps last activity.
func (r *InMemoryRepository) Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.byID[id]
	if !ok {
		return 0, time.Time{}, idNotFound(ctx, id)
	}
	conv.LastSequence++
	if at.After(conv.LastActivityAt) {
		conv.LastActivityAt = at
	}
	return conv.LastSequence, conv.LastActivityAt, nil
}

func clone(conv *domain.Conversation) *domain.Conversation {
	if conv == nil {
		return nil
	}
	copied := *conv
	return &copied
}

func pairNotFound(ctx context.Context, pair domain.Pair) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "conversation-pair-not-found", map[string]any{"pair": pair.Key()})
}

func idNotFound(ctx context.Context, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "conversation-id-not-found", map[string]any{"conversation_id": id})
}
