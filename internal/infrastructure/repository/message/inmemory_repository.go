package message

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// InMemoryRepository is a thread-safe message repository for tests and local runs.
type InMemoryRepository struct {
	mu             sync.RWMutex
	byID           map[string]*domain.Message
	byConversation map[string][]*domain.Message
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:           make(map[string]*domain.Message),
		byConversation: make(map[string][]*domain.Message),
	}
}

// Create stores a message, keeping each conversation sorted by sequence.
func (r *InMemoryRepository) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[msg.ID]; exists {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"message already exists", nil, "message-duplicate-id")
	}
	for _, existing := range r.byConversation[msg.ConversationID] {
		if existing.Sequence == msg.Sequence {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"message sequence already used", nil, "message-duplicate-sequence")
		}
	}

	stored := clone(msg)
	r.byID[msg.ID] = stored
	list := append(r.byConversation[msg.ConversationID], stored)
	sort.Slice(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	r.byConversation[msg.ConversationID] = list
	return nil
}

// FindByID returns the message or NOT_FOUND.
func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.byID[id]
	if !ok {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"message not found", nil, "message-not-found", map[string]any{"message_id": id})
	}
	return clone(msg), nil
}

// ListForConversation returns a page of messages in ascending sequence order.
func (r *InMemoryRepository) ListForConversation(ctx context.Context, conversationID string, filter domain.ListFilter) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filtered(conversationID, filter)
	offset := filter.Pagination.Offset()
	if offset >= len(matched) {
		return []*domain.Message{}, nil
	}
	end := offset + filter.Pagination.PageSize
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.Message, 0, end-offset)
	for _, msg := range matched[offset:end] {
		page = append(page, clone(msg))
	}
	return page, nil
}

// CountForConversation counts messages matching the filter.
func (r *InMemoryRepository) CountForConversation(ctx context.Context, conversationID string, filter domain.ListFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.filtered(conversationID, filter))), nil
}

// MarkRead flips an unread message addressed to receiverID.
func (r *InMemoryRepository) MarkRead(ctx context.Context, id, receiverID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.byID[id]
	if !ok || msg.ReceiverID != receiverID || msg.IsRead {
		return false, nil
	}
	markRead(msg, at)
	return true, nil
}

// MarkConversationRead flips every unread message addressed to receiverID.
func (r *InMemoryRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed int64
	for _, msg := range r.byConversation[conversationID] {
		if msg.ReceiverID == receiverID && !msg.IsRead {
			markRead(msg, at)
			changed++
		}
	}
	return changed, nil
}

// UnreadByConversation groups the user's unread messages by conversation.
func (r *InMemoryRepository) UnreadByConversation(ctx context.Context, userID string) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, msg := range r.byID {
		if msg.ReceiverID == userID && !msg.IsRead {
			counts[msg.ConversationID]++
		}
	}
	return counts, nil
}

// LatestByConversation returns the highest-sequence message of each conversation.
func (r *InMemoryRepository) LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*domain.Message, len(conversationIDs))
	for _, id := range conversationIDs {
		list := r.byConversation[id]
		if len(list) == 0 {
			continue
		}
		latest[id] = clone(list[len(list)-1])
	}
	return latest, nil
}

// UsersWithUnread lists receivers with unread messages created before createdBefore.
func (r *InMemoryRepository) UsersWithUnread(ctx context.Context, createdBefore time.Time, limit int) ([]domain.UnreadRecipient, error) {
	r.mu.RLock()
	counts := make(map[string]int64)
	for _, msg := range r.byID {
		if !msg.IsRead && msg.CreatedAt.Before(createdBefore) {
			counts[msg.ReceiverID]++
		}
	}
	r.mu.RUnlock()

	recipients := make([]domain.UnreadRecipient, 0, len(counts))
	for userID, count := range counts {
		recipients = append(recipients, domain.UnreadRecipient{UserID: userID, Count: count})
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].UserID < recipients[j].UserID })
	if limit > 0 && len(recipients) > limit {
		recipients = recipients[:limit]
	}
	return recipients, nil
}

func (r *InMemoryRepository) filtered(conversationID string, filter domain.ListFilter) []*domain.Message {
	list := r.byConversation[conversationID]
	if filter.UnreadFor == "" {
		return list
	}
	matched := make([]*domain.Message, 0, len(list))
	for _, msg := range list {
		if msg.ReceiverID == filter.UnreadFor && !msg.IsRead {
			matched = append(matched, msg)
		}
	}
	return matched
}

func markRead(msg *domain.Message, at time.Time) {
	readAt := at
	msg.IsRead = true
	msg.ReadAt = &readAt
}

func clone(msg *domain.Message) *domain.Message {
	if msg == nil {
		return nil
	}
	copied := *msg
	if msg.ReadAt != nil {
		readAt := *msg.ReadAt
		copied.ReadAt = &readAt
	}
	return &copied
}
