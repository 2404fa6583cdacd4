package v1_test

import (
	"context"
	"time"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/domain/message"
)

// MockConversationService is a mock implementation of conversation.Service for testing.
type MockConversationService struct {
	GetOrCreateFunc func(ctx context.Context, userA, userB string) (*conversation.Conversation, bool, error)
	FindFunc        func(ctx context.Context, id string) (*conversation.Conversation, error)
	GetFunc         func(ctx context.Context, id, requestingUser string) (*conversation.Conversation, error)
	ListForUserFunc func(ctx context.Context, userID string, pagination conversation.Pagination) ([]*conversation.Conversation, int64, error)
	AdvanceFunc     func(ctx context.Context, id string, at time.Time) (int64, time.Time, error)
}

func (m *MockConversationService) GetOrCreate(ctx context.Context, userA, userB string) (*conversation.Conversation, bool, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, userA, userB)
	}
	return nil, false, nil
}

func (m *MockConversationService) Find(ctx context.Context, id string) (*conversation.Conversation, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockConversationService) Get(ctx context.Context, id, requestingUser string) (*conversation.Conversation, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, requestingUser)
	}
	return nil, nil
}

func (m *MockConversationService) ListForUser(ctx context.Context, userID string, pagination conversation.Pagination) ([]*conversation.Conversation, int64, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID, pagination)
	}
	return nil, 0, nil
}

func (m *MockConversationService) Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, id, at)
	}
	return 0, at, nil
}

// MockMessageService is a mock implementation of message.Service for testing.
type MockMessageService struct {
	AppendFunc                     func(ctx context.Context, conversationID, senderID, content string) (*message.Message, error)
	ListForConversationFunc        func(ctx context.Context, conversationID, requestingUser string, page, pageSize int, unreadOnly bool) ([]*message.Message, int64, error)
	MarkReadFunc                   func(ctx context.Context, messageID, requestingUser string) (bool, error)
	MarkConversationReadFunc       func(ctx context.Context, conversationID, requestingUser string) (int64, error)
	UnreadCountFunc                func(ctx context.Context, userID string) (int64, error)
	UnreadCountsByConversationFunc func(ctx context.Context, userID string) (map[string]int64, error)
	UnreadSummaryFunc              func(ctx context.Context, userID string) (*message.UnreadSummary, error)
	LatestByConversationFunc       func(ctx context.Context, conversationIDs []string) (map[string]*message.Message, error)
	UsersWithUnreadFunc            func(ctx context.Context, olderThan time.Duration, limit int) ([]message.UnreadRecipient, error)
}

func (m *MockMessageService) Append(ctx context.Context, conversationID, senderID, content string) (*message.Message, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, conversationID, senderID, content)
	}
	return nil, nil
}

func (m *MockMessageService) ListForConversation(ctx context.Context, conversationID, requestingUser string, page, pageSize int, unreadOnly bool) ([]*message.Message, int64, error) {
	if m.ListForConversationFunc != nil {
		return m.ListForConversationFunc(ctx, conversationID, requestingUser, page, pageSize, unreadOnly)
	}
	return nil, 0, nil
}

func (m *MockMessageService) MarkRead(ctx context.Context, messageID, requestingUser string) (bool, error) {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, messageID, requestingUser)
	}
	return false, nil
}

func (m *MockMessageService) MarkConversationRead(ctx context.Context, conversationID, requestingUser string) (int64, error) {
	if m.MarkConversationReadFunc != nil {
		return m.MarkConversationReadFunc(ctx, conversationID, requestingUser)
	}
	return 0, nil
}

func (m *MockMessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockMessageService) UnreadCountsByConversation(ctx context.Context, userID string) (map[string]int64, error) {
	if m.UnreadCountsByConversationFunc != nil {
		return m.UnreadCountsByConversationFunc(ctx, userID)
	}
	return map[string]int64{}, nil
}

func (m *MockMessageService) UnreadSummary(ctx context.Context, userID string) (*message.UnreadSummary, error) {
	if m.UnreadSummaryFunc != nil {
		return m.UnreadSummaryFunc(ctx, userID)
	}
	return message.NewUnreadSummary(nil), nil
}

func (m *MockMessageService) LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]*message.Message, error) {
	if m.LatestByConversationFunc != nil {
		return m.LatestByConversationFunc(ctx, conversationIDs)
	}
	return map[string]*message.Message{}, nil
}

func (m *MockMessageService) UsersWithUnread(ctx context.Context, olderThan time.Duration, limit int) ([]message.UnreadRecipient, error) {
	if m.UsersWithUnreadFunc != nil {
		return m.UsersWithUnreadFunc(ctx, olderThan, limit)
	}
	return nil, nil
}
