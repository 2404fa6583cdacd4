package message

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/utils/idgen"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// Service is the message ledger.
type Service interface {
	Append(ctx context.Context, conversationID, senderID, content string) (*Message, error)
	ListForConversation(ctx context.Context, conversationID, requestingUser string, page, pageSize int, unreadOnly bool) ([]*Message, int64, error)
	MarkRead(ctx context.Context, messageID, requestingUser string) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, requestingUser string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	UnreadCountsByConversation(ctx context.Context, userID string) (map[string]int64, error)
	UnreadSummary(ctx context.Context, userID string) (*UnreadSummary, error)
	LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]*Message, error)
	UsersWithUnread(ctx context.Context, olderThan time.Duration, limit int) ([]UnreadRecipient, error)
}

// Config tunes the ledger.
type Config struct {
	MaxContentLength int
}

type service struct {
	repo          Repository
	conversations conversation.Service
	tx            Transactor
	cache         UnreadCache
	listener      Listener
	maxLength     int
	now           func() time.Time
	log           zerolog.Logger
}

// NewService creates a message ledger. tx, cache and listener may be nil.
func NewService(
	repo Repository,
	conversations conversation.Service,
	tx Transactor,
	cache UnreadCache,
	listener Listener,
	cfg Config,
	log zerolog.Logger,
) Service {
	if tx == nil {
		tx = NoTransaction()
	}
	maxLength := cfg.MaxContentLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &service{
		repo:          repo,
		conversations: conversations,
		tx:            tx,
		cache:         cache,
		listener:      listener,
		maxLength:     maxLength,
		now:           func() time.Time { return time.Now().UTC() },
		log:           log.With().Str("component", "message-ledger").Logger(),
	}
}

func (s *service) Append(ctx context.Context, conversationID, senderID, content string) (*Message, error) {
	conv, err := s.conversations.Find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, accessDenied(ctx, "sender is not a participant of this conversation", "message-sender-not-participant")
	}
	if err := s.validateContent(ctx, content); err != nil {
		return nil, err
	}

	id, err := idgen.MessageID()
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate message id", err, "message-id-generation")
	}

	msg := &Message{
		ID:             id,
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     conv.OtherParticipant(senderID),
		Content:        content,
		IsRead:         false,
	}

	// CreatedAt comes back from Advance so that it is assigned under the same
	// lock as the sequence and never decreases as the sequence grows.
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, at, err := s.conversations.Advance(txCtx, conv.ID, s.now())
		if err != nil {
			return err
		}
		msg.Sequence = seq
		msg.CreatedAt = at
		return s.repo.Create(txCtx, msg)
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append message")
	}

	s.invalidate(ctx, msg.ReceiverID)

	s.log.Debug().
		Str("message_id", msg.ID).
		Str("conversation_id", msg.ConversationID).
		Int64("sequence", msg.Sequence).
		Msg("message appended")

	if s.listener != nil {
		s.listener.OnMessageAppended(ctx, msg)
	}
	return msg, nil
}

func (s *service) ListForConversation(ctx context.Context, conversationID, requestingUser string, page, pageSize int, unreadOnly bool) ([]*Message, int64, error) {
	if _, err := s.participantConversation(ctx, conversationID, requestingUser); err != nil {
		return nil, 0, err
	}

	filter := ListFilter{
		Pagination: conversation.NormalizePagination(page, pageSize, DefaultPageSize, MaxPageSize),
	}
	if unreadOnly {
		filter.UnreadFor = requestingUser
	}

	total, err := s.repo.CountForConversation(ctx, conversationID, filter)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*Message{}, 0, nil
	}

	messages, err := s.repo.ListForConversation(ctx, conversationID, filter)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (s *service) MarkRead(ctx context.Context, messageID, requestingUser string) (bool, error) {
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return false, nil
		}
		return false, err
	}
	if msg.IsRead || msg.ReceiverID != requestingUser {
		return false, nil
	}

	at := s.now()
	changed, err := s.repo.MarkRead(ctx, messageID, requestingUser, at)
	if err != nil || !changed {
		return false, err
	}

	msg.IsRead = true
	msg.ReadAt = &at
	s.invalidate(ctx, requestingUser)

	if s.listener != nil {
		s.listener.OnMessageRead(ctx, msg)
	}
	return true, nil
}

func (s *service) MarkConversationRead(ctx context.Context, conversationID, requestingUser string) (int64, error) {
	if _, err := s.participantConversation(ctx, conversationID, requestingUser); err != nil {
		return 0, err
	}

	changed, err := s.repo.MarkConversationRead(ctx, conversationID, requestingUser, s.now())
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.invalidate(ctx, requestingUser)
		s.log.Debug().
			Str("conversation_id", conversationID).
			Int64("marked", changed).
			Msg("conversation marked read")
	}
	return changed, nil
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	summary, err := s.UnreadSummary(ctx, userID)
	if err != nil {
		return 0, err
	}
	return summary.Total, nil
}

func (s *service) UnreadCountsByConversation(ctx context.Context, userID string) (map[string]int64, error) {
	summary, err := s.UnreadSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summary.ByConversation, nil
}

func (s *service) UnreadSummary(ctx context.Context, userID string) (*UnreadSummary, error) {
	cacheable := false
	var generation int64
	if s.cache != nil {
		counts, gen, ok, err := s.cache.GetUnread(ctx, userID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("user_id", userID).Msg("unread cache read failed")
		case ok:
			return NewUnreadSummary(counts), nil
		default:
			cacheable = true
			generation = gen
		}
	}

	counts, err := s.repo.UnreadByConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.SetUnread(ctx, userID, generation, counts); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("unread cache write failed")
		}
	}
	return NewUnreadSummary(counts), nil
}

func (s *service) LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]*Message, error) {
	if len(conversationIDs) == 0 {
		return map[string]*Message{}, nil
	}
	return s.repo.LatestByConversation(ctx, conversationIDs)
}

func (s *service) UsersWithUnread(ctx context.Context, olderThan time.Duration, limit int) ([]UnreadRecipient, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.UsersWithUnread(ctx, s.now().Add(-olderThan), limit)
}

// participantConversation resolves a conversation the requester may act on.
// Unknown conversations are NOT_FOUND, known ones the requester is not part
// of are FORBIDDEN.
func (s *service) participantConversation(ctx context.Context, conversationID, requestingUser string) (*conversation.Conversation, error) {
	conv, err := s.conversations.Find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requestingUser) {
		return nil, accessDenied(ctx, "not a participant of this conversation", "message-requester-not-participant")
	}
	return conv, nil
}

func (s *service) validateContent(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message content is required", nil, "message-content-empty")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("message cannot exceed %d characters", s.maxLength), nil, "message-content-too-long")
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUnread(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("unread cache invalidation failed")
	}
}

func accessDenied(ctx context.Context, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, message, nil, code)
}
