package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/utils/idgen"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// Service defines the conversation directory operations.
type Service interface {
	// GetOrCreate returns the conversation for the unordered pair, creating it
	// on first use. created is true only for the caller whose insert won.
	GetOrCreate(ctx context.Context, userA, userB string) (conv *Conversation, created bool, err error)
	// Find returns the conversation without a participant check.
	Find(ctx context.Context, id string) (*Conversation, error)
	// Get returns the conversation when requestingUser participates in it.
	Get(ctx context.Context, id, requestingUser string) (*Conversation, error)
	// ListForUser returns a page of the user's conversations, most recent activity first.
	ListForUser(ctx context.Context, userID string, pagination Pagination) ([]*Conversation, int64, error)
	// Advance assigns the next message sequence and bumps last activity.
	// The returned time never decreases as the sequence grows.
	Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error)
}

type service struct {
	repo   Repository
	locker PairLocker
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a conversation directory. A nil locker falls back to
// the repository's unique constraint.
func NewService(repo Repository, locker PairLocker, log zerolog.Logger) Service {
	if locker == nil {
		locker = NoopLocker()
	}
	return &service{
		repo:   repo,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With().Str("component", "conversation-directory").Logger(),
	}
}

func (s *service) GetOrCreate(ctx context.Context, userA, userB string) (*Conversation, bool, error) {
	pair := NewPair(userA, userB)
	if pair.Low == "" || pair.High == "" {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"both participants are required", nil, "conversation-participant-missing")
	}
	if pair.Low == pair.High {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"cannot start a conversation with yourself", nil, "conversation-self-pair")
	}

	existing, err := s.repo.FindByPair(ctx, pair)
	if err == nil {
		return existing, false, nil
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, false, err
	}

	unlock, err := s.locker.Lock(ctx, pair.Key())
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to lock conversation pair")
	}
	defer unlock()

	id, err := idgen.ConversationID()
	if err != nil {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate conversation id", err, "conversation-id-generation")
	}

	now := s.now()
	conv := &Conversation{
		ID:             id,
		UserLow:        pair.Low,
		UserHigh:       pair.High,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	created, err := s.repo.InsertIfAbsent(ctx, conv)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info().
			Str("conversation_id", conv.ID).
			Str("user_low", pair.Low).
			Str("user_high", pair.High).
			Msg("conversation created")
		return conv, true, nil
	}

	// Another writer inserted the pair between our lookup and insert.
	winner, err := s.repo.FindByPair(ctx, pair)
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reload conversation after conflict")
	}
	s.log.Debug().Str("conversation_id", winner.ID).Msg("conversation creation lost race, returning existing")
	return winner, false, nil
}

func (s *service) Find(ctx context.Context, id string) (*Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, notFound(ctx, id)
	}

	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil, notFound(ctx, id)
		}
		return nil, err
	}
	return conv, nil
}

func (s *service) Get(ctx context.Context, id, requestingUser string) (*Conversation, error) {
	conv, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !conv.HasParticipant(requestingUser) {
		return nil, notFound(ctx, id)
	}
	return conv, nil
}

func (s *service) ListForUser(ctx context.Context, userID string, pagination Pagination) ([]*Conversation, int64, error) {
	pagination = NormalizePagination(pagination.Page, pagination.PageSize, DefaultPageSize, MaxPageSize)

	total, err := s.repo.CountForUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*Conversation{}, 0, nil
	}

	convs, err := s.repo.ListForUser(ctx, userID, pagination)
	if err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

func (s *service) Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	return s.repo.Advance(ctx, id, at)
}

// notFound hides whether the conversation exists from non-participants.
func notFound(ctx context.Context, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "conversation-not-found", map[string]any{"conversation_id": id})
}
