package conversation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "moveon-server/services/messaging-api/internal/domain/conversation"
	"moveon-server/services/messaging-api/internal/infrastructure/database/entities"
	"moveon-server/services/messaging-api/internal/infrastructure/database/transaction"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// PostgresRepository provides persistence for conversations.
type PostgresRepository struct {
	db *transaction.Database
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *transaction.Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByPair looks a conversation up by its normalized participant pair.
func (r *PostgresRepository) FindByPair(ctx context.Context, pair domain.Pair) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.GetTx(ctx).
		Where("user_low = ? AND user_high = ?", pair.Low, pair.High).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"conversation not found for pair",
				err,
				"conversation-pair-not-found",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation by pair",
			err,
			"conversation-find-pair-db",
		)
	}
	return entity.EtoD(), nil
}

// InsertIfAbsent inserts conv and leaves an existing row for the same pair untouched.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, conv *domain.Conversation) (bool, error) {
	entity := entities.NewSchemaConversation(conv)
	result := r.db.GetTx(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low"}, {Name: "user_high"}},
			DoNothing: true,
		}).
		Create(entity)
	if result.Error != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			result.Error,
			"conversation-create-db",
		)
	}
	return result.RowsAffected == 1, nil
}

// FindByID retrieves a conversation by its public ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.GetTx(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewErrorWithContext(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"conversation not found",
				err,
				"conversation-id-not-found",
				map[string]any{"conversation_id": id},
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find conversation",
			err,
			"conversation-find-db",
		)
	}
	return entity.EtoD(), nil
}

// ListForUser returns the user's conversations ordered by recent activity.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string, pagination domain.Pagination) ([]*domain.Conversation, error) {
	var rows []entities.Conversation
	err := r.db.GetTx(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("last_activity_at DESC, id DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"conversation-list-db",
		)
	}

	result := make([]*domain.Conversation, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].EtoD())
	}
	return result, nil
}

// CountForUser counts the conversations a user participates in.
func (r *PostgresRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.GetTx(ctx).
		Model(&entities.Conversation{}).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Count(&count).Error
	if err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count conversations",
			err,
			"conversation-count-db",
		)
	}
	return count, nil
}

// Advance bumps last_sequence atomically and returns it with the stored
// last_activity_at. The row lock taken by the UPDATE serializes concurrent
// appends to one conversation, so both values grow together.
func (r *PostgresRepository) Advance(ctx context.Context, id string, at time.Time) (int64, time.Time, error) {
	var row struct {
		LastSequence   int64
		LastActivityAt time.Time
	}
	result := r.db.GetTx(ctx).Raw(
		`UPDATE conversations
		    SET last_sequence = last_sequence + 1,
		        last_activity_at = GREATEST(last_activity_at, ?)
		  WHERE id = ?
		RETURNING last_sequence, last_activity_at`,
		at, id,
	).Scan(&row)
	if result.Error != nil {
		return 0, time.Time{}, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to advance conversation sequence",
			result.Error,
			"conversation-advance-db",
		)
	}
	if result.RowsAffected == 0 {
		return 0, time.Time{}, platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			nil,
			"conversation-id-not-found",
			map[string]any{"conversation_id": id},
		)
	}
	return row.LastSequence, row.LastActivityAt.UTC(), nil
}
