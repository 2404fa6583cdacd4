package message

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domain "moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/infrastructure/database/entities"
	"moveon-server/services/messaging-api/internal/infrastructure/database/transaction"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

// PostgresRepository provides persistence for messages.
type PostgresRepository struct {
	db *transaction.Database
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *transaction.Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new message row.
func (r *PostgresRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := r.db.GetTx(ctx).Create(entities.NewSchemaMessage(msg)).Error; err != nil {
		errType := platformerrors.ErrorTypeDatabaseError
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			errType = platformerrors.ErrorTypeConflict
		}
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			errType,
			"failed to create message",
			err,
			"message-create-db",
		)
	}
	return nil
}

// FindByID retrieves a message by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var entity entities.Message
	err := r.db.GetTx(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewErrorWithContext(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"message not found",
				err,
				"message-not-found",
				map[string]any{"message_id": id},
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find message",
			err,
			"message-find-db",
		)
	}
	return entity.EtoD(), nil
}

// ListForConversation returns a page of messages in ascending sequence order.
func (r *PostgresRepository) ListForConversation(ctx context.Context, conversationID string, filter domain.ListFilter) ([]*domain.Message, error) {
	var rows []entities.Message
	err := r.filtered(ctx, conversationID, filter).
		Order("sequence ASC").
		Offset(filter.Pagination.Offset()).
		Limit(filter.Pagination.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"message-list-db",
		)
	}

	result := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].EtoD())
	}
	return result, nil
}

// CountForConversation counts messages matching the filter.
func (r *PostgresRepository) CountForConversation(ctx context.Context, conversationID string, filter domain.ListFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, conversationID, filter).Count(&count).Error; err != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count messages",
			err,
			"message-count-db",
		)
	}
	return count, nil
}

// MarkRead flips an unread message addressed to receiverID.
func (r *PostgresRepository) MarkRead(ctx context.Context, id, receiverID string, at time.Time) (bool, error) {
	result := r.db.GetTx(ctx).
		Model(&entities.Message{}).
		Where("id = ? AND receiver_id = ? AND is_read = ?", id, receiverID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if result.Error != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to mark message as read",
			result.Error,
			"message-mark-read-db",
		)
	}
	return result.RowsAffected > 0, nil
}

// MarkConversationRead flips every unread message addressed to receiverID.
func (r *PostgresRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error) {
	result := r.db.GetTx(ctx).
		Model(&entities.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, receiverID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if result.Error != nil {
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to mark conversation as read",
			result.Error,
			"message-mark-conversation-read-db",
		)
	}
	return result.RowsAffected, nil
}

type conversationCount struct {
	ConversationID string
	Count          int64
}

// UnreadByConversation groups the user's unread messages by conversation.
func (r *PostgresRepository) UnreadByConversation(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []conversationCount
	err := r.db.GetTx(ctx).
		Model(&entities.Message{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count unread messages",
			err,
			"message-unread-db",
		)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ConversationID] = row.Count
	}
	return counts, nil
}

// LatestByConversation returns the highest-sequence message per conversation.
func (r *PostgresRepository) LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]*domain.Message, error) {
	latest := make(map[string]*domain.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return latest, nil
	}

	var rows []entities.Message
	err := r.db.GetTx(ctx).Raw(
		`SELECT DISTINCT ON (conversation_id) *
		   FROM messages
		  WHERE conversation_id IN ?
		  ORDER BY conversation_id, sequence DESC`,
		conversationIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to load latest messages",
			err,
			"message-latest-db",
		)
	}

	for i := range rows {
		latest[rows[i].ConversationID] = rows[i].EtoD()
	}
	return latest, nil
}

// UsersWithUnread lists receivers with unread messages created before createdBefore.
func (r *PostgresRepository) UsersWithUnread(ctx context.Context, createdBefore time.Time, limit int) ([]domain.UnreadRecipient, error) {
	var rows []struct {
		ReceiverID string
		Count      int64
	}
	query := r.db.GetTx(ctx).
		Model(&entities.Message{}).
		Select("receiver_id, COUNT(*) AS count").
		Where("is_read = ? AND created_at < ?", false, createdBefore).
		Group("receiver_id").
		Order("receiver_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list users with unread messages",
			err,
			"message-unread-users-db",
		)
	}

	recipients := make([]domain.UnreadRecipient, 0, len(rows))
	for _, row := range rows {
		recipients = append(recipients, domain.UnreadRecipient{UserID: row.ReceiverID, Count: row.Count})
	}
	return recipients, nil
}

func (r *PostgresRepository) filtered(ctx context.Context, conversationID string, filter domain.ListFilter) *gorm.DB {
	query := r.db.GetTx(ctx).
		Model(&entities.Message{}).
		Where("conversation_id = ?", conversationID)
	if filter.UnreadFor != "" {
		query = query.Where("receiver_id = ? AND is_read = ?", filter.UnreadFor, false)
	}
	return query
}
