package repository

import (
	"context"
	"errors"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for conversation and message data
// operations. A logical conversation is two rows sharing a group id, one per
// participant.
type ChatRepository interface {
	CreateConversationPair(ctx context.Context, userID1, userID2 uint) error
	GetConversationRow(ctx context.Context, groupID string, userID uint) (*models.Conversation, error)
	GetConversationRows(ctx context.Context, groupID string) ([]models.Conversation, error)
	GetUserConversations(ctx context.Context, userID uint, limit int, cursor *Cursor) ([]models.Conversation, *Cursor, error)
	PatchConversationRow(ctx context.Context, groupID string, userID uint, patch map[string]interface{}) error
	DeleteConversationRows(ctx context.Context, groupID string) error
	GroupIDsForUser(ctx context.Context, userID uint) ([]string, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uint) (*models.Message, error)
	GetMessages(ctx context.Context, groupID string, limit int, cursor *Cursor) ([]models.Message, *Cursor, error)
	GetLatestMessage(ctx context.Context, groupID string) (*models.Message, error)
	ListMessageImageIDs(ctx context.Context, groupID string) ([]uint, error)
	DeleteMessage(ctx context.Context, id uint) error
	DeleteMessagesByGroup(ctx context.Context, groupID string) error
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateConversationPair inserts both participant rows in one transaction.
// OnConflict absorbs a concurrent create of the same pair.
func (r *chatRepository) CreateConversationPair(ctx context.Context, userID1, userID2 uint) error {
	groupID := models.ConversationGroupID(userID1, userID2)
	rows := []models.Conversation{
		{UserID: userID1, OtherUserID: userID2, ConversationGroupID: groupID},
		{UserID: userID2, OtherUserID: userID1, ConversationGroupID: groupID},
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) GetConversationRow(ctx context.Context, groupID string, userID uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).
		Where("conversation_group_id = ? AND user_id = ?", groupID, userID).
		Preload("OtherUser").
		First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

func (r *chatRepository) GetConversationRows(ctx context.Context, groupID string) ([]models.Conversation, error) {
	var rows []models.Conversation
	if err := r.db.WithContext(ctx).
		Where("conversation_group_id = ?", groupID).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *chatRepository) GetUserConversations(ctx context.Context, userID uint, limit int, cursor *Cursor) ([]models.Conversation, *Cursor, error) {
	var rows []models.Conversation
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("OtherUser").
		Order("COALESCE(last_message_time, created_at) DESC, id DESC").
		Limit(limit + 1)
	if cursor != nil {
		q = q.Where(
			"(COALESCE(last_message_time, created_at) < ?) OR (COALESCE(last_message_time, created_at) = ? AND id < ?)",
			cursor.Time, cursor.Time, cursor.ID,
		)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	if len(rows) <= limit {
		return rows, nil, nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	at := last.CreatedAt
	if last.LastMessageTime != nil {
		at = *last.LastMessageTime
	}
	return rows, &Cursor{Time: at, ID: last.ID}, nil
}

func (r *chatRepository) PatchConversationRow(ctx context.Context, groupID string, userID uint, patch map[string]interface{}) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("conversation_group_id = ? AND user_id = ?", groupID, userID).
		Updates(patch).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) DeleteConversationRows(ctx context.Context, groupID string) error {
	if err := r.db.WithContext(ctx).
		Where("conversation_group_id = ?", groupID).
		Delete(&models.Conversation{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GroupIDsForUser returns every conversation group the user participates in.
// Used by the account-deletion cascade.
func (r *chatRepository) GroupIDsForUser(ctx context.Context, userID uint) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("user_id = ?", userID).
		Pluck("conversation_group_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

func (r *chatRepository) GetMessages(ctx context.Context, groupID string, limit int, cursor *Cursor) ([]models.Message, *Cursor, error) {
	var msgs []models.Message
	q := r.db.WithContext(ctx).
		Where("conversation_group_id = ?", groupID).
		Preload("Sender").
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&msgs).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	if len(msgs) <= limit {
		return msgs, nil, nil
	}
	msgs = msgs[:limit]
	last := msgs[len(msgs)-1]
	return msgs, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

// GetLatestMessage returns the newest message of the group, or nil if the
// group has no messages left. Used to recompute last-message tracking after
// a deletion.
func (r *chatRepository) GetLatestMessage(ctx context.Context, groupID string) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

func (r *chatRepository) ListMessageImageIDs(ctx context.Context, groupID string) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_group_id = ? AND image_id IS NOT NULL", groupID).
		Pluck("image_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *chatRepository) DeleteMessage(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Message{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chatRepository) DeleteMessagesByGroup(ctx context.Context, groupID string) error {
	if err := r.db.WithContext(ctx).
		Where("conversation_group_id = ?", groupID).
		Delete(&models.Message{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
