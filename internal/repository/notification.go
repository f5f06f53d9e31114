package repository

import (
	"context"

	"quill/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification data
// operations. Read/unread lookups ride the composite
// (recipient_id, is_read) index.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, limit int, cursor *Cursor) ([]models.Notification, *Cursor, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uint) error
	DeleteAllForRecipient(ctx context.Context, recipientID uint) error
}

// notificationRepository implements NotificationRepository
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, recipientID uint, limit int, cursor *Cursor) ([]models.Notification, *Cursor, error) {
	var rows []models.Notification
	q := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Preload("Sender").
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	if len(rows) <= limit {
		return rows, nil, nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	return rows, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *notificationRepository) DeleteAllForRecipient(ctx context.Context, recipientID uint) error {
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Delete(&models.Notification{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
