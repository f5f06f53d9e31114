// Package service provides application business logic (friends, chat,
// notifications, moderation, etc.).
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"quill/internal/cache"
	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"
)

// NotificationService creates and queries notification records. Creation is
// invoked synchronously inside every mutation that represents a
// user-visible event.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	notifier  *notifications.Notifier
}

// NewNotificationService returns a new NotificationService. notifier may be
// nil when Redis is not configured.
func NewNotificationService(notifRepo repository.NotificationRepository, notifier *notifications.Notifier) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		notifier:  notifier,
	}
}

// NotificationPage is one page of a recipient's notification list.
type NotificationPage struct {
	Page           []models.Notification `json:"page"`
	IsDone         bool                  `json:"is_done"`
	ContinueCursor string                `json:"continue_cursor"`
}

// Notify writes a notification row for the recipient. It is a no-op when the
// recipient is the sender. Params is structured event data; rendering to
// display text is the client's job. Pub/sub and cache failures are logged
// and never fail the calling mutation.
func (s *NotificationService) Notify(ctx context.Context, recipientID, senderID uint, typ models.NotificationType, params map[string]interface{}) error {
	if recipientID == senderID {
		return nil
	}

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return models.NewInternalError(err)
		}
		raw = encoded
	}

	n := &models.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		Params:      raw,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		return err
	}

	cache.BumpUnreadCount(ctx, recipientID)

	if err := s.notifier.PublishNotification(ctx, n); err != nil {
		slog.WarnContext(ctx, "failed to publish notification",
			"recipient_id", recipientID, "type", typ, "err", err)
	}
	return nil
}

// List returns one page of the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID uint, limit int, cursorStr string) (*NotificationPage, error) {
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	rows, next, err := s.notifRepo.List(ctx, recipientID, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &NotificationPage{Page: rows, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// UnreadCount returns the number of unread notifications. The cached value
// is used when fresh; the database count is authoritative and repopulates
// the cache on a miss.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	if n, ok := cache.GetUnreadCount(ctx, recipientID); ok {
		return n, nil
	}

	n, err := s.notifRepo.UnreadCount(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	cache.SetUnreadCount(ctx, recipientID, n)
	return n, nil
}

// MarkAllRead marks every notification of the recipient as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) error {
	if err := s.notifRepo.MarkAllRead(ctx, recipientID); err != nil {
		return err
	}
	cache.InvalidateUnreadCount(ctx, recipientID)
	return nil
}

// DeleteAll removes every notification of the recipient.
func (s *NotificationService) DeleteAll(ctx context.Context, recipientID uint) error {
	if err := s.notifRepo.DeleteAllForRecipient(ctx, recipientID); err != nil {
		return err
	}
	cache.InvalidateUnreadCount(ctx, recipientID)
	return nil
}
