package repository

import (
	"context"
	"errors"
	"time"

	"quill/internal/models"

	"gorm.io/gorm"
)

// LetterRepository defines the interface for scheduled-letter data
// operations.
type LetterRepository interface {
	Create(ctx context.Context, letter *models.Letter) error
	GetByID(ctx context.Context, id uint) (*models.Letter, error)
	ListSent(ctx context.Context, senderID uint, limit int, cursor *Cursor) ([]models.Letter, *Cursor, error)
	ListDelivered(ctx context.Context, receiverID uint, limit int, cursor *Cursor) ([]models.Letter, *Cursor, error)
	DueLetters(ctx context.Context, now time.Time, limit int) ([]models.Letter, error)
	MarkDelivered(ctx context.Context, id uint, at time.Time) (bool, error)
	DeleteForUser(ctx context.Context, userID uint) error
}

type letterRepository struct {
	db *gorm.DB
}

// NewLetterRepository creates a new letter repository
func NewLetterRepository(db *gorm.DB) LetterRepository {
	return &letterRepository{db: db}
}

func (r *letterRepository) Create(ctx context.Context, letter *models.Letter) error {
	if err := r.db.WithContext(ctx).Create(letter).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *letterRepository) GetByID(ctx context.Context, id uint) (*models.Letter, error) {
	var letter models.Letter
	if err := r.db.WithContext(ctx).First(&letter, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Letter", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &letter, nil
}

func (r *letterRepository) ListSent(ctx context.Context, senderID uint, limit int, cursor *Cursor) ([]models.Letter, *Cursor, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("sender_id = ?", senderID), limit, cursor)
}

// ListDelivered returns letters the receiver can already see. Undelivered
// letters stay invisible until the delivery loop flips them.
func (r *letterRepository) ListDelivered(ctx context.Context, receiverID uint, limit int, cursor *Cursor) ([]models.Letter, *Cursor, error) {
	q := r.db.WithContext(ctx).
		Where("receiver_id = ? AND delivered_at IS NOT NULL", receiverID).
		Preload("Sender")
	return r.list(ctx, q, limit, cursor)
}

func (r *letterRepository) list(ctx context.Context, q *gorm.DB, limit int, cursor *Cursor) ([]models.Letter, *Cursor, error) {
	var letters []models.Letter
	q = q.Order("created_at DESC, id DESC").Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&letters).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	if len(letters) <= limit {
		return letters, nil, nil
	}
	letters = letters[:limit]
	last := letters[len(letters)-1]
	return letters, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

func (r *letterRepository) DueLetters(ctx context.Context, now time.Time, limit int) ([]models.Letter, error) {
	var letters []models.Letter
	if err := r.db.WithContext(ctx).
		Where("delivered_at IS NULL AND deliver_at <= ?", now).
		Order("deliver_at ASC").
		Limit(limit).
		Find(&letters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return letters, nil
}

// MarkDelivered flips one letter to delivered and reports whether this call
// won the flip. Concurrent delivery runs converge on one notification.
func (r *letterRepository) MarkDelivered(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Letter{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Update("delivered_at", at)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *letterRepository) DeleteForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&models.Letter{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
