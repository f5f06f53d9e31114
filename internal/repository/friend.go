package repository

import (
	"context"
	"errors"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendRepository defines the interface for friend-request and friendship
// data operations.
type FriendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetPendingRequestBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRequest, error)
	GetPendingRequests(ctx context.Context, receiverID uint) ([]models.FriendRequest, error)
	GetSentRequests(ctx context.Context, senderID uint) ([]models.FriendRequest, error)
	DeleteRequest(ctx context.Context, id uint) error
	DeleteRequestsBetween(ctx context.Context, userID1, userID2 uint) error
	DeleteAllRequestsForUser(ctx context.Context, userID uint) error

	CreateFriendshipPair(ctx context.Context, userID1, userID2 uint) error
	AreFriends(ctx context.Context, userID, friendID uint) (bool, error)
	DeleteFriendshipPair(ctx context.Context, userID1, userID2 uint) error
	GetFriends(ctx context.Context, userID uint, limit int, cursor *Cursor) ([]models.Friendship, *Cursor, error)
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
}

// friendRepository implements FriendRepository
type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).Preload("Sender").Preload("Receiver").First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Friend request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *friendRepository) GetPendingRequestBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRequest, error) {
	var req models.FriendRequest

	// A pending request in either direction counts.
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID1, userID2, userID2, userID1).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *friendRepository) GetPendingRequests(ctx context.Context, receiverID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Preload("Sender").
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRepository) GetSentRequests(ctx context.Context, senderID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Preload("Receiver").
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRepository) DeleteRequest(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) DeleteRequestsBetween(ctx context.Context, userID1, userID2 uint) error {
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID1, userID2, userID2, userID1).
		Delete(&models.FriendRequest{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeleteAllRequestsForUser removes every request the user sent or received.
func (r *friendRepository) DeleteAllRequestsForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&models.FriendRequest{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// CreateFriendshipPair inserts both directional rows in one transaction so a
// logical friendship can never be observed half-written. OnConflict makes a
// concurrent double-accept converge instead of erroring.
func (r *friendRepository) CreateFriendshipPair(ctx context.Context, userID1, userID2 uint) error {
	rows := []models.Friendship{
		{UserID: userID1, FriendID: userID2},
		{UserID: userID2, FriendID: userID1},
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) AreFriends(ctx context.Context, userID, friendID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// DeleteFriendshipPair deletes both directional rows in one transaction.
func (r *friendRepository) DeleteFriendshipPair(ctx context.Context, userID1, userID2 uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.
			Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
				userID1, userID2, userID2, userID1).
			Delete(&models.Friendship{}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetFriends(ctx context.Context, userID uint, limit int, cursor *Cursor) ([]models.Friendship, *Cursor, error) {
	var rows []models.Friendship
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Friend").
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

// FriendIDs returns the ids of every friend of the user.
func (r *friendRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// DeleteAllForUser removes every friendship row the user appears in, both
// directions. Safe to re-run; used by the account-deletion cascade.
func (r *friendRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR friend_id = ?", userID, userID).
		Delete(&models.Friendship{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
