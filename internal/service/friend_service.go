package service

import (
	"context"
	"strings"

	"quill/internal/models"
	"quill/internal/repository"
)

const maxRequestMessageLen = 500

// FriendService provides friend-request and friendship business logic.
type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	blockRepo  repository.BlockRepository
	notifier   *NotificationService
}

// NewFriendService returns a new FriendService.
func NewFriendService(
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	blockRepo repository.BlockRepository,
	notifier *NotificationService,
) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		blockRepo:  blockRepo,
		notifier:   notifier,
	}
}

// FriendPage is one page of a user's friend list.
type FriendPage struct {
	Page           []models.Friendship `json:"page"`
	IsDone         bool                `json:"is_done"`
	ContinueCursor string              `json:"continue_cursor"`
}

// SendFriendRequest sends a friend request with an introduction message to
// the target user.
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID, receiverID uint, message string) (*models.FriendRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, models.NewValidationError("Request message is required")
	}
	if len(message) > maxRequestMessageLen {
		return nil, models.NewValidationError("Request message too long (max 500 characters)")
	}
	if senderID == receiverID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	blocked, err := s.blockRepo.ExistsEither(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewUnauthorizedError("Cannot send a friend request to this user")
	}

	friends, err := s.friendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, models.NewConflictError("You are already friends")
	}

	existing, err := s.friendRepo.GetPendingRequestBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.SenderID == senderID {
			return nil, models.NewConflictError("Friend request already sent")
		}
		return nil, models.NewConflictError("You already have a pending friend request from this user")
	}

	req := &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    message,
	}
	if err := s.friendRepo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	if err := s.notifier.Notify(ctx, receiverID, senderID, models.NotificationFriendRequestSent, map[string]interface{}{
		"request_id": req.ID,
		"message":    message,
	}); err != nil {
		return nil, err
	}

	return s.friendRepo.GetRequestByID(ctx, req.ID)
}

// AcceptFriendRequest accepts a pending friend request. Acceptance is
// idempotent under the double-accept race: if the friendship already exists
// the stale request is deleted and the call succeeds.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, accepterID, requestID uint) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ReceiverID != accepterID {
		return models.NewUnauthorizedError("You can only accept friend requests sent to you")
	}

	friends, err := s.friendRepo.AreFriends(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return err
	}
	if friends {
		// A concurrent accept already created the pair; just drop the
		// stale request.
		return s.friendRepo.DeleteRequest(ctx, requestID)
	}

	if err := s.friendRepo.CreateFriendshipPair(ctx, req.SenderID, req.ReceiverID); err != nil {
		return err
	}
	if err := s.friendRepo.DeleteRequest(ctx, requestID); err != nil {
		return err
	}

	return s.notifier.Notify(ctx, req.SenderID, accepterID, models.NotificationFriendRequestAccepted, map[string]interface{}{
		"friend_id": accepterID,
	})
}

// RejectFriendRequest rejects a pending friend request. Only the receiver
// may reject; the sender cancels via the same deletion without notification.
func (s *FriendService) RejectFriendRequest(ctx context.Context, rejecterID, requestID uint) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ReceiverID != rejecterID && req.SenderID != rejecterID {
		return models.NewUnauthorizedError("You can only reject or cancel your own pending requests")
	}

	if err := s.friendRepo.DeleteRequest(ctx, requestID); err != nil {
		return err
	}

	if req.ReceiverID == rejecterID {
		return s.notifier.Notify(ctx, req.SenderID, rejecterID, models.NotificationFriendRequestRejected, nil)
	}
	return nil
}

// RemoveFriend removes the friendship between two users, deleting both
// directional rows.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	friends, err := s.friendRepo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !friends {
		return models.NewNotFoundError("Friendship", friendID)
	}

	if err := s.friendRepo.DeleteFriendshipPair(ctx, userID, friendID); err != nil {
		return err
	}

	return s.notifier.Notify(ctx, friendID, userID, models.NotificationFriendRemoved, nil)
}

// AreFriends reports whether a directional friendship row exists. Used as
// the authorization gate for content visibility.
func (s *FriendService) AreFriends(ctx context.Context, userID, friendID uint) (bool, error) {
	return s.friendRepo.AreFriends(ctx, userID, friendID)
}

// GetFriends returns one page of the user's friends.
func (s *FriendService) GetFriends(ctx context.Context, userID uint, limit int, cursorStr string) (*FriendPage, error) {
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	rows, next, err := s.friendRepo.GetFriends(ctx, userID, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &FriendPage{Page: rows, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// GetPendingRequests returns pending friend requests addressed to the user.
func (s *FriendService) GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

// GetSentRequests returns pending friend requests the user has sent.
func (s *FriendService) GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.GetSentRequests(ctx, userID)
}

// FriendshipStatus describes the relationship between two users.
func (s *FriendService) FriendshipStatus(ctx context.Context, userID, otherID uint) (string, uint, error) {
	friends, err := s.friendRepo.AreFriends(ctx, userID, otherID)
	if err != nil {
		return "", 0, err
	}
	if friends {
		return "friends", 0, nil
	}

	req, err := s.friendRepo.GetPendingRequestBetween(ctx, userID, otherID)
	if err != nil {
		return "", 0, err
	}
	if req == nil {
		return "none", 0, nil
	}
	if req.SenderID == userID {
		return "pending_sent", req.ID, nil
	}
	return "pending_received", req.ID, nil
}
