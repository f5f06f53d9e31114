package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/repository"
)

const (
	maxLetterBodyLen = 20000
	deliveryBatch    = 100
)

// LetterService schedules letters and runs the delivery loop.
type LetterService struct {
	letterRepo repository.LetterRepository
	userRepo   repository.UserRepository
	friendRepo repository.FriendRepository
	blockRepo  repository.BlockRepository
	notifier   *NotificationService
}

// NewLetterService returns a new LetterService.
func NewLetterService(
	letterRepo repository.LetterRepository,
	userRepo repository.UserRepository,
	friendRepo repository.FriendRepository,
	blockRepo repository.BlockRepository,
	notifier *NotificationService,
) *LetterService {
	return &LetterService{
		letterRepo: letterRepo,
		userRepo:   userRepo,
		friendRepo: friendRepo,
		blockRepo:  blockRepo,
		notifier:   notifier,
	}
}

// LetterPage is one page of letters.
type LetterPage struct {
	Page           []models.Letter `json:"page"`
	IsDone         bool            `json:"is_done"`
	ContinueCursor string          `json:"continue_cursor"`
}

// ScheduleLetter creates a letter for future delivery to a friend.
func (s *LetterService) ScheduleLetter(ctx context.Context, senderID, receiverID uint, body string, deliverAt time.Time) (*models.Letter, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("Letter body is required")
	}
	if len(body) > maxLetterBodyLen {
		return nil, models.NewValidationError("Letter body too long")
	}
	if senderID == receiverID {
		return nil, models.NewValidationError("Cannot send a letter to yourself")
	}
	if !deliverAt.After(time.Now()) {
		return nil, models.NewValidationError("Delivery time must be in the future")
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}
	blocked, err := s.blockRepo.ExistsEither(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewUnauthorizedError("You cannot send letters to this user")
	}
	friends, err := s.friendRepo.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, models.NewUnauthorizedError("You can only send letters to your friends")
	}

	letter := &models.Letter{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		DeliverAt:  deliverAt,
	}
	if err := s.letterRepo.Create(ctx, letter); err != nil {
		return nil, err
	}
	return letter, nil
}

// GetSentLetters returns one page of letters the user has scheduled.
func (s *LetterService) GetSentLetters(ctx context.Context, senderID uint, limit int, cursorStr string) (*LetterPage, error) {
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	letters, next, err := s.letterRepo.ListSent(ctx, senderID, limit, cursor)
	if err != nil {
		return nil, err
	}
	page := &LetterPage{Page: letters, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// GetReceivedLetters returns one page of letters delivered to the user.
// Letters still in transit stay invisible to the receiver.
func (s *LetterService) GetReceivedLetters(ctx context.Context, receiverID uint, limit int, cursorStr string) (*LetterPage, error) {
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	letters, next, err := s.letterRepo.ListDelivered(ctx, receiverID, limit, cursor)
	if err != nil {
		return nil, err
	}
	page := &LetterPage{Page: letters, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// DeliverDue delivers every letter whose time has come and returns the
// number delivered. MarkDelivered only flips undelivered rows, so two
// overlapping runs cannot deliver the same letter twice.
func (s *LetterService) DeliverDue(ctx context.Context, now time.Time) (int, error) {
	letters, err := s.letterRepo.DueLetters(ctx, now, deliveryBatch)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, letter := range letters {
		flipped, err := s.letterRepo.MarkDelivered(ctx, letter.ID, now)
		if err != nil {
			return delivered, err
		}
		if !flipped {
			continue
		}
		delivered++

		if err := s.notifier.Notify(ctx, letter.ReceiverID, letter.SenderID, models.NotificationLetterScheduled, map[string]interface{}{
			"letter_id": letter.ID,
		}); err != nil {
			slog.WarnContext(ctx, "failed to notify letter delivery",
				"letter_id", letter.ID, "err", err)
		}
	}
	return delivered, nil
}

// StartDeliveryLoop runs DeliverDue on the given interval until the context
// is cancelled.
func (s *LetterService) StartDeliveryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("letter delivery loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("letter delivery loop stopped")
			return
		case now := <-ticker.C:
			n, err := s.DeliverDue(ctx, now)
			if err != nil {
				slog.Error("letter delivery run failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("letters delivered", "count", n)
			}
		}
	}
}
