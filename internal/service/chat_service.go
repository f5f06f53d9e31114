package service

import (
	"context"
	"log/slog"
	"strings"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/storage"
)

const maxMessageContentLen = 10000

// ChatService provides conversation and direct-message business logic. Each
// logical conversation is two rows sharing a group id; every mutation here
// keeps both rows in step.
type ChatService struct {
	chatRepo   repository.ChatRepository
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	blobs      storage.BlobStore
	notifier   *NotificationService
}

// NewChatService returns a new ChatService.
func NewChatService(
	chatRepo repository.ChatRepository,
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	blobs storage.BlobStore,
	notifier *NotificationService,
) *ChatService {
	return &ChatService{
		chatRepo:   chatRepo,
		friendRepo: friendRepo,
		userRepo:   userRepo,
		blobs:      blobs,
		notifier:   notifier,
	}
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	GroupID   string
	SenderID  uint
	Type      models.MessageType
	Content   string
	ImageID   *uint
	ReplyToID *uint
}

// ConversationPage is one page of a user's conversation list.
type ConversationPage struct {
	Page           []models.Conversation `json:"page"`
	IsDone         bool                  `json:"is_done"`
	ContinueCursor string                `json:"continue_cursor"`
}

// MessagePage is one page of a conversation's messages, newest first.
type MessagePage struct {
	Page           []models.Message `json:"page"`
	IsDone         bool             `json:"is_done"`
	ContinueCursor string           `json:"continue_cursor"`
}

// CreateConversation opens a conversation between two friends and returns
// the shared group id. Creating the same conversation twice returns the
// existing id without duplicating rows.
func (s *ChatService) CreateConversation(ctx context.Context, userID, otherUserID uint) (string, error) {
	if userID == otherUserID {
		return "", models.NewValidationError("Cannot start a conversation with yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, otherUserID); err != nil {
		return "", err
	}

	friends, err := s.friendRepo.AreFriends(ctx, userID, otherUserID)
	if err != nil {
		return "", err
	}
	if !friends {
		return "", models.NewUnauthorizedError("You can only message your friends")
	}

	groupID := models.ConversationGroupID(userID, otherUserID)

	existing, err := s.chatRepo.GetConversationRow(ctx, groupID, userID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return groupID, nil
	}

	if err := s.chatRepo.CreateConversationPair(ctx, userID, otherUserID); err != nil {
		return "", err
	}
	return groupID, nil
}

// SendMessage appends a message to a conversation. The sender's row is
// marked read and the other participant's row unread; both rows' last
// message tracking is updated.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	in.Content = strings.TrimSpace(in.Content)

	switch in.Type {
	case models.MessageTypeText:
		if in.Content == "" {
			return nil, models.NewValidationError("Message content is required")
		}
		if in.ImageID != nil {
			return nil, models.NewValidationError("Text messages cannot carry an image")
		}
	case models.MessageTypeImage:
		if in.ImageID == nil {
			return nil, models.NewValidationError("Image messages require an image")
		}
		if in.Content != "" {
			return nil, models.NewValidationError("Image messages cannot carry text content")
		}
	default:
		return nil, models.NewValidationError("Unknown message type")
	}
	if len(in.Content) > maxMessageContentLen {
		return nil, models.NewValidationError("Message content too long (max 10000 characters)")
	}

	row, err := s.chatRepo.GetConversationRow(ctx, in.GroupID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, models.NewUnauthorizedError("You are not a participant in this conversation")
	}

	if in.ReplyToID != nil {
		parent, err := s.chatRepo.GetMessageByID(ctx, *in.ReplyToID)
		if err != nil {
			return nil, err
		}
		if parent.ConversationGroupID != in.GroupID {
			return nil, models.NewValidationError("Reply target belongs to a different conversation")
		}
	}

	msg := &models.Message{
		ConversationGroupID: in.GroupID,
		SenderID:            in.SenderID,
		Type:                in.Type,
		Content:             in.Content,
		ImageID:             in.ImageID,
		ReplyToID:           in.ReplyToID,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	now := msg.CreatedAt
	if err := s.chatRepo.PatchConversationRow(ctx, in.GroupID, in.SenderID, map[string]interface{}{
		"last_message_id":     msg.ID,
		"last_message_time":   now,
		"has_unread_messages": false,
	}); err != nil {
		return nil, err
	}
	if err := s.chatRepo.PatchConversationRow(ctx, in.GroupID, row.OtherUserID, map[string]interface{}{
		"last_message_id":     msg.ID,
		"last_message_time":   now,
		"has_unread_messages": true,
	}); err != nil {
		return nil, err
	}

	if sender, err := s.userRepo.GetByID(ctx, in.SenderID); err == nil {
		msg.Sender = *sender
	}
	return msg, nil
}

// MarkConversationRead clears the unread flag on the caller's row only.
func (s *ChatService) MarkConversationRead(ctx context.Context, groupID string, userID uint) error {
	row, err := s.chatRepo.GetConversationRow(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if row == nil {
		return models.NewUnauthorizedError("You are not a participant in this conversation")
	}
	return s.chatRepo.PatchConversationRow(ctx, groupID, userID, map[string]interface{}{
		"has_unread_messages": false,
	})
}

// DeleteMessage deletes a message the requester sent. If the message was the
// recorded last message of the conversation, the new last message is
// recomputed and patched onto both participant rows; skipping that would
// leave both rows pointing at a dead id.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID uint) error {
	msg, err := s.chatRepo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return models.NewUnauthorizedError("You can only delete your own messages")
	}

	if err := s.chatRepo.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	if msg.ImageID != nil {
		s.deleteImageBlob(ctx, *msg.ImageID)
	}

	rows, err := s.chatRepo.GetConversationRows(ctx, msg.ConversationGroupID)
	if err != nil {
		return err
	}

	wasLast := false
	for _, row := range rows {
		if row.LastMessageID != nil && *row.LastMessageID == messageID {
			wasLast = true
			break
		}
	}
	if !wasLast {
		return nil
	}

	latest, err := s.chatRepo.GetLatestMessage(ctx, msg.ConversationGroupID)
	if err != nil {
		return err
	}

	patch := map[string]interface{}{
		"last_message_id":   nil,
		"last_message_time": nil,
	}
	if latest != nil {
		patch["last_message_id"] = latest.ID
		patch["last_message_time"] = latest.CreatedAt
	}
	for _, row := range rows {
		if err := s.chatRepo.PatchConversationRow(ctx, msg.ConversationGroupID, row.UserID, patch); err != nil {
			return err
		}
	}
	return nil
}

// DeleteConversation deletes every message of the group, any attached
// blobs, and both participant rows, then notifies the other participant.
// Every step tolerates re-running after a partial failure.
func (s *ChatService) DeleteConversation(ctx context.Context, groupID string, requesterID uint) error {
	row, err := s.chatRepo.GetConversationRow(ctx, groupID, requesterID)
	if err != nil {
		return err
	}
	if row == nil {
		return models.NewUnauthorizedError("You are not a participant in this conversation")
	}
	otherUserID := row.OtherUserID

	imageIDs, err := s.chatRepo.ListMessageImageIDs(ctx, groupID)
	if err != nil {
		return err
	}
	for _, id := range imageIDs {
		s.deleteImageBlob(ctx, id)
	}

	if err := s.chatRepo.DeleteMessagesByGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.chatRepo.DeleteConversationRows(ctx, groupID); err != nil {
		return err
	}

	return s.notifier.Notify(ctx, otherUserID, requesterID, models.NotificationConversationDeleted, nil)
}

// GetConversations returns one page of the user's conversations, most
// recently active first.
func (s *ChatService) GetConversations(ctx context.Context, userID uint, limit int, cursorStr string) (*ConversationPage, error) {
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	rows, next, err := s.chatRepo.GetUserConversations(ctx, userID, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &ConversationPage{Page: rows, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// GetMessages returns one page of the conversation's messages, newest
// first, after verifying the caller is a participant.
func (s *ChatService) GetMessages(ctx context.Context, groupID string, userID uint, limit int, cursorStr string) (*MessagePage, error) {
	row, err := s.chatRepo.GetConversationRow(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, models.NewUnauthorizedError("You are not a participant in this conversation")
	}

	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	msgs, next, err := s.chatRepo.GetMessages(ctx, groupID, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &MessagePage{Page: msgs, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// deleteImageBlob removes the blob behind an image id. Best-effort: a blob
// left behind is storage waste, not corruption, and the cascade can re-run.
func (s *ChatService) deleteImageBlob(ctx context.Context, imageID uint) {
	img, err := s.userRepo.GetImageByID(ctx, imageID)
	if err != nil {
		return
	}
	if err := s.blobs.Delete(ctx, img.StorageID); err != nil {
		slog.WarnContext(ctx, "failed to delete message image blob",
			"image_id", imageID, "err", err)
		return
	}
	_ = s.userRepo.DeleteImage(ctx, imageID)
}
