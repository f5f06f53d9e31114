package service

import (
	"fmt"
	"testing"

	"quill/internal/database"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens an in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "hashed",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

// testServices wires the full service stack against one database, with no
// Redis and a no-op blob store.
type testServices struct {
	db           *gorm.DB
	userRepo     repository.UserRepository
	friendRepo   repository.FriendRepository
	chatRepo     repository.ChatRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	reactionRepo repository.ReactionRepository
	notifRepo    repository.NotificationRepository
	blockRepo    repository.BlockRepository
	reportRepo   repository.ReportRepository
	letterRepo   repository.LetterRepository

	notifications *NotificationService
	friends       *FriendService
	chat          *ChatService
	posts         *PostService
	moderation    *ModerationService
	letters       *LetterService
	users         *UserService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db := newTestDB(t)

	s := &testServices{
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		friendRepo:   repository.NewFriendRepository(db),
		chatRepo:     repository.NewChatRepository(db),
		postRepo:     repository.NewPostRepository(db),
		commentRepo:  repository.NewCommentRepository(db),
		reactionRepo: repository.NewReactionRepository(db),
		notifRepo:    repository.NewNotificationRepository(db),
		blockRepo:    repository.NewBlockRepository(db),
		reportRepo:   repository.NewReportRepository(db),
		letterRepo:   repository.NewLetterRepository(db),
	}

	s.notifications = NewNotificationService(s.notifRepo, nil)
	s.friends = NewFriendService(s.friendRepo, s.userRepo, s.blockRepo, s.notifications)
	s.chat = NewChatService(s.chatRepo, s.friendRepo, s.userRepo, storage.NoopStore{}, s.notifications)
	s.posts = NewPostService(s.postRepo, s.commentRepo, s.reactionRepo, s.friendRepo, s.blockRepo, s.notifications)
	s.moderation = NewModerationService(
		s.userRepo, s.friendRepo, s.chatRepo, s.postRepo, s.commentRepo,
		s.reactionRepo, s.notifRepo, s.blockRepo, s.reportRepo, s.letterRepo,
		storage.NoopStore{}, s.notifications)
	s.letters = NewLetterService(s.letterRepo, s.userRepo, s.friendRepo, s.blockRepo, s.notifications)
	s.users = NewUserService(s.userRepo, s.friendRepo, s.blockRepo)
	return s
}

// befriend creates an accepted friendship between two users directly.
func (s *testServices) befriend(t *testing.T, a, b uint) {
	t.Helper()
	if err := s.friendRepo.CreateFriendshipPair(t.Context(), a, b); err != nil {
		t.Fatalf("failed to create friendship: %v", err)
	}
}
