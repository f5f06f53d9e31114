// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// Seed populates the database with test data.
func Seed(db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())
	log.Printf("Seeding database with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("created %d users", len(users))

	if err := createFriendships(db, users); err != nil {
		return fmt.Errorf("failed to create friendships: %w", err)
	}

	posts, err := createPosts(db, users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("created %d posts", len(posts))

	if err := createInteractions(db, users, posts); err != nil {
		return fmt.Errorf("failed to create interactions: %w", err)
	}
	if err := createConversations(db, users); err != nil {
		return fmt.Errorf("failed to create conversations: %w", err)
	}
	if err := createLetters(db, users); err != nil {
		return fmt.Errorf("failed to create letters: %w", err)
	}

	log.Println("Seeding complete")
	return nil
}

func clearData(db *gorm.DB) error {
	tables := []interface{}{
		&models.Notification{}, &models.Message{}, &models.Conversation{},
		&models.Reaction{}, &models.Comment{}, &models.Post{}, &models.Collection{},
		&models.Letter{}, &models.UserReport{}, &models.PostReport{},
		&models.UserBlock{}, &models.Friendship{}, &models.FriendRequest{},
		&models.RefreshToken{}, &models.Image{}, &models.User{},
	}
	for _, table := range tables {
		if err := db.Where("1 = 1").Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(db *gorm.DB, n int) ([]models.User, error) {
	if n <= 0 {
		n = 20
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte("SeedPassword12!"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, models.User{
			Username:    fmt.Sprintf("%s%d", gofakeit.Username(), i),
			Email:       fmt.Sprintf("seed%d@%s", i, gofakeit.DomainName()),
			Password:    string(hashed),
			DisplayName: gofakeit.Name(),
			Bio:         gofakeit.Sentence(8),
		})
	}
	if err := db.Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// createFriendships links each user with a handful of others, always writing
// both directional rows.
func createFriendships(db *gorm.DB, users []models.User) error {
	for i := range users {
		for j := i + 1; j < len(users); j++ {
			if rand.Intn(4) != 0 {
				continue
			}
			rows := []models.Friendship{
				{UserID: users[i].ID, FriendID: users[j].ID},
				{UserID: users[j].ID, FriendID: users[i].ID},
			}
			if err := db.Create(&rows).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func createPosts(db *gorm.DB, users []models.User, n int) ([]models.Post, error) {
	if n <= 0 {
		n = 100
	}
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[rand.Intn(len(users))]
		posts = append(posts, models.Post{
			AuthorID:  author.ID,
			Body:      gofakeit.Paragraph(1, 3, 8, "\n"),
			CreatedAt: gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now()),
		})
	}
	if err := db.Create(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// createInteractions adds comments and reactions and keeps the denormalized
// counters consistent with the rows it writes.
func createInteractions(db *gorm.DB, users []models.User, posts []models.Post) error {
	for i := range posts {
		nComments := rand.Intn(5)
		for c := 0; c < nComments; c++ {
			comment := models.Comment{
				PostID:   posts[i].ID,
				AuthorID: users[rand.Intn(len(users))].ID,
				Body:     gofakeit.Sentence(12),
			}
			if err := db.Create(&comment).Error; err != nil {
				return err
			}
		}

		reacted := map[uint]struct{}{}
		nReactions := rand.Intn(8)
		for r := 0; r < nReactions; r++ {
			user := users[rand.Intn(len(users))]
			if _, dup := reacted[user.ID]; dup {
				continue
			}
			reacted[user.ID] = struct{}{}
			reaction := models.Reaction{
				PostID: posts[i].ID,
				UserID: user.ID,
				Emoji:  gofakeit.RandomString([]string{"❤️", "👍", "😂", "😮", "😢"}),
			}
			if err := db.Create(&reaction).Error; err != nil {
				return err
			}
		}

		if err := db.Model(&models.Post{}).Where("id = ?", posts[i].ID).
			Updates(map[string]interface{}{
				"comments_count":  nComments,
				"reactions_count": len(reacted),
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// createConversations opens conversations between some friend pairs and
// fills them with a short message history.
func createConversations(db *gorm.DB, users []models.User) error {
	var friendships []models.Friendship
	if err := db.Find(&friendships).Error; err != nil {
		return err
	}

	seen := map[string]struct{}{}
	for _, f := range friendships {
		groupID := models.ConversationGroupID(f.UserID, f.FriendID)
		if _, done := seen[groupID]; done {
			continue
		}
		seen[groupID] = struct{}{}
		if rand.Intn(3) != 0 {
			continue
		}

		rows := []models.Conversation{
			{UserID: f.UserID, OtherUserID: f.FriendID, ConversationGroupID: groupID},
			{UserID: f.FriendID, OtherUserID: f.UserID, ConversationGroupID: groupID},
		}
		if err := db.Create(&rows).Error; err != nil {
			return err
		}

		var last models.Message
		nMessages := 1 + rand.Intn(10)
		for m := 0; m < nMessages; m++ {
			sender := f.UserID
			if rand.Intn(2) == 0 {
				sender = f.FriendID
			}
			last = models.Message{
				ConversationGroupID: groupID,
				SenderID:            sender,
				Type:                models.MessageTypeText,
				Content:             gofakeit.Sentence(10),
			}
			if err := db.Create(&last).Error; err != nil {
				return err
			}
		}

		if err := db.Model(&models.Conversation{}).
			Where("conversation_group_id = ?", groupID).
			Updates(map[string]interface{}{
				"last_message_id":   last.ID,
				"last_message_time": last.CreatedAt,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func createLetters(db *gorm.DB, users []models.User) error {
	for i := 0; i < len(users)/2; i++ {
		sender := users[rand.Intn(len(users))]
		receiver := users[rand.Intn(len(users))]
		if sender.ID == receiver.ID {
			continue
		}
		letter := models.Letter{
			SenderID:   sender.ID,
			ReceiverID: receiver.ID,
			Body:       gofakeit.Paragraph(1, 2, 10, "\n"),
			DeliverAt:  gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 1, 0)),
		}
		if err := db.Create(&letter).Error; err != nil {
			return err
		}
	}
	return nil
}
