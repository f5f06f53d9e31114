package models

import (
	"time"
)

// Post is a feed post. CommentsCount and ReactionsCount are denormalized and
// maintained by atomic increments/decrements alongside every comment and
// reaction mutation; there is no reconciliation job.
type Post struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AuthorID       uint      `gorm:"not null;index" json:"author_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	ImageID        *uint     `json:"image_id,omitempty"`
	CollectionID   *uint     `gorm:"index" json:"collection_id,omitempty"`
	CommentsCount  int       `gorm:"not null;default:0" json:"comments_count"`
	ReactionsCount int       `gorm:"not null;default:0" json:"reactions_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// Comment is a comment on a post, optionally replying to another comment.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	ReplyToID *uint     `json:"reply_to_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// Reaction is a user's reaction on a post. One reaction per (post, user).
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_reactions_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reactions_post_user;index" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(16);not null" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Collection groups a user's posts. PostsCount is denormalized like the post
// counters.
type Collection struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OwnerID    uint      `gorm:"not null;index" json:"owner_id"`
	Name       string    `gorm:"not null" json:"name"`
	PostsCount int       `gorm:"not null;default:0" json:"posts_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
