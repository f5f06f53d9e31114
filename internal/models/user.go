// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a registered Quill user.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"unique;not null" json:"username"`
	Email       string    `gorm:"unique;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarID    *uint     `json:"avatar_id,omitempty"`
	IsAdmin     bool      `gorm:"default:false" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RefreshToken is a persisted session record. Account deletion must remove
// every token belonging to the user.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is blob metadata. The blob bytes themselves live behind the
// storage.BlobStore interface; cascades delete both.
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	StorageID string    `gorm:"uniqueIndex;not null" json:"storage_id"`
	CreatedAt time.Time `json:"created_at"`
}
