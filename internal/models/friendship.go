package models

import (
	"time"
)

// FriendRequest is a pending friend request. At most one pending request may
// exist between any pair of users, in either direction; the row is deleted on
// accept or reject.
type FriendRequest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index:idx_friend_requests_pair" json:"sender_id"`
	ReceiverID uint      `gorm:"not null;index:idx_friend_requests_pair;index" json:"receiver_id"`
	Message    string    `gorm:"type:varchar(500);not null" json:"message"`
	CreatedAt  time.Time `json:"created_at"`

	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName specifies the table name for GORM
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Friendship is one directional half of a logical friendship. A friendship
// between A and B is exactly two rows, (A,B) and (B,A), created and deleted
// together. A single surviving row is a corruption.
type Friendship struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_friendships_pair" json:"user_id"`
	FriendID  uint      `gorm:"not null;uniqueIndex:idx_friendships_pair" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`

	Friend User `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}
