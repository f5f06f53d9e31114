package models

import (
	"fmt"
	"time"
)

// ConversationGroupID derives the shared group identifier for a pair of
// participants. It is a pure function of the sorted pair, so both parties
// always resolve to the same id without any stored state.
func ConversationGroupID(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// Conversation is one participant's view of a direct-message thread. Each
// logical conversation is exactly two rows sharing a ConversationGroupID,
// one per participant; the unread flag is independent per row.
type Conversation struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"not null;uniqueIndex:idx_conversations_user_group" json:"user_id"`
	OtherUserID         uint       `gorm:"not null" json:"other_user_id"`
	ConversationGroupID string     `gorm:"not null;index;uniqueIndex:idx_conversations_user_group" json:"conversation_group_id"`
	LastMessageID       *uint      `json:"last_message_id,omitempty"`
	LastMessageTime     *time.Time `json:"last_message_time,omitempty"`
	HasUnreadMessages   bool       `gorm:"default:false" json:"has_unread_messages"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	OtherUser User `gorm:"foreignKey:OtherUserID" json:"other_user,omitempty"`
}

// MessageType discriminates the message payload.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image message referencing an uploaded blob.
	MessageTypeImage MessageType = "image"
)

// Message is a direct message within a conversation group. Messages are
// immutable once sent; the only mutation is deletion by the sender.
type Message struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	ConversationGroupID string      `gorm:"not null;index:idx_messages_group_created" json:"conversation_group_id"`
	SenderID            uint        `gorm:"not null;index" json:"sender_id"`
	Type                MessageType `gorm:"type:varchar(10);default:'text'" json:"type"`
	Content             string      `gorm:"type:text" json:"content,omitempty"`
	ImageID             *uint       `json:"image_id,omitempty"`
	ReplyToID           *uint       `json:"reply_to_id,omitempty"`
	CreatedAt           time.Time   `gorm:"index:idx_messages_group_created" json:"created_at"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
