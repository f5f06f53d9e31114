package models

import (
	"encoding/json"
	"time"
)

// NotificationType is the closed set of user-visible event kinds.
type NotificationType string

const (
	NotificationFriendRequestSent     NotificationType = "friend_request_sent"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotificationFriendRequestRejected NotificationType = "friend_request_rejected"
	NotificationFriendRemoved         NotificationType = "friend_removed"
	NotificationConversationDeleted   NotificationType = "conversation_deleted"
	NotificationUserBlocked           NotificationType = "user_blocked"
	NotificationPostReaction          NotificationType = "post_reaction"
	NotificationPostCommented         NotificationType = "post_commented"
	NotificationCommentReplied        NotificationType = "comment_replied"
	NotificationLetterScheduled       NotificationType = "letter_scheduled"
)

// Notification is a recipient-facing event record created synchronously
// inside the mutation that caused it. Params carries structured event data;
// rendering to display text happens at the presentation boundary, never here.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	SenderID    uint             `gorm:"not null" json:"sender_id"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Params      json.RawMessage  `gorm:"type:json" json:"params,omitempty"`
	IsRead      bool             `gorm:"default:false;index:idx_notifications_recipient_read" json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
