package models

import (
	"time"
)

// Letter is a message scheduled for future delivery. The delivery loop flips
// due letters to delivered and fans out a notification to the receiver.
type Letter struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SenderID    uint       `gorm:"not null;index" json:"sender_id"`
	ReceiverID  uint       `gorm:"not null;index" json:"receiver_id"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	DeliverAt   time.Time  `gorm:"not null;index" json:"deliver_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
