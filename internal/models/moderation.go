package models

import (
	"time"
)

// UserBlock is a directional block row. Blocking is one-directional but
// visibility checks consult both directions. There is no unblock operation;
// the row is terminal until an account cascade removes it.
type UserBlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_user_blocks_pair" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_user_blocks_pair;index" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`

	Blocked User `gorm:"foreignKey:BlockedID" json:"blocked,omitempty"`
}

// ReportStatus is the lifecycle state of a moderation report.
type ReportStatus string

const (
	// ReportStatusOpen is a report awaiting admin review.
	ReportStatusOpen ReportStatus = "open"
	// ReportStatusResolved is a report an admin has acted on or dismissed.
	ReportStatusResolved ReportStatus = "resolved"
)

// UserReport is a moderation report against a user. At most one open report
// per (reporter, reported) pair.
type UserReport struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ReporterID     uint         `gorm:"not null;index" json:"reporter_id"`
	ReportedUserID uint         `gorm:"not null;index" json:"reported_user_id"`
	Reason         string       `gorm:"type:text;not null" json:"reason"`
	AttachmentID   *uint        `json:"attachment_id,omitempty"`
	Status         ReportStatus `gorm:"type:varchar(16);default:'open';index" json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PostReport is a moderation report against a post. At most one open report
// per (reporter, post) pair.
type PostReport struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	ReporterID   uint         `gorm:"not null;index" json:"reporter_id"`
	PostID       uint         `gorm:"not null;index" json:"post_id"`
	Reason       string       `gorm:"type:text;not null" json:"reason"`
	AttachmentID *uint        `json:"attachment_id,omitempty"`
	Status       ReportStatus `gorm:"type:varchar(16);default:'open';index" json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
