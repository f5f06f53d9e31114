// Package repository provides data access layer implementations for the application.
package repository

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quill/internal/models"

	"gorm.io/gorm"
)

// Cursor is a keyset pagination position: the creation time and id of the
// last row of the previous page. Cursors are opaque to clients and
// forward-only.
type Cursor struct {
	Time time.Time
	ID   uint
}

// Encode serializes the cursor into an opaque string.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%d", c.Time.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor string. An empty string means "start
// from the beginning" and returns a nil cursor.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, models.NewValidationError("Invalid pagination cursor")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, models.NewValidationError("Invalid pagination cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, models.NewValidationError("Invalid pagination cursor")
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, models.NewValidationError("Invalid pagination cursor")
	}
	return &Cursor{Time: time.Unix(0, nanos), ID: uint(id)}, nil
}

// applyCursor restricts a descending (created_at, id) keyset query to rows
// strictly before the cursor position. The column is qualified by the caller
// when joins are involved.
func applyCursor(db *gorm.DB, column string, cur *Cursor) *gorm.DB {
	if cur == nil {
		return db
	}
	return db.Where(
		fmt.Sprintf("(%s < ?) OR (%s = ? AND id < ?)", column, column),
		cur.Time, cur.Time, cur.ID,
	)
}
