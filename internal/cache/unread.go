package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const unreadTTL = 10 * time.Minute

func unreadKey(userID uint) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

// GetUnreadCount returns the cached unread notification count for the user.
// The second return is false on a cache miss or when Redis is unavailable;
// the database count is always authoritative.
func GetUnreadCount(ctx context.Context, userID uint) (int64, bool) {
	if client == nil {
		return 0, false
	}
	val, err := client.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetUnreadCount stores the unread count after a database recount.
func SetUnreadCount(ctx context.Context, userID uint, count int64) {
	if client == nil {
		return
	}
	client.Set(ctx, unreadKey(userID), count, unreadTTL)
}

// BumpUnreadCount increments the cached count if one is present. A missing
// key stays missing; the next read repopulates from the database.
func BumpUnreadCount(ctx context.Context, userID uint) {
	if client == nil {
		return
	}
	// INCR on a missing key would invent a count of 1, so only touch
	// existing keys.
	err := client.Eval(ctx,
		`if redis.call("EXISTS", KEYS[1]) == 1 then return redis.call("INCR", KEYS[1]) end return 0`,
		[]string{unreadKey(userID)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return
	}
}

// InvalidateUnreadCount drops the cached count after bulk mutations.
func InvalidateUnreadCount(ctx context.Context, userID uint) {
	if client == nil {
		return
	}
	client.Del(ctx, unreadKey(userID))
}
