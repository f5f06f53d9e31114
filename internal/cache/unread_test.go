package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestUnreadCountRoundTrip(t *testing.T) {
	setupMiniredis(t)
	ctx := t.Context()

	_, ok := GetUnreadCount(ctx, 1)
	assert.False(t, ok)

	SetUnreadCount(ctx, 1, 5)
	n, ok := GetUnreadCount(ctx, 1)
	assert.True(t, ok)
	assert.EqualValues(t, 5, n)

	InvalidateUnreadCount(ctx, 1)
	_, ok = GetUnreadCount(ctx, 1)
	assert.False(t, ok)
}

func TestBumpUnreadCountOnlyTouchesExistingKeys(t *testing.T) {
	setupMiniredis(t)
	ctx := t.Context()

	// Bumping a missing key must not invent a count of 1; the next read
	// repopulates from the database instead.
	BumpUnreadCount(ctx, 1)
	_, ok := GetUnreadCount(ctx, 1)
	assert.False(t, ok)

	SetUnreadCount(ctx, 1, 2)
	BumpUnreadCount(ctx, 1)
	n, ok := GetUnreadCount(ctx, 1)
	assert.True(t, ok)
	assert.EqualValues(t, 3, n)
}

func TestNilClientIsNoOp(t *testing.T) {
	SetClient(nil)
	ctx := t.Context()

	// Every operation degrades to a no-op without Redis.
	BumpUnreadCount(ctx, 1)
	SetUnreadCount(ctx, 1, 5)
	InvalidateUnreadCount(ctx, 1)
	_, ok := GetUnreadCount(ctx, 1)
	assert.False(t, ok)
}
