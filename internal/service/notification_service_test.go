package service

import (
	"encoding/json"
	"testing"

	"quill/internal/cache"
	"quill/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifySelfIsNoOp(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")

	require.NoError(t, s.notifications.Notify(ctx, alice.ID, alice.ID, models.NotificationPostReaction, nil))

	var count int64
	s.db.Model(&models.Notification{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestNotifyStoresParams(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationPostReaction, map[string]interface{}{
		"post_id": 42,
		"emoji":   "🔥",
	}))

	var n models.Notification
	require.NoError(t, s.db.Where("recipient_id = ?", bob.ID).First(&n).Error)
	assert.False(t, n.IsRead)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(n.Params, &params))
	assert.EqualValues(t, 42, params["post_id"])
	assert.Equal(t, "🔥", params["emoji"])
}

func TestNotificationListPagination(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationPostCommented, nil))
	}

	page, err := s.notifications.List(ctx, bob.ID, 3, "")
	require.NoError(t, err)
	assert.Len(t, page.Page, 3)
	assert.False(t, page.IsDone)

	page, err = s.notifications.List(ctx, bob.ID, 3, page.ContinueCursor)
	require.NoError(t, err)
	assert.Len(t, page.Page, 2)
	assert.True(t, page.IsDone)
}

func TestUnreadCountAndMarkAllRead(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	for i := 0; i < 3; i++ {
		require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationPostCommented, nil))
	}

	n, err := s.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, s.notifications.MarkAllRead(ctx, bob.ID))
	n, err = s.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestUnreadCountWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationPostCommented, nil))

	// First read populates the cache from the database.
	n, err := s.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// A new notification bumps the cached value in place.
	require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationPostReaction, nil))
	n, err = s.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// MarkAllRead invalidates; the next read recounts from the database.
	require.NoError(t, s.notifications.MarkAllRead(ctx, bob.ID))
	n, err = s.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestDeleteAllNotifications(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	require.NoError(t, s.notifications.Notify(ctx, bob.ID, alice.ID, models.NotificationPostCommented, nil))

	require.NoError(t, s.notifications.DeleteAll(ctx, bob.ID))

	var count int64
	s.db.Model(&models.Notification{}).Where("recipient_id = ?", bob.ID).Count(&count)
	assert.EqualValues(t, 0, count)
}
