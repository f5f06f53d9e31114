package service

import (
	"testing"
	"time"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleLetterValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)
	future := time.Now().Add(24 * time.Hour)

	_, err := s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "  ", future)
	assert.Equal(t, 400, models.StatusCode(err))

	_, err = s.letters.ScheduleLetter(ctx, alice.ID, alice.ID, "dear me", future)
	assert.Equal(t, 400, models.StatusCode(err))

	_, err = s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "too late", time.Now().Add(-time.Minute))
	assert.ErrorContains(t, err, "future")

	_, err = s.letters.ScheduleLetter(ctx, alice.ID, 9999, "dear nobody", future)
	assert.Equal(t, 404, models.StatusCode(err))

	// Letters go to friends only.
	_, err = s.letters.ScheduleLetter(ctx, alice.ID, carol.ID, "dear stranger", future)
	assert.Equal(t, 403, models.StatusCode(err))

	letter, err := s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "dear bob", future)
	require.NoError(t, err)
	assert.Nil(t, letter.DeliveredAt)
}

func TestScheduleLetterBlocked(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	require.NoError(t, s.moderation.BlockUser(ctx, bob.ID, alice.ID))

	_, err := s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "dear bob", time.Now().Add(time.Hour))
	assert.Equal(t, 403, models.StatusCode(err))
}

func TestDeliverDue(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)

	due, err := s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "soon", time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "much later", time.Now().Add(48*time.Hour))
	require.NoError(t, err)

	now := time.Now().Add(2 * time.Minute)
	n, err := s.letters.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got models.Letter
	require.NoError(t, s.db.First(&got, due.ID).Error)
	assert.NotNil(t, got.DeliveredAt)

	// A second run over the same window delivers nothing extra.
	n, err = s.letters.DeliverDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Delivery notifies the receiver once.
	var count int64
	s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", bob.ID, models.NotificationLetterScheduled).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestReceivedLettersHideUndelivered(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)

	_, err := s.letters.ScheduleLetter(ctx, alice.ID, bob.ID, "in transit", time.Now().Add(time.Hour))
	require.NoError(t, err)

	// The sender sees the scheduled letter; the receiver does not yet.
	sent, err := s.letters.GetSentLetters(ctx, alice.ID, 10, "")
	require.NoError(t, err)
	assert.Len(t, sent.Page, 1)

	received, err := s.letters.GetReceivedLetters(ctx, bob.ID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, received.Page)
	assert.True(t, received.IsDone)

	_, err = s.letters.DeliverDue(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	received, err = s.letters.GetReceivedLetters(ctx, bob.ID, 10, "")
	require.NoError(t, err)
	assert.Len(t, received.Page, 1)
}
