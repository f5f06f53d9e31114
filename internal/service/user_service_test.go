package service

import (
	"strings"
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")

	updated, err := s.users.UpdateProfile(ctx, UpdateProfileInput{
		UserID:      alice.ID,
		DisplayName: "Alice A.",
		Bio:         "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", updated.DisplayName)
	assert.Equal(t, "hello there", updated.Bio)
	assert.Equal(t, "alice", updated.Username)
}

func TestUpdateProfileUsername(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	createTestUser(t, s.db, "bob")

	_, err := s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: "bob"})
	assert.Equal(t, 409, models.StatusCode(err))

	_, err = s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: "_bad"})
	assert.Equal(t, 400, models.StatusCode(err))

	updated, err := s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: "alice2"})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)

	// Re-submitting the current username is not a conflict.
	_, err = s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Username: "alice2"})
	require.NoError(t, err)
}

func TestUpdateProfileAvatar(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	img := &models.Image{OwnerID: bob.ID, StorageID: "blob-1"}
	require.NoError(t, s.userRepo.CreateImage(ctx, img))

	// Only the image owner may use it as an avatar.
	_, err := s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, AvatarID: &img.ID})
	assert.Equal(t, 403, models.StatusCode(err))

	updated, err := s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: bob.ID, AvatarID: &img.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.AvatarID)
	assert.Equal(t, img.ID, *updated.AvatarID)
}

func TestUpdateProfileLimits(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")

	_, err := s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, DisplayName: strings.Repeat("x", 51)})
	assert.ErrorContains(t, err, "Display name too long")

	_, err = s.users.UpdateProfile(ctx, UpdateProfileInput{UserID: alice.ID, Bio: strings.Repeat("x", 501)})
	assert.ErrorContains(t, err, "Bio too long")
}

func TestSearchExcludesBlocked(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	createTestUser(t, s.db, "bobby")
	blocked := createTestUser(t, s.db, "bobcat")

	_, err := s.users.Search(ctx, alice.ID, "   ", 10, 0)
	assert.Equal(t, 400, models.StatusCode(err))

	users, err := s.users.Search(ctx, alice.ID, "bob", 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	// A block in either direction hides the user from results.
	require.NoError(t, s.moderation.BlockUser(ctx, blocked.ID, alice.ID))
	users, err = s.users.Search(ctx, alice.ID, "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bobby", users[0].Username)
}

func TestSetAdmin(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")

	updated, err := s.users.SetAdmin(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)

	_, err = s.users.SetAdmin(ctx, 9999, true)
	assert.Equal(t, 404, models.StatusCode(err))
}
