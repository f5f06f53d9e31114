package service

import (
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPost(t *testing.T, s *testServices, authorID uint, body string) *models.Post {
	t.Helper()
	post, err := s.posts.CreatePost(t.Context(), CreatePostInput{AuthorID: authorID, Body: body})
	if err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	return post
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")

	_, err := s.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Body: "  "})
	assert.ErrorContains(t, err, "body or an image")

	post, err := s.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Body: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, post.AuthorID)
	assert.Zero(t, post.CommentsCount)
	assert.Zero(t, post.ReactionsCount)
}

func TestCreatePostInCollection(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	col, err := s.posts.CreateCollection(ctx, alice.ID, "travel")
	require.NoError(t, err)

	// Posting into someone else's collection is forbidden.
	_, err = s.posts.CreatePost(ctx, CreatePostInput{AuthorID: bob.ID, Body: "mine", CollectionID: &col.ID})
	assert.Equal(t, 403, models.StatusCode(err))

	_, err = s.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Body: "rome", CollectionID: &col.ID})
	require.NoError(t, err)

	var got models.Collection
	require.NoError(t, s.db.First(&got, col.ID).Error)
	assert.Equal(t, 1, got.PostsCount)
}

func TestPostVisibility(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)

	post := createTestPost(t, s, alice.ID, "for friends")

	// Author and friends see the post.
	_, err := s.posts.GetPost(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	_, err = s.posts.GetPost(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	// Strangers get not found, not forbidden.
	_, err = s.posts.GetPost(ctx, post.ID, carol.ID)
	assert.Equal(t, 404, models.StatusCode(err))

	// A block hides the post even from a friend.
	require.NoError(t, s.moderation.BlockUser(ctx, alice.ID, bob.ID))
	_, err = s.posts.GetPost(ctx, post.ID, bob.ID)
	assert.Equal(t, 404, models.StatusCode(err))
}

func TestGetFeed(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)
	s.befriend(t, alice.ID, carol.ID)

	createTestPost(t, s, alice.ID, "mine")
	createTestPost(t, s, bob.ID, "from bob")
	createTestPost(t, s, carol.ID, "from carol")

	page, err := s.posts.GetFeed(ctx, alice.ID, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Page, 3)
	assert.True(t, page.IsDone)

	// Blocking carol removes her posts from the feed even though the
	// friendship rows are torn down too.
	require.NoError(t, s.moderation.BlockUser(ctx, alice.ID, carol.ID))
	page, err = s.posts.GetFeed(ctx, alice.ID, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Page, 2)
	for _, p := range page.Page {
		assert.NotEqual(t, carol.ID, p.AuthorID)
	}
}

func TestGetFeedPagination(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	for i := 0; i < 7; i++ {
		createTestPost(t, s, alice.ID, "post")
	}

	seen := 0
	cursor := ""
	for {
		page, err := s.posts.GetFeed(ctx, alice.ID, 3, cursor)
		require.NoError(t, err)
		seen += len(page.Page)
		if page.IsDone {
			break
		}
		cursor = page.ContinueCursor
	}
	assert.Equal(t, 7, seen)
}

func TestGetUserPostsHiddenFromStrangers(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	createTestPost(t, s, alice.ID, "private-ish")

	// A stranger gets an empty page, not an error.
	page, err := s.posts.GetUserPosts(ctx, alice.ID, bob.ID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Page)
	assert.True(t, page.IsDone)

	s.befriend(t, alice.ID, bob.ID)
	page, err = s.posts.GetUserPosts(ctx, alice.ID, bob.ID, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Page, 1)
}

func TestAddAndDeleteCommentCounters(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	post := createTestPost(t, s, alice.ID, "discuss")

	c1, err := s.posts.AddComment(ctx, post.ID, bob.ID, "first", nil)
	require.NoError(t, err)
	c2, err := s.posts.AddComment(ctx, post.ID, alice.ID, "reply", &c1.ID)
	require.NoError(t, err)

	var got models.Post
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Equal(t, 2, got.CommentsCount)

	// Post author was notified of bob's comment, bob of alice's reply.
	var count int64
	s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", alice.ID, models.NotificationPostCommented).Count(&count)
	assert.EqualValues(t, 1, count)
	s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", bob.ID, models.NotificationCommentReplied).Count(&count)
	assert.EqualValues(t, 1, count)

	// The post author may delete anyone's comment.
	require.NoError(t, s.posts.DeleteComment(ctx, c1.ID, alice.ID))
	require.NoError(t, s.posts.DeleteComment(ctx, c2.ID, alice.ID))
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Equal(t, 0, got.CommentsCount)

	// A bystander may not.
	carol := createTestUser(t, s.db, "carol")
	c3, err := s.posts.AddComment(ctx, post.ID, alice.ID, "again", nil)
	require.NoError(t, err)
	err = s.posts.DeleteComment(ctx, c3.ID, carol.ID)
	assert.Equal(t, 403, models.StatusCode(err))
}

func TestCommentReplyMustSharePost(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	p1 := createTestPost(t, s, alice.ID, "one")
	p2 := createTestPost(t, s, alice.ID, "two")

	parent, err := s.posts.AddComment(ctx, p1.ID, alice.ID, "root", nil)
	require.NoError(t, err)

	_, err = s.posts.AddComment(ctx, p2.ID, alice.ID, "stray", &parent.ID)
	assert.ErrorContains(t, err, "different post")
}

func TestReactCountsOnce(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	post := createTestPost(t, s, alice.ID, "react to me")

	require.NoError(t, s.posts.React(ctx, post.ID, bob.ID, "🔥"))
	// Repeating the same reaction does not double-count.
	require.NoError(t, s.posts.React(ctx, post.ID, bob.ID, "🔥"))

	var got models.Post
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Equal(t, 1, got.ReactionsCount)

	var count int64
	s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", alice.ID, models.NotificationPostReaction).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestUnreact(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	post := createTestPost(t, s, alice.ID, "react to me")

	require.NoError(t, s.posts.React(ctx, post.ID, bob.ID, "🔥"))
	require.NoError(t, s.posts.Unreact(ctx, post.ID, bob.ID))

	var got models.Post
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Equal(t, 0, got.ReactionsCount)

	// Removing a reaction that is not there is a no-op, and the counter
	// never goes negative.
	require.NoError(t, s.posts.Unreact(ctx, post.ID, bob.ID))
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Equal(t, 0, got.ReactionsCount)
}

func TestCounterDecrementClampsAtZero(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	post := createTestPost(t, s, alice.ID, "clamped")

	// Over-decrementing a drifted counter clamps at zero instead of going
	// negative.
	require.NoError(t, s.postRepo.DecrementComments(ctx, post.ID, 5))
	require.NoError(t, s.postRepo.DecrementReactions(ctx, post.ID, 5))

	var got models.Post
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Equal(t, 0, got.CommentsCount)
	assert.Equal(t, 0, got.ReactionsCount)
}

func TestDeleteCollectionDetachesPosts(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	col, err := s.posts.CreateCollection(ctx, alice.ID, "keep")
	require.NoError(t, err)
	post, err := s.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Body: "inside", CollectionID: &col.ID})
	require.NoError(t, err)

	err = s.posts.DeleteCollection(ctx, col.ID, bob.ID)
	assert.Equal(t, 403, models.StatusCode(err))

	require.NoError(t, s.posts.DeleteCollection(ctx, col.ID, alice.ID))

	// The post survives, detached.
	var got models.Post
	require.NoError(t, s.db.First(&got, post.ID).Error)
	assert.Nil(t, got.CollectionID)

	cols, err := s.posts.GetCollections(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, cols)
}
