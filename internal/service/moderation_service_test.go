package service

import (
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockUserValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	err := s.moderation.BlockUser(ctx, alice.ID, alice.ID)
	assert.Equal(t, 400, models.StatusCode(err))

	err = s.moderation.BlockUser(ctx, alice.ID, 9999)
	assert.Equal(t, 404, models.StatusCode(err))

	require.NoError(t, s.moderation.BlockUser(ctx, alice.ID, bob.ID))
	err = s.moderation.BlockUser(ctx, alice.ID, bob.ID)
	assert.Equal(t, 409, models.StatusCode(err))

	// The same pair in the other direction is a distinct block.
	require.NoError(t, s.moderation.BlockUser(ctx, bob.ID, alice.ID))
}

func TestBlockUserCascade(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)

	alicePost := createTestPost(t, s, alice.ID, "by alice")
	bobPost := createTestPost(t, s, bob.ID, "by bob")

	// Cross activity in both directions.
	_, err := s.posts.AddComment(ctx, alicePost.ID, bob.ID, "bob was here", nil)
	require.NoError(t, err)
	_, err = s.posts.AddComment(ctx, bobPost.ID, alice.ID, "alice was here", nil)
	require.NoError(t, err)
	require.NoError(t, s.posts.React(ctx, alicePost.ID, bob.ID, "👍"))
	require.NoError(t, s.posts.React(ctx, bobPost.ID, alice.ID, "👍"))

	require.NoError(t, s.moderation.BlockUser(ctx, alice.ID, bob.ID))

	// Friendship rows are gone in both directions.
	var count int64
	s.db.Model(&models.Friendship{}).Count(&count)
	assert.EqualValues(t, 0, count)

	// Cross comments and reactions are gone and the counters corrected.
	s.db.Model(&models.Comment{}).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Reaction{}).Count(&count)
	assert.EqualValues(t, 0, count)

	var got models.Post
	require.NoError(t, s.db.First(&got, alicePost.ID).Error)
	assert.Equal(t, 0, got.CommentsCount)
	assert.Equal(t, 0, got.ReactionsCount)
	got = models.Post{}
	require.NoError(t, s.db.First(&got, bobPost.ID).Error)
	assert.Equal(t, 0, got.CommentsCount)
	assert.Equal(t, 0, got.ReactionsCount)

	// The target is told.
	var notifs []models.Notification
	require.NoError(t, s.db.Where("recipient_id = ? AND type = ?",
		bob.ID, models.NotificationUserBlocked).Find(&notifs).Error)
	assert.Len(t, notifs, 1)
}

func TestBlockUserDeletesPendingRequests(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	_, err := s.friends.SendFriendRequest(ctx, bob.ID, alice.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, s.moderation.BlockUser(ctx, alice.ID, bob.ID))

	var count int64
	s.db.Model(&models.FriendRequest{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestBlockUserLeavesConversationsAlone(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)

	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: bob.ID, Content: "before the block"})
	require.NoError(t, err)

	require.NoError(t, s.moderation.BlockUser(ctx, alice.ID, bob.ID))

	// Existing conversations and their history survive a block.
	var convCount, msgCount int64
	s.db.Model(&models.Conversation{}).Where("conversation_group_id = ?", groupID).Count(&convCount)
	s.db.Model(&models.Message{}).Where("conversation_group_id = ?", groupID).Count(&msgCount)
	assert.EqualValues(t, 2, convCount)
	assert.EqualValues(t, 1, msgCount)
}

func TestReportUser(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	_, err := s.moderation.ReportUser(ctx, alice.ID, bob.ID, "  ", nil)
	assert.Equal(t, 400, models.StatusCode(err))
	_, err = s.moderation.ReportUser(ctx, alice.ID, alice.ID, "suspicious", nil)
	assert.Equal(t, 400, models.StatusCode(err))

	report, err := s.moderation.ReportUser(ctx, alice.ID, bob.ID, "spam", nil)
	require.NoError(t, err)

	// One open report per (reporter, reported) pair.
	_, err = s.moderation.ReportUser(ctx, alice.ID, bob.ID, "spam again", nil)
	assert.Equal(t, 409, models.StatusCode(err))

	// Resolving frees the pair for a new report.
	admin := createTestUser(t, s.db, "admin")
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)
	require.NoError(t, s.moderation.ResolveUserReport(ctx, report.ID, admin.ID))
	_, err = s.moderation.ReportUser(ctx, alice.ID, bob.ID, "spam again", nil)
	require.NoError(t, err)
}

func TestReportPost(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	post := createTestPost(t, s, alice.ID, "offensive")

	_, err := s.moderation.ReportPost(ctx, alice.ID, post.ID, "my own post", nil)
	assert.Equal(t, 400, models.StatusCode(err))

	_, err = s.moderation.ReportPost(ctx, bob.ID, post.ID, "offensive", nil)
	require.NoError(t, err)
	_, err = s.moderation.ReportPost(ctx, bob.ID, post.ID, "still offensive", nil)
	assert.Equal(t, 409, models.StatusCode(err))
}

func TestReportListingRequiresAdmin(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")

	_, _, _, err := s.moderation.ListOpenUserReports(ctx, alice.ID, 10, "")
	assert.Equal(t, 403, models.StatusCode(err))
	_, _, _, err = s.moderation.ListOpenPostReports(ctx, alice.ID, 10, "")
	assert.Equal(t, 403, models.StatusCode(err))
}

func TestDeletePostCascade(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)

	col, err := s.posts.CreateCollection(ctx, alice.ID, "stuff")
	require.NoError(t, err)
	post, err := s.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice.ID, Body: "doomed", CollectionID: &col.ID})
	require.NoError(t, err)
	_, err = s.posts.AddComment(ctx, post.ID, bob.ID, "nice", nil)
	require.NoError(t, err)
	require.NoError(t, s.posts.React(ctx, post.ID, bob.ID, "👍"))
	report, err := s.moderation.ReportPost(ctx, bob.ID, post.ID, "bad", nil)
	require.NoError(t, err)

	// Only the author (or an admin) may delete.
	err = s.moderation.DeletePost(ctx, post.ID, bob.ID)
	assert.Equal(t, 403, models.StatusCode(err))

	require.NoError(t, s.moderation.DeletePost(ctx, post.ID, alice.ID))

	var count int64
	s.db.Model(&models.Post{}).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Comment{}).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Reaction{}).Count(&count)
	assert.EqualValues(t, 0, count)

	var gotCol models.Collection
	require.NoError(t, s.db.First(&gotCol, col.ID).Error)
	assert.Equal(t, 0, gotCol.PostsCount)

	// The open report was resolved, not orphaned.
	var gotReport models.PostReport
	require.NoError(t, s.db.First(&gotReport, report.ID).Error)
	assert.Equal(t, models.ReportStatusResolved, gotReport.Status)
}

func TestDeletePostAndResolveReport(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	admin := createTestUser(t, s.db, "admin")
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)

	post := createTestPost(t, s, alice.ID, "reported")
	report, err := s.moderation.ReportPost(ctx, bob.ID, post.ID, "bad", nil)
	require.NoError(t, err)

	require.NoError(t, s.moderation.DeletePostAndResolveReport(ctx, report.ID, admin.ID))

	var count int64
	s.db.Model(&models.Post{}).Count(&count)
	assert.EqualValues(t, 0, count)
	var gotReport models.PostReport
	require.NoError(t, s.db.First(&gotReport, report.ID).Error)
	assert.Equal(t, models.ReportStatusResolved, gotReport.Status)

	// Re-running against the already-deleted post still succeeds.
	require.NoError(t, s.db.Model(&models.PostReport{}).Where("id = ?", report.ID).Update("status", models.ReportStatusOpen).Error)
	require.NoError(t, s.moderation.DeletePostAndResolveReport(ctx, report.ID, admin.ID))
}

func TestDeleteAccountCascade(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)
	s.befriend(t, alice.ID, carol.ID)

	// Alice's own content.
	alicePost := createTestPost(t, s, alice.ID, "by alice")
	_, err := s.posts.CreateCollection(ctx, alice.ID, "mine")
	require.NoError(t, err)

	// Alice's footprint on bob's content.
	bobPost := createTestPost(t, s, bob.ID, "by bob")
	_, err = s.posts.AddComment(ctx, bobPost.ID, alice.ID, "alice says hi", nil)
	require.NoError(t, err)
	require.NoError(t, s.posts.React(ctx, bobPost.ID, alice.ID, "❤️"))

	// Bob's footprint on alice's content, plus a conversation.
	_, err = s.posts.AddComment(ctx, alicePost.ID, bob.ID, "bob says hi", nil)
	require.NoError(t, err)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: bob.ID, Content: "hi"})
	require.NoError(t, err)

	// A pending request and a report involving alice.
	_, err = s.friends.SendFriendRequest(ctx, bob.ID, carol.ID, "unrelated")
	require.NoError(t, err)
	_, err = s.moderation.ReportUser(ctx, bob.ID, alice.ID, "reported", nil)
	require.NoError(t, err)

	require.NoError(t, s.moderation.DeleteAccount(ctx, alice.ID))

	// The user row and every record referencing alice are gone.
	var count int64
	s.db.Model(&models.User{}).Where("id = ?", alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Post{}).Where("author_id = ?", alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Comment{}).Where("author_id = ?", alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Reaction{}).Where("user_id = ?", alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Friendship{}).Where("user_id = ? OR friend_id = ?", alice.ID, alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Collection{}).Where("owner_id = ?", alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Conversation{}).Where("conversation_group_id = ?", groupID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.Message{}).Where("conversation_group_id = ?", groupID).Count(&count)
	assert.EqualValues(t, 0, count)
	s.db.Model(&models.UserReport{}).Where("reported_user_id = ?", alice.ID).Count(&count)
	assert.EqualValues(t, 0, count)

	// Bob's post lost alice's comment and reaction and its counters reflect
	// only his remaining content.
	var got models.Post
	require.NoError(t, s.db.First(&got, bobPost.ID).Error)
	assert.Equal(t, 0, got.CommentsCount)
	assert.Equal(t, 0, got.ReactionsCount)

	// Unrelated records survive.
	s.db.Model(&models.FriendRequest{}).Where("sender_id = ?", bob.ID).Count(&count)
	assert.EqualValues(t, 1, count)
	s.db.Model(&models.Friendship{}).Where("user_id = ? OR friend_id = ?", bob.ID, bob.ID).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestDeleteAccountMissingUser(t *testing.T) {
	s := newTestServices(t)
	err := s.moderation.DeleteAccount(t.Context(), 9999)
	assert.Equal(t, 404, models.StatusCode(err))
}

func TestDeleteUserAndResolveReport(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	admin := createTestUser(t, s.db, "admin")
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_admin", true).Error)

	report, err := s.moderation.ReportUser(ctx, alice.ID, bob.ID, "bad actor", nil)
	require.NoError(t, err)

	err = s.moderation.DeleteUserAndResolveReport(ctx, report.ID, alice.ID)
	assert.Equal(t, 403, models.StatusCode(err))

	require.NoError(t, s.moderation.DeleteUserAndResolveReport(ctx, report.ID, admin.ID))

	var count int64
	s.db.Model(&models.User{}).Where("id = ?", bob.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	var gotReport models.UserReport
	require.NoError(t, s.db.First(&gotReport, report.ID).Error)
	assert.Equal(t, models.ReportStatusResolved, gotReport.Status)

	// Re-running against the already-deleted account still resolves.
	require.NoError(t, s.db.Model(&models.UserReport{}).Where("id = ?", report.ID).Update("status", models.ReportStatusOpen).Error)
	require.NoError(t, s.moderation.DeleteUserAndResolveReport(ctx, report.ID, admin.ID))
}
