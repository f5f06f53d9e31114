package service

import (
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConversation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)

	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationGroupID(alice.ID, bob.ID), groupID)

	// One row per participant.
	var count int64
	s.db.Model(&models.Conversation{}).Count(&count)
	assert.EqualValues(t, 2, count)

	// Creating again from either side is idempotent.
	again, err := s.chat.CreateConversation(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, groupID, again)
	s.db.Model(&models.Conversation{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestCreateConversationRequiresFriendship(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")

	_, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	assert.Equal(t, 403, models.StatusCode(err))

	_, err = s.chat.CreateConversation(ctx, alice.ID, alice.ID)
	assert.Equal(t, 400, models.StatusCode(err))

	_, err = s.chat.CreateConversation(ctx, alice.ID, 9999)
	assert.Equal(t, 404, models.StatusCode(err))
}

func TestSendMessageUpdatesBothRows(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	msg, err := s.chat.SendMessage(ctx, SendMessageInput{
		GroupID:  groupID,
		SenderID: alice.ID,
		Content:  "hello bob",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, "alice", msg.Sender.Username)

	var aliceRow, bobRow models.Conversation
	require.NoError(t, s.db.Where("conversation_group_id = ? AND user_id = ?", groupID, alice.ID).First(&aliceRow).Error)
	require.NoError(t, s.db.Where("conversation_group_id = ? AND user_id = ?", groupID, bob.ID).First(&bobRow).Error)

	assert.False(t, aliceRow.HasUnreadMessages)
	assert.True(t, bobRow.HasUnreadMessages)
	require.NotNil(t, aliceRow.LastMessageID)
	require.NotNil(t, bobRow.LastMessageID)
	assert.Equal(t, msg.ID, *aliceRow.LastMessageID)
	assert.Equal(t, msg.ID, *bobRow.LastMessageID)
}

func TestSendMessageValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "   "})
	assert.Equal(t, 400, models.StatusCode(err))

	imageID := uint(1)
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "hi", ImageID: &imageID})
	assert.ErrorContains(t, err, "cannot carry an image")

	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Type: models.MessageTypeImage})
	assert.ErrorContains(t, err, "require an image")

	// Non-participants cannot post into the conversation.
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: carol.ID, Content: "let me in"})
	assert.Equal(t, 403, models.StatusCode(err))
}

func TestSendMessageReplyMustShareConversation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)
	s.befriend(t, alice.ID, carol.ID)

	abGroup, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	acGroup, err := s.chat.CreateConversation(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	parent, err := s.chat.SendMessage(ctx, SendMessageInput{GroupID: abGroup, SenderID: alice.ID, Content: "original"})
	require.NoError(t, err)

	reply, err := s.chat.SendMessage(ctx, SendMessageInput{
		GroupID: abGroup, SenderID: bob.ID, Content: "reply", ReplyToID: &parent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *reply.ReplyToID)

	_, err = s.chat.SendMessage(ctx, SendMessageInput{
		GroupID: acGroup, SenderID: alice.ID, Content: "cross-thread", ReplyToID: &parent.ID,
	})
	assert.ErrorContains(t, err, "different conversation")
}

func TestMarkConversationRead(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, s.chat.MarkConversationRead(ctx, groupID, bob.ID))

	var bobRow models.Conversation
	require.NoError(t, s.db.Where("conversation_group_id = ? AND user_id = ?", groupID, bob.ID).First(&bobRow).Error)
	assert.False(t, bobRow.HasUnreadMessages)

	err = s.chat.MarkConversationRead(ctx, groupID, 9999)
	assert.Equal(t, 403, models.StatusCode(err))
}

func TestDeleteMessageRecomputesLastMessage(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	first, err := s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "first"})
	require.NoError(t, err)
	second, err := s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "second"})
	require.NoError(t, err)

	// Only the sender may delete.
	err = s.chat.DeleteMessage(ctx, second.ID, bob.ID)
	assert.Equal(t, 403, models.StatusCode(err))

	require.NoError(t, s.chat.DeleteMessage(ctx, second.ID, alice.ID))

	var rows []models.Conversation
	require.NoError(t, s.db.Where("conversation_group_id = ?", groupID).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.LastMessageID)
		assert.Equal(t, first.ID, *row.LastMessageID)
	}

	// Deleting the only remaining message clears the tracking fields.
	require.NoError(t, s.chat.DeleteMessage(ctx, first.ID, alice.ID))
	require.NoError(t, s.db.Where("conversation_group_id = ?", groupID).Find(&rows).Error)
	for _, row := range rows {
		assert.Nil(t, row.LastMessageID)
		assert.Nil(t, row.LastMessageTime)
	}
}

func TestDeleteConversation(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	carol := createTestUser(t, s.db, "carol")
	s.befriend(t, alice.ID, bob.ID)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "hi"})
	require.NoError(t, err)
	_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: bob.ID, Content: "hey"})
	require.NoError(t, err)

	err = s.chat.DeleteConversation(ctx, groupID, carol.ID)
	assert.Equal(t, 403, models.StatusCode(err))

	require.NoError(t, s.chat.DeleteConversation(ctx, groupID, alice.ID))

	var convCount, msgCount int64
	s.db.Model(&models.Conversation{}).Where("conversation_group_id = ?", groupID).Count(&convCount)
	s.db.Model(&models.Message{}).Where("conversation_group_id = ?", groupID).Count(&msgCount)
	assert.EqualValues(t, 0, convCount)
	assert.EqualValues(t, 0, msgCount)

	// The other participant is told the thread is gone.
	var notifs []models.Notification
	require.NoError(t, s.db.Where("recipient_id = ? AND type = ?",
		bob.ID, models.NotificationConversationDeleted).Find(&notifs).Error)
	assert.Len(t, notifs, 1)
}

func TestGetConversationsAndMessagesPagination(t *testing.T) {
	s := newTestServices(t)
	ctx := t.Context()
	alice := createTestUser(t, s.db, "alice")
	bob := createTestUser(t, s.db, "bob")
	s.befriend(t, alice.ID, bob.ID)
	groupID, err := s.chat.CreateConversation(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = s.chat.SendMessage(ctx, SendMessageInput{GroupID: groupID, SenderID: alice.ID, Content: "message"})
		require.NoError(t, err)
	}

	convs, err := s.chat.GetConversations(ctx, alice.ID, 10, "")
	require.NoError(t, err)
	assert.Len(t, convs.Page, 1)
	assert.True(t, convs.IsDone)

	page, err := s.chat.GetMessages(ctx, groupID, bob.ID, 3, "")
	require.NoError(t, err)
	assert.Len(t, page.Page, 3)
	assert.False(t, page.IsDone)

	page, err = s.chat.GetMessages(ctx, groupID, bob.ID, 3, page.ContinueCursor)
	require.NoError(t, err)
	assert.Len(t, page.Page, 2)
	assert.True(t, page.IsDone)

	_, err = s.chat.GetMessages(ctx, groupID, 9999, 3, "")
	assert.Equal(t, 403, models.StatusCode(err))
}
