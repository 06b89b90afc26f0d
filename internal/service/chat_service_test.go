package service

import (
	"context"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPrivateChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", model.Student)
	bob := f.createUser(t, "bob", model.Student)

	_, err := f.chat.GetOrCreatePrivateChat(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, util.ErrSelfConversation)
	_, err = f.chat.GetOrCreatePrivateChat(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	conv, err := f.chat.GetOrCreatePrivateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationPrivate, conv.Type)
	assert.Len(t, conv.Members, 2)

	again, err := f.chat.GetOrCreatePrivateChat(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	related, err := f.chat.RelatedUserIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, related)
}

func TestSendMessageAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", model.Student)
	bob := f.createUser(t, "bob", model.Student)
	eve := f.createUser(t, "eve", model.Student)

	conv, err := f.chat.GetOrCreatePrivateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.chat.SendMessage(ctx, alice.ID, conv.ID, "   ", "")
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	_, err = f.chat.SendMessage(ctx, eve.ID, conv.ID, "hi", "")
	assert.ErrorIs(t, err, util.ErrNotMember)

	var sent []*model.Message
	for _, content := range []string{"第一条", "第二条", "第三条"} {
		f.clock.Advance(time.Minute)
		out, err := f.chat.SendMessage(ctx, alice.ID, conv.ID, content, "c-"+content)
		require.NoError(t, err)
		assert.False(t, out.Duplicate)
		assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, out.Recipients)
		sent = append(sent, out.Message)
	}

	// 客户端重发
	dup, err := f.chat.SendMessage(ctx, alice.ID, conv.ID, "第二条", "c-第二条")
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, sent[1].ID, dup.Message.ID)

	history, err := f.chat.GetHistory(ctx, bob.ID, conv.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "第一条", history[0].Content)
	assert.Equal(t, "第三条", history[2].Content)

	page, err := f.chat.GetHistory(ctx, bob.ID, conv.ID, sent[2].CreatedAt, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, sent[1].ID, page[0].ID)

	_, err = f.chat.GetHistory(ctx, eve.ID, conv.ID, time.Time{}, 10)
	assert.ErrorIs(t, err, util.ErrNotMember)
}

func TestUnreadCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", model.Student)
	bob := f.createUser(t, "bob", model.Student)

	conv, err := f.chat.GetOrCreatePrivateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		f.clock.Advance(time.Minute)
		_, err := f.chat.SendMessage(ctx, alice.ID, conv.ID, "ping", "")
		require.NoError(t, err)
	}

	summaries, err := f.chat.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(2), summaries[0].Unread)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "ping", summaries[0].LastMessage.Content)

	// 自己发的消息不计未读
	summaries, err = f.chat.ListConversations(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, summaries[0].Unread)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.chat.MarkAsRead(ctx, bob.ID, conv.ID))
	summaries, err = f.chat.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, summaries[0].Unread)

	f.clock.Advance(time.Minute)
	_, err = f.chat.SendMessage(ctx, alice.ID, conv.ID, "还在吗", "")
	require.NoError(t, err)
	summaries, err = f.chat.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summaries[0].Unread)

	assert.ErrorIs(t, f.chat.MarkAsRead(ctx, 9999, conv.ID), util.ErrNotMember)
}

func TestOpenCourseChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	member := f.createUser(t, "member", model.Student)
	stranger := f.createUser(t, "stranger", model.Student)

	_, err := f.course.Enroll(ctx, member.ID, s.course.ID)
	require.NoError(t, err)

	conv, err := f.chat.OpenCourseChat(ctx, member.ID, s.course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationCourse, conv.Type)
	assert.Equal(t, s.course.Title, conv.Name)
	assert.Len(t, conv.Members, 2)

	_, err = f.chat.OpenCourseChat(ctx, stranger.ID, s.course.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	// 建群时写入一条系统消息
	history, err := f.chat.GetHistory(ctx, s.teacher.UserID, conv.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, MessageSystem, history[0].Type)
	assert.Nil(t, history[0].SenderID)
}

func TestSystemMessageFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	require.NoError(t, f.db.Migrator().DropTable(&model.Message{}))
	f.chat.systemMessage(repository.NewChatRepository(f.db), "conv-1", "讨论组已创建")

	entries := logs.FilterMessage("系统消息写入失败").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "conv-1", entries[0].ContextMap()["conversation"])
}
