package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"relatim-chat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendMessage(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	carol := createUser(t, s.db, "carol")

	chat, err := s.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	message, err := s.ledger.AppendMessage(ctx, chat.ID, alice.ID, "hi", "")
	require.NoError(t, err)
	assert.NotZero(t, message.ID)
	assert.Equal(t, chat.ID, message.ChatID)
	assert.Equal(t, "hi", message.Content)
	assert.Equal(t, model.MessageTypeText, message.MessageType)
	assert.Equal(t, alice.ID, message.SenderID)
	assert.Equal(t, "alice", message.SenderUsername)

	_, err = s.ledger.AppendMessage(ctx, chat.ID, carol.ID, "let me in", "")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = s.ledger.AppendMessage(ctx, chat.ID, alice.ID, "   ", "")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = s.ledger.AppendMessage(ctx, 0, alice.ID, "hi", "")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestAppendMessageAdvancesUpdatedAt(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	// a stopped clock must not stop updated_at
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.directory.now = func() time.Time { return frozen }
	s.ledger.now = func() time.Time { return frozen }

	chat, err := s.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	last := chat.UpdatedAt
	for i := 0; i < 3; i++ {
		_, err := s.ledger.AppendMessage(ctx, chat.ID, alice.ID, fmt.Sprintf("m%d", i), "")
		require.NoError(t, err)

		var stored model.Chat
		require.NoError(t, s.db.First(&stored, chat.ID).Error)
		assert.True(t, stored.UpdatedAt.After(last), "updated_at %v not after %v", stored.UpdatedAt, last)
		last = stored.UpdatedAt
	}
}

func TestListMessagesPagination(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	chat, err := s.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := s.ledger.AppendMessage(ctx, chat.ID, alice.ID, fmt.Sprintf("m%d", i), "")
		require.NoError(t, err)
	}

	contents := func(page *MessagePage) []string {
		out := make([]string, 0, len(page.Messages))
		for _, m := range page.Messages {
			out = append(out, m.Content)
		}
		return out
	}

	page, err := s.ledger.ListMessages(ctx, chat.ID, bob.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5"}, contents(page))
	assert.True(t, page.Pagination.HasMore)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 2, page.Pagination.Limit)

	page, err = s.ledger.ListMessages(ctx, chat.ID, bob.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, contents(page))

	page, err = s.ledger.ListMessages(ctx, chat.ID, bob.ID, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, contents(page))
	assert.False(t, page.Pagination.HasMore)

	page, err = s.ledger.ListMessages(ctx, chat.ID, bob.ID, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, contents(page))
	// a full page reports more even when nothing follows
	assert.True(t, page.Pagination.HasMore)
	for i := 1; i < len(page.Messages); i++ {
		assert.False(t, page.Messages[i].CreatedAt.Before(page.Messages[i-1].CreatedAt))
	}
	assert.Equal(t, "alice", page.Messages[0].SenderUsername)
}

func TestListMessagesDefaults(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	chat, err := s.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	page, err := s.ledger.ListMessages(ctx, chat.ID, alice.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, DefaultPageSize, page.Pagination.Limit)
	assert.Empty(t, page.Messages)
	assert.False(t, page.Pagination.HasMore)

	page, err = s.ledger.ListMessages(ctx, chat.ID, alice.ID, 1, 10000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Pagination.Limit)
}

func TestListMessagesForbidden(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	carol := createUser(t, s.db, "carol")

	chat, err := s.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = s.ledger.ListMessages(ctx, chat.ID, carol.ID, 1, 10)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestDeleteMessage(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")

	chat, err := s.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	message, err := s.ledger.AppendMessage(ctx, chat.ID, alice.ID, "oops", "")
	require.NoError(t, err)

	// someone else's message looks missing
	_, err = s.ledger.DeleteMessage(ctx, message.ID, bob.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	deleted, err := s.ledger.DeleteMessage(ctx, message.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, deleted.ChatID)

	_, err = s.ledger.DeleteMessage(ctx, message.ID, alice.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	var count int64
	require.NoError(t, s.db.Model(&model.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}
