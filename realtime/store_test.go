package realtime

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"relatim-chat/database"
	"relatim-chat/model"
	"relatim-chat/service"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type storeFixture struct {
	core      *Core
	db        *gorm.DB
	directory *service.ChatDirectory
	users     *service.UserService
	auth      *fakeAuth
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "realtime.db")), database.Options())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	directory := service.NewChatDirectory(db, log)
	users := service.NewUserService(db, log)
	auth := &fakeAuth{users: map[string]*model.User{}}

	core := New(Options{
		Auth:      auth,
		Ledger:    service.NewMessageLedger(db, log),
		Directory: directory,
		Status:    users,
		Log:       log,
	})
	return &storeFixture{core: core, db: db, directory: directory, users: users, auth: auth}
}

func (f *storeFixture) user(t *testing.T, username string) *model.User {
	t.Helper()

	user := &model.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "-",
		Status:   model.StatusOffline,
		Role:     "user",
	}
	require.NoError(t, f.db.Create(user).Error)
	f.auth.users["token-"+username] = user
	return user
}

func (f *storeFixture) connect(t *testing.T, id, username string) (*fakeConn, *Session) {
	t.Helper()
	conn := &fakeConn{id: id}
	s, err := f.core.Authenticate(context.Background(), conn, "token-"+username)
	require.NoError(t, err)
	require.NoError(t, f.core.Activate(context.Background(), s))
	return conn, s
}

func TestStoreBackedSendMessage(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.user(t, "carol")

	chat, err := f.directory.CreateDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	connA, sessionA := f.connect(t, "a1", "alice")
	connB, _ := f.connect(t, "b1", "bob")
	connC, sessionC := f.connect(t, "c1", "carol")

	assert.True(t, f.core.Hub().InRoom(ChatRoom(chat.ID), sessionA))
	assert.False(t, f.core.Hub().InRoom(ChatRoom(chat.ID), sessionC))

	stored, err := f.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, stored.Status)

	f.core.SendMessage(ctx, sessionA, SendMessageRequest{ChatID: chat.ID, Content: "hello bob"})

	for _, conn := range []*fakeConn{connA, connB} {
		got := conn.named(EventNewMessage)
		require.Len(t, got, 1, conn.id)
		msg := got[0].(NewMessage)
		assert.Equal(t, chat.ID, msg.ChatID)
		assert.Equal(t, "hello bob", msg.Message.Content)
		assert.Equal(t, alice.ID, msg.Message.SenderID)
	}
	sent := connA.named(EventMessageSent)
	require.Len(t, sent, 1)
	assert.NotZero(t, sent[0].(MessageSent).MessageID)
	assert.Empty(t, connB.named(EventMessageSent))
	assert.Empty(t, connC.named(EventNewMessage))

	var count int64
	require.NoError(t, f.db.Model(&model.Message{}).Where("chat_id = ?", chat.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// carol is not a participant of the chat
	f.core.SendMessage(ctx, sessionC, SendMessageRequest{ChatID: chat.ID, Content: "let me in"})

	errs := connC.named(EventMessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Access denied", errs[0].(MessageError).Reason)
	assert.Equal(t, chat.ID, errs[0].(MessageError).ChatID)
	assert.Len(t, connA.named(EventNewMessage), 1)
	assert.Len(t, connB.named(EventNewMessage), 1)
	assert.Empty(t, connA.named(EventMessageError))
	assert.Empty(t, connB.named(EventMessageError))

	require.NoError(t, f.db.Model(&model.Message{}).Where("chat_id = ?", chat.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	f.core.Disconnect(ctx, sessionA)
	stored, err = f.users.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, stored.Status)
	assert.NotNil(t, stored.LastSeen)
}
