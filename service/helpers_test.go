package service

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"relatim-chat/database"
	"relatim-chat/model"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), database.Options())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func createUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()

	user := &model.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Password: "-",
		Status:   model.StatusOffline,
		Role:     "user",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type services struct {
	db        *gorm.DB
	directory *ChatDirectory
	ledger    *MessageLedger
	clock     *stepClock
}

func newServices(t *testing.T) *services {
	t.Helper()

	db := openTestDB(t)
	log := quietLogger()
	clock := newStepClock()

	directory := NewChatDirectory(db, log)
	directory.now = clock.now
	ledger := NewMessageLedger(db, log)
	ledger.now = clock.now

	return &services{db: db, directory: directory, ledger: ledger, clock: clock}
}
