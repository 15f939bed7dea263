package database

import (
	"fmt"
	"time"

	"relatim-chat/config"
	"relatim-chat/model"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the store selected by DATABASE_DRIVER and migrates the schema.
func Open(log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver := config.Config("DATABASE_DRIVER"); driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			config.Config("POSTGRES_HOST"),
			config.Config("POSTGRES_PORT"),
			config.Config("POSTGRES_USER"),
			config.Config("POSTGRES_PASSWORD"),
			config.Config("POSTGRES_DB"),
			config.Config("POSTGRES_SSLMODE"),
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(config.Config("SQLITE_PATH"))
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, Options())
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", config.Config("DATABASE_DRIVER"), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if max := config.Int("POSTGRES_MAX_CONNS"); max > 0 {
		sqlDB.SetMaxOpenConns(max)
		sqlDB.SetMaxIdleConns(max / 4)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.WithField("driver", config.Config("DATABASE_DRIVER")).Info("Connection opened to database")

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	log.Info("Database migrated")

	return db, nil
}

// Options is the gorm configuration shared by production and tests.
// Timestamps are always UTC so that ordering comparisons agree across drivers.
func Options() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Contact{},
		&model.Chat{},
		&model.ChatParticipant{},
		&model.Message{},
	)
}
