package service

import (
	"context"
	"errors"
	"time"

	"relatim-chat/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserService owns user lookups and presence.
type UserService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewUserService(db *gorm.DB, log *logrus.Logger) *UserService {
	return &UserService{db: db, log: log}
}

func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	user := new(model.User)
	err := s.db.WithContext(ctx).First(user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, internal("failed to load user", err)
	}
	return user, nil
}

func (s *UserService) SetOnline(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("status", model.StatusOnline).Error
	if err != nil {
		return internal("failed to update status", err)
	}
	return nil
}

func (s *UserService) SetOffline(ctx context.Context, id uint, lastSeen time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    model.StatusOffline,
			"last_seen": lastSeen,
		}).Error
	if err != nil {
		return internal("failed to update status", err)
	}
	return nil
}
