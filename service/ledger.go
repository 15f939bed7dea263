package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"relatim-chat/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MessageLedger appends to and pages through a chat's message history.
type MessageLedger struct {
	db  *gorm.DB
	log *logrus.Logger
	now Clock
}

func NewMessageLedger(db *gorm.DB, log *logrus.Logger) *MessageLedger {
	return &MessageLedger{db: db, log: log, now: systemClock}
}

func (s *MessageLedger) views(db *gorm.DB) *gorm.DB {
	return db.Table("messages AS m").
		Select("m.id, m.chat_id, m.content, m.message_type, m.file_url, m.created_at, m.updated_at, " +
			"u.id AS sender_id, u.username AS sender_username, u.avatar_url AS sender_avatar").
		Joins("JOIN users u ON u.id = m.sender_id")
}

// ListMessages returns one page of history in chronological order. Page 1
// holds the newest messages. Reading advances the caller's watermark to now,
// which marks the whole chat as read.
func (s *MessageLedger) ListMessages(ctx context.Context, chatID, userID uint, page, limit int) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	db := s.db.WithContext(ctx)

	ok, err := isParticipant(db, chatID, userID)
	if err != nil {
		return nil, internal("failed to check participant", err)
	}
	if !ok {
		return nil, forbidden("Access denied")
	}

	messages := make([]MessageView, 0, limit)
	err = s.views(db).
		Where("m.chat_id = ?", chatID).
		Order("m.created_at DESC").
		Order("m.id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&messages).Error
	if err != nil {
		return nil, internal("failed to load messages", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	err = db.Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("last_read_at", s.now()).Error
	if err != nil {
		return nil, internal("failed to update read watermark", err)
	}

	return &MessagePage{
		Messages: messages,
		Pagination: Pagination{
			Page:    page,
			Limit:   limit,
			HasMore: len(messages) == limit,
		},
	}, nil
}

// AppendMessage persists a message and bumps the chat's updated_at.
func (s *MessageLedger) AppendMessage(ctx context.Context, chatID, senderID uint, content, messageType string) (*MessageView, error) {
	if chatID == 0 {
		return nil, invalidArgument("Chat ID is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, invalidArgument("Message content is required")
	}
	if messageType == "" {
		messageType = model.MessageTypeText
	}

	db := s.db.WithContext(ctx)

	ok, err := isParticipant(db, chatID, senderID)
	if err != nil {
		return nil, internal("failed to check participant", err)
	}
	if !ok {
		return nil, forbidden("Access denied")
	}

	now := s.now()
	message := model.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		if err := tx.Select("id", "updated_at").First(&chat, chatID).Error; err != nil {
			return err
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}

		// updated_at is the chat list ordering key and must move forward on every message.
		updatedAt := now
		if !updatedAt.After(chat.UpdatedAt) {
			updatedAt = chat.UpdatedAt.Add(time.Microsecond)
		}
		return tx.Model(&model.Chat{}).Where("id = ?", chatID).Update("updated_at", updatedAt).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Chat not found")
	}
	if err != nil {
		return nil, internal("failed to store message", err)
	}

	view, err := s.view(db, message.ID)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"message_id": message.ID,
		"chat_id":    chatID,
		"sender_id":  senderID,
	}).Debug("Message stored")

	return view, nil
}

// DeleteMessage hard-deletes a message owned by callerID. A message that
// does not exist and one sent by someone else are both NotFound.
func (s *MessageLedger) DeleteMessage(ctx context.Context, messageID, callerID uint) (*model.Message, error) {
	db := s.db.WithContext(ctx)

	var message model.Message
	res := db.Where("id = ? AND sender_id = ?", messageID, callerID).Limit(1).Find(&message)
	if res.Error != nil {
		return nil, internal("failed to load message", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("Message not found or access denied")
	}

	if err := db.Delete(&model.Message{}, message.ID).Error; err != nil {
		return nil, internal("failed to delete message", err)
	}

	return &message, nil
}

func (s *MessageLedger) view(db *gorm.DB, messageID uint) (*MessageView, error) {
	var views []MessageView
	if err := s.views(db).Where("m.id = ?", messageID).Limit(1).Scan(&views).Error; err != nil {
		return nil, internal("failed to load message", err)
	}
	if len(views) == 0 {
		return nil, notFound("Message not found")
	}
	return &views[0], nil
}
