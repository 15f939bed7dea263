package service

import (
	"time"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type ParticipantInfo struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatar_url"`
	Status    string    `json:"status"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ChatSummary is one entry of a user's chat list. OtherParticipant is the
// single authoritative counterpart of a direct chat.
type ChatSummary struct {
	ID               uint              `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	OtherParticipant *UserSummary      `json:"other_participant"`
	Participants     []ParticipantInfo `json:"participants"`
	LastMessage      *string           `json:"last_message"`
	LastMessageTime  *time.Time        `json:"last_message_time"`
	UnreadCount      int64             `json:"unread_count"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type ChatDetails struct {
	ID               uint              `json:"id"`
	Name             *string           `json:"name"`
	Type             string            `json:"type"`
	OtherParticipant *UserSummary      `json:"other_participant"`
	Participants     []ParticipantInfo `json:"participants"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// MessageView is a message joined with its sender's identity.
type MessageView struct {
	ID             uint      `json:"id"`
	ChatID         uint      `json:"chat_id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	FileURL        *string   `json:"file_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	SenderID       uint      `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	SenderAvatar   *string   `json:"sender_avatar"`
}

type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	Pagination Pagination    `json:"pagination"`
}

type ContactView struct {
	ID             uint       `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	AvatarURL      *string    `json:"avatar_url"`
	Status         string     `json:"status"`
	LastSeen       *time.Time `json:"last_seen"`
	ContactAddedAt *time.Time `json:"contact_added_at,omitempty"`
}

// Clock returns the current time at the store's precision.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func isParticipant(tx *gorm.DB, chatID, userID uint) (bool, error) {
	var count int64
	err := tx.Table("chat_participants").
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}
