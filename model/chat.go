package model

import (
	"fmt"
	"time"
)

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"

	MessageTypeText = "text"
)

type Chat struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Type      string  `gorm:"not null;default:direct" json:"type"`
	Name      *string `json:"name"`
	CreatedBy uint    `gorm:"not null" json:"created_by"`
	// PairKey is set for direct chats only; the unique index makes a second
	// direct chat between the same two users impossible.
	PairKey   *string   `gorm:"uniqueIndex" json:"-"`
	Creator   User      `gorm:"foreignKey:CreatedBy" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

type ChatParticipant struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ChatID     uint       `gorm:"not null;uniqueIndex:idx_chat_participant" json:"chat_id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_chat_participant;index" json:"user_id"`
	Chat       Chat       `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	User       User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	JoinedAt   time.Time  `gorm:"not null" json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at"`
}

// Message rows are append-only; the only mutation is a hard delete by the sender.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChatID      uint      `gorm:"not null;index:idx_messages_chat_created" json:"chat_id"`
	SenderID    uint      `gorm:"not null;index" json:"sender_id"`
	Chat        Chat      `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
	Sender      User      `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
	Content     string    `gorm:"not null" json:"content"`
	MessageType string    `gorm:"not null;default:text" json:"message_type"`
	FileURL     *string   `json:"file_url"`
	CreatedAt   time.Time `gorm:"index:idx_messages_chat_created" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DirectPairKey is the canonical, order-independent key of a user pair.
func DirectPairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
