package realtime

import (
	"time"

	"relatim-chat/service"
)

// Inbound
const (
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// Outbound
const (
	EventNewMessage        = "new_message"
	EventMessageSent       = "message_sent"
	EventMessageError      = "message_error"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventUserStatusChanged = "user_status_changed"
	EventChatCreated       = "chat_created"
	EventMessageDeleted    = "message_deleted"
	EventSystemNotice      = "system_notice"
)

type SendMessageRequest struct {
	ChatID      uint   `mapstructure:"chatId"`
	Content     string `mapstructure:"content"`
	MessageType string `mapstructure:"messageType"`
}

type TypingRequest struct {
	ChatID uint `mapstructure:"chatId"`
}

type NewMessage struct {
	ChatID  uint                 `json:"chatId"`
	Message *service.MessageView `json:"message"`
}

type MessageSent struct {
	MessageID uint                 `json:"messageId"`
	ChatID    uint                 `json:"chatId"`
	Message   *service.MessageView `json:"message"`
}

type MessageError struct {
	ChatID uint   `json:"chatId,omitempty"`
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type Typing struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	ChatID   uint   `json:"chatId"`
}

type StatusChanged struct {
	UserID   uint       `json:"userId"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type ChatCreated struct {
	ChatID uint                 `json:"chatId"`
	Chat   *service.ChatSummary `json:"chat,omitempty"`
}

type MessageDeleted struct {
	ChatID    uint `json:"chatId"`
	MessageID uint `json:"messageId"`
}

type SystemNotice struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

type PresenceSnapshot struct {
	Users       []uint `json:"users"`
	Connections int    `json:"connections"`
}
