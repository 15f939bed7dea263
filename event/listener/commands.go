package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"relatim-chat/event"
	"relatim-chat/service"

	"github.com/sirupsen/logrus"
)

// Dispatcher is the part of the delivery core driven by queued commands.
type Dispatcher interface {
	SendAs(ctx context.Context, senderID, chatID uint, content, messageType string) (*service.MessageView, error)
	JoinChatMembers(ctx context.Context, chatID uint) (int, error)
}

type SendMessageCommand struct {
	SenderID    uint   `json:"senderId"`
	ChatID      uint   `json:"chatId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type JoinChatCommand struct {
	ChatID uint `json:"chatId"`
}

// Commands handles deliveries from the commands queue.
type Commands struct {
	core    Dispatcher
	log     *logrus.Logger
	timeout time.Duration
}

func NewCommands(core Dispatcher, log *logrus.Logger, timeout time.Duration) *Commands {
	return &Commands{core: core, log: log, timeout: timeout}
}

func (c *Commands) Handle(ctx context.Context, env event.Envelope) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	switch env.Action {
	case event.ActionSendMessage:
		cmd := new(SendMessageCommand)
		if err := json.Unmarshal(env.Data, cmd); err != nil {
			return fmt.Errorf("decode %s: %w", env.Action, err)
		}
		if cmd.SenderID == 0 {
			return fmt.Errorf("%s: senderId is required", env.Action)
		}
		message, err := c.core.SendAs(ctx, cmd.SenderID, cmd.ChatID, cmd.Content, cmd.MessageType)
		if err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"message_id": message.ID,
			"chat_id":    cmd.ChatID,
		}).Debug("Queued message delivered")

	case event.ActionJoinChat:
		cmd := new(JoinChatCommand)
		if err := json.Unmarshal(env.Data, cmd); err != nil {
			return fmt.Errorf("decode %s: %w", env.Action, err)
		}
		joined, err := c.core.JoinChatMembers(ctx, cmd.ChatID)
		if err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"chat_id":  cmd.ChatID,
			"sessions": joined,
		}).Debug("Chat joined")

	default:
		c.log.WithField("action", env.Action).Warn("Unknown command")
	}

	return nil
}
