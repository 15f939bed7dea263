package controller

import (
	"relatim-chat/middleware"

	"github.com/gofiber/fiber/v2"
)

type MessageSendInput struct {
	ChatID      uint   `mapstructure:"chatId"`
	Content     string `mapstructure:"content"`
	MessageType string `mapstructure:"messageType"`
}

func (h *Controller) MessageList(c *fiber.Ctx) error {
	chatID, err := paramID(c, "chatId")
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.context(c)
	defer cancel()

	page, err := h.Messages.ListMessages(ctx, chatID, middleware.UserID(c), c.QueryInt("page", 1), c.QueryInt("limit", 50))
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, page)
}

// MessageSend stores a message and pushes it to the chat room like a
// realtime send, without the sender acknowledgment.
func (h *Controller) MessageSend(c *fiber.Ctx) error {
	input := MessageSendInput{}
	if err := decodeBody(c, &input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Chat ID and content are required")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	message, err := h.Core.SendAs(ctx, middleware.UserID(c), input.ChatID, input.Content, input.MessageType)
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusCreated, message)
}

func (h *Controller) MessageDelete(c *fiber.Ctx) error {
	messageID, err := paramID(c, "messageId")
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.context(c)
	defer cancel()

	message, err := h.Messages.DeleteMessage(ctx, messageID, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}

	h.Core.MessageDeleted(ctx, message.ChatID, message.ID)

	return success(c, fiber.StatusOK, fiber.Map{
		"id":      message.ID,
		"chat_id": message.ChatID,
	})
}
