package controller

import (
	"relatim-chat/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/mitchellh/mapstructure"
)

type ChatCreateInput struct {
	ContactID uint `mapstructure:"contactId"`
}

func (h *Controller) ChatList(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	chats, err := h.Chats.ListChats(ctx, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, chats)
}

// ChatCreate opens a direct chat and joins both users' live sessions to it.
func (h *Controller) ChatCreate(c *fiber.Ctx) error {
	input := ChatCreateInput{}
	if err := decodeBody(c, &input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Contact ID is required")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	userID := middleware.UserID(c)
	chat, err := h.Chats.CreateDirectChat(ctx, userID, input.ContactID)
	if err != nil {
		return h.fail(c, err)
	}

	h.Core.ChatCreated(ctx, chat, userID, input.ContactID)

	return success(c, fiber.StatusCreated, chat)
}

func (h *Controller) ChatGet(c *fiber.Ctx) error {
	chatID, err := paramID(c, "chatId")
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.context(c)
	defer cancel()

	chat, err := h.Chats.GetChat(ctx, chatID, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, chat)
}

// decodeBody accepts ids sent either as JSON numbers or strings.
func decodeBody(c *fiber.Ctx, out interface{}) error {
	body := map[string]interface{}{}
	if err := c.BodyParser(&body); err != nil {
		return err
	}
	return mapstructure.WeakDecode(body, out)
}
