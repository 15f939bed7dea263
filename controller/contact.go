package controller

import (
	"relatim-chat/event"
	"relatim-chat/middleware"

	"github.com/gofiber/fiber/v2"
)

type ContactAddInput struct {
	// id, username or email
	ContactID string `mapstructure:"contactId"`
}

type contactEvent struct {
	UserID    uint `json:"userId"`
	ContactID uint `json:"contactId"`
}

func (h *Controller) ContactList(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	contacts, err := h.Contacts.List(ctx, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, contacts)
}

func (h *Controller) ContactAdd(c *fiber.Ctx) error {
	input := ContactAddInput{}
	if err := decodeBody(c, &input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Contact ID or username/email is required")
	}

	ctx, cancel := h.context(c)
	defer cancel()

	userID := middleware.UserID(c)
	contact, err := h.Contacts.Add(ctx, userID, input.ContactID)
	if err != nil {
		return h.fail(c, err)
	}

	h.publish(c, event.ActionContactAdded, contactEvent{UserID: userID, ContactID: contact.ID})

	return success(c, fiber.StatusCreated, contact)
}

func (h *Controller) ContactRemove(c *fiber.Ctx) error {
	contactID, err := paramID(c, "contactId")
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.context(c)
	defer cancel()

	userID := middleware.UserID(c)
	if err := h.Contacts.Remove(ctx, userID, contactID); err != nil {
		return h.fail(c, err)
	}

	h.publish(c, event.ActionContactRemoved, contactEvent{UserID: userID, ContactID: contactID})

	return success(c, fiber.StatusOK, nil)
}

func (h *Controller) ContactSearch(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	users, err := h.Contacts.Search(ctx, middleware.UserID(c), c.Query("query"))
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, users)
}
