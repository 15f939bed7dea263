package controller

import (
	"context"
	"errors"
	"time"

	"relatim-chat/event"
	"relatim-chat/realtime"
	"relatim-chat/service"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Broadcaster reaches every connected client on every node.
type Broadcaster interface {
	Broadcast(event string, message any)
}

// Controller holds the collaborators of the HTTP handlers.
type Controller struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Chats    *service.ChatDirectory
	Messages *service.MessageLedger
	Contacts *service.ContactService
	Core     *realtime.Core
	Events   event.Publisher
	Notices  Broadcaster
	Log      *logrus.Logger
	Timeout  time.Duration
}

func success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}

func (h *Controller) fail(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return failure(c, fe.Code, fe.Message)
	}

	e := service.AsError(err)

	switch e.Kind {
	case service.KindInvalidArgument:
		return failure(c, fiber.StatusBadRequest, e.Message)
	case service.KindForbidden:
		return failure(c, fiber.StatusForbidden, e.Message)
	case service.KindNotFound:
		return failure(c, fiber.StatusNotFound, e.Message)
	case service.KindUnauthenticated:
		return failure(c, fiber.StatusUnauthorized, e.Message)
	case service.KindConflict:
		var data interface{}
		if e.ChatID != 0 {
			data = fiber.Map{"chatId": e.ChatID}
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": e.Message,
			"data":    data,
		})
	}

	h.Log.WithError(err).WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error("Request failed")
	return failure(c, fiber.StatusInternalServerError, "Internal server error")
}

func (h *Controller) publish(c *fiber.Ctx, action string, payload interface{}) {
	if err := h.Events.Publish(c.UserContext(), action, payload); err != nil {
		h.Log.WithError(err).WithField("action", action).Warn("Failed to publish event")
	}
}

func (h *Controller) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.Timeout)
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return uint(id), nil
}
