package controller

import (
	"strings"
	"time"

	"relatim-chat/realtime"

	"github.com/gofiber/fiber/v2"
)

type AdminBroadcastInput struct {
	Message string `json:"message"`
}

func (h *Controller) AdminPresence(c *fiber.Ctx) error {
	return success(c, fiber.StatusOK, h.Core.Presence())
}

// AdminBroadcast sends a system notice to every connected client.
func (h *Controller) AdminBroadcast(c *fiber.Ctx) error {
	input := AdminBroadcastInput{}
	if err := c.BodyParser(&input); err != nil || strings.TrimSpace(input.Message) == "" {
		return failure(c, fiber.StatusBadRequest, "Message is required")
	}

	h.Notices.Broadcast(realtime.EventSystemNotice, realtime.SystemNotice{
		Message: input.Message,
		SentAt:  time.Now().UTC(),
	})

	return success(c, fiber.StatusAccepted, nil)
}
