package controller

import (
	"relatim-chat/middleware"

	"github.com/gofiber/fiber/v2"
)

func (h *Controller) UserProfile(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	user, err := h.Users.Get(ctx, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"id":         user.ID,
		"created":    user.CreatedAt.Unix(),
		"username":   user.Username,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
		"status":     user.Status,
		"last_seen":  user.LastSeen,
		"role":       user.Role,
		"otp":        user.OtpEnabled,
	})
}
