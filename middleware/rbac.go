package middleware

import (
	"strconv"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func RBAC(enforcer *casbin.SyncedEnforcer, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := strconv.FormatUint(uint64(UserID(c)), 10)

		// Load policy from Database
		if err := enforcer.LoadPolicy(); err != nil {
			log.WithError(err).Error("Failed to load policy")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Internal server error",
				"data":    nil,
			})
		}

		// Casbin enforces policy
		accepted, err := enforcer.Enforce(subject, c.Path(), c.Method())
		if err != nil {
			log.WithError(err).WithField("user_id", subject).Error("Policy check failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Internal server error",
				"data":    nil,
			})
		}

		if !accepted {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Unauthorized",
				"data":    nil,
			})
		}

		return c.Next()
	}
}
