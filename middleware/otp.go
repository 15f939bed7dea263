package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// OTP rejects token pairs that still wait for the second factor.
func OTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)

		if claims == nil || claims.Otp {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{
					"status":  "error",
					"message": "2FA required",
					"data":    nil,
				})
		}

		return c.Next()
	}
}
