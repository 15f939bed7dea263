package middleware

import (
	"strings"

	"relatim-chat/config"
	"relatim-chat/utils"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenKey  = "user"
	claimsKey = "claims"
)

func JWT() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: "HS512",
			Key:    []byte(config.Config("JWT_ACCESS_KEY")),
		},
		ContextKey: tokenKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			token := c.Locals(tokenKey).(*jwt.Token)
			claims, err := utils.MetadataFromClaims(token.Claims.(jwt.MapClaims))
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).
					JSON(fiber.Map{
						"status":  "error",
						"message": "Invalid or expired JWT",
						"data":    nil,
					})
			}
			c.Locals(claimsKey, claims)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
				return c.Status(fiber.StatusUnauthorized).
					JSON(fiber.Map{
						"status":  "error",
						"message": "Missing or malformed JWT",
						"data":    nil,
					})
			}
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{
					"status":  "error",
					"message": "Invalid or expired JWT",
					"data":    nil,
				})
		},
	})
}

// Claims returns the token metadata stored by JWT.
func Claims(c *fiber.Ctx) *utils.TokenMetadata {
	claims, _ := c.Locals(claimsKey).(*utils.TokenMetadata)
	return claims
}

// UserID is the id of the authenticated caller, or 0.
func UserID(c *fiber.Ctx) uint {
	if claims := Claims(c); claims != nil {
		return claims.UserID
	}
	return 0
}
