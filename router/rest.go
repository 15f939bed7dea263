package router

import (
	"relatim-chat/controller"
	"relatim-chat/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func Rest(app *fiber.App, h *controller.Controller, enforcer *casbin.SyncedEnforcer, log *logrus.Logger) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", logger.New())

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", h.AuthSignup)
	auth.Post("/signin", h.AuthSignin)
	auth.Post("/token/renew", h.AuthTokenRenew)
	auth.Post("/2fa/secret", middleware.JWT(), middleware.OTP(), h.AuthOtpSecret)
	auth.Post("/2fa/verify", middleware.JWT(), middleware.OTP(), h.AuthOtpVerify)
	auth.Post("/2fa/validate", middleware.JWT(), h.AuthOtpValidate)
	auth.Post("/2fa/disable", middleware.JWT(), middleware.OTP(), h.AuthOtpDisable)

	// User
	user := api.Group("/user", middleware.JWT(), middleware.OTP())
	user.Get("/profile", h.UserProfile)

	// Chats
	chats := api.Group("/chats", middleware.JWT(), middleware.OTP())
	chats.Get("/", h.ChatList)
	chats.Post("/", h.ChatCreate)
	chats.Get("/:chatId", h.ChatGet)

	// Messages
	messages := api.Group("/messages", middleware.JWT(), middleware.OTP())
	messages.Post("/", h.MessageSend)
	messages.Get("/:chatId", h.MessageList)
	messages.Delete("/:messageId", h.MessageDelete)

	// Contacts
	contacts := api.Group("/contacts", middleware.JWT(), middleware.OTP())
	contacts.Get("/", h.ContactList)
	contacts.Post("/", h.ContactAdd)
	contacts.Get("/search", h.ContactSearch)
	contacts.Delete("/:contactId", h.ContactRemove)

	// Admin
	admin := api.Group("/admin", middleware.JWT(), middleware.OTP(), middleware.RBAC(enforcer, log))
	admin.Get("/presence", h.AdminPresence)
	admin.Post("/broadcast", h.AdminBroadcast)
}
