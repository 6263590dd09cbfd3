package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/auth"
	wsh "github.com/ayushgupta1777/f-vite-backend/internal/ws"
)

// NewServer wires the routes. limiter may be nil (no Redis configured).
func NewServer(h *Handlers, tokens *auth.Manager, wsHandler *wsh.Handler, limiter *RateLimiter, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authRoutes := app.Group("/api/auth", limiter.ByIP())
	authRoutes.Post("/signup", h.signup)
	authRoutes.Post("/login", h.login)
	authRoutes.Post("/request-otp", h.requestOTP)
	authRoutes.Post("/verify-otp", h.verifyOTP)
	authRoutes.Get("/verify", JWTAuth(tokens), h.me)

	api := app.Group("/api", JWTAuth(tokens))
	api.Put("/me/profile-picture", h.updateProfilePicture)
	api.Get("/users/:mobile", h.findUser)
	api.Get("/chats", h.listChats)
	api.Get("/messages/:mobile", h.fetchMessages)
	api.Post("/messages", h.sendMessage)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.Serve))

	return app
}
