package routes

import (
	"github.com/Mustafaygtbs/CertificateManagement/websocket"
	"github.com/gofiber/fiber/v2"
)

// ProgressRoutes mounts the completion progress feed. Clients authenticate
// with their first message instead of a header.
func ProgressRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	api.Use("/ws", websocket.UpgradeRequired)
	api.Get("/ws/completions", h.Hub.Handler())
}
