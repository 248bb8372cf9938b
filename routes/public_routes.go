package routes

import (
	"github.com/gofiber/fiber/v2"
)

// PublicRoutes need no session. /certificate/:token is the link mailed to
// students.
func PublicRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	certificates := api.Group("/certificates")
	certificates.Get("/verify/:token", h.Certificates.Verify)
	certificates.Get("/:token", h.Certificates.Download)

	app.Get("/certificate/:token", h.Certificates.Download)
}
