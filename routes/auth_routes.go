package routes

import (
	"github.com/Mustafaygtbs/CertificateManagement/middleware"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/register", middleware.Protected(h.Tokens), middleware.AdminRequired(), h.Auth.Register)
	auth.Post("/change-password", middleware.Protected(h.Tokens), h.Auth.ChangePassword)
}
