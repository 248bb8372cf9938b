package routes

import (
	"net/http"

	"github.com/Mustafaygtbs/CertificateManagement/handlers"
	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/Mustafaygtbs/CertificateManagement/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type Handlers struct {
	Tokens       *services.TokenIssuer
	Auth         *handlers.AuthHandler
	Courses      *handlers.CourseHandler
	Students     *handlers.StudentHandler
	Certificates *handlers.CertificateHandler
	Hub          *websocket.Hub
	Health       fiber.Handler
	Metrics      http.Handler
}

func Setup(app *fiber.App, h Handlers) {
	if h.Health != nil {
		app.Get("/health", h.Health)
	}
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics))
	}

	AuthRoutes(app, h)
	CourseRoutes(app, h)
	StudentRoutes(app, h)
	PublicRoutes(app, h)
	if h.Hub != nil {
		ProgressRoutes(app, h)
	}
}
