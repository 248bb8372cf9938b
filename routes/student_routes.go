package routes

import (
	"github.com/Mustafaygtbs/CertificateManagement/middleware"
	"github.com/gofiber/fiber/v2"
)

func StudentRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	students := api.Group("/students", middleware.Protected(h.Tokens), middleware.AdminRequired())
	students.Post("", h.Students.Create)
	students.Get("/course/:courseId", h.Students.ByCourse)
	students.Post("/course/:courseId/import", h.Students.Import)
	students.Get("/course/:courseId/export", h.Students.Export)
	students.Get("/:id", h.Students.Get)
	students.Put("/:id", h.Students.Update)
	students.Delete("/:id", h.Students.Delete)
	students.Post("/:id/complete", h.Students.MarkCompleted)
	students.Post("/:id/send-certificate", h.Students.SendCertificate)
}
