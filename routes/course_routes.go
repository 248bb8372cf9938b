package routes

import (
	"github.com/Mustafaygtbs/CertificateManagement/middleware"
	"github.com/gofiber/fiber/v2"
)

func CourseRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	courses := api.Group("/courses", middleware.Protected(h.Tokens), middleware.AdminRequired())
	courses.Get("", h.Courses.List)
	courses.Post("", h.Courses.Create)
	courses.Get("/:id", h.Courses.Get)
	courses.Put("/:id", h.Courses.Update)
	courses.Delete("/:id", h.Courses.Delete)
	courses.Post("/:id/template", h.Courses.UploadTemplate)
	courses.Post("/:id/complete", h.Courses.Complete)
}
