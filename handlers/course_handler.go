package handlers

import (
	"log/slog"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/gofiber/fiber/v2"
)

type CourseRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	IsCompleted bool      `json:"is_completed"`
}

func (r CourseRequest) input() services.CourseInput {
	return services.CourseInput{
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		IsCompleted: r.IsCompleted,
	}
}

type CourseHandler struct {
	courses *services.CourseService
	log     *slog.Logger
}

func NewCourseHandler(courses *services.CourseService, log *slog.Logger) *CourseHandler {
	return &CourseHandler{courses: courses, log: log}
}

func (h *CourseHandler) List(c *fiber.Ctx) error {
	courses, err := h.courses.GetAll(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(courses)
}

func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	course, err := h.courses.GetByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(course)
}

func (h *CourseHandler) Create(c *fiber.Ctx) error {
	var req CourseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	course, err := h.courses.Create(c.UserContext(), req.input())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(course)
}

func (h *CourseHandler) Update(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req CourseRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	course, err := h.courses.Update(c.UserContext(), id, req.input())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(course)
}

func (h *CourseHandler) Delete(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.courses.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadTemplate accepts an HTML certificate template as multipart field
// "file".
func (h *CourseHandler) UploadTemplate(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	data, err := formFile(c, maxTemplateBytes)
	if err != nil {
		return err
	}
	path, err := h.courses.UploadCertificateTemplate(c.UserContext(), id, data)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"certificate_template_url": path})
}

// Complete marks the course complete and issues certificates. Per-student
// failures are reported in the body with status 200.
func (h *CourseHandler) Complete(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	report, err := h.courses.CompleteCourse(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(report)
}
