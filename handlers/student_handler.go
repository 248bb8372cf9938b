package handlers

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/Mustafaygtbs/CertificateManagement/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type StudentRequest struct {
	FirstName          string `json:"first_name" validate:"required,max=100"`
	LastName           string `json:"last_name" validate:"max=100"`
	Email              string `json:"email" validate:"required,email,max=100"`
	PhoneNumber        string `json:"phone_number" validate:"max=30"`
	HasCompletedCourse bool   `json:"has_completed_course"`
	CourseID           string `json:"course_id" validate:"required,uuid"`
}

func (r StudentRequest) input() services.StudentInput {
	return services.StudentInput{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Email:              r.Email,
		PhoneNumber:        r.PhoneNumber,
		HasCompletedCourse: r.HasCompletedCourse,
		CourseID:           uuid.MustParse(r.CourseID),
	}
}

type StudentHandler struct {
	students *services.StudentService
	log      *slog.Logger
}

func NewStudentHandler(students *services.StudentService, log *slog.Logger) *StudentHandler {
	return &StudentHandler{students: students, log: log}
}

func (h *StudentHandler) ByCourse(c *fiber.Ctx) error {
	courseID, err := uuidParam(c, "courseId")
	if err != nil {
		return err
	}
	students, err := h.students.GetByCourse(c.UserContext(), courseID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(students)
}

func (h *StudentHandler) Get(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	student, err := h.students.GetByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(student)
}

func (h *StudentHandler) Create(c *fiber.Ctx) error {
	var req StudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	student, err := h.students.Create(c.UserContext(), req.input())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(student)
}

func (h *StudentHandler) Update(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req StudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	student, err := h.students.Update(c.UserContext(), id, req.input())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(student)
}

func (h *StudentHandler) Delete(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.students.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *StudentHandler) Import(c *fiber.Ctx) error {
	courseID, err := uuidParam(c, "courseId")
	if err != nil {
		return err
	}
	data, err := formFile(c, maxWorkbookBytes)
	if err != nil {
		return err
	}
	res, err := h.students.ImportFromExcel(c.UserContext(), courseID, bytes.NewReader(data))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(res)
}

func (h *StudentHandler) Export(c *fiber.Ctx) error {
	courseID, err := uuidParam(c, "courseId")
	if err != nil {
		return err
	}
	data, name, err := h.students.ExportToExcel(c.UserContext(), courseID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, utils.ContentTypeXLSX)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(data)
}

func (h *StudentHandler) MarkCompleted(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	student, err := h.students.MarkCompleted(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(student)
}

func (h *StudentHandler) SendCertificate(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.students.SendCertificateEmail(c.UserContext(), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Certificate email sent"})
}
