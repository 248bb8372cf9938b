package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/gofiber/fiber/v2"
)

// CertificateHandler serves the public, unauthenticated certificate routes.
type CertificateHandler struct {
	certificates *services.CertificateService
	log          *slog.Logger
}

func NewCertificateHandler(certificates *services.CertificateService, log *slog.Logger) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, log: log}
}

func (h *CertificateHandler) Download(c *fiber.Ctx) error {
	file, err := h.certificates.GetCertificate(c.UserContext(), c.Params("token"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorBody(fiber.StatusNotFound, "certificate not found"))
		}
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", file.FileName))
	return c.Send(file.Data)
}

func (h *CertificateHandler) Verify(c *fiber.Ctx) error {
	v, err := h.certificates.VerifyCertificate(c.UserContext(), c.Params("token"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"code":    fiber.StatusNotFound,
				"message": "certificate not found",
				"valid":   false,
			})
		}
		return respondError(c, h.log, err)
	}
	return c.JSON(v)
}
