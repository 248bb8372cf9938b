package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

const internalMessage = "internal server error"

func errorBody(code int, message string) fiber.Map {
	return fiber.Map{"status": "error", "code": code, "message": message}
}

// statusFor maps service error categories to HTTP statuses. Zero means the
// error is not a domain error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalid):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	}
	return 0
}

// publicMessage strips the operation prefixes added by the services and keeps
// the part a client can act on.
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "services."); i >= 0 {
		if j := strings.Index(msg[i:], ": "); j >= 0 {
			msg = msg[i+j+2:]
		}
	}
	return msg
}

func respondError(c *fiber.Ctx, log *slog.Logger, err error) error {
	if code := statusFor(err); code != 0 {
		return c.Status(code).JSON(errorBody(code, publicMessage(err)))
	}
	log.Error("request_failed",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		logging.Err(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody(fiber.StatusInternalServerError, internalMessage))
}

// bind parses the JSON body into req and runs struct validation. Failures
// come back as 400 fiber errors for ErrorHandler to render.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// ErrorHandler renders errors that escape handlers. Anything that is not a
// fiber.Error is logged and reported as an opaque 500.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorBody(fe.Code, fe.Message))
		}
		return respondError(c, log, err)
	}
}
