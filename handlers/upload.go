package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
)

const (
	maxTemplateBytes = 2 << 20
	maxWorkbookBytes = 10 << 20
)

// formFile reads the multipart field "file" in full.
func formFile(c *fiber.Ctx, limit int64) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fh.Size > limit {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("file exceeds %d bytes", limit))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("file exceeds %d bytes", limit))
	}
	return data, nil
}
