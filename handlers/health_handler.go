package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports 503 when any dependency fails its ping.
func Health(deps map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		checks := fiber.Map{}
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				status = fiber.StatusServiceUnavailable
				checks[name] = "down"
				continue
			}
			checks[name] = "up"
		}
		state := "ok"
		if status != fiber.StatusOK {
			state = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
	}
}
