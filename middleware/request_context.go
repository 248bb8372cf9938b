package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// RequestContext makes c.UserContext a child of base, so cancelling base
// aborts work still running for in-flight requests. fasthttp offers no signal
// for a client disconnect, so base is the only cancellation source.
func RequestContext(base context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithCancel(base)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
