package middleware

import (
	"strings"

	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
)

const (
	tokenKey  = "user"
	claimsKey = "claims"
)

// Protected requires a bearer token minted by tokens. The parsed claims are
// available through ClaimsFrom.
func Protected(tokens *services.TokenIssuer) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc:      tokens.KeyFunc,
		Claims:       &services.Claims{},
		ContextKey:   tokenKey,
		ErrorHandler: jwtError,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(tokenKey).(*jwt.Token)
			if !ok {
				return unauthorized(c)
			}
			claims, ok := token.Claims.(*services.Claims)
			if !ok || tokens.Validate(claims) != nil {
				return unauthorized(c)
			}
			c.Locals(claimsKey, claims)
			return c.Next()
		},
	})
}

func ClaimsFrom(c *fiber.Ctx) (*services.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*services.Claims)
	return claims, ok
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return unauthorized(c)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// AdminRequired must run after Protected.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok || !claims.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Forbidden: Admin access required",
			})
		}
		return c.Next()
	}
}
