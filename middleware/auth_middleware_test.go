package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer(audience string) *services.TokenIssuer {
	return services.NewTokenIssuer(config.JWTConfig{
		Secret:   "0123456789abcdef0123456789abcdef",
		Issuer:   "certificate-management",
		Audience: audience,
		TTL:      time.Hour,
	})
}

func newTestApp(tokens *services.TokenIssuer) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protected(tokens), func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(claims.Email)
	})
	app.Get("/admin", Protected(tokens), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func bearer(t *testing.T, tokens *services.TokenIssuer, role string) string {
	t.Helper()
	tok, _, err := tokens.Issue(&models.User{ID: uuid.New(), Email: "someone@example.com", Role: role})
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestProtected(t *testing.T) {
	tokens := testIssuer("clients")
	app := newTestApp(tokens)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusBadRequest},
		{"garbage", "Bearer abc.def.ghi", fiber.StatusUnauthorized},
		{"wrong audience", bearer(t, testIssuer("others"), models.RoleUser), fiber.StatusUnauthorized},
		{"valid", bearer(t, tokens, models.RoleUser), fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestAdminRequired(t *testing.T) {
	tokens := testIssuer("clients")
	app := newTestApp(tokens)

	for role, status := range map[string]int{
		models.RoleAdmin: fiber.StatusNoContent,
		models.RoleUser:  fiber.StatusForbidden,
	} {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", bearer(t, tokens, role))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, role)
	}
}
