package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sun/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMiddleware(t *testing.T) {
	app := fiber.New()

	// Apply just the middleware we want to test
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	t.Run("Security Headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
		assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	})
}

func TestNewApp_SecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health/live", nil, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.NotEmpty(t, resp.header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.header.Get(fiber.HeaderXRequestID))
}

func TestNewApp_UnknownRouteUsesErrorShape(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/nothing-here", nil, "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.NotEmpty(t, resp.object(t)["message"])
}

func TestNewApp_PasswordNeverSerialized(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "Dana", "dana@example.com", "")
	env.createDonation(t, token, map[string]any{"title": "Rice", "category": "food"})

	for _, path := range []string{"/api/users/profile", "/api/donations", "/api/leaderboard"} {
		resp := env.do(t, http.MethodGet, path, nil, token)
		require.Equal(t, fiber.StatusOK, resp.status, path)
		assert.NotContains(t, string(resp.body), "password", path)
		assert.NotContains(t, string(resp.body), "$2a$", path)
	}
}
