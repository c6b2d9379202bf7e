package server

import (
	"net/http"
	"strings"
	"testing"

	"sun/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Success",
			body:           map[string]any{"name": "Dana", "email": "Dana@Example.com", "password": "password123"},
			expectedStatus: fiber.StatusCreated,
		},
		{
			name:           "Duplicate email differing by case",
			body:           map[string]any{"name": "Other", "email": "dana@example.COM", "password": "password123"},
			expectedStatus: fiber.StatusBadRequest,
			expectedCode:   models.CodeDuplicateEmail,
		},
		{
			name:           "Missing password",
			body:           map[string]any{"name": "Sam", "email": "sam@example.com"},
			expectedStatus: fiber.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Short password",
			body:           map[string]any{"name": "Sam", "email": "sam@example.com", "password": "12345"},
			expectedStatus: fiber.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/users/register", tt.body, "")
			assert.Equal(t, tt.expectedStatus, resp.status, "body: %s", resp.body)
			if tt.expectedCode != "" {
				body := resp.object(t)
				assert.Equal(t, tt.expectedCode, body["code"])
				assert.NotEmpty(t, body["message"])
			}
		})
	}
}

func TestRegister_ResponseShape(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/users/register", map[string]any{
		"name":     "Val",
		"email":    "val@example.com",
		"password": "password123",
		"role":     "volunteer",
		"location": map[string]string{"city": "Lagos", "state": "LA"},
	}, "")
	require.Equal(t, fiber.StatusCreated, resp.status)

	assert.NotContains(t, strings.ToLower(string(resp.body)), "password")

	body := resp.object(t)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, user["id"], user["_id"])
	assert.Equal(t, "val@example.com", user["email"])
	assert.Equal(t, "volunteer", user["role"])
	assert.EqualValues(t, 0, user["points"])
	assert.Equal(t, []any{}, user["donationsMade"])
	assert.Equal(t, []any{}, user["certificates"])
	assert.Equal(t, "Lagos", user["location"].(map[string]any)["city"])
}

func TestRegister_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := env.do(t, http.MethodPost, "/api/users/register", "not-an-object", "")
	assert.Equal(t, fiber.StatusBadRequest, req.status)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Dana", "dana@example.com", "")

	t.Run("Success", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/users/login", map[string]any{
			"email": "DANA@example.com", "password": "password123",
		}, "")
		require.Equal(t, fiber.StatusOK, resp.status)
		body := resp.object(t)
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "dana@example.com", body["user"].(map[string]any)["email"])
	})

	t.Run("Wrong password", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/users/login", map[string]any{
			"email": "dana@example.com", "password": "nope-nope",
		}, "")
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Equal(t, models.CodeInvalidCredentials, resp.object(t)["code"])
	})

	t.Run("Unknown email", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/users/login", map[string]any{
			"email": "ghost@example.com", "password": "password123",
		}, "")
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	token, id := env.register(t, "Dana", "dana@example.com", "")

	t.Run("Success", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/users/profile", nil, token)
		require.Equal(t, fiber.StatusOK, resp.status)
		body := resp.object(t)
		assert.Equal(t, id, body["id"])
		assert.Equal(t, id, body["_id"])
		assert.NotContains(t, body, "password")
	})

	t.Run("No token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/users/profile", nil, "")
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
		assert.Equal(t, "Not authorized, no token", resp.object(t)["message"])
	})

	t.Run("Garbage token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/users/profile", nil, "not.a.jwt")
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
		assert.Equal(t, "Not authorized, token failed", resp.object(t)["message"])
	})

	t.Run("User vanished", func(t *testing.T) {
		ghostToken, err := env.srv.tokens.Issue(&models.User{ID: "ghost", Email: "ghost@example.com"})
		require.NoError(t, err)
		resp := env.do(t, http.MethodGet, "/api/users/profile", nil, ghostToken)
		assert.Equal(t, fiber.StatusNotFound, resp.status)
		assert.Equal(t, "User not found", resp.object(t)["message"])
	})
}
