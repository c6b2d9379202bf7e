package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sun/internal/config"
	"sun/internal/repository"
	"sun/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	srv   *Server
	app   *fiber.App
	store repository.Store
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		JWTSecret:    testJWTSecret,
		JWTIssuer:    "sun-api",
		JWTAudience:  "sun-client",
		StoreBackend: repository.BackendMemory,
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	return newTestEnvWithRedis(t, nil, mutate...)
}

func newTestEnvWithRedis(t *testing.T, rdb *redis.Client, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	store := repository.NewMemoryStore()
	srv, err := NewServerWithDeps(cfg, store, rdb, WithUserServiceOptions(service.WithBcryptCost(bcrypt.MinCost)))
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), store: store}
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r apiResponse) decode(t *testing.T, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, out), "body: %s", r.body)
}

func (r apiResponse) object(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	r.decode(t, &out)
	return out
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{status: resp.StatusCode, header: resp.Header, body: raw}
}

// register creates a user through the API and returns its token and id.
func (e *testEnv) register(t *testing.T, name, email, role string) (string, string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/users/register", map[string]any{
		"name":     name,
		"email":    email,
		"password": "password123",
		"role":     role,
	}, "")
	require.Equal(t, fiber.StatusCreated, resp.status, "body: %s", resp.body)

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	resp.decode(t, &out)
	require.NotEmpty(t, out.Token)
	return out.Token, out.User.ID
}

func (e *testEnv) createDonation(t *testing.T, token string, body map[string]any) map[string]any {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/donations", body, token)
	require.Equal(t, fiber.StatusCreated, resp.status, "body: %s", resp.body)
	return resp.object(t)
}
