package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sun/internal/config"
	"sun/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/ws", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestFeed_RejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "Dana", "dana@example.com", "")

	req := httptest.NewRequest(http.MethodGet, "/api/ws?token="+token, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestFeed_DisabledByFlag(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.FeatureFlags = "donation_feed=off"
	})
	token, _ := env.register(t, "Dana", "dana@example.com", "")

	req := httptest.NewRequest(http.MethodGet, "/api/ws?token="+token, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestFeed_LifecycleEventsReachHub(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.hub.StartWiring(context.Background(), env.srv.notifier))
	client, err := env.srv.hub.Register("watcher", nil)
	require.NoError(t, err)

	token, _ := env.register(t, "Dana", "dana@example.com", "")
	env.createDonation(t, token, map[string]any{"title": "Rice", "category": "food"})

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), models.EventDonationCreated)
	default:
		t.Fatal("expected a donation.created event on the feed")
	}
}

func TestGetFeatureFlags(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.FeatureFlags = "leaderboard_certificates=on"
	})
	token, _ := env.register(t, "Dana", "dana@example.com", "")

	unauth := env.do(t, http.MethodGet, "/api/feature-flags", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, unauth.status)

	resp := env.do(t, http.MethodGet, "/api/feature-flags", nil, token)
	require.Equal(t, fiber.StatusOK, resp.status)
	evaluated := resp.object(t)["evaluated"].(map[string]any)
	assert.Equal(t, true, evaluated["donation_feed"])
	assert.Equal(t, true, evaluated["leaderboard_certificates"])
}
