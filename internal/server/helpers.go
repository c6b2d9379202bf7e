package server

import (
	"context"
	"strings"
	"time"

	"sun/internal/middleware"
	"sun/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	requestTimeout      = 5 * time.Second
	maxLeaderboardLimit = 100
)

// requestContext bounds store work by the request deadline.
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

// callerFrom returns the identity stored by AuthRequired. Handlers behind the
// auth middleware always have one; the error path covers misconfigured routes.
func callerFrom(c *fiber.Ctx) (models.CallerIdentity, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok || caller.ID == "" {
		return models.CallerIdentity{}, models.NewUnauthorizedError("Not authorized, no token")
	}
	return caller, nil
}

// parseBody decodes the JSON body into out. An empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// parseLimit reads ?limit= clamped to [1, max]; missing or non-positive values mean def.
func parseLimit(c *fiber.Ctx, def, max int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

func pathID(c *fiber.Ctx) (string, error) {
	// Params aliases the request buffer, which fasthttp reuses after the handler returns.
	id := strings.TrimSpace(utils.CopyString(c.Params("id")))
	if id == "" {
		return "", models.NewValidationError("Invalid ID")
	}
	return id, nil
}
