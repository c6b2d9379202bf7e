package server

import (
	"sun/internal/featureflags"
	"sun/internal/models"
	"sun/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetLeaderboard handles GET /api/leaderboard
// @Summary Top users by points
// @Tags leaderboard
// @Produce json
// @Param limit query int false "number of rows (default 20, max 100)"
// @Success 200 {array} leaderboardView
// @Router /leaderboard [get]
func (s *Server) GetLeaderboard(c *fiber.Ctx) error {
	limit := parseLimit(c, service.DefaultLeaderboardSize, maxLeaderboardLimit)

	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		entries []models.LeaderboardEntry
		err     error
	)
	if s.featureFlags.Enabled(featureflags.LeaderboardCertificates, "") {
		entries, err = s.leaderboardService.TopWithCertificates(ctx, limit)
	} else {
		entries, err = s.leaderboardService.Top(ctx, limit)
	}
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(leaderboardViews(entries))
}
