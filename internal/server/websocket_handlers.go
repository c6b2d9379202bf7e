package server

import (
	"log/slog"

	"sun/internal/featureflags"
	"sun/internal/middleware"
	"sun/internal/models"
	"sun/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedEnabled gates the lifecycle feed behind the donation_feed flag and
// rejects plain HTTP requests. Must run after the websocket auth middleware.
func (s *Server) FeedEnabled() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(middleware.LocalUserID).(string)
		if !s.featureFlags.Enabled(featureflags.DonationFeed, userID) {
			return models.RespondWithError(c, &models.AppError{
				Code:    models.CodeNotFound,
				Message: "Donation feed is disabled",
			})
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return c.Status(fiber.StatusUpgradeRequired).JSON(models.ErrorResponse{
				Message: "WebSocket upgrade required",
			})
		}
		return c.Next()
	}
}

// FeedHandler streams lifecycle events to the connected client.
// @Summary Donation lifecycle event feed (websocket)
// @Tags realtime
// @Param token query string true "access token"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) FeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalUserID).(string)
		if userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			observability.Logger.Warn("feed registration rejected",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		observability.Logger.Info("feed client connected",
			slog.String("user_id", userID),
			slog.String("client_id", client.ID),
		)

		go client.WritePump()
		client.ReadPump()

		observability.Logger.Info("feed client disconnected",
			slog.String("user_id", userID),
			slog.String("client_id", client.ID),
		)
	})
}
