package service

import (
	"context"
	"sort"

	"sun/internal/models"
	"sun/internal/observability"
	"sun/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultLeaderboardSize is used when no positive size is requested.
const DefaultLeaderboardSize = 20

// RankByPoints orders users by points descending. Ties keep the input order,
// so callers passing insertion-ordered users get insertion-ordered ties.
func RankByPoints(users []*models.User, n int) []models.LeaderboardEntry {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}
	ranked := make([]*models.User, len(users))
	copy(ranked, users)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Points > ranked[j].Points
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	entries := make([]models.LeaderboardEntry, 0, len(ranked))
	for _, u := range ranked {
		entries = append(entries, models.LeaderboardEntry{
			ID:     u.ID,
			Name:   u.Name,
			Role:   u.Role,
			Points: u.Points,
		})
	}
	return entries
}

// LeaderboardService serves the ranked view of users.
type LeaderboardService struct {
	users repository.UserRepository
}

func NewLeaderboardService(users repository.UserRepository) *LeaderboardService {
	return &LeaderboardService{users: users}
}

// Top returns the n highest-scoring users. n <= 0 means DefaultLeaderboardSize.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	span, ctx := observability.NewSpan(ctx, "LeaderboardService.Top")
	defer span.End()
	span.AddAttributes(attribute.Int("leaderboard.size", n))

	users, err := s.users.List(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return RankByPoints(users, n), nil
}

// TopWithCertificates is Top with each entry's certificate names attached.
func (s *LeaderboardService) TopWithCertificates(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	entries := RankByPoints(users, n)
	for i := range entries {
		u := byID[entries[i].ID]
		names := make([]string, 0, len(u.Certificates))
		for _, c := range u.Certificates {
			names = append(names, c.Name)
		}
		entries[i].Certificates = names
	}
	return entries, nil
}
