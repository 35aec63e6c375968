package service

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

type StatsService struct {
	users   *repository.UserRepository
	history *repository.HistoryRepository
}

func NewStatsService(users *repository.UserRepository, history *repository.HistoryRepository) *StatsService {
	return &StatsService{users: users, history: history}
}

func (s *StatsService) Compute(ctx context.Context) (models.AdminStats, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return models.AdminStats{}, err
	}
	images, err := s.history.Count(ctx)
	if err != nil {
		return models.AdminStats{}, err
	}

	return models.AdminStats{
		TotalUsers:   len(users),
		TotalCredits: lo.SumBy(users, func(u models.User) int { return u.Credits }),
		TotalImages:  images,
		ActiveToday:  estimateActiveToday(len(users)),
	}, nil
}

// SearchUsers filters the directory on name or email, case-insensitively. An
// empty query returns everyone.
func (s *StatsService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users, nil
	}
	return lo.Filter(users, func(u models.User, _ int) bool {
		return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q)
	}), nil
}

// estimateActiveToday reports 40% of users, at least one. It is an estimate, not
// a measurement.
func estimateActiveToday(totalUsers int) int {
	return max(1, totalUsers*2/5)
}
