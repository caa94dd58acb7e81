package dashboard

import (
	"context"
	"fmt"

	"chanlinks-go/internal/common/models"
)

const recentLinksLimit = 5

type Service interface {
	GetDashboardStats(ctx context.Context, creatorID int64) (*models.DashboardStats, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetDashboardStats(ctx context.Context, creatorID int64) (*models.DashboardStats, error) {
	stats, err := s.repo.GetDashboardStats(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchingStats, err)
	}

	recent, err := s.repo.GetRecentLinks(ctx, creatorID, recentLinksLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchingStats, err)
	}
	stats.RecentLinks = recent

	return stats, nil
}
