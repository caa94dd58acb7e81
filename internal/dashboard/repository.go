package dashboard

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/database"
)

type Repository interface {
	GetDashboardStats(ctx context.Context, creatorID int64) (*models.DashboardStats, error)
	GetRecentLinks(ctx context.Context, creatorID int64, limit int) ([]models.RecentLink, error)
}

type repository struct {
	*database.Repository
}

func NewRepository(db *database.DB) Repository {
	return &repository{
		Repository: database.NewRepository(db),
	}
}

func (r *repository) GetDashboardStats(ctx context.Context, creatorID int64) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		linkQuery := `
            SELECT
                COUNT(*) AS total_links,
                COUNT(*) FILTER (WHERE is_active) AS active_links,
                COALESCE(SUM(click_count), 0) AS total_clicks
            FROM links
            WHERE creator_id = $1`

		if err := tx.GetContext(ctx, stats, linkQuery, creatorID); err != nil {
			return fmt.Errorf("getting link totals: %w", err)
		}

		startQuery := `
            SELECT COUNT(*)
            FROM start_events e
            JOIN links l ON l.short_code = e.short_code
            WHERE l.creator_id = $1`

		if err := tx.GetContext(ctx, &stats.TotalStarts, startQuery, creatorID); err != nil {
			return fmt.Errorf("getting start totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *repository) GetRecentLinks(ctx context.Context, creatorID int64, limit int) ([]models.RecentLink, error) {
	query := `
        SELECT
            short_code,
            title,
            target_url,
            click_count,
            to_char(created_at, 'YYYY-MM-DD HH24:MI:SS') AS created_at
        FROM links
        WHERE creator_id = $1 AND is_active
        ORDER BY links.created_at DESC
        LIMIT $2`

	links := []models.RecentLink{}
	if err := r.Select(ctx, &links, query, creatorID, limit); err != nil {
		return nil, fmt.Errorf("getting recent links: %w", err)
	}
	return links, nil
}
