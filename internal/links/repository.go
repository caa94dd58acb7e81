package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/database"
)

type Repository interface {
	FindActiveLinkByCode(ctx context.Context, code string) (*models.Link, error)
	FindLinkByID(ctx context.Context, id uuid.UUID) (*models.Link, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, link *models.Link, channel *models.Channel, experiment *models.Experiment) error
	RecordClick(ctx context.Context, click *models.Click) error
	FindExperimentByName(ctx context.Context, name string) (*models.Experiment, error)
	RecordStart(ctx context.Context, event *models.StartEvent) error
	ListByCreator(ctx context.Context, creatorID int64) ([]*models.Link, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Analytics(ctx context.Context, link *models.Link) (*models.LinkAnalytics, error)
}

const selectLink = `
	SELECT l.id, l.short_code, l.creator_id, l.channel_id, l.kind, l.target_url,
	       l.title, l.description, l.utm, l.is_active, l.expires_at, l.max_clicks,
	       l.experiment_name, l.ab_group, l.click_count, l.created_at,
	       c.username AS channel_username, c.title AS channel_title
	FROM links l
	JOIN channels c ON c.id = l.channel_id`

type repository struct {
	*database.Repository
}

func NewRepository(db *database.DB) Repository {
	return &repository{Repository: database.NewRepository(db)}
}

func (r *repository) FindActiveLinkByCode(ctx context.Context, code string) (*models.Link, error) {
	return r.getLink(ctx, selectLink+` WHERE l.short_code = $1 AND l.is_active`, code)
}

func (r *repository) FindLinkByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	return r.getLink(ctx, selectLink+` WHERE l.id = $1`, id)
}

func (r *repository) getLink(ctx context.Context, query string, arg interface{}) (*models.Link, error) {
	link := new(models.Link)
	err := r.Get(ctx, link, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting link: %w", err)
	}
	return link, nil
}

func (r *repository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.Get(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`, code); err != nil {
		return false, fmt.Errorf("checking short code: %w", err)
	}
	return exists, nil
}

// Create stores the link together with its channel and, when given, a new experiment
func (r *repository) Create(ctx context.Context, link *models.Link, channel *models.Channel, experiment *models.Experiment) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channels (id, username, title)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET username = EXCLUDED.username,
			    title = CASE WHEN EXCLUDED.title = '' THEN channels.title ELSE EXCLUDED.title END`,
			channel.ID, channel.Username, channel.Title); err != nil {
			return fmt.Errorf("upserting channel: %w", err)
		}

		if experiment != nil {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO experiments (id, name, groups, created_at)
				VALUES ($1, $2, $3, $4)`,
				experiment.ID, experiment.Name, experiment.Groups, experiment.CreatedAt); err != nil {
				if database.IsUniqueViolation(err) {
					return ErrExperimentExists
				}
				return fmt.Errorf("inserting experiment: %w", err)
			}
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO links (
				id, short_code, creator_id, channel_id, kind, target_url, title, description,
				utm, is_active, expires_at, max_clicks, experiment_name, ab_group, click_count, created_at
			) VALUES (
				:id, :short_code, :creator_id, :channel_id, :kind, :target_url, :title, :description,
				:utm, :is_active, :expires_at, :max_clicks, :experiment_name, :ab_group, :click_count, :created_at
			)`, link); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrShortCodeConflict
			}
			return fmt.Errorf("inserting link: %w", err)
		}
		return nil
	})
}

// RecordClick counts the click against the link and stores it in one transaction.
// The counter only moves while the link is still usable at click.ClickedAt, so
// concurrent clicks cannot push a link past its limit; the loser gets ErrClickLimitReached.
func (r *repository) RecordClick(ctx context.Context, click *models.Click) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE links
			SET click_count = click_count + 1
			WHERE short_code = $1
			  AND is_active
			  AND (max_clicks IS NULL OR click_count < max_clicks)
			  AND (expires_at IS NULL OR expires_at >= $2)`,
			click.ShortCode, click.ClickedAt)
		if err != nil {
			return fmt.Errorf("incrementing click count: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if rows == 0 {
			return ErrClickLimitReached
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO clicks (
				id, short_code, visitor_id, utm, user_agent, device_type, browser, os,
				ip_address, country_code, city, referer, ab_group, clicked_at
			) VALUES (
				:id, :short_code, :visitor_id, :utm, :user_agent, :device_type, :browser, :os,
				:ip_address, :country_code, :city, :referer, :ab_group, :clicked_at
			)`, click); err != nil {
			return fmt.Errorf("inserting click: %w", err)
		}
		return nil
	})
}

func (r *repository) FindExperimentByName(ctx context.Context, name string) (*models.Experiment, error) {
	experiment := new(models.Experiment)
	err := r.Get(ctx, experiment, `SELECT id, name, groups, created_at FROM experiments WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExperimentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting experiment: %w", err)
	}
	return experiment, nil
}

func (r *repository) RecordStart(ctx context.Context, event *models.StartEvent) error {
	_, err := r.Exec(ctx, `
		INSERT INTO start_events (id, short_code, token, visitor_id, utm, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.ShortCode, event.Token, event.VisitorID, event.UTM, event.StartedAt)
	if err != nil {
		return fmt.Errorf("recording start event: %w", err)
	}
	return nil
}

func (r *repository) ListByCreator(ctx context.Context, creatorID int64) ([]*models.Link, error) {
	var links []*models.Link
	err := r.Select(ctx, &links, selectLink+`
		WHERE l.creator_id = $1
		ORDER BY l.created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	return links, nil
}

// Deactivate soft deletes a link. Click history stays in place.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.Exec(ctx, `UPDATE links SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// Labels of the per-link breakdowns. Keys are trusted column expressions.
var breakdowns = []struct {
	expr string
	dest func(a *models.LinkAnalytics) *[]models.CountStat
}{
	{"device_type", func(a *models.LinkAnalytics) *[]models.CountStat { return &a.Devices }},
	{"browser", func(a *models.LinkAnalytics) *[]models.CountStat { return &a.Browsers }},
	{"os", func(a *models.LinkAnalytics) *[]models.CountStat { return &a.OperatingSys }},
	{"COALESCE(country_code, 'XX')", func(a *models.LinkAnalytics) *[]models.CountStat { return &a.Countries }},
	{"COALESCE(utm->>'utm_source', 'direct')", func(a *models.LinkAnalytics) *[]models.CountStat { return &a.Sources }},
	{"COALESCE(ab_group, 'none')", func(a *models.LinkAnalytics) *[]models.CountStat { return &a.Groups }},
}

const analyticsWindow = 30 * 24 * time.Hour

func (r *repository) Analytics(ctx context.Context, link *models.Link) (*models.LinkAnalytics, error) {
	analytics := &models.LinkAnalytics{Link: link}

	var totals struct {
		TotalClicks    int `db:"total_clicks"`
		UniqueVisitors int `db:"unique_visitors"`
	}
	err := r.Get(ctx, &totals, `
		SELECT COUNT(*) AS total_clicks,
		       COUNT(DISTINCT COALESCE(visitor_id::TEXT, ip_address)) AS unique_visitors
		FROM clicks
		WHERE short_code = $1`, link.ShortCode)
	if err != nil {
		return nil, fmt.Errorf("getting click totals: %w", err)
	}
	analytics.TotalClicks = totals.TotalClicks
	analytics.UniqueVisitors = totals.UniqueVisitors

	if err := r.Get(ctx, &analytics.TotalStarts, `SELECT COUNT(*) FROM start_events WHERE short_code = $1`, link.ShortCode); err != nil {
		return nil, fmt.Errorf("getting start totals: %w", err)
	}

	for _, b := range breakdowns {
		stats := []models.CountStat{}
		err := r.Select(ctx, &stats, fmt.Sprintf(`
			SELECT %s AS label, COUNT(*) AS count
			FROM clicks
			WHERE short_code = $1
			GROUP BY label
			ORDER BY count DESC, label`, b.expr), link.ShortCode)
		if err != nil {
			return nil, fmt.Errorf("getting %s breakdown: %w", b.expr, err)
		}
		*b.dest(analytics) = stats
	}

	analytics.ClicksByDay = []models.ClicksByDay{}
	err = r.Select(ctx, &analytics.ClicksByDay, `
		SELECT date_trunc('day', clicked_at) AS date, COUNT(*) AS count
		FROM clicks
		WHERE short_code = $1 AND clicked_at >= $2
		GROUP BY date
		ORDER BY date`, link.ShortCode, time.Now().Add(-analyticsWindow))
	if err != nil {
		return nil, fmt.Errorf("getting clicks by day: %w", err)
	}

	return analytics, nil
}
