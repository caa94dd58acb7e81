package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/database"
)

// PostgresStore keeps tokens in the start_tokens table. Tokens older than ttl
// are treated as missing; a zero ttl keeps them forever.
type PostgresStore struct {
	db  *database.DB
	ttl time.Duration
}

func NewPostgresStore(db *database.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl}
}

// liveToken restricts a start_tokens query to tokens younger than the TTL in $2
const liveToken = `($2::double precision <= 0 OR created_at > NOW() - make_interval(secs => $2::double precision))`

func (s *PostgresStore) Mint(ctx context.Context, shortCode string, utm models.UTMParams) (*models.StartToken, error) {
	var record models.StartToken

	token, err := mint(func(token string) (bool, error) {
		err := s.db.GetContext(ctx, &record, `
			INSERT INTO start_tokens (token, short_code, utm, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (token) DO NOTHING
			RETURNING token, short_code, utm, created_at, consumed_at`,
			token, shortCode, utm)
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("short_code", shortCode).Msg("start token collision, regenerating")
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("inserting start token: %w", err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("short_code", shortCode).Str("token", token).Msg("Start token minted")
	return &record, nil
}

func (s *PostgresStore) Find(ctx context.Context, token string) (*models.StartToken, error) {
	var record models.StartToken
	err := s.db.GetContext(ctx, &record, `
		SELECT token, short_code, utm, created_at, consumed_at
		FROM start_tokens
		WHERE token = $1 AND `+liveToken, token, s.ttl.Seconds())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding start token: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) Consume(ctx context.Context, token string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE start_tokens
		SET consumed_at = $3
		WHERE token = $1 AND consumed_at IS NULL AND `+liveToken, token, s.ttl.Seconds(), at)
	if err != nil {
		return fmt.Errorf("consuming start token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consuming start token: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Nothing updated: the token is gone or was already consumed
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM start_tokens WHERE token = $1 AND `+liveToken+`)`,
		token, s.ttl.Seconds()); err != nil {
		return fmt.Errorf("checking start token: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConsumed
}

// Purge deletes tokens minted before cutoff, consumed or not
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM start_tokens WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging start tokens: %w", err)
	}
	return result.RowsAffected()
}

// Close is a no-op, the connection pool belongs to main
func (s *PostgresStore) Close() error {
	return nil
}
