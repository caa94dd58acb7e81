// Package dbtest starts a throwaway PostgreSQL container for repository tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"chanlinks-go/internal/database"
	"chanlinks-go/internal/database/migrate"
)

// Container holds the connection settings of a running test database
type Container struct {
	Config    database.Config
	terminate func(context.Context) error
}

// StartPostgres runs a postgres container and waits until it accepts connections
func StartPostgres(ctx context.Context) (*Container, error) {
	const (
		dbName = "testdb"
		dbPwd  = "testpass"
		dbUser = "testuser"
	)

	dbContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	host, err := dbContainer.Host(ctx)
	if err != nil {
		return nil, terminateWith(ctx, dbContainer.Terminate, err)
	}

	port, err := dbContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, terminateWith(ctx, dbContainer.Terminate, err)
	}

	log.Info().
		Str("host", host).
		Str("port", port.Port()).
		Msg("postgres container started successfully")

	return &Container{
		Config: database.Config{
			Host:     host,
			Port:     port.Port(),
			Database: dbName,
			Username: dbUser,
			Password: dbPwd,
			Schema:   "public",
		},
		terminate: dbContainer.Terminate,
	}, nil
}

// Terminate stops and removes the container
func (c *Container) Terminate(ctx context.Context) error {
	if c == nil || c.terminate == nil {
		return nil
	}
	return c.terminate(ctx)
}

// Open connects to the container and applies all migrations
func (c *Container) Open(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(c.Config)
	require.NoError(t, err)
	require.NotNil(t, db)

	require.NoError(t, migrate.RunMigrations(db.DB))

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// Truncate empties every application table so tests start from a clean slate
func Truncate(t *testing.T, db *database.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE start_events, start_tokens, clicks, links, experiments, channels CASCADE`)
	require.NoError(t, err)
}

func terminateWith(ctx context.Context, terminate func(context.Context) error, err error) error {
	if tErr := terminate(ctx); tErr != nil {
		log.Error().Err(tErr).Msg("failed to terminate postgres container")
	}
	return err
}
