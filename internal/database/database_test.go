package database_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlinks-go/internal/database"
	"chanlinks-go/internal/database/dbtest"
)

var container *dbtest.Container

func TestMain(m *testing.M) {
	var err error
	container, err = dbtest.StartPostgres(context.Background())
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("could not start postgres container")
	}

	code := m.Run()

	if err := container.Terminate(context.Background()); err != nil {
		log.Error().
			Err(err).
			Msg("could not teardown postgres container")
	}
	os.Exit(code)
}

func TestNew(t *testing.T) {
	db, err := database.New(container.Config)
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.NoError(t, db.Close())
}

func TestNew_InvalidHost(t *testing.T) {
	cfg := container.Config
	cfg.Port = "1"

	db, err := database.New(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestHealth(t *testing.T) {
	db, err := database.New(container.Config)
	require.NoError(t, err)
	defer db.Close()

	stats := db.Health(context.Background())
	assert.Equal(t, "up", stats["status"])
	assert.NotContains(t, stats, "error")
	assert.Contains(t, stats, "open_connections")
}

func TestHealth_AfterClose(t *testing.T) {
	db, err := database.New(container.Config)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	stats := db.Health(context.Background())
	assert.Equal(t, "down", stats["status"])
	assert.Contains(t, stats, "error")
}

func TestConfig_DSN(t *testing.T) {
	cfg := database.Config{
		Host:     "db",
		Port:     "5432",
		Database: "links",
		Username: "user",
		Password: "p@ss",
	}
	assert.Equal(t, "postgres://user:p%40ss@db:5432/links?sslmode=disable&search_path=public", cfg.DSN())
}
