package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/bot"
	"chanlinks-go/internal/config"
	"chanlinks-go/internal/database"
	"chanlinks-go/internal/database/migrate"
	"chanlinks-go/internal/logger"
	"chanlinks-go/internal/metrics"
	"chanlinks-go/internal/server"
	"chanlinks-go/internal/tokens"
	"chanlinks-go/internal/tracking"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("Chanlinks %s\n", formatVersionInfo())
		return
	}

	// Initialize logger first
	env := os.Getenv("APP_ENV")
	switch env {
	case "local", "development":
		logger.Init("development") // Debug Level
	default:
		logger.Init("production") // Info Level
	}

	log.Info().
		Str("environment", env).
		Str("log_level", zerolog.GlobalLevel().String()).
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("Starting Chanlinks")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}

	// Update logger with correct environment
	logger.Init(cfg.Env)
	cfg.Log()

	db, err := database.New(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Schema:   cfg.Database.Schema,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}()

	if health := db.Health(ctx); health["status"] != "up" {
		log.Fatal().
			Interface("error", health["error"]).
			Msg("Database health check failed")
	}

	if err := migrate.RunMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("Failed to run migrations")
		log.Info().Msg("Attempting to rollback migrations...")

		if rbErr := migrate.RollbackMigrations(db.DB); rbErr != nil {
			log.Fatal().
				Err(rbErr).
				Str("original_error", err.Error()).
				Msg("Failed to rollback migrations after error")
		}

		log.Fatal().Err(err).Msg("Migrations rolled back due to error")
	}

	tokenStore, err := tokens.NewStore(ctx, cfg.TokenStore, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token store")
	}
	defer func() {
		if err := tokenStore.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing token store")
		}
	}()

	if purger, ok := tokenStore.(tokens.Purger); ok && cfg.TokenStore.TTL > 0 {
		worker := tokens.NewCleanupWorker(purger, cfg.TokenStore.TTL, time.Hour)
		worker.Start(ctx)
		defer worker.Stop()
	}

	var geo tracking.GeoLocator
	if cfg.GeoIPPath != "" {
		locator, err := tracking.OpenGeoIP(cfg.GeoIPPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.GeoIPPath).Msg("GeoIP lookups disabled")
		} else {
			geo = locator
			defer func() {
				if err := locator.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP database")
				}
			}()
		}
	}

	srv, err := server.NewServer(cfg, db, tokenStore, geo, metrics.New())
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating server")
	}

	httpServer, err := srv.Start()
	if err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}

	var wg sync.WaitGroup
	if cfg.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Telegram")
		}

		dispatcher := bot.NewDispatcher(api, srv.Resolver())
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(ctx, api)
		}()
	} else {
		log.Info().Msg("BOT_TOKEN not set, /start handling disabled")
	}

	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		log.Info().Msg("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Disable keep-alives for new connections
		httpServer.SetKeepAlivesEnabled(false)

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		cancel()
	}()

	log.Info().
		Str("url", cfg.BaseURL).
		Msg("Server is ready to handle requests")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server error")
		cancel()
	}

	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("Server shutdown completed")
}

func formatVersionInfo() string {
	return fmt.Sprintf(`Version: %s
Commit: %s
Built: %s`, version, commit, date)
}
