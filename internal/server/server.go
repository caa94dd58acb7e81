package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/config"
	"chanlinks-go/internal/dashboard"
	"chanlinks-go/internal/database"
	"chanlinks-go/internal/links"
	"chanlinks-go/internal/metrics"
	"chanlinks-go/internal/tokens"
	"chanlinks-go/internal/tracking"
)

type healthChecker interface {
	Health(ctx context.Context) map[string]string
}

// Server represents the HTTP server and its dependencies
type Server struct {
	config           *config.Config
	db               healthChecker
	metrics          *metrics.Metrics
	resolver         *tracking.Resolver
	linksHandler     *links.Handler
	trackingHandler  *tracking.Handler
	dashboardHandler *dashboard.Handler
}

// NewServer creates a new server instance. geo may be nil when no GeoIP database is configured.
func NewServer(cfg *config.Config, db *database.DB, tokenStore tokens.Store, geo tracking.GeoLocator, m *metrics.Metrics) (*Server, error) {
	if cfg == nil || db == nil || tokenStore == nil {
		return nil, fmt.Errorf("server requires config, database and token store")
	}

	if m == nil {
		m = metrics.New()
	}

	// Initialize repositories
	linkRepo := links.NewRepository(db)
	dashboardRepo := dashboard.NewRepository(db)

	// Initialize services
	linkService := links.NewService(linkRepo, cfg.BaseURL, m)
	resolver := tracking.NewResolver(linkRepo, linkRepo, tokenStore, geo, cfg.BotUsername, m)
	dashboardService := dashboard.NewService(dashboardRepo)

	return &Server{
		config:           cfg,
		db:               db,
		metrics:          m,
		resolver:         resolver,
		linksHandler:     links.NewHandler(linkService),
		trackingHandler:  tracking.NewHandler(resolver),
		dashboardHandler: dashboard.NewHandler(dashboardService),
	}, nil
}

// Resolver exposes the token consumer shared with the bot dispatcher
func (s *Server) Resolver() *tracking.Resolver {
	return s.resolver
}

// Start builds the HTTP server; the caller owns ListenAndServe and Shutdown
func (s *Server) Start() (*http.Server, error) {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  idleTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	log.Info().
		Int("port", s.config.Port).
		Str("env", s.config.Env).
		Msg("Starting server")

	return srv, nil
}

// sendJSON sends a JSON response with consistent formatting
func (s *Server) sendJSON(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: success,
		Message: message,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Error encoding JSON response")
	}
}
