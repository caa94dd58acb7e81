package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	if isDevelopment(s.config.Env) {
		r.Use(middleware.NoCache)
	}

	r.Use(cors.Handler(corsOptions(s.config)))
	r.Use(CreatorMiddleware)

	r.NotFound(s.handleNotFound)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/health", s.healthHandler)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

		// Visitor flow
		r.Get("/track/{shortCode}", s.trackingHandler.HandleTrack)
		r.Post("/webapp-start", s.trackingHandler.HandleWebAppStart)
	})

	// Creator routes
	r.Group(func(r chi.Router) {
		r.Use(RequireCreator)

		r.With(httprate.LimitByIP(s.config.CreateRateLimit, time.Minute)).
			Post("/create-link", s.linksHandler.HandleCreateLink)

		r.Get("/links", s.linksHandler.HandleListLinks)
		r.Delete("/links/{linkId}", s.linksHandler.HandleDeleteLink)
		r.Get("/analytics/{linkId}", s.linksHandler.HandleGetAnalytics)
		r.Get("/dashboard", s.dashboardHandler.HandleGetDashboardStats)
	})

	return r
}
