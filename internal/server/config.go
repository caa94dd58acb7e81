package server

import (
	"time"

	"github.com/go-chi/cors"

	"chanlinks-go/internal/config"
)

const (
	idleTimeout  = time.Minute
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second

	// CreatorHeader carries the Telegram user id of the link owner
	CreatorHeader = "X-Telegram-User-Id"
)

func corsOptions(cfg *config.Config) cors.Options {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", CreatorHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func isDevelopment(env string) bool {
	return env == "dev" || env == "development" || env == "local"
}
