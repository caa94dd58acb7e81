package tokens

import (
	"context"
	"fmt"

	"chanlinks-go/internal/config"
	"chanlinks-go/internal/database"
)

// NewStore creates a token store based on configuration
func NewStore(ctx context.Context, cfg config.TokenStoreConfig, db *database.DB) (Store, error) {
	switch cfg.Provider {
	case "postgres":
		return NewPostgresStore(db, cfg.TTL), nil
	case "redis":
		store, err := NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported token store: %s", cfg.Provider)
	}
}
