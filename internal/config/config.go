package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/validation"
)

// Config holds server configuration
type Config struct {
	Port            int      // Port to listen on
	Env             string   // Environment (development | production)
	BaseURL         string   // Public base URL tracking links are built on
	BotUsername     string   // Bot the redirect deep link points at
	BotToken        string   // Bot API token, enables the /start dispatcher when set
	GeoIPPath       string   // Path to a MaxMind City database, geo lookup is disabled when empty
	CORSOrigins     []string // Origins allowed to call the API
	CreateRateLimit int      // Link creations allowed per client per minute
	Database        DatabaseConfig
	TokenStore      TokenStoreConfig
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

type TokenStoreConfig struct {
	// Provider type ("postgres" or "redis")
	Provider string `json:"provider"`

	// Redis config
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db,omitempty"`

	// TTL of unconsumed tokens, only honoured by the redis provider
	TTL time.Duration `json:"ttl,omitempty"`
}

func (c *Config) Log() {
	log.Info().
		Int("port", c.Port).
		Str("env", c.Env).
		Str("base_url", c.BaseURL).
		Str("bot_username", c.BotUsername).
		Bool("bot_dispatcher", c.BotToken != "").
		Bool("geoip", c.GeoIPPath != "").
		Strs("cors_origins", c.CORSOrigins).
		Int("create_rate_limit", c.CreateRateLimit).
		Str("db_host", c.Database.Host).
		Str("db_database", c.Database.Database).
		Str("token_store", c.TokenStore.Provider).
		Dur("token_ttl", c.TokenStore.TTL).
		Msg("server configuration")
}

// NewConfig creates a server configuration from environment variables
func NewConfig() (*Config, error) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port <= 0 {
		log.Error().Err(err).Msg("invalid PORT environment variable")
		return nil, fmt.Errorf("invalid PORT: %q", os.Getenv("PORT"))
	}

	botUsername := strings.TrimPrefix(strings.TrimSpace(os.Getenv("BOT_USERNAME")), "@")
	if botUsername == "" {
		log.Error().Msg("BOT_USERNAME environment variable is required")
		return nil, fmt.Errorf("BOT_USERNAME is required")
	}
	// Bot usernames follow the same rules as public channel handles
	if err := validation.ValidateChannelUsername(botUsername); err != nil {
		log.Error().Str("bot_username", botUsername).Msg("invalid BOT_USERNAME environment variable")
		return nil, fmt.Errorf("invalid BOT_USERNAME: %q", botUsername)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "production"
	}

	baseURL := strings.TrimSuffix(os.Getenv("BASE_URL"), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", port)
	}
	if err := validation.ValidateURL(baseURL); err != nil {
		log.Error().Str("base_url", baseURL).Msg("invalid BASE_URL environment variable")
		return nil, fmt.Errorf("invalid BASE_URL: %q", baseURL)
	}

	createRateLimit, err := parsePositiveInt(os.Getenv("CREATE_RATE_LIMIT"), 20)
	if err != nil {
		log.Error().Err(err).Msg("invalid CREATE_RATE_LIMIT environment variable")
		return nil, fmt.Errorf("invalid CREATE_RATE_LIMIT: %w", err)
	}

	dbConfig := DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Database: os.Getenv("DB_DATABASE"),
		Username: os.Getenv("DB_USERNAME"),
		Password: os.Getenv("DB_PASSWORD"),
		Schema:   os.Getenv("DB_SCHEMA"),
	}
	if dbConfig.Port == "" {
		dbConfig.Port = "5432"
	}
	if err := validateDatabaseConfig(dbConfig); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	// Configure token store
	provider := os.Getenv("TOKEN_STORE")
	if provider == "" {
		provider = "postgres"
	}

	redisDB, err := parseNonNegativeInt(os.Getenv("REDIS_DB"))
	if err != nil {
		log.Error().Err(err).Msg("invalid REDIS_DB environment variable")
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tokenTTL, err := parseTTL(os.Getenv("TOKEN_TTL"))
	if err != nil {
		log.Error().Err(err).Msg("invalid TOKEN_TTL environment variable")
		return nil, err
	}

	tokenConfig := TokenStoreConfig{
		Provider:      provider,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		TTL:           tokenTTL,
	}

	// Validate token store configuration
	if err := validateTokenStoreConfig(tokenConfig); err != nil {
		return nil, fmt.Errorf("invalid token store configuration: %w", err)
	}

	return &Config{
		Port:            port,
		Env:             env,
		BaseURL:         baseURL,
		BotUsername:     botUsername,
		BotToken:        os.Getenv("BOT_TOKEN"),
		GeoIPPath:       os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:     parseList(os.Getenv("CORS_ORIGINS")),
		CreateRateLimit: createRateLimit,
		Database:        dbConfig,
		TokenStore:      tokenConfig,
	}, nil
}

func validateDatabaseConfig(cfg DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if cfg.Database == "" {
		return fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("DB_USERNAME is required")
	}
	return nil
}

// validateTokenStoreConfig ensures the token store configuration is valid
func validateTokenStoreConfig(cfg TokenStoreConfig) error {
	switch cfg.Provider {
	case "postgres":
	case "redis":
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis token store")
		}
	default:
		return fmt.Errorf("unsupported token store: %s", cfg.Provider)
	}
	return nil
}

// parseTTL parses TOKEN_TTL. A bare number is read as hours and "d" is accepted for days,
// e.g. "48", "12h", "7d". Empty defaults to 7 days.
func parseTTL(value string) (time.Duration, error) {
	if value == "" {
		return 7 * 24 * time.Hour, nil
	}

	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid TOKEN_TTL: %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if _, err := strconv.Atoi(value); err == nil {
		value += "h"
	}

	ttl, err := time.ParseDuration(value)
	if err != nil || ttl <= 0 {
		return 0, fmt.Errorf("invalid TOKEN_TTL: %q", value)
	}
	return ttl, nil
}

func parsePositiveInt(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func parseNonNegativeInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %d", n)
	}
	return n, nil
}

// parseList splits a comma separated list, dropping blanks
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
