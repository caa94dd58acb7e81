package config

import (
	"reflect"
	"testing"
	"time"
)

var configKeys = []string{
	"PORT", "APP_ENV", "BASE_URL", "BOT_USERNAME", "BOT_TOKEN", "GEOIP_DB_PATH",
	"CORS_ORIGINS", "CREATE_RATE_LIMIT",
	"DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD", "DB_SCHEMA",
	"TOKEN_STORE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "TOKEN_TTL",
}

func baseEnv() map[string]string {
	return map[string]string{
		"PORT":         "8080",
		"APP_ENV":      "development",
		"BASE_URL":     "https://links.example.com/",
		"BOT_USERNAME": "@tracker_bot",
		"DB_HOST":      "localhost",
		"DB_DATABASE":  "links",
		"DB_USERNAME":  "links",
		"DB_PASSWORD":  "secret",
	}
}

func with(env map[string]string, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(env)+len(overrides))
	for k, v := range env {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func TestNewConfig(t *testing.T) {
	base := &Config{
		Port:            8080,
		Env:             "development",
		BaseURL:         "https://links.example.com",
		BotUsername:     "tracker_bot",
		CreateRateLimit: 20,
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			Database: "links",
			Username: "links",
			Password: "secret",
		},
		TokenStore: TokenStoreConfig{
			Provider: "postgres",
			TTL:      7 * 24 * time.Hour,
		},
	}

	tests := []struct {
		name    string
		envVars map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name:    "Valid configuration",
			envVars: baseEnv(),
			want:    func() *Config { c := *base; return &c },
		},
		{
			name: "Redis token store",
			envVars: with(baseEnv(), map[string]string{
				"TOKEN_STORE":    "redis",
				"REDIS_ADDR":     "localhost:6379",
				"REDIS_PASSWORD": "pw",
				"REDIS_DB":       "2",
				"TOKEN_TTL":      "2d",
				"BOT_TOKEN":      "123:abc",
				"CORS_ORIGINS":   "https://a.example, https://b.example,",
			}),
			want: func() *Config {
				c := *base
				c.BotToken = "123:abc"
				c.CORSOrigins = []string{"https://a.example", "https://b.example"}
				c.TokenStore = TokenStoreConfig{
					Provider:      "redis",
					RedisAddr:     "localhost:6379",
					RedisPassword: "pw",
					RedisDB:       2,
					TTL:           48 * time.Hour,
				}
				return &c
			},
		},
		{
			name:    "Default base URL and env",
			envVars: with(baseEnv(), map[string]string{"BASE_URL": "", "APP_ENV": ""}),
			want: func() *Config {
				c := *base
				c.BaseURL = "http://localhost:8080"
				c.Env = "production"
				return &c
			},
		},
		{
			name:    "Missing PORT",
			envVars: with(baseEnv(), map[string]string{"PORT": ""}),
			wantErr: true,
		},
		{
			name:    "Negative PORT",
			envVars: with(baseEnv(), map[string]string{"PORT": "-8080"}),
			wantErr: true,
		},
		{
			name:    "Missing BOT_USERNAME",
			envVars: with(baseEnv(), map[string]string{"BOT_USERNAME": ""}),
			wantErr: true,
		},
		{
			name:    "Malformed BOT_USERNAME",
			envVars: with(baseEnv(), map[string]string{"BOT_USERNAME": "9bot"}),
			wantErr: true,
		},
		{
			name:    "Relative BASE_URL",
			envVars: with(baseEnv(), map[string]string{"BASE_URL": "links.example.com"}),
			wantErr: true,
		},
		{
			name:    "Missing DB_HOST",
			envVars: with(baseEnv(), map[string]string{"DB_HOST": ""}),
			wantErr: true,
		},
		{
			name:    "Redis without address",
			envVars: with(baseEnv(), map[string]string{"TOKEN_STORE": "redis"}),
			wantErr: true,
		},
		{
			name:    "Unknown token store",
			envVars: with(baseEnv(), map[string]string{"TOKEN_STORE": "memcached"}),
			wantErr: true,
		},
		{
			name:    "Invalid CREATE_RATE_LIMIT",
			envVars: with(baseEnv(), map[string]string{"CREATE_RATE_LIMIT": "0"}),
			wantErr: true,
		},
		{
			name:    "Invalid TOKEN_TTL",
			envVars: with(baseEnv(), map[string]string{"TOKEN_TTL": "soon"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range configKeys {
				t.Setenv(k, tt.envVars[k])
			}

			got, err := NewConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("NewConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if want := tt.want(); !reflect.DeepEqual(got, want) {
				t.Errorf("NewConfig() got = %+v, want %+v", got, want)
			}
		})
	}
}

func Test_parseTTL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"Empty uses default", "", 7 * 24 * time.Hour, false},
		{"Bare number is hours", "12", 12 * time.Hour, false},
		{"Duration string", "90m", 90 * time.Minute, false},
		{"Days", "3d", 72 * time.Hour, false},
		{"Zero", "0", 0, true},
		{"Zero days", "0d", 0, true},
		{"Garbage", "tomorrow", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTTL(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTTL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("parseTTL() got = %v, want %v", got, tt.want)
			}
		})
	}
}
