// Package config loads runtime settings from environment variables.
//
// Every key has a default, so the server starts with no environment at all:
// SQLite in ./data, the public YouTube feed, Instagram and remixes disabled
// until their credentials are provided, and no login required.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Sync      SyncConfig
	YouTube   YouTubeConfig
	Instagram InstagramConfig
	Remix     RemixConfig
	Auth      AuthConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     int
	LogLevel slog.Level
}

// StorageConfig selects and locates the store.
type StorageConfig struct {
	Driver      string // "sqlite" or "postgres"
	DBPath      string // sqlite file
	DatabaseURL string // postgres DSN
	MaxConns    int
}

// SyncConfig controls the orchestrator and its schedule.
type SyncConfig struct {
	Limit       int
	Concurrency int
	Timeout     time.Duration
	Schedule    string // cron spec; empty disables scheduled syncs
	Timezone    string
	JobTimeout  time.Duration
}

// YouTubeConfig holds YouTube adapter settings.
type YouTubeConfig struct {
	BaseURL string
	Timeout time.Duration
}

// InstagramConfig holds Instagram Graph API settings.
type InstagramConfig struct {
	GraphURL    string
	APIVersion  string
	AccessToken string
	BusinessID  string
	Timeout     time.Duration
}

// RemixConfig holds transformer settings.
type RemixConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int
	SystemPrompt string
}

// AuthConfig enables the login gate when both fields are set.
type AuthConfig struct {
	Password  string
	JWTSecret string
}

// Enabled reports whether mutating routes require a login.
func (a AuthConfig) Enabled() bool {
	return a.Password != "" && a.JWTSecret != ""
}

// Load loads configuration from environment variables with defaults.
// Malformed numbers and durations are errors rather than silent defaults.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080, &errs),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DBPath:      getEnv("DB_PATH", "data/outliers.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			MaxConns:    getEnvInt("DB_MAX_CONNS", 10, &errs),
		},
		Sync: SyncConfig{
			Limit:       getEnvInt("SYNC_LIMIT", 30, &errs),
			Concurrency: getEnvInt("SYNC_CONCURRENCY", 4, &errs),
			Timeout:     getEnvDuration("SYNC_TIMEOUT", 2*time.Minute, &errs),
			Schedule:    getEnv("SYNC_SCHEDULE", ""),
			Timezone:    getEnv("SYNC_TIMEZONE", "UTC"),
			JobTimeout:  getEnvDuration("SYNC_JOB_TIMEOUT", 30*time.Minute, &errs),
		},
		YouTube: YouTubeConfig{
			BaseURL: getEnv("YOUTUBE_BASE_URL", "https://www.youtube.com"),
			Timeout: getEnvDuration("YOUTUBE_TIMEOUT", 20*time.Second, &errs),
		},
		Instagram: InstagramConfig{
			GraphURL:    getEnv("INSTAGRAM_GRAPH_URL", "https://graph.facebook.com"),
			APIVersion:  getEnv("INSTAGRAM_API_VERSION", "v21.0"),
			AccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
			BusinessID:  getEnv("INSTAGRAM_BUSINESS_ID", ""),
			Timeout:     getEnvDuration("INSTAGRAM_TIMEOUT", 20*time.Second, &errs),
		},
		Remix: RemixConfig{
			APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
			Model:        getEnv("REMIX_MODEL", "claude-3-5-sonnet-latest"),
			MaxTokens:    getEnvInt("REMIX_MAX_TOKENS", 1024, &errs),
			SystemPrompt: getEnv("REMIX_SYSTEM_PROMPT", ""),
		},
		Auth: AuthConfig{
			Password:  getEnv("AUTH_PASSWORD", ""),
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Server.LogLevel = level

	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be sqlite or postgres, got %q", cfg.Storage.Driver))
	}
	if cfg.Auth.Password != "" && len(cfg.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters when AUTH_PASSWORD is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, value))
		return defaultValue
	}
	return duration
}
