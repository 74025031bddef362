// Package config reads process settings from the environment. A .env file in the working
// directory is loaded first when present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"bookshelf/internal/gutendex"
)

type Config struct {
	// DatabaseURL selects postgres storage. Empty means the in-memory store.
	DatabaseURL string
	Migrate     bool

	BindAddr  string
	DebugMode bool
	// RateLimit is requests per second per client on the REST api; zero disables it.
	RateLimit float64

	LogLevel  slog.Level
	LogFormat string

	Gutendex gutendex.Config
}

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

func getBoolEnv(key string, default_ bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "yes", "on", "true", "1":
		return true
	case "no", "off", "false", "0":
		return false
	}

	return default_
}

func getFloatEnv(key string, default_ float64) (float64, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return default_, nil
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, val)
	}

	return f, nil
}

func getIntEnv(key string, default_ int) (int, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return default_, nil
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, val)
	}

	return i, nil
}

func getDurationEnv(key string, default_ time.Duration) (time.Duration, error) {
	val := getEnvOrDefault(key, "")
	if val == "" {
		return default_, nil
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s, got %q", key, val)
	}

	return d, nil
}

// Load returns the first invalid setting as an error.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:     getBoolEnv("MIGRATE", true),
		BindAddr:    getEnvOrDefault("BIND_ADDR", ":8080"),
		DebugMode:   getBoolEnv("DEBUG_MODE", false),
		LogFormat:   strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		Gutendex: gutendex.Config{
			BaseURL:   getEnvOrDefault("GUTENDEX_URL", gutendex.DefaultBaseURL),
			UserAgent: getEnvOrDefault("GUTENDEX_USER_AGENT", "bookshelf/1.0"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn or error: %w", err)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	var err error
	if cfg.RateLimit, err = getFloatEnv("API_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.Gutendex.Timeout, err = getDurationEnv("GUTENDEX_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Gutendex.RPS, err = getFloatEnv("GUTENDEX_RPS", 2); err != nil {
		return nil, err
	}
	if cfg.Gutendex.MaxRetries, err = getIntEnv("GUTENDEX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Gutendex.Backoff, err = getDurationEnv("GUTENDEX_BACKOFF", time.Second); err != nil {
		return nil, err
	}

	if cfg.Gutendex.MaxRetries < 0 {
		return nil, fmt.Errorf("GUTENDEX_RETRIES must not be negative, got %d", cfg.Gutendex.MaxRetries)
	}

	return cfg, nil
}
