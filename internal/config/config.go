// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port        string        `env:"PORT" envDefault:"4000"`
	DatabaseURL string        `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	APIToken    string        `env:"API_TOKEN"`
	RateLimit   int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`

	Providers ProviderConfig
}

// ProviderConfig holds credentials and endpoints for the external APIs
type ProviderConfig struct {
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	GeocodeKey string `env:"GEOCODE_API_KEY,required,notEmpty"`
	WeatherKey string `env:"DARKSKY_API_KEY,required,notEmpty"`
	YelpKey    string `env:"YELP_API_KEY,required,notEmpty"`
	MoviesKey  string `env:"TMDB_API_KEY,required,notEmpty"`

	// Empty means the provider's public endpoint.
	GeocodeURL string `env:"GEOCODE_URL"`
	WeatherURL string `env:"DARKSKY_URL"`
	YelpURL    string `env:"YELP_URL"`
	MoviesURL  string `env:"TMDB_URL"`
}

// Load reads an optional .env file, then configuration from environment variables
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit))
	}
	if c.Providers.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.Providers.Timeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HasRedis returns true if the row cache is configured
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// ParseLevel maps LOG_LEVEL to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
	}
}
