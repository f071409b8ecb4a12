package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/fortuna/spreadline/internal/ingest/cfbd"
	"github.com/fortuna/spreadline/internal/publisher"
)

// Cache backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds process settings read from the environment.
type Config struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration

	CacheBackend string
	CachePath    string
	DatabaseDSN  string

	RedisURL         string
	ResponseCacheTTL time.Duration
	PredictionStream string

	ModelPath       string
	RESTPort        string
	RefreshSchedule string

	LogLevel  string
	LogFormat string
}

// Load reads .env when present and then the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		APIKey:           getEnv("CFBD_API_KEY", ""),
		BaseURL:          getEnv("CFBD_BASE_URL", cfbd.BaseURL),
		HTTPTimeout:      getDuration("HTTP_TIMEOUT", 30*time.Second),
		CacheBackend:     getEnv("CACHE_BACKEND", BackendFile),
		CachePath:        getEnv("CACHE_PATH", "data/feature_cache.json"),
		DatabaseDSN:      getEnv("DATABASE_DSN", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		ResponseCacheTTL: getDuration("RESPONSE_CACHE_TTL", 24*time.Hour),
		PredictionStream: getEnv("PREDICTIONS_STREAM", publisher.DefaultPredictionStream),
		ModelPath:        getEnv("MODEL_PATH", "model.json"),
		RESTPort:         getEnv("REST_PORT", "8080"),
		// Tuesdays at 06:00, after the weekend's games are final.
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 6 * * 2"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("CFBD_API_KEY is required")
	}
	switch c.CacheBackend {
	case BackendFile:
		if c.CachePath == "" {
			return errors.New("CACHE_PATH is required for the file backend")
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
