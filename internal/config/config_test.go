package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"CFBD_API_KEY", "CFBD_BASE_URL", "HTTP_TIMEOUT", "CACHE_BACKEND", "CACHE_PATH",
		"DATABASE_DSN", "REDIS_URL", "RESPONSE_CACHE_TTL", "MODEL_PATH", "REST_PORT",
		"REFRESH_SCHEDULE", "LOG_LEVEL", "LOG_FORMAT", "PREDICTIONS_STREAM",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	assert.Equal(t, "https://api.collegefootballdata.com", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, BackendFile, cfg.CacheBackend)
	assert.Equal(t, "data/feature_cache.json", cfg.CachePath)
	assert.Equal(t, 24*time.Hour, cfg.ResponseCacheTTL)
	assert.Equal(t, "predictions.cfb.spread", cfg.PredictionStream)
	assert.Equal(t, "8080", cfg.RESTPort)
	assert.Equal(t, "0 6 * * 2", cfg.RefreshSchedule)
	assert.Empty(t, cfg.RedisURL)

	assert.EqualError(t, cfg.Validate(), "CFBD_API_KEY is required")
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CFBD_API_KEY", "k")
	t.Setenv("HTTP_TIMEOUT", "45")
	t.Setenv("RESPONSE_CACHE_TTL", "2h")
	t.Setenv("CACHE_BACKEND", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://localhost/cfb")
	t.Setenv("LOG_FORMAT", "console")

	cfg := FromEnv()
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Hour, cfg.ResponseCacheTTL)
	assert.Equal(t, "console", cfg.LogFormat)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_BadDurationFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_TIMEOUT", "soon")
	assert.Equal(t, 30*time.Second, FromEnv().HTTPTimeout)
}

func TestValidate(t *testing.T) {
	base := Config{APIKey: "k", CacheBackend: BackendFile, CachePath: "c.json", HTTPTimeout: time.Second}
	require.NoError(t, base.Validate())

	tests := map[string]func(c *Config){
		"postgres without dsn": func(c *Config) { c.CacheBackend = BackendPostgres },
		"file without path":    func(c *Config) { c.CachePath = "" },
		"unknown backend":      func(c *Config) { c.CacheBackend = "s3" },
		"zero timeout":         func(c *Config) { c.HTTPTimeout = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
