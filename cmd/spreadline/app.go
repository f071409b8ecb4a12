package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/cache"
	"github.com/fortuna/spreadline/internal/config"
	"github.com/fortuna/spreadline/internal/ingest/cfbd"
	"github.com/fortuna/spreadline/internal/pipeline"
	"github.com/fortuna/spreadline/internal/publisher"
	"github.com/fortuna/spreadline/internal/store"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	redis  *cache.RedisCache
	db     *store.Database
	store  store.Store
	client *cfbd.Client

	runner  *pipeline.Runner
	service *pipeline.Service
}

// newApp connects the backends. redisRetries bounds the connection attempts
// when REDIS_URL is set; with a single attempt a failure only disables the
// response cache.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, redisRetries int) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.RedisURL != "" {
		rc, err := connectRedis(cfg.RedisURL, redisRetries, 2*time.Second, logger)
		switch {
		case err == nil:
			a.redis = rc
			logger.Info("✓ Connected to Redis")
		case redisRetries > 1:
			return nil, err
		default:
			logger.Warn("Redis unavailable, continuing without response cache", zap.Error(err))
		}
	}

	opts := []cfbd.Option{
		cfbd.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		cfbd.WithLogger(logger),
	}
	var runnerOpts []pipeline.Option
	if a.redis != nil {
		rc := cache.NewResponseCache(a.redis.Client(), cfg.ResponseCacheTTL, logger)
		opts = append(opts, cfbd.WithRawCache(rc))
		runnerOpts = append(runnerOpts, pipeline.WithInvalidator(rc))
	}
	a.client = cfbd.New(cfg.BaseURL, cfg.APIKey, opts...)

	switch cfg.CacheBackend {
	case config.BackendPostgres:
		db, err := store.NewDatabase(cfg.DatabaseDSN, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		logger.Info("✓ Connected to database")

		if err := db.RunMigrations(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("✓ Database migrations applied")
		a.store = store.NewPostgresStore(db)
	default:
		a.store = store.NewFileStore(cfg.CachePath)
		logger.Info("✓ Using file cache", zap.String("path", cfg.CachePath))
	}

	a.runner = pipeline.NewRunner(a.client, a.store, logger, runnerOpts...)
	a.service = pipeline.NewService(a.runner, logger)
	return a, nil
}

// publisher returns a stream publisher, or nil without Redis.
func (a *app) publisher() *publisher.RedisStreamPublisher {
	if a.redis == nil {
		return nil
	}
	return publisher.NewRedisStreamPublisher(a.redis.Client(), a.cfg.PredictionStream)
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func connectRedis(url string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*cache.RedisCache, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	for i := 0; i < maxRetries; i++ {
		var rc *cache.RedisCache
		rc, err = cache.NewRedisCache(url)
		if err == nil {
			return rc, nil
		}
		if i < maxRetries-1 {
			logger.Warn("Redis connection attempt failed",
				zap.Int("attempt", i+1),
				zap.Int("max_retries", maxRetries),
				zap.Duration("retry_in", retryDelay),
				zap.Error(err))
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("connect to Redis after %d attempts: %w", maxRetries, err)
}
