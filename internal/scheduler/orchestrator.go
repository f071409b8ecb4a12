package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/pipeline"
	"github.com/fortuna/spreadline/internal/predict"
)

// Refresher runs a history build.
type Refresher interface {
	Refresh(ctx context.Context) (pipeline.Result, error)
}

// Forecaster scores the pending week.
type Forecaster interface {
	Forecast(ctx context.Context) (predict.Report, error)
}

// Publisher delivers a scored week.
type Publisher interface {
	PublishReport(ctx context.Context, rep predict.Report) (int, error)
}

// Orchestrator runs the refresh on a cron schedule and, when a forecaster
// and publisher are attached, publishes the next week's predictions after
// each successful refresh.
type Orchestrator struct {
	refresher  Refresher
	forecaster Forecaster
	publisher  Publisher
	config     *Config
	logger     *zap.Logger

	cron *cron.Cron

	mu                sync.Mutex
	consecutiveErrors int
	lastRun           time.Time
	lastErr           error
}

// Config holds scheduler configuration
type Config struct {
	Schedule   string         // cron spec, default: "0 6 * * 2"
	Location   *time.Location // default: America/New_York
	RunOnStart bool           // default: false
	RunTimeout time.Duration  // default: 30m
	MaxRetries int            // default: 3
	RetryDelay time.Duration  // default: 1m
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule:   "0 6 * * 2",
		RunTimeout: 30 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}
}

// NewOrchestrator creates a scheduler. forecaster and publisher may be nil.
func NewOrchestrator(refresher Refresher, forecaster Forecaster, publisher Publisher, config *Config, logger *zap.Logger) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	loc := config.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/New_York")
		if err != nil {
			logger.Warn("failed to load America/New_York, using UTC", zap.Error(err))
			loc = time.UTC
		}
	}

	o := &Orchestrator{
		refresher:  refresher,
		forecaster: forecaster,
		publisher:  publisher,
		config:     config,
		logger:     logger,
		cron:       cron.New(cron.WithLocation(loc)),
	}
	if _, err := o.cron.AddFunc(config.Schedule, o.tick); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", config.Schedule, err)
	}
	return o, nil
}

// Start begins the schedule and blocks until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.cron.Start()
	o.logger.Info("scheduler started",
		zap.String("schedule", o.config.Schedule),
		zap.Time("next_run", o.nextRun()))

	if o.config.RunOnStart {
		go o.tick()
	}

	<-ctx.Done()
	o.logger.Info("scheduler stopping")
}

// Stop halts the schedule and waits for a running job to finish.
func (o *Orchestrator) Stop() {
	<-o.cron.Stop().Done()
	o.logger.Info("scheduler stopped")
}

func (o *Orchestrator) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.RunTimeout)
	defer cancel()
	if err := o.RunOnce(ctx); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
		o.logger.Error("scheduled refresh failed", zap.Error(err))
	}
}

// RunOnce refreshes with retries, then forecasts and publishes. A refresh
// that finds another run active is skipped, not retried.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	var (
		res pipeline.Result
		err error
	)
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		res, err = o.refresher.Refresh(ctx)
		if err == nil || errors.Is(err, pipeline.ErrRunInProgress) {
			break
		}

		o.logger.Warn("refresh attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", o.config.MaxRetries),
			zap.Error(err))

		if attempt < o.config.MaxRetries {
			select {
			case <-ctx.Done():
				o.record(ctx.Err())
				return fmt.Errorf("refresh: %w", ctx.Err())
			case <-time.After(o.config.RetryDelay):
			}
		}
	}

	if errors.Is(err, pipeline.ErrRunInProgress) {
		o.logger.Info("refresh skipped, another run is active")
		return err
	}
	if err != nil {
		o.record(err)
		return fmt.Errorf("refresh: %w", err)
	}
	o.logger.Info("refresh complete",
		zap.Int("games", res.Games),
		zap.Int("weeks", res.Weeks),
		zap.Int("upstream_failures", res.Failures))

	if o.forecaster != nil && o.publisher != nil {
		if err := o.publish(ctx); err != nil {
			o.record(err)
			return err
		}
	}
	o.record(nil)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context) error {
	rep, err := o.forecaster.Forecast(ctx)
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	n, err := o.publisher.PublishReport(ctx, rep)
	if err != nil {
		return fmt.Errorf("publish predictions: %w", err)
	}
	o.logger.Info("predictions published", zap.Int("count", n))
	return nil
}

func (o *Orchestrator) record(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastRun = time.Now()
	o.lastErr = err
	if err != nil {
		o.consecutiveErrors++
		return
	}
	o.consecutiveErrors = 0
}

func (o *Orchestrator) nextRun() time.Time {
	entries := o.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := map[string]interface{}{
		"schedule":           o.config.Schedule,
		"next_run":           o.nextRun(),
		"consecutive_errors": o.consecutiveErrors,
		"publishing":         o.forecaster != nil && o.publisher != nil,
	}
	if !o.lastRun.IsZero() {
		status["last_run"] = o.lastRun
	}
	if o.lastErr != nil {
		status["last_error"] = o.lastErr.Error()
	}
	return status
}
