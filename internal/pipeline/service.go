package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/store"
)

// Service serializes runs triggered by the scheduler, the REST API and the
// CLI within one process. A trigger that arrives while a run is active is
// rejected rather than queued.
type Service struct {
	runner *Runner
	logger *zap.Logger

	running sync.Mutex

	mu        sync.RWMutex
	last      *Result
	reporters []Reporter
}

// NewService wraps a runner.
func NewService(runner *Runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{runner: runner, logger: logger.Named("service")}
}

// AddReporter subscribes rep to the progress of every run the service starts.
func (s *Service) AddReporter(rep Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = append(s.reporters, rep)
}

func (s *Service) reporter() Reporter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(MultiReporter{LogReporter{Logger: s.logger}}, s.reporters...)
}

// Refresh runs a history build through the current season.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	if !s.running.TryLock() {
		return Result{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	res, err := s.runner.BuildHistory(ctx, 0, s.reporter())
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()
	return res, nil
}

// Pending assembles the next undecided week of the current season.
func (s *Service) Pending(ctx context.Context) ([]games.Record, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	records, _, err := s.runner.LatestUnprocessed(ctx, 0, s.reporter())
	return records, err
}

// Table reads the cached history. It does not take the run lock: stores
// replace their contents atomically.
func (s *Service) Table(ctx context.Context, year int) (store.Table, error) {
	return s.runner.Table(ctx, year)
}

// LastRefresh returns the result of the most recent successful refresh.
func (s *Service) LastRefresh() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}
