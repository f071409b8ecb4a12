package pipeline

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUpstreamUnavailable means a run got no usable upstream data at all.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrRunInProgress is returned when a run is triggered while another is active.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
)

// RunKind identifies what a run assembles.
type RunKind string

const (
	RunKindHistory RunKind = "history"
	RunKindPending RunKind = "pending"
)

// Result summarizes one run.
type Result struct {
	Kind       RunKind   `json:"kind"`
	FromYear   int       `json:"from_year"`
	ToYear     int       `json:"to_year"`
	Games      int       `json:"games"`
	Weeks      int       `json:"weeks_written"`
	Imputed    int       `json:"imputed_values"`
	Requests   int       `json:"upstream_requests"`
	Failures   int       `json:"upstream_failures"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnRunStart(kind RunKind, fromYear, toYear int)
	OnWeekStart(year, week int)
	OnGameProcessed(gameID int64)
	OnProgress(message string, current int, total int)
	OnRunComplete(res Result)
	OnRunError(err error)
}

// MultiReporter forwards every callback to each of its reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) OnRunStart(kind RunKind, fromYear, toYear int) {
	for _, r := range m {
		r.OnRunStart(kind, fromYear, toYear)
	}
}

func (m MultiReporter) OnWeekStart(year, week int) {
	for _, r := range m {
		r.OnWeekStart(year, week)
	}
}

func (m MultiReporter) OnGameProcessed(gameID int64) {
	for _, r := range m {
		r.OnGameProcessed(gameID)
	}
}

func (m MultiReporter) OnProgress(message string, current int, total int) {
	for _, r := range m {
		r.OnProgress(message, current, total)
	}
}

func (m MultiReporter) OnRunComplete(res Result) {
	for _, r := range m {
		r.OnRunComplete(res)
	}
}

func (m MultiReporter) OnRunError(err error) {
	for _, r := range m {
		r.OnRunError(err)
	}
}

// LogReporter writes progress to a zap logger. Per-game callbacks are logged at
// debug level.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) OnRunStart(kind RunKind, fromYear, toYear int) {
	r.Logger.Info("run started", zap.String("kind", string(kind)),
		zap.Int("from_year", fromYear), zap.Int("to_year", toYear))
}

func (r LogReporter) OnWeekStart(year, week int) {
	r.Logger.Info("compiling games", zap.Int("year", year), zap.Int("week", week))
}

func (r LogReporter) OnGameProcessed(gameID int64) {
	r.Logger.Debug("game processed", zap.Int64("game_id", gameID))
}

func (r LogReporter) OnProgress(message string, current int, total int) {
	r.Logger.Info(message, zap.Int("current", current), zap.Int("total", total))
}

func (r LogReporter) OnRunComplete(res Result) {
	r.Logger.Info("run complete",
		zap.String("kind", string(res.Kind)),
		zap.Int("games", res.Games),
		zap.Int("weeks_written", res.Weeks),
		zap.Int("imputed", res.Imputed),
		zap.Int("upstream_failures", res.Failures),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
}

func (r LogReporter) OnRunError(err error) {
	r.Logger.Error("run failed", zap.Error(err))
}

type nopReporter struct{}

func (nopReporter) OnRunStart(RunKind, int, int) {}
func (nopReporter) OnWeekStart(int, int) {}
func (nopReporter) OnGameProcessed(int64) {}
func (nopReporter) OnProgress(string, int, int) {}
func (nopReporter) OnRunComplete(Result) {}
func (nopReporter) OnRunError(error) {}
