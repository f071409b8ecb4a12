package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/pipeline"
	"github.com/fortuna/spreadline/internal/predict"
	"github.com/fortuna/spreadline/internal/store"
)

const (
	serviceName    = "spreadline"
	serviceVersion = "1.0.0"
)

// Pipeline is the run surface the API drives.
type Pipeline interface {
	Refresh(ctx context.Context) (pipeline.Result, error)
	Pending(ctx context.Context) ([]games.Record, error)
	Table(ctx context.Context, year int) (store.Table, error)
	LastRefresh() (pipeline.Result, bool)
}

// Forecaster scores the pending week.
type Forecaster interface {
	Forecast(ctx context.Context) (predict.Report, error)
}

// HealthChecker is a dependency checked by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusProvider reports scheduler state.
type StatusProvider interface {
	GetStatus() map[string]interface{}
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	pipeline   Pipeline
	forecaster Forecaster
	checks     map[string]HealthChecker
	scheduler  StatusProvider
	stream     http.Handler
	logger     *zap.Logger
}

// NewHandler creates a new handler. forecaster may be nil when no model is
// configured.
func NewHandler(p Pipeline, forecaster Forecaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		pipeline:   p,
		forecaster: forecaster,
		checks:     make(map[string]HealthChecker),
		logger:     logger.Named("rest"),
	}
}

// AddHealthCheck registers a dependency for /health.
func (h *Handler) AddHealthCheck(name string, c HealthChecker) {
	h.checks[name] = c
}

// SetScheduler exposes scheduler status on /health.
func (h *Handler) SetScheduler(s StatusProvider) {
	h.scheduler = s
}

// SetStream mounts a live event feed on /ws.
func (h *Handler) SetStream(stream http.Handler) {
	h.stream = stream
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, c := range h.checks {
		if err := c.HealthCheck(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	if h.scheduler != nil {
		body["scheduler"] = h.scheduler.GetStatus()
	}
	respondJSON(w, status, body)
}

// GetFeatures returns the cached training table, optionally for one year.
// format=csv streams the table as CSV.
func (h *Handler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	year := 0
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil || y < store.SeedYear {
			respondError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	table, err := h.pipeline.Table(r.Context(), year)
	if err != nil {
		respondPipelineError(w, "Failed to load feature cache", err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := table.WriteCSV(w); err != nil {
			h.logger.Warn("csv export interrupted", zap.Int("year", year), zap.Error(err))
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"year":    year,
		"columns": table.Columns(),
		"games":   table.Records,
		"count":   len(table.Records),
	})
}

// GetPendingGames returns the decorated next week of the current season.
func (h *Handler) GetPendingGames(w http.ResponseWriter, r *http.Request) {
	records, err := h.pipeline.Pending(r.Context())
	if err != nil {
		respondPipelineError(w, "Failed to assemble pending games", err)
		return
	}
	if records == nil {
		records = []games.Record{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": records,
		"count": len(records),
	})
}

// GetPredictions scores the pending week.
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	if h.forecaster == nil {
		respondError(w, http.StatusServiceUnavailable, "No model configured", nil)
		return
	}
	rep, err := h.forecaster.Forecast(r.Context())
	if err != nil {
		respondPipelineError(w, "Failed to score pending games", err)
		return
	}
	if rep.Predictions == nil {
		rep.Predictions = []predict.Prediction{}
	}
	respondJSON(w, http.StatusOK, rep)
}

// TriggerRefresh runs a history build and returns its summary.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.pipeline.Refresh(r.Context())
	if err != nil {
		respondPipelineError(w, "Refresh failed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetLastRefresh returns the most recent successful refresh.
func (h *Handler) GetLastRefresh(w http.ResponseWriter, r *http.Request) {
	res, ok := h.pipeline.LastRefresh()
	if !ok {
		respondError(w, http.StatusNotFound, "No refresh has completed yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func respondPipelineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		respondError(w, http.StatusConflict, message, err)
	case errors.Is(err, pipeline.ErrUpstreamUnavailable):
		respondError(w, http.StatusBadGateway, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
