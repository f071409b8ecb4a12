package predict

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/store"
)

// Source supplies the cached history and the next undecided week.
type Source interface {
	Table(ctx context.Context, year int) (store.Table, error)
	Pending(ctx context.Context) ([]games.Record, error)
}

// Forecaster scores the pending week against the cached history.
type Forecaster struct {
	src    Source
	model  *LinearModel
	logger *zap.Logger
}

// NewForecaster creates a forecaster for a loaded model.
func NewForecaster(src Source, model *LinearModel, logger *zap.Logger) *Forecaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forecaster{src: src, model: model, logger: logger.Named("predict")}
}

// Forecast decorates the pending week and scores it.
func (f *Forecaster) Forecast(ctx context.Context) (Report, error) {
	history, err := f.src.Table(ctx, 0)
	if err != nil {
		return Report{}, fmt.Errorf("load history: %w", err)
	}
	pending, err := f.src.Pending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("pending games: %w", err)
	}

	rep := Score(f.model, history.Records, pending)
	for _, s := range rep.Skipped {
		f.logger.Warn("game skipped", zap.Int64("game_id", s.GameID), zap.String("column", s.Column))
	}
	f.logger.Info("forecast complete",
		zap.Int("history_rows", len(history.Records)),
		zap.Int("predictions", len(rep.Predictions)),
		zap.Int("skipped", len(rep.Skipped)))
	return rep, nil
}
