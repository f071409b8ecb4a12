package games

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/ingest/cfbd"
)

// ConsensusProvider is the upstream's cross-provider aggregate line.
const ConsensusProvider = "consensus"

// Source lists games and betting lines.
type Source interface {
	Games(ctx context.Context, q cfbd.GamesQuery) ([]cfbd.Game, error)
	Lines(ctx context.Context, q cfbd.LinesQuery) ([]cfbd.BettingGame, error)
}

// Builder turns upstream games and lines into skeletal records.
type Builder struct {
	src    Source
	logger *zap.Logger
}

// NewBuilder creates a record builder.
func NewBuilder(src Source, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{src: src, logger: logger.Named("games")}
}

// Historical returns every decided game from fromYear through toYear inclusive,
// ordered by year and week.
func (b *Builder) Historical(ctx context.Context, fromYear, toYear int) ([]Record, error) {
	var out []Record
	for year := fromYear; year <= toYear; year++ {
		records, err := b.season(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.Decided() {
				out = append(out, r)
			}
		}
		b.logger.Info("gathered games", zap.Int("year", year), zap.Int("decided_total", len(out)))
	}
	SortByWeek(out)
	return out, nil
}

// Pending returns the games of a season that have no score yet.
func (b *Builder) Pending(ctx context.Context, year int) ([]Record, error) {
	records, err := b.season(ctx, year)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if r.Pending() {
			out = append(out, r)
		}
	}
	SortByWeek(out)
	return out, nil
}

func (b *Builder) season(ctx context.Context, year int) ([]Record, error) {
	gs, err := b.src.Games(ctx, cfbd.GamesQuery{Year: year})
	if err != nil {
		return nil, fmt.Errorf("list games for %d: %w", year, err)
	}

	lines := make(map[int64][]cfbd.Line)
	bgs, err := b.src.Lines(ctx, cfbd.LinesQuery{Year: year})
	if err != nil {
		// Spreads are optional; the rest of the record is still useful.
		b.logger.Warn("betting lines unavailable", zap.Int("year", year), zap.Error(err))
	}
	for _, bg := range bgs {
		lines[bg.ID] = bg.Lines
	}

	out := make([]Record, 0, len(gs))
	for _, g := range gs {
		r := FromGame(g)
		r.Spread = ResolveSpread(lines[g.ID])
		out = append(out, r)
	}
	return out, nil
}

// ResolveSpread picks the consensus line when it carries a spread, otherwise
// the first provider's. It returns nil when no usable line was posted.
func ResolveSpread(lines []cfbd.Line) *float64 {
	for _, l := range lines {
		if l.Provider == ConsensusProvider && l.Spread != nil {
			v := *l.Spread
			return &v
		}
	}
	if len(lines) > 0 && lines[0].Spread != nil {
		v := *lines[0].Spread
		return &v
	}
	return nil
}
