package aggregate

import (
	"context"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/ingest/cfbd"
)

// Placeholder query used for week-one games: it only supplies the names of the
// season statistics, and every value derived from it is zero.
var PlaceholderQuery = cfbd.StatsQuery{
	Year:               2022,
	EndWeek:            5,
	Team:               "Texas",
	ExcludeGarbageTime: true,
}

const (
	// FirstCoveredYear is the first season with upstream history; its prior
	// season window is zero-filled.
	FirstCoveredYear = 2013

	// The upstream advanced-stats response for this week is corrupt.
	corruptYear = 2014
	corruptWeek = 2
)

// StatsSource fetches team statistics for a window.
type StatsSource interface {
	SeasonStats(ctx context.Context, q cfbd.StatsQuery) ([]cfbd.SeasonStat, error)
	AdvancedSeasonStats(ctx context.Context, q cfbd.StatsQuery) ([]cfbd.AdvancedSeasonStat, error)
}

// Aggregator decorates game records with the three windowed feature blocks of
// both teams.
type Aggregator struct {
	src    StatsSource
	norm   features.Normalizer
	logger *zap.Logger
}

// New creates an Aggregator.
func New(src StatsSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{src: src, logger: logger.Named("aggregate")}
}

// Decorate replaces r.Features with the season-to-date, last-season and
// trailing-three features of both teams. Upstream faults never fail the call;
// they degrade the affected windows to empty snapshots. Only a cancelled
// context is returned as an error.
func (a *Aggregator) Decorate(ctx context.Context, st *RunState, r *games.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	windows := make(map[features.Window]func(team string) features.TeamSet, len(features.Windows))

	if r.Week <= 1 {
		zero := a.norm.Zero(a.placeholder(ctx, st).Season)
		windows[features.Current] = func(string) features.TeamSet { return zero }
		windows[features.LastThree] = func(string) features.TeamSet { return zero }
		// Later weeks of this season must not reuse last season's windows.
		st.haveWeek = true
		st.week = weekKey{r.Year, r.Week}
		st.current, st.lastThree = Snapshot{}, Snapshot{}
	} else {
		a.refreshWeek(ctx, st, r.Year, r.Week)
		cur, last3 := st.current, st.lastThree
		windows[features.Current] = a.teamFrom(cur)
		windows[features.LastThree] = a.teamFrom(last3)
	}

	if r.Year <= FirstCoveredYear {
		zero := a.norm.Zero(a.placeholder(ctx, st).Season)
		windows[features.LastSeason] = func(string) features.TeamSet { return zero }
	} else {
		a.refreshPrior(ctx, st, r.Year)
		windows[features.LastSeason] = a.teamFrom(st.prior)
	}

	out := make(features.Set)
	for _, side := range []struct {
		loc  features.Location
		team string
	}{
		{features.Home, r.HomeTeam},
		{features.Away, r.AwayTeam},
	} {
		for _, w := range features.Windows {
			out.Merge(windows[w](side.team).Place(side.loc, w))
		}
	}
	r.Features = out
	return nil
}

func (a *Aggregator) teamFrom(s Snapshot) func(string) features.TeamSet {
	return func(team string) features.TeamSet {
		season, adv := s.Team(team)
		return a.norm.Normalize(season, adv)
	}
}

func (a *Aggregator) refreshWeek(ctx context.Context, st *RunState, year, week int) {
	key := weekKey{year, week}
	if st.haveWeek && st.week == key {
		return
	}
	if year == corruptYear && week == corruptWeek {
		a.logger.Info("reusing previous windows for known-bad week",
			zap.Int("year", year), zap.Int("week", week))
		st.haveWeek = true
		st.week = key
		return
	}

	a.logger.Info("compiling week", zap.Int("year", year), zap.Int("week", week))
	current, lastThree := WeekWindows(year, week)
	st.current = a.fetch(ctx, st, "current", current)
	st.lastThree = a.fetch(ctx, st, "lastThree", lastThree)
	st.haveWeek = true
	st.week = key
}

// WeekWindows returns the season-to-date and trailing-three queries used for
// games of week (week > 1).
func WeekWindows(year, week int) (current, lastThree cfbd.StatsQuery) {
	current = cfbd.StatsQuery{
		Year:               year,
		EndWeek:            week - 1,
		ExcludeGarbageTime: true,
	}
	lastThree = cfbd.StatsQuery{
		Year:               year,
		StartWeek:          max(week-3, 1),
		EndWeek:            week - 1,
		ExcludeGarbageTime: true,
	}
	return current, lastThree
}

func (a *Aggregator) refreshPrior(ctx context.Context, st *RunState, year int) {
	if st.priorYear == year {
		return
	}
	st.prior = a.fetch(ctx, st, "lastSeason", cfbd.StatsQuery{
		Year:               year - 1,
		ExcludeGarbageTime: true,
	})
	st.priorYear = year
}

func (a *Aggregator) placeholder(ctx context.Context, st *RunState) Snapshot {
	if st.placeholder == nil {
		ph := a.fetch(ctx, st, "placeholder", PlaceholderQuery)
		st.placeholder = &ph
	}
	return *st.placeholder
}

// fetch issues both stats calls for a window. A failed call leaves its half of
// the snapshot empty.
func (a *Aggregator) fetch(ctx context.Context, st *RunState, window string, q cfbd.StatsQuery) Snapshot {
	fields := []zap.Field{
		zap.String("window", window),
		zap.Int("year", q.Year),
		zap.Int("start_week", q.StartWeek),
		zap.Int("end_week", q.EndWeek),
	}

	st.requests++
	season, err := a.src.SeasonStats(ctx, q)
	if err != nil {
		st.failures++
		season = nil
		a.logger.Warn("season stats unavailable", append(fields, zap.Error(err))...)
	}

	st.requests++
	adv, err := a.src.AdvancedSeasonStats(ctx, q)
	if err != nil {
		st.failures++
		adv = nil
		a.logger.Warn("advanced stats unavailable", append(fields, zap.Error(err))...)
	}

	a.logger.Debug("fetched window", append(fields,
		zap.Int("season_rows", len(season)),
		zap.Int("advanced_rows", len(adv)))...)
	return NewSnapshot(season, adv)
}
