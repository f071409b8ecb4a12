package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/spreadline/internal/aggregate"
	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/store"
)

// Upstream is everything a run reads from the stats service.
type Upstream interface {
	games.Source
	aggregate.StatsSource
}

// Invalidator drops cached upstream responses.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Runner executes one assembly at a time. Concurrent calls must be
// serialized by the caller; Service does that.
type Runner struct {
	builder *games.Builder
	agg     *aggregate.Aggregator
	store   store.Store
	inv     Invalidator
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the clock used to pick the current season.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithInvalidator drops the current season's cached stats windows before each
// history build, since the upstream keeps revising an unfinished season.
func WithInvalidator(inv Invalidator) Option {
	return func(r *Runner) { r.inv = inv }
}

// NewRunner constructs a runner over an upstream and a cache store.
func NewRunner(up Upstream, st store.Store, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		builder: games.NewBuilder(up, logger),
		agg:     aggregate.New(up, logger),
		store:   st,
		now:     time.Now,
		logger:  logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CurrentSeason is the season of the runner's clock. Bowl games and the
// playoff run into January, so a season is named for the year it started:
// anything before August belongs to the previous year's season.
func (r *Runner) CurrentSeason() int {
	return SeasonOf(r.now())
}

// SeasonOf returns the season in play at t.
func SeasonOf(t time.Time) int {
	if t.Month() < time.August {
		return t.Year() - 1
	}
	return t.Year()
}

// BuildHistory loads the cache, assembles every decided game from the latest
// cached year through throughYear (the current season when zero), merges them
// over that range and persists the cache. Nothing is persisted when the run
// fails.
func (r *Runner) BuildHistory(ctx context.Context, throughYear int, rep Reporter) (Result, error) {
	if rep == nil {
		rep = nopReporter{}
	}
	res := Result{Kind: RunKindHistory, StartedAt: r.now()}

	fail := func(err error) (Result, error) {
		rep.OnRunError(err)
		return res, err
	}

	cache, err := r.store.Load(ctx)
	if err != nil {
		return fail(fmt.Errorf("load cache: %w", err))
	}

	res.FromYear = cache.MaxYear()
	res.ToYear = throughYear
	if res.ToYear == 0 {
		res.ToYear = r.CurrentSeason()
	}
	rep.OnRunStart(RunKindHistory, res.FromYear, res.ToYear)

	records, err := r.builder.Historical(ctx, res.FromYear, res.ToYear)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err))
	}
	r.invalidateSeason(ctx, records, r.CurrentSeason())
	if len(records) == 0 {
		rep.OnProgress("no decided games in range", 0, 0)
		res.FinishedAt = r.now()
		rep.OnRunComplete(res)
		return res, nil
	}

	st := aggregate.NewRunState()
	if err := r.decorate(ctx, st, records, rep); err != nil {
		return fail(err)
	}
	res.Requests, res.Failures = st.Requests(), st.Failures()
	if st.AllFailed() {
		return fail(fmt.Errorf("%w: all %d stats requests failed", ErrUpstreamUnavailable, st.Requests()))
	}

	// Keys already cached count too, so re-running a year reproduces its
	// records exactly.
	res.Imputed = imputeAll(records, cache.FeatureKeys())

	merged := cache.Merge(records)
	res.Games, res.Weeks = merged.Games, merged.Weeks
	if err := r.store.Persist(ctx, cache); err != nil {
		return fail(fmt.Errorf("persist cache: %w", err))
	}

	res.FinishedAt = r.now()
	rep.OnRunComplete(res)
	return res, nil
}

// LatestUnprocessed assembles the next undecided week of a season (the current
// season when year is zero) without reading or writing the cache.
func (r *Runner) LatestUnprocessed(ctx context.Context, year int, rep Reporter) ([]games.Record, Result, error) {
	if rep == nil {
		rep = nopReporter{}
	}
	if year == 0 {
		year = r.CurrentSeason()
	}
	res := Result{Kind: RunKindPending, FromYear: year, ToYear: year, StartedAt: r.now()}
	rep.OnRunStart(RunKindPending, year, year)

	pending, err := r.builder.Pending(ctx, year)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		rep.OnRunError(err)
		return nil, res, err
	}
	next := NextWeek(pending)

	st := aggregate.NewRunState()
	if err := r.decorate(ctx, st, next, rep); err != nil {
		rep.OnRunError(err)
		return nil, res, err
	}
	res.Requests, res.Failures = st.Requests(), st.Failures()
	if st.AllFailed() {
		err := fmt.Errorf("%w: all %d stats requests failed", ErrUpstreamUnavailable, st.Requests())
		rep.OnRunError(err)
		return nil, res, err
	}

	res.Imputed = imputeAll(next, nil)
	res.Games = len(next)
	res.FinishedAt = r.now()
	rep.OnRunComplete(res)
	return next, res, nil
}

// Table returns the cached history as a rectangular table, one year when year
// is non-zero.
func (r *Runner) Table(ctx context.Context, year int) (store.Table, error) {
	cache, err := r.store.Load(ctx)
	if err != nil {
		return store.Table{}, fmt.Errorf("load cache: %w", err)
	}
	records := cache.Records()
	if year != 0 {
		records = cache.Year(year)
	}
	return store.NewTable(records), nil
}

// NextWeek keeps only the games of the lowest week in a (year, week) sorted
// pending list.
func NextWeek(pending []games.Record) []games.Record {
	if len(pending) == 0 {
		return nil
	}
	week := pending[0].Week
	var out []games.Record
	for _, g := range pending {
		if g.Year == pending[0].Year && g.Week == week {
			out = append(out, g)
		}
	}
	return out
}

func (r *Runner) decorate(ctx context.Context, st *aggregate.RunState, records []games.Record, rep Reporter) error {
	games.SortByWeek(records)
	lastYear, lastWeek := -1, -1
	for i := range records {
		rec := &records[i]
		if rec.Year != lastYear || rec.Week != lastWeek {
			lastYear, lastWeek = rec.Year, rec.Week
			rep.OnWeekStart(rec.Year, rec.Week)
		}
		if err := r.agg.Decorate(ctx, st, rec); err != nil {
			return err
		}
		rep.OnGameProcessed(rec.GameID)
		if (i+1)%100 == 0 || i+1 == len(records) {
			rep.OnProgress("decorated games", i+1, len(records))
		}
	}
	return nil
}

// invalidateSeason drops the cached stats windows of every week of season
// present in records. A failure leaves stale entries to expire on their TTL.
func (r *Runner) invalidateSeason(ctx context.Context, records []games.Record, season int) {
	if r.inv == nil {
		return
	}
	seen := make(map[int]bool)
	var keys []string
	for _, rec := range records {
		if rec.Year != season || rec.Week <= 1 || seen[rec.Week] {
			continue
		}
		seen[rec.Week] = true
		current, lastThree := aggregate.WeekWindows(season, rec.Week)
		keys = append(keys, current.CacheKeys()...)
		keys = append(keys, lastThree.CacheKeys()...)
	}
	if len(keys) == 0 {
		return
	}
	if err := r.inv.Invalidate(ctx, keys...); err != nil {
		r.logger.Warn("could not invalidate cached stats", zap.Int("season", season), zap.Error(err))
		return
	}
	r.logger.Debug("invalidated cached stats", zap.Int("season", season), zap.Int("keys", len(keys)))
}

// imputeAll fills every record to the union of the run's keys and known.
func imputeAll(records []games.Record, known []string) int {
	sets := make([]features.Set, len(records))
	for i := range records {
		if records[i].Features == nil {
			records[i].Features = make(features.Set)
		}
		sets[i] = records[i].Features
	}
	keys := features.KeyUnion(sets...)
	if len(known) > 0 {
		keys = features.KeyUnion(append(sets, keySet(known))...)
	}
	return features.Impute(keys, sets...)
}

func keySet(keys []string) features.Set {
	s := make(features.Set, len(keys))
	for _, k := range keys {
		s[k] = features.Value{}
	}
	return s
}
