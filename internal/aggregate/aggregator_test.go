package aggregate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/ingest/cfbd"
)

type fakeStats struct {
	season   []cfbd.StatsQuery
	advanced []cfbd.StatsQuery
	fail     bool
}

func (f *fakeStats) SeasonStats(_ context.Context, q cfbd.StatsQuery) ([]cfbd.SeasonStat, error) {
	f.season = append(f.season, q)
	if f.fail {
		return nil, &cfbd.StatusError{Endpoint: cfbd.SeasonStatsPath, StatusCode: 503}
	}
	teams := []string{"Texas", "Rice", "Baylor", "TCU"}
	if q.Team != "" {
		teams = []string{q.Team}
	}
	var rows []cfbd.SeasonStat
	for _, team := range teams {
		rows = append(rows,
			cfbd.SeasonStat{Season: q.Year, Team: team, StatName: "games", StatValue: 4},
			cfbd.SeasonStat{Season: q.Year, Team: team, StatName: "rushingYards", StatValue: 600},
		)
	}
	return rows, nil
}

func (f *fakeStats) AdvancedSeasonStats(_ context.Context, q cfbd.StatsQuery) ([]cfbd.AdvancedSeasonStat, error) {
	f.advanced = append(f.advanced, q)
	if f.fail {
		return nil, errors.New("dial tcp: connection refused")
	}
	return []cfbd.AdvancedSeasonStat{{
		Season:  q.Year,
		Team:    "Texas",
		Offense: map[string]interface{}{"drives": 40.0, "totalPPA": 80.0, "ppa": 0.3},
		Defense: map[string]interface{}{"drives": 44.0, "totalPPA": 22.0},
	}}, nil
}

// weekCalls counts calls for the in-season windows ending at endWeek.
func (f *fakeStats) weekCalls(year, endWeek int) int {
	n := 0
	for _, qs := range [][]cfbd.StatsQuery{f.season, f.advanced} {
		for _, q := range qs {
			if q.Year == year && q.EndWeek == endWeek && q.Team == "" {
				n++
			}
		}
	}
	return n
}

func (f *fakeStats) total() int { return len(f.season) + len(f.advanced) }

func record(id int64, year, week int, home, away string) *games.Record {
	return &games.Record{GameID: id, Year: year, Week: week, HomeTeam: home, AwayTeam: away}
}

func TestDecorate_KeysAndValues(t *testing.T) {
	src := &fakeStats{}
	st := NewRunState()

	r := record(1, 2023, 5, "Texas", "Rice")
	require.NoError(t, New(src, nil).Decorate(context.Background(), st, r))

	f := r.Features
	assert.Equal(t, features.Num(150), f["home_rushingYards"])
	assert.Equal(t, features.Num(150), f["away_rushingYards_lastThree"])
	assert.Equal(t, features.Num(4), f["home_games_lastSeason"])
	assert.Equal(t, features.Num(20), f["home_offense_totalPPA"])
	assert.Equal(t, features.Num(2), f["home_offense_totalPPA_perDrive"])
	assert.Equal(t, features.Num(0.3), f["home_offense_ppa_lastThree"])
	assert.Equal(t, features.Num(5.5), f["home_defense_totalPPA_lastSeason"])
	assert.Equal(t, features.Num(0.5), f["home_defense_totalPPA_lastSeason_perDrive"])

	_, ok := f["away_offense_totalPPA"]
	assert.False(t, ok, "team without advanced data has no advanced keys before imputation")

	assert.Equal(t, []cfbd.StatsQuery{
		{Year: 2023, EndWeek: 4, ExcludeGarbageTime: true},
		{Year: 2023, StartWeek: 2, EndWeek: 4, ExcludeGarbageTime: true},
		{Year: 2022, ExcludeGarbageTime: true},
	}, src.season)
}

func TestDecorate_ReusesWindowsWithinWeek(t *testing.T) {
	src := &fakeStats{}
	agg := New(src, nil)
	st := NewRunState()
	ctx := context.Background()

	require.NoError(t, agg.Decorate(ctx, st, record(1, 2023, 6, "Texas", "Rice")))
	require.NoError(t, agg.Decorate(ctx, st, record(2, 2023, 6, "Baylor", "TCU")))

	// current + lastThree, two endpoints each, once for both games.
	assert.Equal(t, 4, src.weekCalls(2023, 5))

	require.NoError(t, agg.Decorate(ctx, st, record(3, 2023, 7, "Texas", "TCU")))
	assert.Equal(t, 4, src.weekCalls(2023, 6))

	// Prior season fetched once for the whole year.
	prior := 0
	for _, q := range src.season {
		if q.Year == 2022 {
			prior++
		}
	}
	assert.Equal(t, 1, prior)
	assert.Equal(t, 4+4+2, src.total())
}

func TestDecorate_WeekOneIsZeroFilled(t *testing.T) {
	src := &fakeStats{}
	st := NewRunState()

	r := record(1, 2023, 1, "Texas", "Rice")
	require.NoError(t, New(src, nil).Decorate(context.Background(), st, r))

	for k, v := range r.Features {
		if strings.Contains(k, "_lastSeason") {
			continue
		}
		assert.Equal(t, features.Num(0), v, k)
	}
	assert.Equal(t, features.Num(0), r.Features["home_rushingYards"])
	assert.Equal(t, features.Num(0), r.Features["away_offense_totalPPA_lastThree_perDrive"])
	assert.Equal(t, features.Num(0), r.Features["away_defense_havoc_db"])

	// Only the placeholder and the prior season were requested.
	require.Len(t, src.season, 2)
	assert.Equal(t, PlaceholderQuery, src.season[0])
}

func TestDecorate_PlaceholderFetchedOncePerRun(t *testing.T) {
	src := &fakeStats{}
	agg := New(src, nil)
	st := NewRunState()
	ctx := context.Background()

	require.NoError(t, agg.Decorate(ctx, st, record(1, 2013, 1, "Texas", "Rice")))
	require.NoError(t, agg.Decorate(ctx, st, record(2, 2013, 1, "Baylor", "TCU")))

	// 2013 has no prior season: placeholder only, nothing else.
	assert.Equal(t, []cfbd.StatsQuery{PlaceholderQuery}, src.season)
	assert.Equal(t, []cfbd.StatsQuery{PlaceholderQuery}, src.advanced)
}

func TestDecorate_FirstCoveredYearZeroesLastSeason(t *testing.T) {
	src := &fakeStats{}
	st := NewRunState()

	r := record(1, 2013, 4, "Texas", "Rice")
	require.NoError(t, New(src, nil).Decorate(context.Background(), st, r))

	assert.Equal(t, features.Num(0), r.Features["home_rushingYards_lastSeason"])
	assert.Equal(t, features.Num(0), r.Features["home_offense_totalPPA_lastSeason_perDrive"])
	assert.Equal(t, features.Num(150), r.Features["home_rushingYards"])
	for _, q := range src.season {
		assert.NotEqual(t, 2012, q.Year)
	}
}

func TestDecorate_KnownBadWeekReusesPreviousWindows(t *testing.T) {
	src := &fakeStats{}
	agg := New(src, nil)
	st := NewRunState()
	ctx := context.Background()

	prev := record(1, 2013, 14, "Texas", "Rice")
	require.NoError(t, agg.Decorate(ctx, st, prev))
	before := src.total()

	bad := record(2, 2014, 2, "Texas", "Rice")
	require.NoError(t, agg.Decorate(ctx, st, bad))

	assert.Equal(t, 0, src.weekCalls(2014, 1))
	// Only the 2013 prior-season window was added.
	assert.Equal(t, before+2, src.total())
	assert.Equal(t, prev.Features["home_rushingYards"], bad.Features["home_rushingYards"])
	assert.Equal(t, prev.Features["away_rushingYards_lastThree"], bad.Features["away_rushingYards_lastThree"])
}

func TestDecorate_KnownBadWeekAfterWeekOneIsEmpty(t *testing.T) {
	src := &fakeStats{}
	agg := New(src, nil)
	st := NewRunState()
	ctx := context.Background()

	require.NoError(t, agg.Decorate(ctx, st, record(1, 2014, 1, "Texas", "Rice")))
	bad := record(2, 2014, 2, "Texas", "Rice")
	require.NoError(t, agg.Decorate(ctx, st, bad))

	_, ok := bad.Features["home_rushingYards"]
	assert.False(t, ok, "current window left empty for imputation")
	assert.Equal(t, features.Num(150), bad.Features["home_rushingYards_lastSeason"])
}

func TestDecorate_UpstreamFaultsDegrade(t *testing.T) {
	src := &fakeStats{fail: true}
	st := NewRunState()

	r := record(1, 2023, 5, "Texas", "Rice")
	require.NoError(t, New(src, nil).Decorate(context.Background(), st, r))

	assert.Empty(t, r.Features)
	assert.Equal(t, 6, st.Requests())
	assert.Equal(t, 6, st.Failures())
	assert.True(t, st.AllFailed())
}

func TestDecorate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(&fakeStats{}, nil).Decorate(ctx, NewRunState(), record(1, 2023, 5, "Texas", "Rice"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_Team(t *testing.T) {
	s := NewSnapshot(
		[]cfbd.SeasonStat{{Team: "Texas", StatName: "games"}, {Team: "Rice", StatName: "games"}, {Team: "Texas", StatName: "sacks"}},
		[]cfbd.AdvancedSeasonStat{{Team: "Rice"}},
	)
	season, adv := s.Team("Texas")
	assert.Len(t, season, 2)
	assert.Nil(t, adv)

	season, adv = s.Team("Rice")
	assert.Len(t, season, 1)
	require.NotNil(t, adv)
	assert.Equal(t, "Rice", adv.Team)

	season, adv = Snapshot{}.Team("Texas")
	assert.Nil(t, season)
	assert.Nil(t, adv)
}
