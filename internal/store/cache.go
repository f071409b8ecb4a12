package store

import (
	"context"
	"errors"
	"sort"

	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/games"
)

// SeedYear is the first season of an empty cache.
const SeedYear = 2013

// ErrCorruptCache is returned when a persisted cache cannot be decoded.
var ErrCorruptCache = errors.New("corrupt feature cache")

// Store persists the feature cache.
type Store interface {
	// Load returns the persisted cache, or the seed when nothing was persisted.
	Load(ctx context.Context) (Cache, error)
	// Persist replaces the persisted cache in full.
	Persist(ctx context.Context, c Cache) error
}

// Cache maps year -> week -> game id -> record. Records are stored without
// their game id; Records and Week restore it from the key.
type Cache map[int]map[int]map[int64]games.Record

// Seed returns the cache used on first run.
func Seed() Cache {
	return Cache{SeedYear: {0: {}}}
}

// MaxYear returns the latest cached year, or SeedYear for an empty cache.
func (c Cache) MaxYear() int {
	if len(c) == 0 {
		return SeedYear
	}
	maxYear := 0
	for y := range c {
		if y > maxYear {
			maxYear = y
		}
	}
	return maxYear
}

// MergeResult describes the year range a merge rewrote.
type MergeResult struct {
	FromYear int
	ToYear   int
	Weeks    int
	Games    int
}

// Merge replaces every year from the latest cached year through the latest
// record year with the given records. Each replaced year is rebuilt with
// weeks 0 through its highest record week, so recent weeks revised upstream
// are recomputed rather than appended. Years in range with no records are
// left untouched. Older years are never modified.
func (c Cache) Merge(records []games.Record) MergeResult {
	res := MergeResult{FromYear: c.MaxYear()}
	if len(records) == 0 {
		res.ToYear = res.FromYear - 1
		return res
	}

	byYear := make(map[int][]games.Record)
	for _, r := range records {
		if r.Year > res.ToYear {
			res.ToYear = r.Year
		}
		byYear[r.Year] = append(byYear[r.Year], r)
	}

	for year := res.FromYear; year <= res.ToYear; year++ {
		rs := byYear[year]
		if len(rs) == 0 {
			continue
		}
		maxWeek := 0
		for _, r := range rs {
			maxWeek = max(maxWeek, r.Week)
		}
		weeks := make(map[int]map[int64]games.Record, maxWeek+1)
		for w := 0; w <= maxWeek; w++ {
			weeks[w] = make(map[int64]games.Record)
		}
		for _, r := range rs {
			id := r.GameID
			r.GameID = 0
			weeks[r.Week][id] = r
			res.Games++
		}
		c[year] = weeks
		res.Weeks += len(weeks)
	}
	return res
}

// FeatureKeys returns the sorted union of feature keys across the cache.
func (c Cache) FeatureKeys() []string {
	var sets []features.Set
	for _, weeks := range c {
		for _, byID := range weeks {
			for _, r := range byID {
				sets = append(sets, r.Features)
			}
		}
	}
	return features.KeyUnion(sets...)
}

// Week returns the records of one week ordered by game id.
func (c Cache) Week(year, week int) []games.Record {
	byID := c[year][week]
	out := make([]games.Record, 0, len(byID))
	for id, r := range byID {
		r.GameID = id
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Records returns every cached record ordered by year, week and game id.
func (c Cache) Records() []games.Record {
	var out []games.Record
	for _, year := range sortedKeys(c) {
		for _, week := range sortedKeys(c[year]) {
			out = append(out, c.Week(year, week)...)
		}
	}
	return out
}

// Year returns the records of one year in order.
func (c Cache) Year(year int) []games.Record {
	var out []games.Record
	for _, week := range sortedKeys(c[year]) {
		out = append(out, c.Week(year, week)...)
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
