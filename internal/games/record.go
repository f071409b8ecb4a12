package games

import (
	"encoding/json"
	"sort"

	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/ingest/cfbd"
)

// Record is one matchup plus its assembled feature block.
type Record struct {
	GameID         int64        `json:"game_id,omitempty"`
	Year           int          `json:"year"`
	Week           int          `json:"week"`
	NeutralSite    bool         `json:"neutral_site"`
	HomeTeam       string       `json:"home_team"`
	HomeConference string       `json:"home_conference"`
	HomePoints     *int         `json:"home_points"`
	HomeElo        *int         `json:"home_elo"`
	AwayTeam       string       `json:"away_team"`
	AwayConference string       `json:"away_conference"`
	AwayPoints     *int         `json:"away_points"`
	AwayElo        *int         `json:"away_elo"`
	Margin         *int         `json:"margin"`
	Spread         *float64     `json:"spread"`
	Features       features.Set `json:"features"`
}

type recordJSON struct {
	recordAlias
	Imputed []string `json:"imputed,omitempty"`
}

type recordAlias Record

// MarshalJSON adds the imputed key list so the value tags survive persistence.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		recordAlias: recordAlias(r),
		Imputed:     r.Features.ImputedKeys(),
	})
}

// UnmarshalJSON restores the imputed tags written by MarshalJSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Record(raw.recordAlias)
	if r.Features != nil {
		r.Features.MarkImputed(raw.Imputed)
	}
	return nil
}

// Decided reports whether both scores are known.
func (r *Record) Decided() bool { return r.HomePoints != nil && r.AwayPoints != nil }

// Pending reports whether neither score is known.
func (r *Record) Pending() bool { return r.HomePoints == nil && r.AwayPoints == nil }

// FromGame builds the skeletal record for an upstream game. Margin is set
// only when both scores are present.
func FromGame(g cfbd.Game) Record {
	r := Record{
		GameID:         g.ID,
		Year:           g.Season,
		Week:           g.Week,
		NeutralSite:    g.NeutralSite,
		HomeTeam:       g.HomeTeam,
		HomeConference: g.HomeConference,
		HomePoints:     g.HomePoints,
		HomeElo:        g.HomePregameElo,
		AwayTeam:       g.AwayTeam,
		AwayConference: g.AwayConference,
		AwayPoints:     g.AwayPoints,
		AwayElo:        g.AwayPregameElo,
	}
	if r.Decided() {
		m := *r.AwayPoints - *r.HomePoints
		r.Margin = &m
	}
	return r
}

// SortByWeek orders records by year, week, then game id.
func SortByWeek(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		return a.GameID < b.GameID
	})
}
