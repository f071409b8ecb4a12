package predict

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/store"
)

// Pick values.
const (
	PickHome = "home"
	PickAway = "away"
)

// Prediction is the model's call on one pending game.
type Prediction struct {
	GameID   int64    `json:"game_id"`
	Year     int      `json:"year"`
	Week     int      `json:"week"`
	HomeTeam string   `json:"home_team"`
	AwayTeam string   `json:"away_team"`
	Margin   float64  `json:"predicted_margin"`
	Spread   *float64 `json:"spread"`
	Pick     string   `json:"pick,omitempty"`
}

// Summary reads like "Texas favored over Rice by 6.5 points."
func (p Prediction) Summary() string {
	if p.Margin < 0 {
		return fmt.Sprintf("%s favored over %s by %s points.", p.HomeTeam, p.AwayTeam, round2(-p.Margin))
	}
	return fmt.Sprintf("%s favored over %s by %s points.", p.AwayTeam, p.HomeTeam, round2(p.Margin))
}

func round2(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// Skipped is a pending game the model could not score.
type Skipped struct {
	GameID int64  `json:"game_id"`
	Column string `json:"column"`
}

// Report is the outcome of scoring one pending week.
type Report struct {
	Predictions []Prediction `json:"predictions"`
	Skipped     []Skipped    `json:"skipped,omitempty"`
	HomeCovers  int          `json:"home_covers"`
	AwayCovers  int          `json:"away_covers"`
}

// Text renders the summaries followed by the cover tallies.
func (r Report) Text() string {
	var b strings.Builder
	for _, p := range r.Predictions {
		b.WriteString(p.Summary())
		b.WriteByte('\n')
	}
	picked := r.HomeCovers + r.AwayCovers
	fmt.Fprintf(&b, "%d games with a line", picked)
	if picked > 0 {
		fmt.Fprintf(&b, ": home covers %.2f, away covers %.2f",
			float64(r.HomeCovers)/float64(picked), float64(r.AwayCovers)/float64(picked))
	}
	b.WriteByte('\n')
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "%d games skipped for missing inputs\n", len(r.Skipped))
	}
	return b.String()
}

// Pick compares a predicted margin (away minus home) with a home-perspective
// spread: a margin at or below the spread means the home side covers.
func Pick(margin, spread float64) string {
	if margin <= spread {
		return PickHome
	}
	return PickAway
}

// WithElo keeps the records that have both pregame ratings.
func WithElo(records []games.Record) []games.Record {
	var out []games.Record
	for _, r := range records {
		if r.HomeElo != nil && r.AwayElo != nil {
			out = append(out, r)
		}
	}
	return out
}

// Score fits the scaler on the history rows that have both ratings and scores
// every pending game. Pending rows are imputed to the history's columns first.
func Score(m *LinearModel, history []games.Record, pending []games.Record) Report {
	hist := store.NewTable(WithElo(history))
	scaler := FitScaler(hist, m.Columns())

	tbl := store.NewTableWithKeys(pending, hist.FeatureKeys)
	var rep Report
	for i, r := range tbl.Records {
		margin, col, ok := m.Predict(tbl, i, scaler)
		if !ok {
			rep.Skipped = append(rep.Skipped, Skipped{GameID: r.GameID, Column: col})
			continue
		}
		p := Prediction{
			GameID:   r.GameID,
			Year:     r.Year,
			Week:     r.Week,
			HomeTeam: r.HomeTeam,
			AwayTeam: r.AwayTeam,
			Margin:   margin,
			Spread:   r.Spread,
		}
		if r.Spread != nil {
			p.Pick = Pick(margin, *r.Spread)
			if p.Pick == PickHome {
				rep.HomeCovers++
			} else {
				rep.AwayCovers++
			}
		}
		rep.Predictions = append(rep.Predictions, p)
	}
	return rep
}
