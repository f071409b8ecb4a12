package predict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/games"
	"github.com/fortuna/spreadline/internal/store"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestScaled(t *testing.T) {
	tests := map[string]bool{
		"home_elo":                         true,
		"week":                             true,
		"away_offense_ppa_lastThree":       true,
		"spread":                           false,
		"margin":                           false,
		"neutral_site":                     false,
		"home_interceptions":               false,
		"away_fumblesLost_lastSeason":      false,
		"home_interceptionYards_lastThree": false,
		"home_interceptionTDs":             true,
	}
	for col, want := range tests {
		assert.Equal(t, want, Scaled(col), col)
	}
}

func TestFitScaler(t *testing.T) {
	tbl := store.NewTable([]games.Record{
		{HomeElo: intp(1400), Features: features.Set{"home_games": features.Num(2), "home_interceptions": features.Num(1)}},
		{HomeElo: intp(1600), Features: features.Set{"home_games": features.Num(2), "home_interceptions": features.Num(3)}},
		{HomeElo: nil, Features: features.Set{"home_games": features.Num(2), "home_interceptions": features.Num(9)}},
	})
	s := FitScaler(tbl, []string{"home_elo", "home_games", "home_interceptions"})

	assert.InDelta(t, 1500, s.Mean["home_elo"], 1e-9)
	assert.InDelta(t, 141.4213562, s.Std["home_elo"], 1e-6)
	assert.InDelta(t, 0.7071067, s.Transform("home_elo", 1600), 1e-6)

	assert.Equal(t, 0.0, s.Transform("home_games", 5), "no spread in reference")
	assert.Equal(t, 7.0, s.Transform("home_interceptions", 7), "turnovers pass through")
	_, fitted := s.Mean["home_interceptions"]
	assert.False(t, fitted)
	assert.Equal(t, 3.0, s.Transform("unknown", 3))
}

func TestPick(t *testing.T) {
	assert.Equal(t, PickHome, Pick(-10, -7))
	assert.Equal(t, PickHome, Pick(-7, -7))
	assert.Equal(t, PickAway, Pick(-3, -7))
	assert.Equal(t, PickAway, Pick(4, 2.5))
}

func TestPrediction_Summary(t *testing.T) {
	p := Prediction{HomeTeam: "Texas", AwayTeam: "Rice", Margin: -6.456}
	assert.Equal(t, "Texas favored over Rice by 6.46 points.", p.Summary())

	p.Margin = 3
	assert.Equal(t, "Rice favored over Texas by 3 points.", p.Summary())
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"intercept":1.5,"coefficients":{"home_elo":-2,"away_elo":2}}`), 0o644))

	m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, m.Intercept)
	assert.Equal(t, []string{"away_elo", "home_elo"}, m.Columns())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"intercept":1}`), 0o644))
	_, err = LoadModel(empty)
	assert.Error(t, err)

	_, err = LoadModel(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	m := &LinearModel{
		Intercept:    0,
		Coefficients: map[string]float64{"home_elo": -10, "away_elo": 10},
	}
	history := []games.Record{
		{GameID: 1, HomeElo: intp(1400), AwayElo: intp(1400)},
		{GameID: 2, HomeElo: intp(1600), AwayElo: intp(1600)},
		{GameID: 3, HomeElo: intp(9000)}, // no away rating: dropped
	}
	pending := []games.Record{
		{GameID: 10, HomeTeam: "Texas", AwayTeam: "Rice", HomeElo: intp(1600), AwayElo: intp(1400), Spread: floatp(-20)},
		{GameID: 11, HomeTeam: "Baylor", AwayTeam: "TCU", HomeElo: intp(1500), AwayElo: intp(1600), Spread: floatp(-3)},
		{GameID: 12, HomeTeam: "Army", AwayTeam: "Navy", HomeElo: intp(1500), AwayElo: intp(1500)},
		{GameID: 13, HomeTeam: "Rice", AwayTeam: "UTEP", HomeElo: intp(1500)},
	}

	rep := Score(m, history, pending)

	require.Len(t, rep.Predictions, 3)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, Skipped{GameID: 13, Column: "away_elo"}, rep.Skipped[0])

	// std 141.42: home z=0.707, away z=-0.707 -> -14.14
	texas := rep.Predictions[0]
	assert.InDelta(t, -14.142, texas.Margin, 1e-3)
	assert.Equal(t, PickAway, texas.Pick)

	baylor := rep.Predictions[1]
	assert.InDelta(t, 7.071, baylor.Margin, 1e-3)
	assert.Equal(t, PickAway, baylor.Pick)

	army := rep.Predictions[2]
	assert.InDelta(t, 0, army.Margin, 1e-9)
	assert.Empty(t, army.Pick)

	assert.Equal(t, 0, rep.HomeCovers)
	assert.Equal(t, 2, rep.AwayCovers)

	text := rep.Text()
	assert.Contains(t, text, "Texas favored over Rice by 14.14 points.")
	assert.Contains(t, text, "TCU favored over Baylor by 7.07 points.")
	assert.Contains(t, text, "2 games with a line: home covers 0.00, away covers 1.00")
	assert.Contains(t, text, "1 games skipped")
}

func TestScore_PendingTakesHistoryColumns(t *testing.T) {
	m := &LinearModel{Coefficients: map[string]float64{"home_games": 1, "home_kickReturnTDs": 1}}
	history := []games.Record{
		{GameID: 1, HomeElo: intp(1500), AwayElo: intp(1500), Features: features.Set{
			"home_games": features.Num(10), "home_kickReturnTDs": features.Num(1)}},
		{GameID: 2, HomeElo: intp(1500), AwayElo: intp(1500), Features: features.Set{
			"home_games": features.Num(12), "home_kickReturnTDs": features.Num(3)}},
	}
	pending := []games.Record{
		{GameID: 20, HomeTeam: "Texas", AwayTeam: "Rice", Features: features.Set{"home_games": features.Num(11)}},
		{GameID: 21, HomeTeam: "Army", AwayTeam: "Navy", Features: features.Set{"home_games": features.Num(11)}},
	}

	rep := Score(m, history, pending)

	assert.Empty(t, rep.Skipped)
	require.Len(t, rep.Predictions, 2)
	// kickReturnTDs imputed to 0: (0-2)/1.414
	assert.InDelta(t, -1.4142, rep.Predictions[0].Margin, 1e-3)
	assert.Equal(t, features.ImputedZero(), pending[0].Features["home_kickReturnTDs"])
}
