package predict

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/fortuna/spreadline/internal/store"
)

// LinearModel is a trained margin regressor exported as JSON:
//
//	{"intercept": 1.2, "coefficients": {"home_elo": -0.03, ...}}
//
// Inputs are z-scaled the same way the training rows were.
type LinearModel struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// LoadModel reads a model file.
func LoadModel(path string) (*LinearModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("model %s has no coefficients", path)
	}
	return &m, nil
}

// Columns returns the model inputs in sorted order.
func (m *LinearModel) Columns() []string {
	cols := make([]string, 0, len(m.Coefficients))
	for c := range m.Coefficients {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Predict returns the margin (away minus home) for row i of t. It reports
// false, with the first unusable column, when an input is null or missing.
func (m *LinearModel) Predict(t store.Table, i int, s *Scaler) (float64, string, bool) {
	y := m.Intercept
	for _, col := range m.Columns() {
		v, ok := t.Numeric(i, col)
		if !ok {
			return 0, col, false
		}
		y += m.Coefficients[col] * s.Transform(col, v)
	}
	return y, "", true
}

// turnoverStats are luck-driven and fed to the model unscaled.
var turnoverStats = []string{"interceptions", "interceptionYards", "fumblesLost", "fumblesRecovered"}

var unscaledColumns = map[string]bool{
	"game_id": true, "year": true, "spread": true, "margin": true,
	"home_points": true, "away_points": true,
	"home_team": true, "away_team": true,
	"home_conference": true, "away_conference": true, "neutral_site": true,
	"home_wins": true, "away_wins": true,
}

// Scaled reports whether a column is z-scaled before prediction.
func Scaled(col string) bool {
	if unscaledColumns[col] {
		return false
	}
	for _, loc := range []string{"home_", "away_"} {
		rest, ok := strings.CutPrefix(col, loc)
		if !ok {
			continue
		}
		for _, stat := range turnoverStats {
			if rest == stat || rest == stat+"_lastSeason" || rest == stat+"_lastThree" {
				return false
			}
		}
	}
	return true
}

// Scaler z-scales columns against a reference table.
type Scaler struct {
	Mean map[string]float64
	Std  map[string]float64
}

// FitScaler computes the mean and sample standard deviation of each scaled
// column over the rows where it is numeric.
func FitScaler(t store.Table, cols []string) *Scaler {
	s := &Scaler{Mean: make(map[string]float64), Std: make(map[string]float64)}
	for _, col := range cols {
		if !Scaled(col) {
			continue
		}
		var sum, sumSq float64
		n := 0
		for i := range t.Records {
			v, ok := t.Numeric(i, col)
			if !ok {
				continue
			}
			sum += v
			sumSq += v * v
			n++
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		s.Mean[col] = mean
		if n > 1 {
			variance := (sumSq - float64(n)*mean*mean) / float64(n-1)
			s.Std[col] = math.Sqrt(math.Max(variance, 0))
		}
	}
	return s
}

// Transform scales one value. Unscaled columns pass through; a column with
// no spread in the reference maps to zero.
func (s *Scaler) Transform(col string, v float64) float64 {
	if s == nil || !Scaled(col) {
		return v
	}
	mean, ok := s.Mean[col]
	if !ok {
		return v
	}
	std := s.Std[col]
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}
