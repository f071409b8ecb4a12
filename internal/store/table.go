package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/fortuna/spreadline/internal/features"
	"github.com/fortuna/spreadline/internal/games"
)

// IdentityColumns lead every table row, ahead of the feature keys.
var IdentityColumns = []string{
	"game_id", "year", "week", "neutral_site",
	"home_team", "home_conference", "home_points", "home_elo",
	"away_team", "away_conference", "away_points", "away_elo",
	"margin", "spread",
}

// Table is a rectangular view of records: every record carries the same
// feature keys.
type Table struct {
	Records     []games.Record
	FeatureKeys []string
}

// NewTable imputes the records' feature sets to their common key set, in
// place, and returns the table over them.
func NewTable(records []games.Record) Table {
	return NewTableWithKeys(records, nil)
}

// NewTableWithKeys is NewTable with the key set widened by known, so rows
// scored against another table carry every column that table has.
func NewTableWithKeys(records []games.Record, known []string) Table {
	sets := make([]features.Set, 0, len(records)+1)
	for i := range records {
		if records[i].Features == nil {
			records[i].Features = make(features.Set)
		}
		sets = append(sets, records[i].Features)
	}
	all := sets
	if len(known) > 0 {
		ref := make(features.Set, len(known))
		for _, k := range known {
			ref[k] = features.Value{}
		}
		all = append(all, ref)
	}
	keys := features.KeyUnion(all...)
	features.Impute(keys, sets...)
	return Table{Records: records, FeatureKeys: keys}
}

// Columns returns the identity columns followed by the feature keys.
func (t Table) Columns() []string {
	cols := make([]string, 0, len(IdentityColumns)+len(t.FeatureKeys))
	cols = append(cols, IdentityColumns...)
	return append(cols, t.FeatureKeys...)
}

// Numeric returns a column of row i as a number. Team and conference columns
// and null values report false.
func (t Table) Numeric(i int, col string) (float64, bool) {
	r := t.Records[i]
	switch col {
	case "game_id":
		return float64(r.GameID), true
	case "year":
		return float64(r.Year), true
	case "week":
		return float64(r.Week), true
	case "neutral_site":
		if r.NeutralSite {
			return 1, true
		}
		return 0, true
	case "home_points":
		return intCol(r.HomePoints)
	case "home_elo":
		return intCol(r.HomeElo)
	case "away_points":
		return intCol(r.AwayPoints)
	case "away_elo":
		return intCol(r.AwayElo)
	case "margin":
		return intCol(r.Margin)
	case "spread":
		if r.Spread == nil {
			return 0, false
		}
		return *r.Spread, true
	case "home_team", "home_conference", "away_team", "away_conference":
		return 0, false
	}
	v, ok := r.Features[col]
	if !ok {
		return 0, false
	}
	return v.Float()
}

func intCol(p *int) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

// WriteCSV writes the table with a header row. Nulls are empty cells.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(cols))
	for i, r := range t.Records {
		for j, col := range cols {
			switch col {
			case "home_team":
				row[j] = r.HomeTeam
			case "home_conference":
				row[j] = r.HomeConference
			case "away_team":
				row[j] = r.AwayTeam
			case "away_conference":
				row[j] = r.AwayConference
			default:
				row[j] = ""
				if v, ok := t.Numeric(i, col); ok {
					row[j] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
