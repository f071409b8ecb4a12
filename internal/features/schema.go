package features

// Metric is one leaf of the advanced-stats tree for a category.
type Metric struct {
	Name string
	Sub  string
	// Cumulative metrics are season totals: they get a perDrive companion and
	// are normalized by games played. Everything else is already a rate.
	Cumulative bool
}

// AdvancedCategories are the two advanced-stat sections read per team.
var AdvancedCategories = []Category{Offense, Defense}

// AdvancedMetrics is the advanced-stat schema shared by offense and defense.
var AdvancedMetrics = []Metric{
	{Name: "plays", Cumulative: true},
	{Name: "drives", Cumulative: true},
	{Name: "ppa"},
	{Name: "totalPPA", Cumulative: true},
	{Name: "successRate"},
	{Name: "explosiveness"},
	{Name: "powerSuccess"},
	{Name: "stuffRate"},
	{Name: "lineYards"},
	{Name: "lineYardsTotal", Cumulative: true},
	{Name: "secondLevelYards"},
	{Name: "secondLevelYardsTotal", Cumulative: true},
	{Name: "openFieldYards"},
	{Name: "openFieldYardsTotal", Cumulative: true},
	// Upstream spelling.
	{Name: "totalOpportunies", Cumulative: true},
	{Name: "pointsPerOpportunity"},

	{Name: "fieldPosition", Sub: "averageStart"},
	{Name: "fieldPosition", Sub: "averagePredictedPoints"},

	{Name: "havoc", Sub: "total"},
	{Name: "havoc", Sub: "frontSeven"},
	{Name: "havoc", Sub: "db"},

	{Name: "standardDowns", Sub: "rate"},
	{Name: "standardDowns", Sub: "ppa"},
	{Name: "standardDowns", Sub: "successRate"},
	{Name: "standardDowns", Sub: "explosiveness"},

	{Name: "passingDowns", Sub: "rate"},
	{Name: "passingDowns", Sub: "ppa"},
	{Name: "passingDowns", Sub: "totalPPA", Cumulative: true},
	{Name: "passingDowns", Sub: "successRate"},
	{Name: "passingDowns", Sub: "explosiveness"},

	{Name: "rushingPlays", Sub: "rate"},
	{Name: "rushingPlays", Sub: "ppa"},
	{Name: "rushingPlays", Sub: "totalPPA", Cumulative: true},
	{Name: "rushingPlays", Sub: "successRate"},
	{Name: "rushingPlays", Sub: "explosiveness"},

	{Name: "passingPlays", Sub: "rate"},
	{Name: "passingPlays", Sub: "ppa"},
	{Name: "passingPlays", Sub: "totalPPA", Cumulative: true},
	{Name: "passingPlays", Sub: "successRate"},
	{Name: "passingPlays", Sub: "explosiveness"},
}

// driveDivisor is the per-unit divisor metric of each section.
const driveDivisor = "drives"

// gamesStat is the season-total divisor.
const gamesStat = "games"

// nullableStats are left null rather than zero-imputed: zero is a real,
// informative value for them, not a neutral default.
var nullableStats = []string{"havoc", "sacks", "tacklesForLoss"}

// lookup reads a leaf from a decoded advanced-stats section. present is false
// when the metric (or its parent object) is missing entirely; a JSON null
// yields present with a nil value.
func (m Metric) lookup(section map[string]interface{}) (val *float64, present bool) {
	raw, ok := section[m.Name]
	if !ok {
		return nil, false
	}
	if m.Sub != "" {
		nested, ok := raw.(map[string]interface{})
		if !ok {
			return nil, raw == nil
		}
		raw, ok = nested[m.Sub]
		if !ok {
			return nil, false
		}
	}
	switch v := raw.(type) {
	case nil:
		return nil, true
	case float64:
		return &v, true
	case int:
		f := float64(v)
		return &f, true
	default:
		return nil, false
	}
}
