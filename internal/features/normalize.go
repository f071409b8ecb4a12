package features

import (
	"github.com/fortuna/spreadline/internal/ingest/cfbd"
)

// Normalizer turns one team's raw window snapshot into flat features.
// It never divides by a missing or zero divisor.
type Normalizer struct{}

// Normalize produces per-game season totals and advanced metrics for one team.
// season holds only that team's rows; adv may be nil when the team has no
// advanced data for the window (new programs, bye weeks, upstream faults).
func (Normalizer) Normalize(season []cfbd.SeasonStat, adv *cfbd.AdvancedSeasonStat) TeamSet {
	out := make(TeamSet, len(season)+3*len(AdvancedMetrics))

	games, hasGames := gamesPlayed(season)
	for _, s := range season {
		k := statKey{Stat: s.StatName}
		switch {
		case s.StatName == gamesStat:
			out[k] = Num(s.StatValue)
		case !hasGames:
			out[k] = Num(0)
		default:
			out[k] = Num(s.StatValue / games)
		}
	}

	if adv == nil {
		return out
	}

	for _, cat := range AdvancedCategories {
		section := adv.Offense
		if cat == Defense {
			section = adv.Defense
		}
		if len(section) == 0 {
			continue
		}

		drives, hasDrives := sectionDrives(section)
		for _, m := range AdvancedMetrics {
			val, present := m.lookup(section)
			if !present {
				continue
			}

			k := statKey{Category: cat, Stat: m.Name, Sub: m.Sub}
			perKey := statKey{Category: cat, Stat: m.Name, Sub: m.Sub, PerUnit: PerDrive}

			if val == nil {
				out[k] = NullValue()
				if m.Cumulative {
					out[perKey] = NullValue()
				}
				continue
			}

			if !m.Cumulative {
				out[k] = Num(*val)
				continue
			}

			if hasDrives {
				out[perKey] = Num(*val / drives)
			}
			if hasGames {
				out[k] = Num(*val / games)
			} else {
				out[k] = Num(0)
			}
		}
	}

	return out
}

// Zero emits the full key set implied by a placeholder snapshot with every
// value set to zero. Season-total names come from the placeholder rows; the
// advanced keys come from the static schema.
func (Normalizer) Zero(placeholder []cfbd.SeasonStat) TeamSet {
	out := make(TeamSet, len(placeholder)+3*len(AdvancedMetrics))
	for _, s := range placeholder {
		out[statKey{Stat: s.StatName}] = Num(0)
	}
	for _, cat := range AdvancedCategories {
		for _, m := range AdvancedMetrics {
			out[statKey{Category: cat, Stat: m.Name, Sub: m.Sub}] = Num(0)
			if m.Cumulative {
				out[statKey{Category: cat, Stat: m.Name, Sub: m.Sub, PerUnit: PerDrive}] = Num(0)
			}
		}
	}
	return out
}

func gamesPlayed(season []cfbd.SeasonStat) (float64, bool) {
	for _, s := range season {
		if s.StatName == gamesStat {
			return s.StatValue, s.StatValue > 0
		}
	}
	return 0, false
}

func sectionDrives(section map[string]interface{}) (float64, bool) {
	val, present := Metric{Name: driveDivisor}.lookup(section)
	if !present || val == nil || *val <= 0 {
		return 0, false
	}
	return *val, true
}
