package aggregate

import "github.com/fortuna/spreadline/internal/ingest/cfbd"

// Snapshot is the raw upstream payload for one window, covering every team.
type Snapshot struct {
	Season   []cfbd.SeasonStat
	Advanced []cfbd.AdvancedSeasonStat

	seasonByTeam   map[string][]cfbd.SeasonStat
	advancedByTeam map[string]*cfbd.AdvancedSeasonStat
}

// NewSnapshot indexes a window payload by team.
func NewSnapshot(season []cfbd.SeasonStat, advanced []cfbd.AdvancedSeasonStat) Snapshot {
	s := Snapshot{
		Season:         season,
		Advanced:       advanced,
		seasonByTeam:   make(map[string][]cfbd.SeasonStat),
		advancedByTeam: make(map[string]*cfbd.AdvancedSeasonStat, len(advanced)),
	}
	for _, row := range season {
		s.seasonByTeam[row.Team] = append(s.seasonByTeam[row.Team], row)
	}
	for i := range advanced {
		if _, ok := s.advancedByTeam[advanced[i].Team]; !ok {
			s.advancedByTeam[advanced[i].Team] = &advanced[i]
		}
	}
	return s
}

// Team returns one team's rows. Either result may be empty.
func (s Snapshot) Team(name string) ([]cfbd.SeasonStat, *cfbd.AdvancedSeasonStat) {
	return s.seasonByTeam[name], s.advancedByTeam[name]
}

type weekKey struct {
	year, week int
}

// RunState carries the fetched windows across the games of one run. Games must
// be decorated in (year, week) order for the reuse to hold. A RunState is not
// safe for concurrent use and must not outlive its run.
type RunState struct {
	haveWeek  bool
	week      weekKey
	current   Snapshot
	lastThree Snapshot

	priorYear int
	prior     Snapshot

	placeholder *Snapshot

	requests int
	failures int
}

// NewRunState returns an empty run context.
func NewRunState() *RunState {
	return &RunState{}
}

// Requests is the number of upstream stats calls issued in this run.
func (s *RunState) Requests() int { return s.requests }

// Failures is the number of those calls that failed.
func (s *RunState) Failures() int { return s.failures }

// AllFailed reports whether stats were requested and none came back.
func (s *RunState) AllFailed() bool {
	return s.requests > 0 && s.failures == s.requests
}
