package cfbd

// SeasonStat is one named season total for one team (GET /stats/season).
type SeasonStat struct {
	Season     int     `json:"season"`
	Team       string  `json:"team"`
	Conference string  `json:"conference"`
	StatName   string  `json:"statName"`
	StatValue  float64 `json:"statValue"`
}

// AdvancedSeasonStat is one team's advanced season totals (GET /stats/season/advanced).
// Offense and Defense are kept as decoded JSON trees: metric name -> number, null,
// or a nested sub-metric object. The features package reads them through its
// static metric schema.
type AdvancedSeasonStat struct {
	Season     int                    `json:"season"`
	Team       string                 `json:"team"`
	Conference string                 `json:"conference"`
	Offense    map[string]interface{} `json:"offense"`
	Defense    map[string]interface{} `json:"defense"`
}

// Game is a scheduled or completed matchup (GET /games).
type Game struct {
	ID             int64    `json:"id"`
	Season         int      `json:"season"`
	Week           int      `json:"week"`
	SeasonType     string   `json:"seasonType"`
	NeutralSite    bool     `json:"neutralSite"`
	HomeTeam       string   `json:"homeTeam"`
	HomeConference string   `json:"homeConference"`
	HomePoints     *int     `json:"homePoints"`
	HomePregameElo *int     `json:"homePregameElo"`
	AwayTeam       string   `json:"awayTeam"`
	AwayConference string   `json:"awayConference"`
	AwayPoints     *int     `json:"awayPoints"`
	AwayPregameElo *int     `json:"awayPregameElo"`
	Completed      bool     `json:"completed"`
	Attendance     *float64 `json:"attendance,omitempty"`
}

// BettingGame groups every provider line posted for one game (GET /lines).
type BettingGame struct {
	ID       int64  `json:"id"`
	Season   int    `json:"season"`
	Week     int    `json:"week"`
	HomeTeam string `json:"homeTeam"`
	AwayTeam string `json:"awayTeam"`
	Lines    []Line `json:"lines"`
}

// Line is a single provider's market for a game. Spread is from the home
// team's perspective and may be null when the provider posted only a total.
type Line struct {
	Provider        string   `json:"provider"`
	Spread          *float64 `json:"spread"`
	FormattedSpread string   `json:"formattedSpread"`
	SpreadOpen      *float64 `json:"spreadOpen"`
	OverUnder       *float64 `json:"overUnder"`
}

// StatsQuery parameterizes the season and advanced-season endpoints.
// Zero values are omitted from the request.
type StatsQuery struct {
	Year               int
	StartWeek          int
	EndWeek            int
	Team               string
	ExcludeGarbageTime bool
}

// GamesQuery parameterizes GET /games.
type GamesQuery struct {
	Year       int
	Week       int
	SeasonType string
	Team       string
}

// LinesQuery parameterizes GET /lines.
type LinesQuery struct {
	Year       int
	Week       int
	SeasonType string
	Team       string
}
