package features

import "strings"

// Location is the side of the matchup a feature describes.
type Location string

const (
	Home Location = "home"
	Away Location = "away"
)

// Window is the time span a feature aggregates over.
type Window string

const (
	Current    Window = ""
	LastSeason Window = "lastSeason"
	LastThree  Window = "lastThree"
)

// Windows lists every window in emission order.
var Windows = []Window{Current, LastSeason, LastThree}

// Category groups advanced metrics.
type Category string

const (
	SeasonTotal Category = ""
	Offense     Category = "offense"
	Defense     Category = "defense"
)

// PerDrive is the suffix of drive-normalized companions of cumulative metrics.
const PerDrive = "perDrive"

// Key builds a feature key:
//
//	{location}_{category}_{statName}[_{subName}][_{window}][_{perUnit}]
//
// The category segment is omitted for top-level season totals.
type Key struct {
	Location Location
	Category Category
	Stat     string
	Sub      string
	Window   Window
	PerUnit  string
}

func (k Key) String() string {
	parts := make([]string, 0, 6)
	parts = append(parts, string(k.Location))
	if k.Category != SeasonTotal {
		parts = append(parts, string(k.Category))
	}
	parts = append(parts, k.Stat)
	if k.Sub != "" {
		parts = append(parts, k.Sub)
	}
	if k.Window != Current {
		parts = append(parts, string(k.Window))
	}
	if k.PerUnit != "" {
		parts = append(parts, k.PerUnit)
	}
	return strings.Join(parts, "_")
}

// statKey is a location- and window-free key used inside one team snapshot.
type statKey struct {
	Category Category
	Stat     string
	Sub      string
	PerUnit  string
}

// TeamSet is one team's normalized features for one window, before the
// location and window are applied.
type TeamSet map[statKey]Value

// Place stamps a team-window result with its location and window.
func (t TeamSet) Place(loc Location, w Window) Set {
	out := make(Set, len(t))
	for sk, v := range t {
		out[Key{
			Location: loc,
			Category: sk.Category,
			Stat:     sk.Stat,
			Sub:      sk.Sub,
			Window:   w,
			PerUnit:  sk.PerUnit,
		}.String()] = v
	}
	return out
}
