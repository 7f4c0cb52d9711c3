package resource

import (
	"fmt"
	"slices"
	"strings"
)

// Resource names one dataset the fetcher knows how to build.
type Resource string

const (
	FPLBootstrap     Resource = "fpl_bootstrap"
	FPLFixtures      Resource = "fpl_fixtures"
	FPLHistories     Resource = "fpl_histories"
	UnderstatPlayers Resource = "understat_players"
	UnderstatMatches Resource = "understat_matches"
)

type Source string

const (
	SourceFPL       Source = "fpl"
	SourceUnderstat Source = "understat"
)

var All = []Resource{FPLBootstrap, FPLFixtures, FPLHistories, UnderstatPlayers, UnderstatMatches}

// Understat league codes as they appear in league page URLs.
var UnderstatLeagues = []string{"EPL", "La_liga", "Bundesliga", "Serie_A", "Ligue_1", "RFPL"}

const (
	DefaultLeague = "EPL"
	DefaultSeason = 2023
	// FirstUnderstatSeason is the earliest season Understat publishes.
	FirstUnderstatSeason = 2014
)

func Parse(raw string) (Resource, error) {
	value := Resource(strings.ToLower(strings.TrimSpace(raw)))
	if value.Known() {
		return value, nil
	}
	return "", fmt.Errorf("unsupported resource %q: valid values are %s", raw, Names())
}

// IsUnderstatLeague reports whether code is a league Understat publishes.
// Codes are case sensitive, as in the page URLs.
func IsUnderstatLeague(code string) bool {
	return slices.Contains(UnderstatLeagues, code)
}

// Known reports whether r is one of All.
func (r Resource) Known() bool {
	return slices.Contains(All, r)
}

func Names() string {
	names := make([]string, 0, len(All))
	for _, item := range All {
		names = append(names, string(item))
	}
	return strings.Join(names, ", ")
}

func (r Resource) Source() Source {
	if strings.HasPrefix(string(r), string(SourceUnderstat)+"_") {
		return SourceUnderstat
	}
	return SourceFPL
}

// Tabular reports whether the resource is built as rows rather than kept as
// the upstream JSON document.
func (r Resource) Tabular() bool {
	switch r {
	case FPLHistories, UnderstatPlayers, UnderstatMatches:
		return true
	default:
		return false
	}
}

func (r Resource) String() string {
	return string(r)
}
