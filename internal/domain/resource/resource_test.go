package resource

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Resource
		wantErr bool
	}{
		{in: "fpl_bootstrap", want: FPLBootstrap},
		{in: " FPL_HISTORIES ", want: FPLHistories},
		{in: "understat_matches", want: UnderstatMatches},
		{in: "understat_teams", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Parse(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestResource_SourceAndTabular(t *testing.T) {
	if FPLHistories.Source() != SourceFPL || UnderstatPlayers.Source() != SourceUnderstat {
		t.Fatalf("unexpected source mapping")
	}
	if FPLBootstrap.Tabular() || FPLFixtures.Tabular() {
		t.Fatalf("bootstrap and fixtures are kept as documents")
	}
	if !FPLHistories.Tabular() || !UnderstatMatches.Tabular() {
		t.Fatalf("histories and understat resources are tables")
	}
}

func TestIsUnderstatLeague(t *testing.T) {
	for _, code := range UnderstatLeagues {
		if !IsUnderstatLeague(code) {
			t.Fatalf("%s must be accepted", code)
		}
	}
	for _, code := range []string{"epl", "MLS", ""} {
		if IsUnderstatLeague(code) {
			t.Fatalf("%q must be rejected", code)
		}
	}
}

func TestResource_Known(t *testing.T) {
	if !UnderstatPlayers.Known() {
		t.Fatalf("understat_players must be known")
	}
	if Resource("fpl_everything").Known() {
		t.Fatalf("unknown resource reported as known")
	}
}
