package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/rawdata"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/resource"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func record(kv ...any) dataset.Record {
	var r dataset.Record
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

func intPtr(v int) *int {
	return &v
}

func validRequest(res resource.Resource) Request {
	return Request{
		Resource: res,
		Out:      "data/raw/out.csv",
		Season:   resource.DefaultSeason,
		League:   resource.DefaultLeague,
	}
}

func TestFetchService_Fetch_ValidatesRequest(t *testing.T) {
	t.Parallel()

	service := NewFetchService(nil, nil, nil, logging.NewNop(), FetchOptions{HistoryWorkers: 1})
	negativeSleep := -time.Second

	cases := map[string]func(*Request){
		"missing resource": func(r *Request) { r.Resource = "" },
		"unknown resource": func(r *Request) { r.Resource = "fpl_everything" },
		"missing out":      func(r *Request) { r.Out = "" },
		"early season":     func(r *Request) { r.Season = resource.FirstUnderstatSeason - 1 },
		"unknown league":   func(r *Request) { r.League = "MLS" },
		"lowercase league": func(r *Request) { r.League = "epl" },
		"negative limit":   func(r *Request) { r.Limit = intPtr(-1) },
		"negative sleep":   func(r *Request) { r.Sleep = &negativeSleep },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest(resource.FPLHistories)
			mutate(&req)
			_, err := service.Fetch(context.Background(), req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFetchService_Fetch_AcceptsEveryUnderstatLeague(t *testing.T) {
	t.Parallel()

	for _, league := range resource.UnderstatLeagues {
		understat := newUnderstatSourceMock(t)
		understat.On("FetchPlayers", mock.Anything, league, resource.FirstUnderstatSeason).
			Return(UnderstatPayload{League: league, Season: resource.FirstUnderstatSeason}, nil).Once()

		service := NewFetchService(nil, understat, nil, logging.NewNop(), FetchOptions{HistoryWorkers: 1})
		req := validRequest(resource.UnderstatPlayers)
		req.League = league
		req.Season = resource.FirstUnderstatSeason
		if _, err := service.Fetch(context.Background(), req); err != nil {
			t.Fatalf("league %s: %v", league, err)
		}
	}
}

func TestFetchService_Fetch_BootstrapDocument(t *testing.T) {
	t.Parallel()

	fpl := newFPLSourceMock(t)
	raw := []byte(`{"events":[],"teams":[{"id":1}],"elements":[]}`)
	fpl.On("FetchBootstrap", mock.Anything).Return(raw, nil).Once()

	service := NewFetchService(fpl, nil, nil, logging.NewNop(), FetchOptions{HistoryWorkers: 1})
	got, err := service.Fetch(context.Background(), validRequest(resource.FPLBootstrap))
	if err != nil {
		t.Fatalf("fetch bootstrap: %v", err)
	}
	if !got.IsDocument() || string(got.Document) != string(raw) {
		t.Fatalf("bootstrap must be returned verbatim, got %q", got.Document)
	}
	if got.Rows() != 1 {
		t.Fatalf("object document counts as one row, got=%d", got.Rows())
	}
}

func TestFetchService_BuildPlayerGameweeks(t *testing.T) {
	t.Parallel()

	fpl := newFPLSourceMock(t)
	archive := &archiveMock{}
	elements := []FPLElement{{ID: 3}, {ID: 1}, {ID: 2}}
	fpl.On("FetchElements", mock.Anything).Return(elements, []byte(`{"elements":[]}`), nil).Once()
	fpl.On("FetchPlayerHistory", mock.Anything, int64(3)).Return(FPLPlayerHistory{
		ElementID: 3,
		Rows: []dataset.Record{
			record("element", json.Number("3"), "round", json.Number("1"), "influence", "22.4", "was_home", true),
			record("element", json.Number("3"), "round", json.Number("2"), "influence", "bad", "was_home", false),
		},
		Raw: []byte(`{"history":[]}`),
	}, nil).Once()
	fpl.On("FetchPlayerHistory", mock.Anything, int64(1)).Return(FPLPlayerHistory{
		ElementID: 1,
		Rows:      []dataset.Record{record("round", json.Number("1"), "total_points", json.Number("6"))},
		Raw:       []byte(`{"history":[]}`),
	}, nil).Once()

	archive.On("UpsertMany", mock.Anything, mock.MatchedBy(func(items []rawdata.Payload) bool {
		return len(items) == 1 && items[0].EntityType == "bootstrap_static"
	})).Return(nil).Once()
	archive.On("UpsertMany", mock.Anything, mock.MatchedBy(func(items []rawdata.Payload) bool {
		return len(items) == 2 && items[0].EntityKey == "3" && items[1].EntityKey == "1"
	})).Return(nil).Once()

	service := NewFetchService(fpl, nil, archive, logging.NewNop(), FetchOptions{HistoryWorkers: 2})
	table, err := service.BuildPlayerGameweeks(context.Background(), intPtr(2), 0)
	require.NoError(t, err)
	archive.AssertExpectations(t)

	require.Equal(t, 3, table.Len())
	require.Equal(t, []string{"element", "round", "influence", "was_home", "total_points"}, table.Columns())
	require.Equal(t, int64(3), table.Value(0, "element"))
	require.Equal(t, int64(3), table.Value(1, "element"))
	require.Equal(t, int64(1), table.Value(2, "element"))
	require.Equal(t, 1.0, table.Value(0, "round"))
	require.Equal(t, 22.4, table.Value(0, "influence"))
	require.Nil(t, table.Value(1, "influence"))
	require.Equal(t, 6.0, table.Value(2, "total_points"))
	require.Equal(t, true, table.Value(0, "was_home"))
}

func TestFetchService_BuildPlayerGameweeks_FailureNamesElement(t *testing.T) {
	t.Parallel()

	fpl := &fplSourceMock{}
	elements := []FPLElement{{ID: 1}, {ID: 2}, {ID: 3}}
	fpl.On("FetchElements", mock.Anything).Return(elements, []byte(`{}`), nil).Once()
	fpl.On("FetchPlayerHistory", mock.Anything, int64(1)).Return(FPLPlayerHistory{ElementID: 1}, nil).Maybe()
	fpl.On("FetchPlayerHistory", mock.Anything, int64(2)).Return(FPLPlayerHistory{}, errors.Join(ErrUpstream, errors.New("status=404"))).Once()
	fpl.On("FetchPlayerHistory", mock.Anything, int64(3)).Return(FPLPlayerHistory{ElementID: 3}, nil).Maybe()

	service := NewFetchService(fpl, nil, nil, logging.NewNop(), FetchOptions{HistoryWorkers: 1})
	_, err := service.BuildPlayerGameweeks(context.Background(), nil, 0)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "element_id=2") {
		t.Fatalf("error should name the failing element: %v", err)
	}
}

func TestFetchService_BuildPlayerGameweeks_ZeroLimit(t *testing.T) {
	t.Parallel()

	fpl := newFPLSourceMock(t)
	fpl.On("FetchElements", mock.Anything).Return([]FPLElement{{ID: 1}}, []byte(`{}`), nil).Once()

	service := NewFetchService(fpl, nil, nil, logging.NewNop(), FetchOptions{HistoryWorkers: 2})
	table, err := service.BuildPlayerGameweeks(context.Background(), intPtr(0), 0)
	require.NoError(t, err)
	require.Equal(t, 0, table.Len())
	require.Empty(t, table.Columns())
}

func TestFetchService_ArchiveFailureDoesNotFailFetch(t *testing.T) {
	t.Parallel()

	fpl := newFPLSourceMock(t)
	archive := &archiveMock{}
	fpl.On("FetchFixtures", mock.Anything).Return([]byte(`[{"id":1},{"id":2}]`), nil).Once()
	archive.On("UpsertMany", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()

	service := NewFetchService(fpl, nil, archive, logging.NewNop(), FetchOptions{HistoryWorkers: 1})
	got, err := service.Fetch(context.Background(), validRequest(resource.FPLFixtures))
	require.NoError(t, err)
	require.Equal(t, 2, got.Rows())
	archive.AssertExpectations(t)
}

func TestFetchService_UnderstatTables(t *testing.T) {
	t.Parallel()

	understat := newUnderstatSourceMock(t)
	understat.On("FetchPlayers", mock.Anything, "La_liga", 2022).Return(UnderstatPayload{
		League: "La_liga",
		Season: 2022,
		Records: []dataset.Record{
			record("id", "1", "player_name", "Pedri", "games", "30", "xG", "4.51", "team_title", "Barcelona"),
			record("id", "2", "player_name", "Unknown", "games", "n/a", "xG", "0"),
		},
		Raw: []byte(`[]`),
	}, nil).Once()
	understat.On("FetchMatches", mock.Anything, "La_liga", 2022).Return(UnderstatPayload{
		League: "La_liga",
		Season: 2022,
		Records: []dataset.Record{
			record("id", "9", "h", map[string]any{"id": "138"}, "xG", map[string]any{"h": "1.2"}, "forecast_win", "0.61"),
		},
	}, nil).Once()

	service := NewFetchService(nil, understat, nil, logging.NewNop(), FetchOptions{HistoryWorkers: 1})

	req := validRequest(resource.UnderstatPlayers)
	req.League = "La_liga"
	req.Season = 2022
	players, err := service.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, players.Rows())
	require.Equal(t, 30.0, players.Table.Value(0, "games"))
	require.Nil(t, players.Table.Value(1, "games"))
	require.Equal(t, 4.51, players.Table.Value(0, "xG"))
	require.Equal(t, "1", players.Table.Value(0, "id"))

	req.Resource = resource.UnderstatMatches
	matches, err := service.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 0.61, matches.Table.Value(0, "forecast_win"))
	require.Equal(t, map[string]any{"h": "1.2"}, matches.Table.Value(0, "xG"))
}
