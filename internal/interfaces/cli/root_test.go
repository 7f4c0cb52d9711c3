package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/resource"
	"github.com/riskibarqy/fpl-data-pipeline/internal/infrastructure/output"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
	"github.com/stretchr/testify/require"
)

type fetcherStub struct {
	got usecase.Request
	ds  usecase.Dataset
	err error
}

func (f *fetcherStub) Fetch(_ context.Context, req usecase.Request) (usecase.Dataset, error) {
	f.got = req
	return f.ds, f.err
}

type checkerStub struct {
	report usecase.CheckReport
	err    error
}

func (c *checkerStub) Check(context.Context) (usecase.CheckReport, error) {
	return c.report, c.err
}

type bootstrapRecorder struct {
	envFile string
	calls   int
	closed  bool
	svc     *Services
}

func (b *bootstrapRecorder) bootstrap(_ context.Context, envFile string) (*Services, error) {
	b.calls++
	b.envFile = envFile
	b.svc.Close = func(context.Context) error {
		b.closed = true
		return nil
	}
	return b.svc, nil
}

func execute(t *testing.T, bootstrap Bootstrap, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(bootstrap)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRootCommand_FetchWritesOutput(t *testing.T) {
	fetcher := &fetcherStub{ds: usecase.Dataset{
		Resource: resource.FPLBootstrap,
		Document: []byte(`{"events":[],"teams":[{"id":1}]}`),
	}}
	rec := &bootstrapRecorder{svc: &Services{
		Fetcher: fetcher,
		Writer:  output.NewWriter(logging.NewNop()),
		Logger:  logging.NewNop(),
	}}
	out := filepath.Join(t.TempDir(), "raw", "bootstrap.json")

	_, err := execute(t, rec.bootstrap, "--resource", "fpl_bootstrap", "--out", out, "--env-file", "missing.env")
	require.NoError(t, err)

	require.Equal(t, 1, rec.calls)
	require.Equal(t, "missing.env", rec.envFile)
	require.True(t, rec.closed, "services must be closed after the run")
	require.Equal(t, resource.FPLBootstrap, fetcher.got.Resource)
	require.Equal(t, resource.DefaultSeason, fetcher.got.Season)
	require.Equal(t, resource.DefaultLeague, fetcher.got.League)
	require.Nil(t, fetcher.got.Limit)
	require.Nil(t, fetcher.got.Sleep)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(written), "{\n  \"events\""), "unexpected output: %s", written)
}

func TestRootCommand_OptionalFlags(t *testing.T) {
	table := dataset.New("element", "round")
	table.Append(map[string]any{"element": int64(1), "round": int64(1)})
	fetcher := &fetcherStub{ds: usecase.Dataset{Resource: resource.FPLHistories, Table: table}}
	rec := &bootstrapRecorder{svc: &Services{
		Fetcher: fetcher,
		Writer:  output.NewWriter(logging.NewNop()),
	}}
	out := filepath.Join(t.TempDir(), "histories.csv")

	_, err := execute(t, rec.bootstrap,
		"--resource", "FPL_HISTORIES", "--out", out,
		"--limit", "0", "--sleep", "0.25", "--season", "2022", "--league", "La_liga")
	require.NoError(t, err)

	require.NotNil(t, fetcher.got.Limit)
	require.Equal(t, 0, *fetcher.got.Limit)
	require.NotNil(t, fetcher.got.Sleep)
	require.Equal(t, 250*time.Millisecond, *fetcher.got.Sleep)
	require.Equal(t, 2022, fetcher.got.Season)
	require.Equal(t, "La_liga", fetcher.got.League)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "element,round\n1,1\n", string(written))
}

func TestRootCommand_Errors(t *testing.T) {
	t.Run("unknown resource does not bootstrap", func(t *testing.T) {
		rec := &bootstrapRecorder{svc: &Services{}}
		_, err := execute(t, rec.bootstrap, "--resource", "fpl_everything", "--out", "x.csv")
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported resource")
		require.Zero(t, rec.calls)
	})

	t.Run("missing out flag", func(t *testing.T) {
		rec := &bootstrapRecorder{svc: &Services{}}
		_, err := execute(t, rec.bootstrap, "--resource", "fpl_bootstrap")
		require.Error(t, err)
		require.Contains(t, err.Error(), "out")
		require.Zero(t, rec.calls)
	})

	t.Run("fetch failure is returned and services closed", func(t *testing.T) {
		upstream := errors.New("GET https://fantasy.premierleague.com/api/fixtures/ status=503")
		rec := &bootstrapRecorder{svc: &Services{
			Fetcher: &fetcherStub{err: upstream},
			Writer:  output.NewWriter(logging.NewNop()),
		}}
		out := filepath.Join(t.TempDir(), "fixtures.json")
		_, err := execute(t, rec.bootstrap, "--resource", "fpl_fixtures", "--out", out)
		require.ErrorIs(t, err, upstream)
		require.True(t, rec.closed)
		_, statErr := os.Stat(out)
		require.True(t, os.IsNotExist(statErr), "no file may be written on failure")
	})

	t.Run("bootstrap failure", func(t *testing.T) {
		failing := func(context.Context, string) (*Services, error) {
			return nil, errors.New("load config: invalid APP_ENV")
		}
		_, err := execute(t, failing, "--resource", "fpl_bootstrap", "--out", "x.json")
		require.EqualError(t, err, "load config: invalid APP_ENV")
	})
}

func TestCheckCommand_RendersReport(t *testing.T) {
	fixtures := dataset.New("id", "event", "stats")
	fixtures.Append(map[string]any{"id": int64(1), "event": int64(1), "stats": []any{map[string]any{"identifier": strings.Repeat("x", 80)}}})
	understat := dataset.New("player_name", "team_title", "xG", "xA")
	understat.Append(map[string]any{"player_name": "Erling Haaland", "team_title": "Manchester City", "xG": 29.5, "xA": 4.1})

	rec := &bootstrapRecorder{svc: &Services{Checker: &checkerStub{report: usecase.CheckReport{
		BootstrapKeys:   []string{"events", "game_settings", "phases", "teams", "total_players"},
		TeamsCount:      20,
		Fixtures:        fixtures,
		UnderstatSample: understat,
	}}}}

	stdout, err := execute(t, rec.bootstrap, "check", "--env-file", "configs/test.env")
	require.NoError(t, err)
	require.Equal(t, "configs/test.env", rec.envFile)
	require.True(t, rec.closed)

	require.Contains(t, stdout, "FPL bootstrap keys: events, game_settings, phases, teams, total_players")
	require.Contains(t, stdout, "FPL teams: 20")
	require.Contains(t, stdout, "Erling Haaland")
	require.Contains(t, stdout, "29.5")
	require.Contains(t, stdout, "no rows")
	require.Contains(t, stdout, "...")
}

func TestCheckCommand_Failure(t *testing.T) {
	rec := &bootstrapRecorder{svc: &Services{Checker: &checkerStub{err: usecase.ErrUpstream}}}
	stdout, err := execute(t, rec.bootstrap, "check")
	require.ErrorIs(t, err, usecase.ErrUpstream)
	require.Empty(t, stdout)
}

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("short"); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	got := truncateCell(strings.Repeat("é", maxCellWidth+5))
	if len([]rune(got)) != maxCellWidth {
		t.Fatalf("expected %d runes, got %d", maxCellWidth, len([]rune(got)))
	}
}
