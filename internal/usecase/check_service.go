package usecase

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/resource"
	"github.com/sourcegraph/conc/pool"
)

const (
	checkBootstrapKeys  = 5
	checkFixtureSamples = 3
	checkHistoryPlayers = 5
	checkHistorySleep   = 100 * time.Millisecond
	checkUnderstatRows  = 5
)

var checkUnderstatColumns = []string{"player_name", "team_title", "xG", "xA"}

// CheckReport holds small samples from each upstream source.
type CheckReport struct {
	BootstrapKeys   []string
	TeamsCount      int
	Fixtures        *dataset.Table
	HistorySample   *dataset.Table
	UnderstatSample *dataset.Table
}

type CheckService struct {
	fpl   FPLSource
	fetch *FetchService
}

func NewCheckService(fpl FPLSource, fetch *FetchService) *CheckService {
	return &CheckService{fpl: fpl, fetch: fetch}
}

// Check hits every source concurrently. The first failure cancels the rest.
func (s *CheckService) Check(ctx context.Context) (CheckReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CheckService.Check")
	defer span.End()

	var report CheckReport
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		raw, err := s.fpl.FetchBootstrap(ctx)
		if err != nil {
			return err
		}
		keys, teams, err := summarizeBootstrap(raw)
		if err != nil {
			return err
		}
		report.BootstrapKeys = keys
		report.TeamsCount = teams
		return nil
	})

	p.Go(func(ctx context.Context) error {
		raw, err := s.fpl.FetchFixtures(ctx)
		if err != nil {
			return err
		}
		records, err := dataset.DecodeRecords(raw)
		if err != nil {
			return fmt.Errorf("decode fixtures: %w", err)
		}
		report.Fixtures = dataset.FromRecords(records).Head(checkFixtureSamples)
		return nil
	})

	p.Go(func(ctx context.Context) error {
		limit := checkHistoryPlayers
		table, err := s.fetch.BuildPlayerGameweeks(ctx, &limit, checkHistorySleep)
		if err != nil {
			return err
		}
		report.HistorySample = table.Head(5)
		return nil
	})

	p.Go(func(ctx context.Context) error {
		table, err := s.fetch.UnderstatPlayers(ctx, resource.DefaultLeague, resource.DefaultSeason)
		if err != nil {
			return err
		}
		report.UnderstatSample = table.Head(checkUnderstatRows).Select(checkUnderstatColumns...)
		return nil
	})

	if err := p.Wait(); err != nil {
		return CheckReport{}, failSpan(span, err)
	}
	return report, nil
}

type bootstrapTeams struct {
	Teams []sonic.NoCopyRawMessage `json:"teams"`
}

// summarizeBootstrap returns the first top-level keys in document order and
// the number of teams.
func summarizeBootstrap(raw []byte) ([]string, int, error) {
	root, err := sonic.Get(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("parse bootstrap: %w", err)
	}
	if root.TypeSafe() != ast.V_OBJECT {
		return nil, 0, fmt.Errorf("%w: bootstrap payload is not a JSON object", ErrUpstream)
	}

	keys := make([]string, 0, checkBootstrapKeys)
	err = root.ForEach(func(seq ast.Sequence, _ *ast.Node) bool {
		if seq.Key != nil {
			keys = append(keys, *seq.Key)
		}
		return len(keys) < checkBootstrapKeys
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk bootstrap keys: %w", err)
	}

	var teams bootstrapTeams
	if err := sonic.Unmarshal(raw, &teams); err != nil {
		return nil, 0, fmt.Errorf("decode bootstrap teams: %w", err)
	}
	return keys, len(teams.Teams), nil
}
