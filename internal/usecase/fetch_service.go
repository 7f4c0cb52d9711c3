package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/rawdata"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/resource"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/resilience"
	"go.opentelemetry.io/otel/attribute"
)

var historyNumericColumns = []string{
	"round",
	"total_points",
	"minutes",
	"goals_scored",
	"assists",
	"clean_sheets",
	"goals_conceded",
	"own_goals",
	"penalties_saved",
	"penalties_missed",
	"yellow_cards",
	"red_cards",
	"saves",
	"bonus",
	"bps",
	"influence",
	"creativity",
	"threat",
	"ict_index",
}

var understatPlayerNumericColumns = []string{
	"games",
	"time",
	"goals",
	"xG",
	"assists",
	"xA",
	"shots",
	"key_passes",
	"xGChain",
	"xGBuildup",
}

var understatMatchNumericColumns = []string{
	"xG_home",
	"xG_away",
	"forecast_win",
	"forecast_draw",
	"forecast_lose",
}

// Request describes one fetch. Limit and Sleep are optional; a nil Sleep
// uses the configured FPL sleep.
type Request struct {
	Resource resource.Resource `validate:"required,fetch_resource"`
	Out      string            `validate:"required"`
	Season   int               `validate:"understat_season"`
	League   string            `validate:"required,understat_league"`
	Limit    *int              `validate:"omitempty,gte=0"`
	Sleep    *time.Duration    `validate:"omitempty,gte=0"`
}

// Dataset is the result of a fetch: an upstream JSON document kept verbatim,
// or a table.
type Dataset struct {
	Resource resource.Resource
	Document []byte
	Table    *dataset.Table
}

func (d Dataset) IsDocument() bool {
	return d.Table == nil
}

// Rows is the table length, or the number of top-level items of a document
// array. Object documents count as one row.
func (d Dataset) Rows() int {
	if d.Table != nil {
		return d.Table.Len()
	}
	if records, err := dataset.DecodeRecords(d.Document); err == nil {
		return len(records)
	}
	if len(d.Document) == 0 {
		return 0
	}
	return 1
}

type FetchOptions struct {
	HistoryWorkers int
	HistorySleep   time.Duration
}

type FetchService struct {
	fpl          FPLSource
	understat    UnderstatSource
	archive      PayloadArchive
	logger       *logging.Logger
	validate     *validator.Validate
	workers      int
	historySleep time.Duration
}

// NewFetchService wires the upstream sources. archive may be nil.
func NewFetchService(fpl FPLSource, understat UnderstatSource, archive PayloadArchive, logger *logging.Logger, opts FetchOptions) *FetchService {
	if logger == nil {
		logger = logging.Default()
	}
	workers := opts.HistoryWorkers
	if workers < 1 {
		workers = 1
	}
	return &FetchService{
		fpl:          fpl,
		understat:    understat,
		archive:      archive,
		logger:       logger,
		validate:     newRequestValidator(),
		workers:      workers,
		historySleep: max(opts.HistorySleep, 0),
	}
}

func newRequestValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("fetch_resource", func(fl validator.FieldLevel) bool {
		return resource.Resource(fl.Field().String()).Known()
	})
	_ = validate.RegisterValidation("understat_league", func(fl validator.FieldLevel) bool {
		return resource.IsUnderstatLeague(fl.Field().String())
	})
	_ = validate.RegisterValidation("understat_season", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= resource.FirstUnderstatSeason
	})
	return validate
}

func (s *FetchService) Fetch(ctx context.Context, req Request) (Dataset, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.Fetch", requestAttributes(req)...)
	defer span.End()

	if err := s.validate.StructCtx(ctx, req); err != nil {
		return Dataset{}, failSpan(span, fmt.Errorf("%w: validation failed: %v", ErrInvalidInput, err))
	}

	out := Dataset{Resource: req.Resource}
	var err error
	switch req.Resource {
	case resource.FPLBootstrap:
		out.Document, err = s.FPLBootstrap(ctx)
	case resource.FPLFixtures:
		out.Document, err = s.FPLFixtures(ctx)
	case resource.FPLHistories:
		sleep := s.historySleep
		if req.Sleep != nil {
			sleep = *req.Sleep
		}
		out.Table, err = s.BuildPlayerGameweeks(ctx, req.Limit, sleep)
	case resource.UnderstatPlayers:
		out.Table, err = s.UnderstatPlayers(ctx, req.League, req.Season)
	case resource.UnderstatMatches:
		out.Table, err = s.UnderstatMatches(ctx, req.League, req.Season)
	default:
		return Dataset{}, failSpan(span, fmt.Errorf("%w: unsupported resource %q", ErrInvalidInput, req.Resource))
	}
	if err != nil {
		return Dataset{}, failSpan(span, err)
	}
	if out.Table != nil {
		span.SetAttributes(attribute.Int("fetch.rows", out.Table.Len()))
	} else {
		span.SetAttributes(attribute.Int("fetch.bytes", len(out.Document)))
	}
	return out, nil
}

func (s *FetchService) FPLBootstrap(ctx context.Context) ([]byte, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.FPLBootstrap")
	defer span.End()

	raw, err := s.fpl.FetchBootstrap(ctx)
	if err != nil {
		return nil, err
	}
	s.archivePayloads(ctx, rawdata.NewPayload(string(resource.SourceFPL), "bootstrap_static", "bootstrap-static", raw))
	return raw, nil
}

func (s *FetchService) FPLFixtures(ctx context.Context) ([]byte, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.FPLFixtures")
	defer span.End()

	raw, err := s.fpl.FetchFixtures(ctx)
	if err != nil {
		return nil, err
	}
	s.archivePayloads(ctx, rawdata.NewPayload(string(resource.SourceFPL), "fixtures", "fixtures", raw))
	return raw, nil
}

// BuildPlayerGameweeks fetches the gameweek history of every bootstrap
// element (the first limit when set) and flattens it into one table, each row
// tagged with its element id. Rows keep element order, then upstream order.
// The first failing element cancels the remaining requests.
func (s *FetchService) BuildPlayerGameweeks(ctx context.Context, limit *int, sleep time.Duration) (*dataset.Table, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.BuildPlayerGameweeks")
	defer span.End()

	elements, bootstrapRaw, err := s.fpl.FetchElements(ctx)
	if err != nil {
		return nil, err
	}
	s.archivePayloads(ctx, rawdata.NewPayload(string(resource.SourceFPL), "bootstrap_static", "bootstrap-static", bootstrapRaw))

	if limit != nil && *limit < len(elements) {
		elements = elements[:max(*limit, 0)]
	}

	histories, err := s.fetchHistories(ctx, elements, sleep)
	if err != nil {
		return nil, err
	}

	table := dataset.New()
	payloads := make([]rawdata.Payload, 0, len(histories))
	for _, history := range histories {
		for _, row := range history.Rows {
			row.Set("element", history.ElementID)
			table.AppendRecord(row)
		}
		payloads = append(payloads, rawdata.NewPayload(
			string(resource.SourceFPL),
			"element_summary",
			strconv.FormatInt(history.ElementID, 10),
			history.Raw,
		))
	}
	table.CoerceNumeric(historyNumericColumns...)
	s.archivePayloads(ctx, payloads...)

	s.logger.InfoContext(ctx, "built player gameweek histories", "elements", len(elements), "rows", table.Len())
	return table, nil
}

func (s *FetchService) fetchHistories(ctx context.Context, elements []FPLElement, sleep time.Duration) ([]FPLPlayerHistory, error) {
	if len(elements) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pool, err := ants.NewPool(min(s.workers, len(elements)))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	limiter := resilience.NewRequestLimiter(sleep, false)
	results := make([]FPLPlayerHistory, len(elements))

	var workers sync.WaitGroup
	for idx, element := range elements {
		if ctx.Err() != nil {
			break
		}
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			if err := limiter.Wait(ctx); err != nil {
				return
			}
			history, err := s.fpl.FetchPlayerHistory(ctx, element.ID)
			if err != nil {
				cancel(fmt.Errorf("fetch history element_id=%d: %w", element.ID, err))
				return
			}
			results[idx] = history
			s.logger.DebugContext(ctx, "fetched player history", "element", element.ID, "web_name", element.WebName, "rows", len(history.Rows))
		}); err != nil {
			workers.Done()
			cancel(fmt.Errorf("submit task to worker pool: %w", err))
			break
		}
	}
	workers.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *FetchService) UnderstatPlayers(ctx context.Context, league string, season int) (*dataset.Table, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.UnderstatPlayers")
	defer span.End()

	payload, err := s.understat.FetchPlayers(ctx, league, season)
	if err != nil {
		return nil, err
	}
	return s.understatTable(ctx, "players", payload, understatPlayerNumericColumns), nil
}

func (s *FetchService) UnderstatMatches(ctx context.Context, league string, season int) (*dataset.Table, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FetchService.UnderstatMatches")
	defer span.End()

	payload, err := s.understat.FetchMatches(ctx, league, season)
	if err != nil {
		return nil, err
	}
	return s.understatTable(ctx, "matches", payload, understatMatchNumericColumns), nil
}

func (s *FetchService) understatTable(ctx context.Context, entity string, payload UnderstatPayload, numeric []string) *dataset.Table {
	s.archivePayloads(ctx, rawdata.NewPayload(
		string(resource.SourceUnderstat),
		entity,
		payload.League+"/"+strconv.Itoa(payload.Season),
		payload.Raw,
	))

	table := dataset.FromRecords(payload.Records)
	table.CoerceNumeric(numeric...)
	s.logger.InfoContext(ctx, "built understat table", "entity", entity, "league", payload.League, "season", payload.Season, "rows", table.Len())
	return table
}

// archivePayloads never fails the fetch; the archive is a side channel.
func (s *FetchService) archivePayloads(ctx context.Context, items ...rawdata.Payload) {
	if s.archive == nil || len(items) == 0 {
		return
	}
	if err := s.archive.UpsertMany(ctx, items); err != nil {
		s.logger.WarnContext(ctx, "archive raw payloads failed", "items", len(items), "error", err)
	}
}
