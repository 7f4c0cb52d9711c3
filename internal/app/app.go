package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-data-pipeline/external/fpl"
	"github.com/riskibarqy/fpl-data-pipeline/external/understat"
	"github.com/riskibarqy/fpl-data-pipeline/internal/config"
	"github.com/riskibarqy/fpl-data-pipeline/internal/infrastructure/output"
	"github.com/riskibarqy/fpl-data-pipeline/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/resilience"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
)

// App holds the wired services a command needs.
type App struct {
	Config config.Config
	Logger *logging.Logger

	FPL       *fpl.Client
	Understat *understat.Client
	Fetch     *usecase.FetchService
	Check     *usecase.CheckService
	Writer    *output.Writer

	db *sqlx.DB
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	fplClient := fpl.NewClient(fpl.ClientConfig{
		BaseURL:    cfg.FPLBaseURL,
		Timeout:    cfg.FPLTimeout,
		MaxRetries: cfg.FPLMaxRetries,
		CacheTTL:   cfg.FPLCacheTTL,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FPLCircuitEnabled,
			FailureThreshold: cfg.FPLCircuitFailureCount,
			OpenTimeout:      cfg.FPLCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FPLCircuitHalfOpenMaxReq,
		},
	})
	understatClient := understat.NewClient(understat.ClientConfig{
		BaseURL:    cfg.UnderstatBaseURL,
		UserAgent:  cfg.UnderstatUserAgent,
		Timeout:    cfg.UnderstatTimeout,
		MaxRetries: cfg.UnderstatMaxRetries,
		Sleep:      cfg.UnderstatSleep,
		Logger:     logger,
	})

	a := &App{
		Config:    cfg,
		Logger:    logger,
		FPL:       fplClient,
		Understat: understatClient,
		Writer:    output.NewWriter(logger),
	}

	// A typed nil repository must not leak into the interface.
	var archive usecase.PayloadArchive
	if cfg.ArchiveEnabled {
		db, err := openArchive(ctx, cfg)
		if err != nil {
			logger.WarnContext(ctx, "raw archive unavailable, continuing without it", "error", err)
		} else {
			a.db = db
			archive = postgres.NewRawDataRepository(db)
		}
	}

	a.Fetch = usecase.NewFetchService(fplClient, understatClient, archive, logger, usecase.FetchOptions{
		HistoryWorkers: cfg.FPLMaxWorkers,
		HistorySleep:   cfg.FPLSleep,
	})
	a.Check = usecase.NewCheckService(fplClient, a.Fetch)

	return a, nil
}

// ArchiveEnabled reports whether fetched payloads are persisted.
func (a *App) ArchiveEnabled() bool {
	return a != nil && a.db != nil
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive db: %w", err))
		}
		a.db = nil
	}
	if err := a.Logger.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync logger: %w", err))
	}
	return errors.Join(errs...)
}
