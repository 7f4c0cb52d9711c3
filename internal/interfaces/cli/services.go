package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riskibarqy/fpl-data-pipeline/internal/app"
	"github.com/riskibarqy/fpl-data-pipeline/internal/config"
	"github.com/riskibarqy/fpl-data-pipeline/internal/infrastructure/output"
	"github.com/riskibarqy/fpl-data-pipeline/internal/observability"
	"github.com/riskibarqy/fpl-data-pipeline/internal/platform/logging"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context, req usecase.Request) (usecase.Dataset, error)
}

type DatasetWriter interface {
	Write(ctx context.Context, path string, ds usecase.Dataset) (output.Result, error)
}

type Checker interface {
	Check(ctx context.Context) (usecase.CheckReport, error)
}

// Services is what the commands run against. Close may be nil.
type Services struct {
	Fetcher Fetcher
	Writer  DatasetWriter
	Checker Checker
	Logger  *logging.Logger
	Close   func(ctx context.Context) error
}

// Bootstrap builds Services from an env file path.
type Bootstrap func(ctx context.Context, envFile string) (*Services, error)

// DefaultBootstrap loads configuration, sets up logging and telemetry, then
// wires the application.
func DefaultBootstrap(ctx context.Context, envFile string) (*Services, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel).With("service", cfg.ServiceName, "env", cfg.AppEnv)
	logging.SetDefault(logger)

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init uptrace: %w", err)
	}
	stopProfiling, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("init pyroscope: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = stopProfiling()
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("build app: %w", err)
	}
	logger.DebugContext(ctx, "services ready", "archive", a.ArchiveEnabled())

	return &Services{
		Fetcher: a.Fetch,
		Writer:  a.Writer,
		Checker: a.Check,
		Logger:  logger,
		Close: func(ctx context.Context) error {
			// Flush telemetry before the logger is synced by app.Close.
			return errors.Join(
				shutdownTracing(ctx),
				stopProfiling(),
				a.Close(),
			)
		},
	}, nil
}

func closeServices(svc *Services) {
	if svc == nil || svc.Close == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		svc.Logger.Warn("shutdown incomplete", "error", err)
	}
}
