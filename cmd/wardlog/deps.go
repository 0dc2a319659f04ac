package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardlog/internal/config"
	"github.com/fyrsmithlabs/wardlog/internal/dispatch"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/store"
	"github.com/fyrsmithlabs/wardlog/internal/store/memtable"
	"github.com/fyrsmithlabs/wardlog/internal/store/sheets"
	"github.com/fyrsmithlabs/wardlog/internal/telemetry"
	"github.com/fyrsmithlabs/wardlog/internal/worker"
)

// initLogger builds the process logger from the log and observability settings.
func initLogger(cfg *config.Config, otelProvider log.LoggerProvider) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()

	level, err := logging.LevelFromString(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	lc.Level = level
	lc.Format = cfg.Log.Format
	lc.Fields["service"] = cfg.Observability.ServiceName
	lc.Output.OTEL = cfg.Observability.EnableTelemetry

	return logging.NewLogger(lc, otelProvider)
}

// openTable opens the configured store backend.
func openTable(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.Table, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn(ctx, "using in-memory store; records are lost on exit")
		return memtable.New(), nil
	default:
		table, err := sheets.Open(ctx, sheets.Options{
			SheetKey:       cfg.Google.SheetKey,
			Credentials:    sheets.DefaultChain(cfg.Google.CredentialsEnv, cfg.Google.CredentialsFile),
			RequestTimeout: cfg.Google.RequestTimeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
		}
		return table, nil
	}
}

// core holds what every transport's dispatcher shares.
type core struct {
	cfg    *config.Config
	client *store.Client
	pool   *worker.Pool
	tel    *telemetry.Telemetry
	logger *logging.Logger
}

// newCore opens the store and creates the worker pool.
func newCore(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger *logging.Logger) (*core, error) {
	table, err := openTable(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	client, err := store.NewClient(table, logger)
	if err != nil {
		return nil, err
	}
	return &core{
		cfg:    cfg,
		client: client,
		pool:   worker.NewPool(cfg.Dispatch.MaxInFlight),
		tel:    tel,
		logger: logger,
	}, nil
}

// dispatcher creates a Dispatcher answering through replier.
func (c *core) dispatcher(replier dispatch.Replier) (*dispatch.Dispatcher, error) {
	return dispatch.New(c.client, replier, c.pool, c.logger,
		dispatch.WithReplies(c.cfg.Dispatch.SuccessReply, c.cfg.Dispatch.FailureReply),
		dispatch.WithTracer(c.tel.Tracer("github.com/fyrsmithlabs/wardlog/internal/dispatch")),
	)
}

// Close stops the worker pool after in-flight appends finish.
func (c *core) Close() {
	c.pool.Close()
}

// stop drains the dispatchers, then stops the worker pool. Both waits end
// with ctx, even if a store call never returns.
func (c *core) stop(ctx context.Context, dispatchers []*dispatch.Dispatcher) {
	drain(ctx, c.logger, dispatchers)
	if err := c.pool.Shutdown(ctx); err != nil {
		c.logger.Warn(context.Background(), "worker pool still busy at shutdown", zap.Error(err))
	}
}
