package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/wardlog/internal/config"
	"github.com/fyrsmithlabs/wardlog/internal/dispatch"
	httpserver "github.com/fyrsmithlabs/wardlog/internal/http"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/telemetry"
	"github.com/fyrsmithlabs/wardlog/internal/transport/natsbus"
	"github.com/fyrsmithlabs/wardlog/internal/transport/telegram"
)

// serveCmd runs the bot
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the patient log bot",
	Long: `Run the bot until interrupted.

Messages arrive from Telegram (long polling or webhook) and, when enabled,
from NATS. The HTTP server exposes /health, /metrics and, in webhook mode,
/telegram/webhook.

Required environment:
  TELEGRAM_BOT_TOKEN   bot token (unless telegram.mode is disabled)
  GOOGLE_SHEET_KEY     spreadsheet key
  GCP_CREDS_JSON       service account JSON (or credentials.json)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.LoadWithFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return run(ctx, cfg)
	},
}

// run starts every enabled transport and blocks until ctx is cancelled or a
// component fails.
//
//  1. Initializes telemetry and the logger
//  2. Opens the store and creates the worker pool
//  3. Connects the Telegram bot and NATS, one dispatcher each
//  4. Starts the HTTP server
//  5. On shutdown, drains accepted messages before returning
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := initLogger(cfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting wardlog",
		zap.String("version", version),
		zap.String("telegram_mode", cfg.Telegram.Mode),
		zap.Bool("nats", cfg.NATS.Enabled),
		zap.String("store", cfg.Store.Driver),
		zap.Int("max_in_flight", cfg.Dispatch.MaxInFlight))

	c, err := newCore(ctx, cfg, tel, logger)
	if err != nil {
		return err
	}
	var dispatchers []*dispatch.Dispatcher

	// stop drains and stops the pool under one deadline. It runs on every
	// return path.
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			c.stop(shutdownCtx, dispatchers)
		})
	}
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	httpOpts := []httpserver.Option{
		httpserver.WithMetrics(httpserver.NewHTTPMetricsWithMeter(
			tel.Meter("github.com/fyrsmithlabs/wardlog/internal/http"), logger)),
	}
	if tel.IsEnabled() {
		httpOpts = append(httpOpts, httpserver.WithHealthCheck("telemetry", func(context.Context) error {
			if h := tel.Health(); h.Degraded {
				return errors.New(h.Reason)
			}
			return nil
		}))
	}

	if cfg.Telegram.Mode != config.TelegramDisabled {
		bot, err := telegram.New(ctx, telegram.Options{
			Token:  cfg.Telegram.BotToken,
			Debug:  cfg.Telegram.Debug,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		d, err := c.dispatcher(bot)
		if err != nil {
			return err
		}
		dispatchers = append(dispatchers, d)

		if cfg.Telegram.Mode == config.TelegramWebhook {
			httpOpts = append(httpOpts, httpserver.WithWebhook(d))
		} else {
			poller := bot.NewPoller(d, cfg.Telegram.PollTimeout)
			g.Go(func() error { return poller.Run(gctx) })
		}
	}

	if cfg.NATS.Enabled {
		nc, err := natsbus.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Close()

		tr := natsbus.New(nc, natsbus.Options{
			Subject:     cfg.NATS.Subject,
			ReplyPrefix: cfg.NATS.ReplyPrefix,
			Logger:      logger,
		})
		d, err := c.dispatcher(tr)
		if err != nil {
			return err
		}
		dispatchers = append(dispatchers, d)
		g.Go(func() error { return tr.Run(gctx, d) })

		httpOpts = append(httpOpts, httpserver.WithHealthCheck("nats", func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats %s", nc.Status())
			}
			return nil
		}))
	}

	srv, err := httpserver.NewServer(logger, &httpserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	}, httpOpts...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stop()
	if err != nil {
		return err
	}

	logger.Info(context.Background(), "wardlog stopped")
	return nil
}

// drain waits for accepted messages to be acknowledged until ctx ends.
func drain(ctx context.Context, logger *logging.Logger, dispatchers []*dispatch.Dispatcher) {
	done := make(chan struct{})
	go func() {
		for _, d := range dispatchers {
			d.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn(context.Background(), "shutdown timeout reached with messages still in flight",
			zap.Error(ctx.Err()))
	}
}
