// Package http serves wardlog's health, metrics and Telegram webhook endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/wardlog/internal/config"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/transport/telegram"
)

// Webhook rate limit defaults: 20 requests per second per IP, burst of 40.
const (
	DefaultRateLimit = rate.Limit(20)
	DefaultRateBurst = 40
)

// WebhookPath is the route Telegram delivers updates to.
const WebhookPath = "/telegram/webhook"

// Server provides HTTP endpoints for wardlog.
type Server struct {
	echo     *echo.Echo
	logger   *logging.Logger
	config   *Config
	webhook  telegram.Acceptor
	checks   map[string]HealthCheck
	limiters *limiterSet
	metrics  *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host          string
	Port          int
	WebhookSecret config.Secret
	RateLimit     rate.Limit
	RateBurst     int
}

// HealthCheck reports a dependency's health; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithWebhook enables POST /telegram/webhook, delivering messages to sink.
func WithWebhook(sink telegram.Acceptor) Option {
	return func(s *Server) {
		s.webhook = sink
	}
}

// WithHealthCheck adds a named dependency check to GET /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithMetrics sets the OpenTelemetry request metrics.
func WithMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new HTTP server.
func NewServer(logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	s := &Server{
		logger:   logger.Named("http"),
		config:   cfg,
		checks:   make(map[string]HealthCheck),
		limiters: newLimiterSet(cfg.RateLimit, cfg.RateBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewHTTPMetrics(s.logger)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			s.logger.Debug(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s.echo = e
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if s.webhook != nil {
		s.echo.POST(WebhookPath, s.handleTelegramWebhook)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth reports "ok", or "degraded" with 503 when a check fails.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(c.Request().Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	return c.JSON(status, resp)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
