package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardlog/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/wardlog/internal/http"

// HTTPMetrics records per-request OpenTelemetry metrics.
type HTTPMetrics struct {
	logger         *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
	webhookBytes   metric.Int64Histogram
}

// NewHTTPMetrics creates request metrics on the global meter provider.
func NewHTTPMetrics(logger *logging.Logger) *HTTPMetrics {
	return NewHTTPMetricsWithMeter(otel.Meter(httpInstrumentationName), logger)
}

// NewHTTPMetricsWithMeter creates request metrics on meter.
// Instruments that fail to register are skipped with a warning.
func NewHTTPMetricsWithMeter(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &HTTPMetrics{logger: logger}
	ctx := context.Background()

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"wardlog.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = meter.Float64Histogram(
		"wardlog.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route and status code"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"wardlog.http.active_requests",
		metric.WithDescription("Number of HTTP requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}

	m.webhookBytes, err = meter.Int64Histogram(
		"wardlog.http.webhook_body_bytes",
		metric.WithDescription("Size of Telegram webhook request bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 4096, 16384, 65536, 262144, 1048576),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create webhook body histogram", zap.Error(err))
	}

	return m
}

// MetricsMiddleware returns an Echo middleware that records request metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			start := time.Now()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
				defer m.activeRequests.Add(ctx, -1)
			}

			err := next(c)

			// Handler errors are rendered after middleware returns; take the
			// status from the error so it is not recorded as 200.
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			route := normalizePath(c.Path())
			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("route", route),
				attribute.Int("status", status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.webhookBytes != nil && route == WebhookPath && req.ContentLength >= 0 {
				m.webhookBytes.Record(ctx, req.ContentLength)
			}

			return err
		}
	}
}

// normalizePath maps an unmatched request (empty route) to "/" so unknown
// URLs share one label. Every registered route is static.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
