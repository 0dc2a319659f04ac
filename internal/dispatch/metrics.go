package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcome labels.
const (
	OutcomeIgnored = "ignored"
	OutcomeSaved   = "saved"
	OutcomeFailed  = "failed"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the dispatcher.
type Metrics struct {
	MessagesTotal      *prometheus.CounterVec
	AppendDuration     prometheus.Histogram
	AppendsInFlight    prometheus.Gauge
	RepliesFailedTotal prometheus.Counter
}

// NewMetrics registers the dispatcher metrics with the default registry.
// Every call returns the same instance.
//
// Metrics:
//   - wardlog_messages_total{outcome} - messages by outcome (ignored, saved, failed)
//   - wardlog_append_duration_seconds - time from submission to append outcome
//   - wardlog_appends_in_flight - appends currently running on the worker pool
//   - wardlog_replies_failed_total - acknowledgements that could not be sent
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			MessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wardlog_messages_total",
					Help: "Total number of inbound messages by outcome",
				},
				[]string{"outcome"},
			),
			AppendDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "wardlog_append_duration_seconds",
					Help:    "Duration of store appends in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
				},
			),
			AppendsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "wardlog_appends_in_flight",
					Help: "Number of store appends currently running",
				},
			),
			RepliesFailedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "wardlog_replies_failed_total",
					Help: "Total number of acknowledgements that failed to send",
				},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) recordMessage(outcome string) {
	if m != nil {
		m.MessagesTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) recordReplyFailure() {
	if m != nil {
		m.RepliesFailedTotal.Inc()
	}
}
