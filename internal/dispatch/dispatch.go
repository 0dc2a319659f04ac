// Package dispatch turns inbound chat messages into stored patient logs and
// acknowledges each one exactly once.
//
// A message whose text does not start with the marker prefix is dropped
// without a reply. Every other message is extracted on the caller's
// goroutine, appended on the worker pool, and answered with either the
// success or the failure reply, never both and never neither.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardlog/internal/extraction"
	"github.com/fyrsmithlabs/wardlog/internal/logging"
	"github.com/fyrsmithlabs/wardlog/internal/record"
	"github.com/fyrsmithlabs/wardlog/internal/worker"
)

// Default acknowledgement texts.
const (
	DefaultSuccessReply = "✅ Patient log saved to Google Sheet."
	DefaultFailureReply = "❌ Failed to save patient log. Please check the bot's logs."
)

const instrumentationName = "github.com/fyrsmithlabs/wardlog/internal/dispatch"

var (
	// ErrNilAppender is returned by New without an Appender.
	ErrNilAppender = errors.New("dispatch: appender is required")
	// ErrNilReplier is returned by New without a Replier.
	ErrNilReplier = errors.New("dispatch: replier is required")
	// ErrNilPool is returned by New without a worker pool.
	ErrNilPool = errors.New("dispatch: worker pool is required")
)

// Message is a transport-neutral inbound chat message.
type Message struct {
	ChatID string
	Text   string
	ID     string // transport message id, for logs only
}

// Replier sends a text back to a chat.
type Replier interface {
	Reply(ctx context.Context, chatID, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, chatID, text string) error

// Reply implements Replier.
func (f ReplierFunc) Reply(ctx context.Context, chatID, text string) error {
	return f(ctx, chatID, text)
}

// Appender stores a record. store.Client is the production implementation.
type Appender interface {
	Append(ctx context.Context, rec record.Record) record.Outcome
}

// Ack describes how an accepted message was acknowledged.
type Ack struct {
	Record   record.Record
	Outcome  record.Outcome
	Reply    string
	ReplyErr error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReplies overrides the acknowledgement texts. Empty values keep the defaults.
func WithReplies(success, failure string) Option {
	return func(d *Dispatcher) {
		if success != "" {
			d.successReply = success
		}
		if failure != "" {
			d.failureReply = failure
		}
	}
}

// WithTracer sets the tracer used for append spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithMetrics sets the Prometheus metrics. Nil disables them.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher filters, extracts, stores and acknowledges messages.
type Dispatcher struct {
	appender Appender
	replier  Replier
	pool     *worker.Pool
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics

	successReply string
	failureReply string

	wg sync.WaitGroup
}

// New creates a Dispatcher. The appender is typically shared by every
// Dispatcher in the process; the replier belongs to one transport.
func New(appender Appender, replier Replier, pool *worker.Pool, logger *logging.Logger, opts ...Option) (*Dispatcher, error) {
	if appender == nil {
		return nil, ErrNilAppender
	}
	if replier == nil {
		return nil, ErrNilReplier
	}
	if pool == nil {
		return nil, ErrNilPool
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Dispatcher{
		appender:     appender,
		replier:      replier,
		pool:         pool,
		logger:       logger.Named("dispatch"),
		tracer:       otel.Tracer(instrumentationName),
		metrics:      NewMetrics(),
		successReply: DefaultSuccessReply,
		failureReply: DefaultFailureReply,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Accept filters and extracts msg on the calling goroutine, then appends and
// replies in the background. It reports whether the message was taken.
//
// Background work is detached from ctx cancellation so that shutdown drains
// accepted messages instead of failing them; use Wait to block on it.
func (d *Dispatcher) Accept(ctx context.Context, msg Message) bool {
	rec, ok := d.admit(ctx, msg)
	if !ok {
		return false
	}

	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.complete(ctx, msg, rec)
	}()
	return true
}

// Handle runs the whole pipeline for msg and returns once the reply was sent.
// The boolean is false when msg was ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (Ack, bool) {
	rec, ok := d.admit(ctx, msg)
	if !ok {
		return Ack{}, false
	}

	d.wg.Add(1)
	defer d.wg.Done()
	return d.complete(ctx, msg, rec), true
}

// Wait blocks until every accepted message has been acknowledged.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// admit applies the marker filter and extracts the record.
func (d *Dispatcher) admit(ctx context.Context, msg Message) (record.Record, bool) {
	if !extraction.HasMarker(msg.Text) {
		d.metrics.recordMessage(OutcomeIgnored)
		d.logger.Debug(ctx, "message ignored",
			zap.String("chat.id", msg.ChatID),
			zap.Int("length", len(msg.Text)))
		return record.Record{}, false
	}

	rec := extraction.Extract(msg.Text)
	d.logger.Debug(ctx, "record extracted",
		zap.String("chat.id", msg.ChatID),
		zap.String("record.code", rec.Code),
		zap.Strings("fields", extraction.Matched(msg.Text)))
	return rec, true
}

// complete appends rec on the worker pool and sends exactly one reply.
func (d *Dispatcher) complete(ctx context.Context, msg Message, rec record.Record) Ack {
	ctx = logging.WithChatID(ctx, msg.ChatID)
	if msg.ID != "" {
		ctx = logging.WithMessageID(ctx, msg.ID)
	}
	ctx = logging.WithRequestID(ctx, uuid.NewString())

	out := d.append(ctx, rec)

	text := d.failureReply
	outcome := OutcomeFailed
	if out.OK {
		text = d.successReply
		outcome = OutcomeSaved
	}
	d.metrics.recordMessage(outcome)

	ack := Ack{Record: rec, Outcome: out, Reply: text}
	if err := d.replier.Reply(ctx, msg.ChatID, text); err != nil {
		ack.ReplyErr = err
		d.metrics.recordReplyFailure()
		d.logger.Error(ctx, "reply failed",
			zap.String("record.code", rec.Code),
			zap.Bool("append.ok", out.OK),
			zap.Error(err))
		return ack
	}

	d.logger.Info(ctx, "message acknowledged",
		zap.String("record.code", rec.Code),
		zap.String("outcome", outcome))
	return ack
}

func (d *Dispatcher) append(ctx context.Context, rec record.Record) record.Outcome {
	ctx, span := d.tracer.Start(ctx, "dispatch.append",
		trace.WithAttributes(attribute.String("record.code", rec.Code)))
	defer span.End()

	start := time.Now()
	var out record.Outcome
	err := d.pool.Do(ctx, func(ctx context.Context) error {
		if d.metrics != nil {
			d.metrics.AppendsInFlight.Inc()
			defer d.metrics.AppendsInFlight.Dec()
		}
		out = d.appender.Append(ctx, rec)
		return nil
	})
	if d.metrics != nil {
		d.metrics.AppendDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		out = record.Failed(fmt.Errorf("running append: %w", err))
		d.logger.Error(ctx, "append did not complete",
			zap.String("record.code", rec.Code),
			zap.Error(err))
	}

	span.SetAttributes(attribute.Bool("append.ok", out.OK))
	if !out.OK {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "append failed")
	}
	return out
}
