package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if chatID := ChatIDFromContext(ctx); chatID != "" {
		fields = append(fields, zap.String("chat.id", chatID))
	}
	if messageID := MessageIDFromContext(ctx); messageID != "" {
		fields = append(fields, zap.String("message.id", messageID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type chatCtxKey struct{}
type messageCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// WithChatID adds the originating chat identifier to context.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatCtxKey{}, chatID)
}

// ChatIDFromContext extracts the chat identifier from context.
func ChatIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(chatCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithMessageID adds the transport message identifier to context.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageCtxKey{}, messageID)
}

// MessageIDFromContext extracts the transport message identifier from context.
func MessageIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(messageCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithRequestID adds a request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
