package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	traceIDBytes = 16 // OpenTelemetry trace ID size in bytes
	spanIDBytes  = 8  // OpenTelemetry span ID size in bytes
)

type scopeKey struct{}

// scope is the set of correlation values carried by a request. It is
// copied on every update so parent contexts never observe child changes.
type scope struct {
	traceID   string
	spanID    string
	requestID string
	model     string
	attempt   int
}

func scopeFrom(ctx context.Context) scope {
	if s, ok := ctx.Value(scopeKey{}).(scope); ok {
		return s
	}
	return scope{}
}

func withScope(ctx context.Context, update func(*scope)) context.Context {
	s := scopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// fields renders the non-empty values as log fields.
func (s scope) fields() []zap.Field {
	fields := make([]zap.Field, 0, maxLoggerFieldCapacity)
	if s.traceID != "" {
		fields = append(fields, zap.String("trace_id", s.traceID))
	}
	if s.spanID != "" {
		fields = append(fields, zap.String("span_id", s.spanID))
	}
	if s.requestID != "" {
		fields = append(fields, zap.String("request_id", s.requestID))
	}
	if s.model != "" {
		fields = append(fields, zap.String("model", s.model))
	}
	if s.attempt > 0 {
		fields = append(fields, zap.Int("attempt", s.attempt))
	}
	return fields
}

// WithTraceID injects trace ID into context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withScope(ctx, func(s *scope) { s.traceID = traceID })
}

// WithSpanID injects span ID into context.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return withScope(ctx, func(s *scope) { s.spanID = spanID })
}

// WithRequestID injects request ID into context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withScope(ctx, func(s *scope) { s.requestID = requestID })
}

// WithModel records the model being attempted and resets the attempt counter.
func WithModel(ctx context.Context, model string) context.Context {
	return withScope(ctx, func(s *scope) {
		s.model = model
		s.attempt = 0
	})
}

// WithAttempt records the 1-based attempt number against the current model.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return withScope(ctx, func(s *scope) { s.attempt = attempt })
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string { return scopeFrom(ctx).traceID }

// GetSpanID extracts span ID from context.
func GetSpanID(ctx context.Context) string { return scopeFrom(ctx).spanID }

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string { return scopeFrom(ctx).requestID }

// GetModel extracts model name from context.
func GetModel(ctx context.Context) string { return scopeFrom(ctx).model }

// GetAttempt extracts the attempt number, 0 when none was recorded.
func GetAttempt(ctx context.Context) int { return scopeFrom(ctx).attempt }

// EnsureRequestID returns ctx unchanged when it already carries a request ID,
// otherwise a child context with a freshly generated one.
func EnsureRequestID(ctx context.Context) context.Context {
	if GetRequestID(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, GenerateRequestID())
}

// GenerateTraceID generates an OpenTelemetry-compatible trace ID (32 hex chars).
func GenerateTraceID() string {
	return randomHex(traceIDBytes, func() string { return uuid.New().String() })
}

// GenerateSpanID generates an OpenTelemetry-compatible span ID (16 hex chars).
func GenerateSpanID() string {
	return randomHex(spanIDBytes, func() string { return uuid.New().String()[:16] })
}

func randomHex(n int, fallback func() string) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fallback()
	}
	return hex.EncodeToString(buf)
}

// GenerateRequestID generates a unique request identifier (UUID).
func GenerateRequestID() string {
	return uuid.New().String()
}
