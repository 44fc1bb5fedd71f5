package observability

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventBus implements the EventPublisher interface on top of the zap logger.
type EventBus struct {
	logger *zap.Logger
}

// NewEventBus creates a new event bus. A nil logger falls back to the
// context-derived logger on every publish.
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		logger: logger,
	}
}

// Publish publishes an event with the given type and data.
func (e *EventBus) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	logger := e.logger
	if logger == nil {
		logger = FromContext(ctx)
	}

	// Stable field order keeps log lines diffable.
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(data)+1)
	fields = append(fields, zap.String("event_type", eventType))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, data[k]))
	}

	if ce := logger.Check(levelFor(eventType), "llm telemetry"); ce != nil {
		ce.Write(fields...)
	}
}

func levelFor(eventType string) zapcore.Level {
	switch eventType {
	case "error", "fallback":
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
