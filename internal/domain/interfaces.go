package domain

import (
	"context"
	"time"
)

// Transport is a single-attempt client for the aggregator API. It never retries.
type Transport interface {
	// ListModels fetches the full model registry.
	ListModels(ctx context.Context) ([]RemoteModel, error)

	// ChatCompletions submits one completion request.
	ChatCompletions(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// CounterStore holds the quota counters. Implementations must make Incr atomic.
type CounterStore interface {
	// Incr adds one to key and returns the new value. ttl bounds how long the key may live.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current value of key, or 0.
	Get(ctx context.Context, key string) (int64, error)

	// Prune deletes every key for which keep returns false.
	Prune(ctx context.Context, keep func(key string) bool) error

	// Reset deletes all counters.
	Reset(ctx context.Context) error
}

// EventLog is the bounded, append-only telemetry buffer.
type EventLog interface {
	// Append stores an event, dropping the oldest when full.
	Append(event TelemetryEvent)

	// Events returns a copy of the buffered events, oldest first.
	Events() []TelemetryEvent

	// Clear drops all events.
	Clear()
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}

// ModelCatalog is the read side of the catalog used by routing.
type ModelCatalog interface {
	// QueryModels returns models matching every filter in q.
	QueryModels(ctx context.Context, q CatalogQuery) ([]ModelMetadata, error)

	// FindModel looks a model up by exact id.
	FindModel(ctx context.Context, id string) (*ModelMetadata, bool, error)

	// Refresh replaces the catalog from the transport.
	Refresh(ctx context.Context) error
}

// QuotaGate is the quota surface the executor depends on.
type QuotaGate interface {
	// IsAvailable reports whether a free-tier request may be sent now.
	IsAvailable(ctx context.Context) (bool, error)

	// TryAcquire checks availability and records a request in one step.
	TryAcquire(ctx context.Context) (bool, error)
}

// HealthSource supplies health scores to the policy engine.
type HealthSource interface {
	// HealthScore returns the rolling health of a model.
	HealthScore(modelID string) ModelHealthScore
}

// EventRecorder accepts telemetry events.
type EventRecorder interface {
	// Log timestamps and stores an event.
	Log(ctx context.Context, event TelemetryEvent)
}

// CandidateSource ranks models for a task.
type CandidateSource interface {
	// Candidates returns ranked candidates, best first.
	Candidates(ctx context.Context, req TaskRequirements, quotaAvailable bool) ([]ModelCandidate, error)
}
