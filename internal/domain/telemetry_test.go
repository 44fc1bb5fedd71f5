package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/mocks"
	"github.com/davidbz/freeroute/internal/store/memory"
)

func TestTelemetry_HealthScore(t *testing.T) {
	ctx := context.Background()

	t.Run("should be neutral without data", func(t *testing.T) {
		telemetry := domain.NewTelemetry(memory.NewEventLog(10), nil)

		score := telemetry.HealthScore("meta/a:free")

		require.Equal(t, "meta/a:free", score.ModelID)
		require.InDelta(t, 0.5, score.SuccessRate, 1e-9)
		require.Zero(t, score.SampleSize)
		require.Zero(t, score.AvgLatencyMS)
	})

	t.Run("should derive rates from the last hour", func(t *testing.T) {
		clock := newFakeClock()
		telemetry := domain.NewTelemetry(memory.NewEventLog(100), nil, domain.WithClock(clock.Now))
		model := "meta/a:free"

		// Outside the window once the clock moves on.
		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventError, ModelID: model, StatusCode: 500})
		clock.Advance(61 * time.Minute)

		for _, latency := range []int64{100, 200, 300} {
			telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: model, LatencyMS: latency})
		}
		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventError, ModelID: model, StatusCode: 429, LatencyMS: 5000})
		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventError, ModelID: model, StatusCode: 503})
		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventFallback, ModelID: model, FailoverCount: 1})
		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: "other/model", LatencyMS: 9})

		score := telemetry.HealthScore(model)

		require.Equal(t, 5, score.SampleSize)
		require.InDelta(t, 0.6, score.SuccessRate, 1e-9)
		require.InDelta(t, 0.2, score.ErrorRate429, 1e-9)
		require.InDelta(t, 0.2, score.ErrorRate5xx, 1e-9)
		require.InDelta(t, 200.0, score.AvgLatencyMS, 1e-9)
	})

	t.Run("should serve cached scores for five minutes", func(t *testing.T) {
		clock := newFakeClock()
		events := memory.NewEventLog(100)
		telemetry := domain.NewTelemetry(events, nil, domain.WithClock(clock.Now))
		model := "meta/a:free"

		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: model, LatencyMS: 100})
		require.Equal(t, 1, telemetry.HealthScore(model).SampleSize)

		// Appended behind the service's back, so the cache is not invalidated.
		events.Append(domain.TelemetryEvent{Timestamp: clock.Now(), Type: domain.EventError, ModelID: model})
		clock.Advance(4 * time.Minute)
		require.Equal(t, 1, telemetry.HealthScore(model).SampleSize)

		clock.Advance(time.Minute)
		require.Equal(t, 2, telemetry.HealthScore(model).SampleSize)
	})

	t.Run("should invalidate the cache on log", func(t *testing.T) {
		telemetry := domain.NewTelemetry(memory.NewEventLog(100), nil)
		model := "meta/a:free"

		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: model})
		require.InDelta(t, 1.0, telemetry.HealthScore(model).SuccessRate, 1e-9)

		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventError, ModelID: model, StatusCode: 500})
		require.InDelta(t, 0.5, telemetry.HealthScore(model).SuccessRate, 1e-9)
		require.Equal(t, 2, telemetry.HealthScore(model).SampleSize)
	})
}

func TestTelemetry_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	publisher := mocks.NewMockEventPublisher(t)
	telemetry := domain.NewTelemetry(memory.NewEventLog(10), publisher)

	publisher.EXPECT().
		Publish(mock.Anything, "request", mock.MatchedBy(func(data map[string]interface{}) bool {
			return data["model_id"] == "meta/a:free" && data["tier"] == "FREE" && data["latency_ms"] == int64(120)
		})).
		Return().Once()
	publisher.EXPECT().
		Publish(mock.Anything, "error", mock.MatchedBy(func(data map[string]interface{}) bool {
			return data["tier"] == "PAID" && data["error_code"] == "429"
		})).
		Return().Once()

	telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: "meta/a:free", IsFree: true, LatencyMS: 120})
	telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventError, ModelID: "openai/gpt-4o", ErrorCode: "429"})
}

func TestTelemetry_Queries(t *testing.T) {
	ctx := context.Background()
	telemetry := domain.NewTelemetry(memory.NewEventLog(100), nil)

	telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: "meta/a:free", IsFree: true, LatencyMS: 100})
	telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: "openai/gpt-4o", LatencyMS: 300})
	telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventError, ModelID: "meta/a:free", IsFree: true, StatusCode: 429})
	telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventFallback, ModelID: "meta/a:free", IsFree: true, FailoverCount: 1})

	t.Run("summary aggregates the buffer", func(t *testing.T) {
		summary := telemetry.Summary()

		require.Equal(t, 4, summary.TotalEvents)
		require.Equal(t, 2, summary.TotalRequests)
		require.Equal(t, 1, summary.TotalErrors)
		require.Equal(t, 1, summary.FreeRequests)
		require.Equal(t, 1, summary.PaidRequests)
		require.InDelta(t, 200.0, summary.AvgLatencyMS, 1e-9)
	})

	t.Run("model events keep the most recent entries", func(t *testing.T) {
		events := telemetry.ModelEvents("meta/a:free", 2)

		require.Len(t, events, 2)
		require.Equal(t, domain.EventError, events[0].Type)
		require.Equal(t, domain.EventFallback, events[1].Type)
		require.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("health scores cover every model seen", func(t *testing.T) {
		scores := telemetry.AllHealthScores()

		require.Len(t, scores, 2)
		require.Equal(t, "meta/a:free", scores[0].ModelID)
		require.Equal(t, "openai/gpt-4o", scores[1].ModelID)
	})

	t.Run("clear drops everything", func(t *testing.T) {
		telemetry.Clear()

		require.Zero(t, telemetry.Summary().TotalEvents)
		require.Empty(t, telemetry.AllHealthScores())
		require.Zero(t, telemetry.HealthScore("meta/a:free").SampleSize)
	})
}

func TestTelemetry_BoundedBuffer(t *testing.T) {
	ctx := context.Background()
	telemetry := domain.NewTelemetry(memory.NewEventLog(3), nil)

	for range 5 {
		telemetry.Log(ctx, domain.TelemetryEvent{Type: domain.EventRequest, ModelID: "meta/a:free"})
	}

	require.Equal(t, 3, telemetry.Summary().TotalEvents)
}
