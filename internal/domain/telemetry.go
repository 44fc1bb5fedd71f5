package domain

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	healthWindow     = time.Hour
	healthCacheTTL   = 5 * time.Minute
	neutralSuccess   = 0.5
	defaultEventsCap = 100
)

// Telemetry records request, error and fallback events and derives per-model
// health scores from the last hour of them.
type Telemetry struct {
	log       EventLog
	publisher EventPublisher
	now       Clock

	mu          sync.Mutex
	healthCache map[string]ModelHealthScore
}

// NewTelemetry creates the telemetry service (DI constructor). publisher may be nil.
func NewTelemetry(log EventLog, publisher EventPublisher, opts ...Option) *Telemetry {
	s := applyOptions(opts)
	return &Telemetry{
		log:         log,
		publisher:   publisher,
		now:         s.now,
		healthCache: make(map[string]ModelHealthScore),
	}
}

// Log stamps and appends an event, then invalidates the model's cached score.
func (t *Telemetry) Log(ctx context.Context, event TelemetryEvent) {
	event.Timestamp = t.now()

	t.mu.Lock()
	t.log.Append(event)
	delete(t.healthCache, event.ModelID)
	t.mu.Unlock()

	if t.publisher != nil {
		t.publisher.Publish(ctx, string(event.Type), eventFields(event))
	}
}

func eventFields(e TelemetryEvent) map[string]interface{} {
	tier := "PAID"
	if e.IsFree {
		tier = "FREE"
	}
	fields := map[string]interface{}{
		"model_id": e.ModelID,
		"tier":     tier,
	}
	switch e.Type {
	case EventRequest:
		fields["latency_ms"] = e.LatencyMS
		fields["request_chars"] = e.RequestChars
		fields["response_chars"] = e.ResponseChars
	case EventError:
		fields["error_code"] = e.ErrorCode
		fields["error_message"] = e.ErrorMessage
	case EventFallback:
		fields["failover_count"] = e.FailoverCount
	}
	return fields
}

// HealthScore returns the cached score for modelID, recomputing it when the
// cache entry is missing or older than five minutes.
func (t *Telemetry) HealthScore(modelID string) ModelHealthScore {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if cached, ok := t.healthCache[modelID]; ok && now.Sub(cached.LastUpdated) < healthCacheTTL {
		return cached
	}

	score := computeHealth(modelID, t.log.Events(), now)
	t.healthCache[modelID] = score
	return score
}

func computeHealth(modelID string, events []TelemetryEvent, now time.Time) ModelHealthScore {
	cutoff := now.Add(-healthWindow)

	var requests, errs, err429, err5xx int
	var latencySum int64
	for _, e := range events {
		if e.ModelID != modelID || !e.Timestamp.After(cutoff) {
			continue
		}
		switch e.Type {
		case EventRequest:
			requests++
			latencySum += e.LatencyMS
		case EventError:
			errs++
			switch {
			case e.StatusCode == http.StatusTooManyRequests:
				err429++
			case e.StatusCode >= 500 && e.StatusCode < 600:
				err5xx++
			}
		}
	}

	score := ModelHealthScore{
		ModelID:     modelID,
		SuccessRate: neutralSuccess,
		LastUpdated: now,
	}

	total := requests + errs
	if total == 0 {
		return score
	}

	score.SampleSize = total
	score.SuccessRate = float64(requests) / float64(total)
	score.ErrorRate429 = float64(err429) / float64(total)
	score.ErrorRate5xx = float64(err5xx) / float64(total)
	if requests > 0 {
		score.AvgLatencyMS = float64(latencySum) / float64(requests)
	}
	return score
}

// AllHealthScores returns a score for every model present in the buffer.
func (t *Telemetry) AllHealthScores() []ModelHealthScore {
	events := t.events()

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, e := range events {
		if _, ok := seen[e.ModelID]; ok {
			continue
		}
		seen[e.ModelID] = struct{}{}
		ids = append(ids, e.ModelID)
	}

	scores := make([]ModelHealthScore, 0, len(ids))
	for _, id := range ids {
		scores = append(scores, t.HealthScore(id))
	}
	return scores
}

// ModelEvents returns the most recent limit events for modelID, oldest first.
func (t *Telemetry) ModelEvents(modelID string, limit int) []TelemetryEvent {
	if limit <= 0 {
		limit = defaultEventsCap
	}

	var matched []TelemetryEvent
	for _, e := range t.events() {
		if e.ModelID == modelID {
			matched = append(matched, e)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Summary aggregates the whole buffer.
func (t *Telemetry) Summary() TelemetrySummary {
	events := t.events()

	summary := TelemetrySummary{TotalEvents: len(events)}
	var latencySum int64
	for _, e := range events {
		switch e.Type {
		case EventRequest:
			summary.TotalRequests++
			latencySum += e.LatencyMS
			if e.IsFree {
				summary.FreeRequests++
			} else {
				summary.PaidRequests++
			}
		case EventError:
			summary.TotalErrors++
		}
	}
	if summary.TotalRequests > 0 {
		summary.AvgLatencyMS = float64(latencySum) / float64(summary.TotalRequests)
	}
	return summary
}

// Clear drops all events and cached scores.
func (t *Telemetry) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.Clear()
	t.healthCache = make(map[string]ModelHealthScore)
}

func (t *Telemetry) events() []TelemetryEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.Events()
}
