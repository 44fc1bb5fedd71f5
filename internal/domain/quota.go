package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/davidbz/freeroute/internal/observability"
)

const (
	minuteKeyPrefix = "rpm:"
	dayKeyPrefix    = "rpd:"
	dayKeyLayout    = "2006-01-02"

	// Keys outlive their window by one period so the previous window stays readable.
	minuteKeyTTL = 2 * time.Minute
	dayKeyTTL    = 48 * time.Hour
)

// QuotaConfig holds the free-tier limits.
type QuotaConfig struct {
	RPMLimit int
	RPDLimit int
}

// QuotaTracker enforces free-tier request limits client-side, because the
// aggregator does not report remaining quota reliably. Counters live in a
// CounterStore; the in-memory store makes them non-durable across restarts.
type QuotaTracker struct {
	store  CounterStore
	config QuotaConfig
	now    Clock

	// mu serializes read-check-increment sequences within the process.
	mu sync.Mutex
}

// NewQuotaTracker creates a quota tracker (DI constructor).
func NewQuotaTracker(store CounterStore, config QuotaConfig, opts ...Option) *QuotaTracker {
	s := applyOptions(opts)
	return &QuotaTracker{
		store:  store,
		config: config,
		now:    s.now,
	}
}

func minuteIndex(t time.Time) int64 {
	return t.UnixMilli() / int64(time.Minute/time.Millisecond)
}

func minuteKey(idx int64) string {
	return minuteKeyPrefix + strconv.FormatInt(idx, 10)
}

func dayKey(t time.Time) string {
	return dayKeyPrefix + t.UTC().Format(dayKeyLayout)
}

// prune drops minute keys older than the previous minute and day keys older than today.
func (q *QuotaTracker) prune(ctx context.Context, now time.Time) error {
	currentMinute := minuteIndex(now)
	today := dayKey(now)

	return q.store.Prune(ctx, func(key string) bool {
		switch {
		case strings.HasPrefix(key, minuteKeyPrefix):
			idx, err := strconv.ParseInt(strings.TrimPrefix(key, minuteKeyPrefix), 10, 64)
			return err == nil && idx >= currentMinute-1
		case strings.HasPrefix(key, dayKeyPrefix):
			return key >= today
		default:
			return true
		}
	})
}

// Status reports current usage after pruning stale windows.
func (q *QuotaTracker) Status(ctx context.Context) (QuotaStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked(ctx)
}

func (q *QuotaTracker) statusLocked(ctx context.Context) (QuotaStatus, error) {
	now := q.now()
	if err := q.prune(ctx, now); err != nil {
		return QuotaStatus{}, fmt.Errorf("failed to prune quota counters: %w", err)
	}

	currentMinute := minuteIndex(now)
	perMinute, err := q.store.Get(ctx, minuteKey(currentMinute))
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("failed to read minute counter: %w", err)
	}
	perDay, err := q.store.Get(ctx, dayKey(now))
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("failed to read day counter: %w", err)
	}

	nextMinuteMS := (currentMinute + 1) * int64(time.Minute/time.Millisecond)

	return QuotaStatus{
		RequestsThisMinute: int(perMinute),
		RequestsToday:      int(perDay),
		MaxRPM:             q.config.RPMLimit,
		MaxRPD:             q.config.RPDLimit,
		Available:          int(perMinute) < q.config.RPMLimit && int(perDay) < q.config.RPDLimit,
		ResetInMS:          nextMinuteMS - now.UnixMilli(),
	}, nil
}

// IsAvailable reports whether both windows have room.
func (q *QuotaTracker) IsAvailable(ctx context.Context) (bool, error) {
	status, err := q.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Available, nil
}

// RecordRequest counts one free-tier request in both windows.
func (q *QuotaTracker) RecordRequest(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.recordLocked(ctx)
}

func (q *QuotaTracker) recordLocked(ctx context.Context) error {
	now := q.now()
	if err := q.prune(ctx, now); err != nil {
		return fmt.Errorf("failed to prune quota counters: %w", err)
	}
	if _, err := q.store.Incr(ctx, minuteKey(minuteIndex(now)), minuteKeyTTL); err != nil {
		return fmt.Errorf("failed to increment minute counter: %w", err)
	}
	if _, err := q.store.Incr(ctx, dayKey(now), dayKeyTTL); err != nil {
		return fmt.Errorf("failed to increment day counter: %w", err)
	}
	return nil
}

// TryAcquire records a request only if quota is available, under one lock, so
// concurrent executions cannot overshoot the limits.
func (q *QuotaTracker) TryAcquire(ctx context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	status, err := q.statusLocked(ctx)
	if err != nil {
		return false, err
	}
	if !status.Available {
		return false, nil
	}
	if err := q.recordLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// WaitForQuota blocks until quota is available or timeout elapses. It returns
// false immediately once the daily limit is reached, since waiting cannot help.
func (q *QuotaTracker) WaitForQuota(ctx context.Context, timeout time.Duration) (bool, error) {
	start := q.now()
	logger := observability.FromContext(ctx)

	for q.now().Sub(start) < timeout {
		status, err := q.Status(ctx)
		if err != nil {
			return false, err
		}
		if status.Available {
			return true, nil
		}
		if status.RequestsToday >= status.MaxRPD {
			logger.Warn("daily quota exhausted, not waiting",
				observability.Int("requests_today", status.RequestsToday))
			return false, nil
		}

		wait := time.Duration(status.ResetInMS) * time.Millisecond
		if wait <= 0 {
			wait = time.Second
		}
		if remaining := timeout - q.now().Sub(start); wait > remaining {
			wait = remaining
		}
		if wait <= 0 {
			break
		}

		logger.Debug("waiting for quota window", observability.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return false, nil
}

// Reset clears all counters.
func (q *QuotaTracker) Reset(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset quota counters: %w", err)
	}
	return nil
}
