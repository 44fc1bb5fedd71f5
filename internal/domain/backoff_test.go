package domain_test

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/freeroute/internal/domain"
)

func TestRetryBackOff(t *testing.T) {
	cfg := domain.ExecutionConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	t.Run("should grow exponentially within jitter bounds and cap", func(t *testing.T) {
		b := domain.NewRetryBackOff(cfg)
		floors := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}

		for i, floor := range floors {
			delay := b.NextBackOff()
			require.GreaterOrEqual(t, delay, floor, "retry %d", i)
			require.LessOrEqual(t, delay, time.Duration(float64(floor)*1.3), "retry %d", i)
		}
	})

	t.Run("should restart at the initial delay after reset", func(t *testing.T) {
		b := domain.NewRetryBackOff(cfg)
		b.NextBackOff()
		b.NextBackOff()

		b.Reset()

		require.LessOrEqual(t, b.NextBackOff(), 130*time.Millisecond)
	})

	t.Run("should stop after the retry ceiling", func(t *testing.T) {
		b := backoff.WithMaxRetries(domain.NewRetryBackOff(cfg), 2)

		require.NotEqual(t, backoff.Stop, b.NextBackOff())
		require.NotEqual(t, backoff.Stop, b.NextBackOff())
		require.Equal(t, backoff.Stop, b.NextBackOff())
	})
}
