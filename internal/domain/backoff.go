package domain

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const jitterFraction = 0.3

// RetryBackOff implements backoff.BackOff with capped exponential growth and
// up to 30% upward jitter: min(initial*2^n, max) * (1 + U(0, 0.3)).
type RetryBackOff struct {
	initial time.Duration
	max     time.Duration
	retry   int
	jitter  func() float64
}

var _ backoff.BackOff = (*RetryBackOff)(nil)

// NewRetryBackOff creates a backoff using the config's initial and max delays.
func NewRetryBackOff(cfg ExecutionConfig) *RetryBackOff {
	return &RetryBackOff{
		initial: cfg.InitialBackoff,
		max:     cfg.MaxBackoff,
		jitter:  rand.Float64,
	}
}

// NextBackOff returns the delay before the next retry. It never returns backoff.Stop;
// wrap it with backoff.WithMaxRetries to bound the attempts.
func (b *RetryBackOff) NextBackOff() time.Duration {
	delay := backoffDelay(b.initial, b.max, b.retry, b.jitter())
	b.retry++
	return delay
}

// Reset restarts the sequence at the initial delay.
func (b *RetryBackOff) Reset() {
	b.retry = 0
}

func backoffDelay(initial, maxDelay time.Duration, retry int, jitter float64) time.Duration {
	exponential := float64(initial) * math.Pow(2, float64(retry))
	capped := math.Min(exponential, float64(maxDelay))
	return time.Duration(capped + jitter*jitterFraction*capped)
}
