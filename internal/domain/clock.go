package domain

import "time"

// Clock returns the current time.
type Clock func() time.Time

// Option configures the time-dependent services.
type Option func(*settings)

type settings struct {
	now Clock
}

// WithClock replaces time.Now, mainly so tests can cross window boundaries.
func WithClock(clock Clock) Option {
	return func(s *settings) {
		if clock != nil {
			s.now = clock
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
