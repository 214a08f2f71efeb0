package limiter

import (
	"context"
	"fmt"
	"time"

	"spark/pkg/logger"

	"go.uber.org/zap"
)

const (
	// DefaultPhoneWindow is how far back initiation attempts are counted
	DefaultPhoneWindow = 5 * time.Minute
	// DefaultPhoneMaxAttempts is the number of attempts allowed per window
	DefaultPhoneMaxAttempts = 3
)

// AttemptCounter counts initiation attempts for a phone since a point in time
type AttemptCounter interface {
	CountByPhoneSince(ctx context.Context, phoneNumber string, since time.Time) (int64, error)
}

// Decision is the outcome of a PhoneLimiter check
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
	// Degraded is set when the count could not be read and FailOpen let the request through
	Degraded bool
}

// PhoneLimiter caps STK push attempts per phone number over a sliding window
// of ledger rows. Every stored row counts, whatever its status.
type PhoneLimiter struct {
	counter     AttemptCounter
	Window      time.Duration
	MaxAttempts int64
	FailOpen    bool
	now         func() time.Time
}

// NewPhoneLimiter builds a limiter; zero window or max fall back to the defaults
func NewPhoneLimiter(counter AttemptCounter, window time.Duration, maxAttempts int64, failOpen bool) *PhoneLimiter {
	if window <= 0 {
		window = DefaultPhoneWindow
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPhoneMaxAttempts
	}
	return &PhoneLimiter{
		counter:     counter,
		Window:      window,
		MaxAttempts: maxAttempts,
		FailOpen:    failOpen,
		now:         time.Now,
	}
}

// WithClock replaces the time source
func (l *PhoneLimiter) WithClock(now func() time.Time) *PhoneLimiter {
	l.now = now
	return l
}

// Allow reports whether phone may start another attempt now
func (l *PhoneLimiter) Allow(ctx context.Context, phone string) (Decision, error) {
	since := l.now().Add(-l.Window)

	count, err := l.counter.CountByPhoneSince(ctx, phone, since)
	if err != nil {
		if l.FailOpen {
			logger.Warn("PhoneLimiter",
				zap.String("phone", phone),
				zap.String("error", err.Error()),
				zap.String("msg", "attempt count failed, allowing request"),
			)
			return Decision{Allowed: true, Degraded: true}, nil
		}
		return Decision{Allowed: false}, fmt.Errorf("count attempts: %w", err)
	}

	if count >= l.MaxAttempts {
		return Decision{Allowed: false, Count: count, RetryAfter: l.Window}, nil
	}
	return Decision{Allowed: true, Count: count}, nil
}
