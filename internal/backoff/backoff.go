// Package backoff provides the exponential backoff policy shared by the
// realtime client and the database connections.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes an exponential backoff schedule.
type Policy struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps any single delay.
	Max time.Duration
	// Multiplier grows the delay between attempts; values below 1 mean 2.
	Multiplier float64
	// MaxAttempts caps the number of retries. Zero means no retries.
	MaxAttempts int
	// Jitter adds up to 25% random extra delay.
	Jitter bool
}

// Default mirrors the database connection defaults.
func Default() Policy {
	return Policy{
		Initial:     100 * time.Millisecond,
		Max:         30 * time.Second,
		Multiplier:  2.0,
		MaxAttempts: 5,
		Jitter:      true,
	}
}

// Delay returns the wait before retry number attempt (zero based).
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	delay := float64(p.Initial) * math.Pow(mult, float64(attempt))
	if p.Max > 0 && delay > float64(p.Max) {
		delay = float64(p.Max)
	}
	if p.Jitter {
		delay += rand.Float64() * delay * 0.25
	}
	return time.Duration(delay)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Retry returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs fn until it succeeds, returns a Permanent error, the attempts
// are exhausted, or ctx is done.
func (p Policy) Retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		slog.DebugContext(ctx, "Retry attempt failed, waiting before next attempt",
			"attempt", attempt+1, "max_attempts", p.MaxAttempts+1,
			"delay_ms", delay.Milliseconds(), "error", err)

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", p.MaxAttempts+1, lastErr)
}
