package notifier

import (
	"context"
	"time"
)

// delayFunc returns the sleep before retrying after a given failed attempt
// (zero-based).
type delayFunc func(attempt int) time.Duration

// expBackoff doubles the base delay per attempt: base, 2*base, 4*base, ...
func expBackoff(base time.Duration) delayFunc {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}

// fixedDelay sleeps the same duration between every attempt.
func fixedDelay(d time.Duration) delayFunc {
	return func(int) time.Duration {
		return d
	}
}

// retryWithDelay runs fn up to attempts times, sleeping delay(i) after the
// i-th failure. It returns nil as soon as fn succeeds, the last error once
// all attempts are exhausted, or the context error if cancelled mid-wait.
func retryWithDelay(ctx context.Context, attempts int, delay delayFunc, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
