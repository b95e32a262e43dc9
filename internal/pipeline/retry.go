package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/enrollgest/internal/timetable"
)

const MaxRetries = 3

// IsRetryable reports whether err is a transient catalog failure.
func IsRetryable(err error) bool {
	var retryErr *timetable.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// withRetry calls fn until it succeeds, fails with a non-retryable error, or
// MaxRetries attempts are spent.
func withRetry[T any](ctx context.Context, log *slog.Logger, backoff func(int) time.Duration, fn func() (T, error)) (T, error) {
	var out T
	var lastErr error
	for attempt := range MaxRetries {
		out, lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return out, lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable catalog error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, lastErr
}
