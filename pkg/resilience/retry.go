package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig controls bounded retry with exponential backoff.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// RetryableErrors reports whether an error is worth another attempt.
	// Errors it rejects are returned to the caller unchanged.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig makes three attempts, 100ms apart doubling up to a 5s
// cap. Nothing is retried until the caller installs a RetryableErrors
// predicate.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: func(error) bool {
			return false
		},
	}
}

func (c *RetryConfig) backoff(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * c.BackoffFactor)
	if next > c.MaxDelay {
		next = c.MaxDelay
	}
	return next
}

// RetryWithResult runs fn until it succeeds, the error is not retryable, the
// context ends, or MaxAttempts is exhausted.
func RetryWithResult[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := config.InitialDelay
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return zero, err
		}
		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = config.backoff(delay)
	}

	return zero, fmt.Errorf("retries exhausted after %d attempts: %w", config.MaxAttempts, lastErr)
}
