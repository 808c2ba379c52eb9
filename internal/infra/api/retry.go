// File: internal/infra/api/retry.go
package api

import (
	"context"
	"time"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/infra/metrics"
)

// WithRetry runs fn up to maxRetries+1 times, backing off exponentially
// before each retry: baseDelay before the first retry, doubled thereafter.
// Only transient failures (network, 5xx, 429) are retried; other client
// errors return immediately. Exhausting every attempt returns the last
// error. No retry state is shared across calls.
func WithRetry[T any](ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			metrics.IncRetry()
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !domain.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
