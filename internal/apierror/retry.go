package apierror

import (
	"context"
	"log"
	"time"
)

// Retry runs op until it succeeds, a non-retryable error occurs, or
// maxRetries additional attempts are exhausted. A negative maxRetries is
// treated as zero, so op always runs at least once. Attempts are strictly
// sequential; the delay before retry n is baseDelay * 2^n. A non-retryable
// classification aborts immediately without consuming remaining attempts, and
// the error returned is always the classified form of the last failure.
func Retry[T any](ctx context.Context, c *Classifier, op func(context.Context) (T, error), maxRetries int, baseDelay time.Duration) (T, error) {
	var zero T
	var lastErr *ServiceError

	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = c.Classify(err)
		if !lastErr.Retryable || attempt == maxRetries {
			return zero, lastErr
		}

		delay := baseDelay << attempt
		log.Printf("[retry] attempt %d/%d failed: %v (retrying in %s)", attempt+1, maxRetries+1, lastErr, delay)
		c.metrics.ObserveRetry()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, c.Classify(ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}
