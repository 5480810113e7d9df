package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/docstore"
)

// retryWithBackoff retries a store operation with exponential backoff.
// Only transient unavailability is retried; validation and dimension
// errors fail immediately, and embedding failures never reach this path.
// Returns the error from the last attempt if all fail.
func retryWithBackoff(ctx context.Context, logger *zap.Logger, attempts int, baseDelay time.Duration, op func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("store operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !errors.Is(lastErr, docstore.ErrUnavailable) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		logger.Debug("store operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
