package retry

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig represents retry configuration
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration

	// OnRetry, if set, is called after each failed attempt that will be retried
	OnRetry func(attempt int, err error)
}

// Do executes fn up to cfg.MaxRetries times with exponential backoff
// (delay * 2^attempt). At least one attempt is made.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		// Don't wait after the last attempt
		if i < attempts-1 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(i+1, err)
			}
			delay := time.Duration(1<<uint(i)) * cfg.RetryDelay
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", attempts, lastErr)
}
