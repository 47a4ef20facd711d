package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool
}

// WithRetry runs fn until it succeeds, attempts are exhausted, or ctx ends.
// Quota signals (429/402) are returned immediately without further attempts.
func WithRetry(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if models.IsQuotaError(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
		}

		delay := cfg.Delay
		if cfg.Backoff {
			delay = time.Duration(attempt) * cfg.Delay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
