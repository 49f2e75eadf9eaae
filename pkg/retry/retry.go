package retry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vend-service/vend_service/pkg/errors"
)

// Config controls exponential backoff behaviour.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultConfig is suitable for short-lived HTTP calls inside a poll cycle.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	return c
}

// WithExponentialBackoff runs fn up to cfg.MaxAttempts times, sleeping
// between attempts with exponential backoff. isRetryable may be nil, in
// which case the shared error classifier decides.
func WithExponentialBackoff(ctx context.Context, cfg Config, fn func() error, isRetryable func(error) bool) error {
	cfg = cfg.normalized()
	if isRetryable == nil {
		isRetryable = apperrors.ShouldRetry
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) || attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("after %d attempt(s): %w", cfg.MaxAttempts, lastErr)
}
