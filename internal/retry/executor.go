package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration for an operation
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// Strategy computes the delay between attempts
	Strategy Strategy

	// OnRetry is called before each retry (optional)
	OnRetry func(attempt int, err error)

	// OnGiveUp is called when all attempts are exhausted (optional)
	OnGiveUp func(err error)
}

// DefaultConfig returns a retry config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Strategy:    DefaultExponentialBackoff(),
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled
func Do(ctx context.Context, config *Config, fn func() error) error {
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= config.MaxAttempts {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		var delay time.Duration
		if config.Strategy != nil {
			delay = config.Strategy.NextDelay(attempt)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	if config.OnGiveUp != nil {
		config.OnGiveUp(lastErr)
	}
	return fmt.Errorf("all %d attempts exhausted: %w", config.MaxAttempts, lastErr)
}

// DoWithValue runs fn until it succeeds, returning its value
func DoWithValue[T any](ctx context.Context, config *Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, config, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
