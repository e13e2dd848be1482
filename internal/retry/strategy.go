// Package retry provides backoff strategies and a retrying executor for
// transient queue operations.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Strategy computes the delay before each retry attempt
type Strategy interface {
	// NextDelay calculates the delay before the next retry attempt.
	// attempt is 1-based: the delay after the first failure is NextDelay(1).
	NextDelay(attempt int) time.Duration

	// ShouldRetry determines if a retry should be attempted
	ShouldRetry(attempt, maxAttempts int) bool
}

// ExponentialBackoff grows the delay as baseDelay * multiplier^(attempt-1),
// capped at MaxDelay
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// NewExponentialBackoff creates an exponential backoff strategy with the
// conventional multiplier of 2
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, jitter bool) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Multiplier: 2.0,
		Jitter:     jitter,
	}
}

// DefaultExponentialBackoff returns the backoff used for queue submissions
func DefaultExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoff(1*time.Second, 2*time.Minute, true)
}

// NextDelay calculates the next delay using exponential backoff
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(e.BaseDelay) * math.Pow(e.Multiplier, float64(attempt-1))

	if delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}

	if e.Jitter {
		// Randomize ±25% so synchronized retries don't stampede
		delay *= 0.75 + rand.Float64()*0.5
	}

	return time.Duration(delay)
}

// ShouldRetry checks if we should retry based on attempt count
func (e *ExponentialBackoff) ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}

// FixedDelay waits the same amount between attempts
type FixedDelay struct {
	Delay  time.Duration
	Jitter bool
}

// NewFixedDelay creates a fixed delay strategy
func NewFixedDelay(delay time.Duration, jitter bool) *FixedDelay {
	return &FixedDelay{Delay: delay, Jitter: jitter}
}

// NextDelay returns the fixed delay
func (f *FixedDelay) NextDelay(attempt int) time.Duration {
	delay := f.Delay
	if f.Jitter {
		delay = time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
	}
	return delay
}

// ShouldRetry checks if we should retry based on attempt count
func (f *FixedDelay) ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}

// NoRetry never retries
type NoRetry struct{}

// NextDelay always returns 0
func (n *NoRetry) NextDelay(attempt int) time.Duration {
	return 0
}

// ShouldRetry always returns false
func (n *NoRetry) ShouldRetry(attempt, maxAttempts int) bool {
	return false
}
