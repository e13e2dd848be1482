package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	strategy := NewExponentialBackoff(1*time.Second, 1*time.Minute, false)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := strategy.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialBackoff_CapsAtMax(t *testing.T) {
	strategy := NewExponentialBackoff(1*time.Second, 5*time.Second, false)

	if got := strategy.NextDelay(10); got != 5*time.Second {
		t.Errorf("NextDelay(10) = %v, want capped 5s", got)
	}
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	strategy := NewExponentialBackoff(1*time.Second, 1*time.Minute, true)

	for i := 0; i < 20; i++ {
		delay := strategy.NextDelay(2)
		if delay < 1500*time.Millisecond || delay > 2500*time.Millisecond {
			t.Errorf("Jittered delay %v outside ±25%% of 2s", delay)
		}
	}
}

func TestFixedDelay(t *testing.T) {
	strategy := NewFixedDelay(3*time.Second, false)

	for attempt := 1; attempt <= 5; attempt++ {
		if got := strategy.NextDelay(attempt); got != 3*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 3s", attempt, got)
		}
	}
	if !strategy.ShouldRetry(2, 3) {
		t.Error("ShouldRetry(2, 3) should be true")
	}
	if strategy.ShouldRetry(3, 3) {
		t.Error("ShouldRetry(3, 3) should be false")
	}
}

func TestNoRetry(t *testing.T) {
	strategy := &NoRetry{}
	if strategy.ShouldRetry(1, 10) {
		t.Error("NoRetry should never retry")
	}
	if strategy.NextDelay(1) != 0 {
		t.Error("NoRetry delay should be 0")
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	config := &Config{
		MaxAttempts: 3,
		Strategy:    NewFixedDelay(time.Millisecond, false),
	}

	err := Do(context.Background(), config, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_Exhausted(t *testing.T) {
	var gaveUp error
	retries := 0
	config := &Config{
		MaxAttempts: 2,
		Strategy:    NewFixedDelay(time.Millisecond, false),
		OnRetry:     func(attempt int, err error) { retries++ },
		OnGiveUp:    func(err error) { gaveUp = err },
	}

	base := errors.New("permanent")
	err := Do(context.Background(), config, func() error { return base })

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, base) {
		t.Errorf("Error should wrap the last failure, got %v", err)
	}
	if retries != 1 {
		t.Errorf("OnRetry called %d times, want 1", retries)
	}
	if gaveUp == nil {
		t.Error("OnGiveUp was not called")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := &Config{
		MaxAttempts: 3,
		Strategy:    NewFixedDelay(time.Hour, false),
	}

	err := Do(ctx, config, func() error { return errors.New("fail") })
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("Expected wrapped context.Canceled, got %v", err)
	}
}

func TestDoWithValue(t *testing.T) {
	attempts := 0
	config := &Config{
		MaxAttempts: 2,
		Strategy:    NewFixedDelay(time.Millisecond, false),
	}

	got, err := DoWithValue(context.Background(), config, func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("transient")
		}
		return "task-42", nil
	})

	if err != nil {
		t.Fatalf("DoWithValue failed: %v", err)
	}
	if got != "task-42" {
		t.Errorf("got %q, want task-42", got)
	}
}
