package scheduler

import (
	"testing"
	"time"
)

func TestCronScheduler_AddSweep(t *testing.T) {
	cs := NewCronScheduler(time.UTC, func(sweepID string, firedAt time.Time) error {
		return nil
	})

	if err := cs.AddSweep("nightly", "0 2 * * *"); err != nil {
		t.Fatalf("AddSweep failed: %v", err)
	}
	if !cs.IsRegistered("nightly") {
		t.Error("Sweep should be registered")
	}

	if err := cs.AddSweep("nightly", "0 2 * * *"); err == nil {
		t.Error("Duplicate registration should fail")
	}
	if err := cs.AddSweep("bad", "not a cron expr"); err == nil {
		t.Error("Invalid cron expression should fail")
	}
}

func TestCronScheduler_RemoveSweep(t *testing.T) {
	cs := NewCronScheduler(time.UTC, func(string, time.Time) error { return nil })

	cs.AddSweep("nightly", "0 2 * * *")
	cs.RemoveSweep("nightly")

	if cs.IsRegistered("nightly") {
		t.Error("Sweep should be unregistered")
	}
	if len(cs.ScheduledSweeps()) != 0 {
		t.Error("No sweeps should remain")
	}
}

func TestCronScheduler_MissedExecutions(t *testing.T) {
	cs := NewCronScheduler(time.UTC, func(string, time.Time) error { return nil })

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)

	// Daily at 02:00 over three days.
	missed, err := cs.MissedExecutions("0 2 * * *", start, end, 50)
	if err != nil {
		t.Fatalf("MissedExecutions failed: %v", err)
	}
	if len(missed) != 3 {
		t.Fatalf("Expected 3 missed executions, got %d", len(missed))
	}
	if missed[0].Hour() != 2 {
		t.Errorf("First execution at hour %d, want 2", missed[0].Hour())
	}

	// maxRuns caps the result.
	missed, _ = cs.MissedExecutions("0 2 * * *", start, end, 2)
	if len(missed) != 2 {
		t.Errorf("Expected 2 capped executions, got %d", len(missed))
	}
}

func TestCronScheduler_UpdateSchedule(t *testing.T) {
	cs := NewCronScheduler(time.UTC, func(string, time.Time) error { return nil })

	cs.AddSweep("nightly", "0 2 * * *")
	if err := cs.UpdateSchedule("nightly", "0 4 * * *"); err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	if !cs.IsRegistered("nightly") {
		t.Error("Sweep should still be registered after update")
	}
}
