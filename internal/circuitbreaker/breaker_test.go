package circuitbreaker

import (
	"testing"
)

func TestBreaker_InitialState(t *testing.T) {
	b := New("solver", DefaultConfig())

	if b.IsOpen() {
		t.Error("New breaker should be closed")
	}
	if b.GetStats().FailureCount != 0 {
		t.Errorf("New breaker failure count = %d, want 0", b.GetStats().FailureCount)
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := New("solver", &Config{Threshold: 3})

	// Two failures: still closed
	b.RecordFailure()
	stats := b.RecordFailure()
	if stats.Open() {
		t.Error("Breaker should stay closed below threshold")
	}

	// Third failure opens the circuit
	stats = b.RecordFailure()
	if !stats.Open() {
		t.Error("Breaker should open at threshold")
	}
	if stats.FailureCount != 3 {
		t.Errorf("FailureCount = %d, want 3", stats.FailureCount)
	}
}

func TestBreaker_SuccessResets(t *testing.T) {
	b := New("solver", &Config{Threshold: 3})

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if !b.IsOpen() {
		t.Fatal("Breaker should be open")
	}

	stats := b.RecordSuccess()
	if stats.Open() {
		t.Error("One success should close the circuit")
	}
	if stats.FailureCount != 0 {
		t.Errorf("FailureCount after success = %d, want 0", stats.FailureCount)
	}
}

func TestBreaker_InvariantAfterEveryUpdate(t *testing.T) {
	b := New("solver", &Config{Threshold: 2})

	outcomes := []bool{false, false, true, false, false, false, true}
	for i, success := range outcomes {
		var stats Stats
		if success {
			stats = b.RecordSuccess()
		} else {
			stats = b.RecordFailure()
		}

		wantOpen := stats.FailureCount >= stats.Threshold
		if stats.Open() != wantOpen {
			t.Errorf("step %d: open = %v, failure_count = %d, threshold = %d",
				i, stats.Open(), stats.FailureCount, stats.Threshold)
		}
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	config := &Config{
		Threshold: 2,
		OnStateChange: func(node string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	}
	b := New("solver", config)

	b.RecordFailure()
	b.RecordFailure() // opens
	b.RecordFailure() // already open, no transition
	b.RecordSuccess() // closes

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("Got %d transitions, want %d: %v", len(transitions), len(want), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestRegistry_PerNodeBreakers(t *testing.T) {
	r := NewRegistry(&Config{Threshold: 2})

	r.Record("solver", false)
	r.Record("solver", false)
	r.Record("mesher", false)

	if !r.Get("solver").IsOpen() {
		t.Error("solver breaker should be open")
	}
	if r.Get("mesher").IsOpen() {
		t.Error("mesher breaker should be closed")
	}

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Errorf("Snapshot size = %d, want 2", len(snap))
	}
}

func TestState_String(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" {
		t.Error("Unexpected state strings")
	}
	if State(42).String() != "unknown" {
		t.Error("Out-of-range state should be unknown")
	}
}
