package state

import (
	"errors"
	"testing"

	"github.com/simflowlab/simflow/pkg/models"
)

func TestMachine_ValidTransitions(t *testing.T) {
	m := NewMachine()

	tests := []struct {
		from models.TaskState
		to   models.TaskState
		ok   bool
	}{
		{models.TaskStatePending, models.TaskStateRunning, true},
		{models.TaskStatePending, models.TaskStateCancelled, true},
		{models.TaskStatePending, models.TaskStateFailure, true},
		{models.TaskStateRunning, models.TaskStateSuccess, true},
		{models.TaskStateRunning, models.TaskStateFailure, true},
		{models.TaskStateRunning, models.TaskStateTimeout, true},
		{models.TaskStateRunning, models.TaskStateCancelled, true},
		{models.TaskStatePending, models.TaskStateSuccess, false},
		{models.TaskStateSuccess, models.TaskStateRunning, false},
		{models.TaskStateFailure, models.TaskStatePending, false},
		{models.TaskStateCancelled, models.TaskStateRunning, false},
		{models.TaskStateTimeout, models.TaskStateSuccess, false},
	}

	for _, tt := range tests {
		if got := m.CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestMachine_SameStateIdempotent(t *testing.T) {
	m := NewMachine()

	for _, s := range []models.TaskState{
		models.TaskStatePending,
		models.TaskStateRunning,
		models.TaskStateSuccess,
	} {
		if !m.CanTransition(s, s) {
			t.Errorf("CanTransition(%s, %s) should be true", s, s)
		}
	}
}

func TestMachine_TerminalStatesAreFinal(t *testing.T) {
	m := NewMachine()

	terminals := []models.TaskState{
		models.TaskStateSuccess,
		models.TaskStateFailure,
		models.TaskStateTimeout,
		models.TaskStateCancelled,
	}
	for _, s := range terminals {
		if next := m.NextStates(s); len(next) != 0 {
			t.Errorf("NextStates(%s) = %v, want none", s, next)
		}
	}
}

func TestMachine_ValidateTransition(t *testing.T) {
	m := NewMachine()

	err := m.ValidateTransition(models.TaskStateSuccess, models.TaskStateRunning)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

type recordingPublisher struct {
	events []TransitionEvent
}

func (p *recordingPublisher) Publish(event TransitionEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestManager_TransitionPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	mgr := NewManager(pub)

	err := mgr.Transition("task-1", models.TaskStatePending, models.TaskStateRunning, map[string]interface{}{
		"worker": "w-1",
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(pub.events))
	}
	event := pub.events[0]
	if event.TaskID != "task-1" || event.NewState != models.TaskStateRunning {
		t.Errorf("event = %+v", event)
	}
}

func TestManager_InvalidTransitionNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	mgr := NewManager(pub)

	err := mgr.Transition("task-1", models.TaskStateSuccess, models.TaskStatePending, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("Invalid transition should not publish, got %d events", len(pub.events))
	}
}
