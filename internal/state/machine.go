// Package state validates task state transitions and fans transition
// events out to interested subscribers.
package state

import (
	"errors"
	"fmt"

	"github.com/simflowlab/simflow/pkg/models"
)

var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Machine validates task state transitions. Terminal states permit no
// further transitions; transitions to the same state are idempotent.
type Machine struct {
	validTransitions map[models.TaskState][]models.TaskState
}

// NewMachine creates a state machine with the task lifecycle transitions
func NewMachine() *Machine {
	return &Machine{
		validTransitions: map[models.TaskState][]models.TaskState{
			models.TaskStatePending: {
				models.TaskStateRunning,
				models.TaskStateCancelled,
				models.TaskStateFailure, // rejected before pickup (e.g. no executor)
			},
			models.TaskStateRunning: {
				models.TaskStateSuccess,
				models.TaskStateFailure,
				models.TaskStateTimeout,
				models.TaskStateCancelled,
			},
			models.TaskStateSuccess:   {},
			models.TaskStateFailure:   {},
			models.TaskStateTimeout:   {},
			models.TaskStateCancelled: {},
		},
	}
}

// CanTransition checks if a state transition is valid
func (m *Machine) CanTransition(from, to models.TaskState) bool {
	if from == to {
		return true
	}

	validStates, exists := m.validTransitions[from]
	if !exists {
		return false
	}

	for _, state := range validStates {
		if state == to {
			return true
		}
	}
	return false
}

// ValidateTransition validates a state transition and returns an error if invalid
func (m *Machine) ValidateTransition(from, to models.TaskState) error {
	if !m.CanTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NextStates returns all valid next states from the current state
func (m *Machine) NextStates(current models.TaskState) []models.TaskState {
	states, exists := m.validTransitions[current]
	if !exists {
		return []models.TaskState{}
	}
	return states
}

// TransitionEvent represents a task state transition
type TransitionEvent struct {
	TaskID   string                 `json:"task_id"`
	OldState models.TaskState       `json:"old_state"`
	NewState models.TaskState       `json:"new_state"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EventPublisher publishes state change events
type EventPublisher interface {
	Publish(event TransitionEvent) error
}

// NoOpPublisher is a no-op event publisher for testing
type NoOpPublisher struct{}

// Publish does nothing
func (p *NoOpPublisher) Publish(event TransitionEvent) error {
	return nil
}

// Manager validates transitions and publishes an event for each one
type Manager struct {
	machine   *Machine
	publisher EventPublisher
}

// NewManager creates a state manager. A nil publisher discards events.
func NewManager(publisher EventPublisher) *Manager {
	if publisher == nil {
		publisher = &NoOpPublisher{}
	}
	return &Manager{
		machine:   NewMachine(),
		publisher: publisher,
	}
}

// Transition performs a state transition and publishes an event
func (m *Manager) Transition(taskID string, from, to models.TaskState, metadata map[string]interface{}) error {
	if err := m.machine.ValidateTransition(from, to); err != nil {
		return err
	}

	event := TransitionEvent{
		TaskID:   taskID,
		OldState: from,
		NewState: to,
		Metadata: metadata,
	}

	if err := m.publisher.Publish(event); err != nil {
		return fmt.Errorf("failed to publish state transition event: %w", err)
	}
	return nil
}

// CanTransition delegates to the state machine
func (m *Manager) CanTransition(from, to models.TaskState) bool {
	return m.machine.CanTransition(from, to)
}
