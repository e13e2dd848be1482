package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTaskState_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		state    TaskState
		expected bool
	}{
		{"Success is terminal", TaskStateSuccess, true},
		{"Failure is terminal", TaskStateFailure, true},
		{"Timeout is terminal", TaskStateTimeout, true},
		{"Cancelled is terminal", TaskStateCancelled, true},
		{"Pending is not terminal", TaskStatePending, false},
		{"Running is not terminal", TaskStateRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.IsTerminal()
			if got != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTaskState_IsSuccessful(t *testing.T) {
	if got := TaskStateRunning.IsSuccessful(); got != nil {
		t.Errorf("Expected nil for non-terminal state, got %v", *got)
	}

	if got := TaskStateSuccess.IsSuccessful(); got == nil || !*got {
		t.Error("Expected true for success state")
	}

	for _, s := range []TaskState{TaskStateFailure, TaskStateTimeout, TaskStateCancelled} {
		if got := s.IsSuccessful(); got == nil || *got {
			t.Errorf("Expected false for state %s", s)
		}
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Operation: "WaitForTask", Timeout: 5 * time.Second}

	if !IsTimeout(err) {
		t.Error("IsTimeout should recognize a TimeoutError")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsTimeout(wrapped) {
		t.Error("IsTimeout should unwrap wrapped errors")
	}

	if IsTimeout(errors.New("plain")) {
		t.Error("IsTimeout should reject unrelated errors")
	}
}

func TestSubmissionError(t *testing.T) {
	err := &SubmissionError{Field: "tool", Reason: "is required"}

	if !IsSubmissionError(err) {
		t.Error("IsSubmissionError should recognize a SubmissionError")
	}
	if IsSubmissionError(&TimeoutError{Operation: "x"}) {
		t.Error("IsSubmissionError should reject other error types")
	}
}

func TestRemoteExecutionError_Message(t *testing.T) {
	err := &RemoteExecutionError{TaskID: "t-1", State: TaskStateFailure, Message: "segfault"}
	want := "task t-1 finished with state failure: segfault"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
