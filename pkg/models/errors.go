package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTaskNotFound is returned when a task id is unknown to the queue
	ErrTaskNotFound = errors.New("task not found")

	// ErrQueueUnavailable is returned when the queue transport is unreachable
	ErrQueueUnavailable = errors.New("queue unavailable")
)

// SubmissionError indicates a malformed task spec (missing tool or script).
// Validation happens eagerly, before anything reaches the queue.
type SubmissionError struct {
	Field  string
	Reason string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("invalid task submission: %s %s", e.Field, e.Reason)
}

// RemoteExecutionError indicates the worker reported a failed execution
type RemoteExecutionError struct {
	TaskID  string
	State   TaskState
	Message string
}

func (e *RemoteExecutionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task %s finished with state %s", e.TaskID, e.State)
	}
	return fmt.Sprintf("task %s finished with state %s: %s", e.TaskID, e.State, e.Message)
}

// TimeoutError indicates a deadline was exceeded in a wait or monitor call.
// It is distinct from a task failure: a workflow can complete with failed
// tasks without ever raising a TimeoutError.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Timeout)
}

// CancellationError indicates a cancel request was rejected by the queue
type CancellationError struct {
	TaskID string
	Reason string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancellation of task %s rejected: %s", e.TaskID, e.Reason)
}

// ConfigurationError indicates invalid retry/backoff/threshold parameters
type ConfigurationError struct {
	Parameter string
	Value     interface{}
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v (%s)", e.Parameter, e.Value, e.Reason)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsSubmissionError reports whether err is (or wraps) a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
