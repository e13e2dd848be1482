package models

import "time"

// TaskSpec describes one unit of simulation work to submit to the queue
type TaskSpec struct {
	Tool   string                 `json:"tool"`
	Script string                 `json:"script"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Task represents a single submitted unit of work, identified by an
// opaque queue-assigned id
type Task struct {
	ID          string     `json:"task_id"`
	Spec        TaskSpec   `json:"spec"`
	State       TaskState  `json:"state"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// TaskState represents the execution state of a task as last reported
// by the external worker
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateSuccess   TaskState = "success"
	TaskStateFailure   TaskState = "failure"
	TaskStateTimeout   TaskState = "timeout"
	TaskStateCancelled TaskState = "cancelled"
)

// IsTerminal returns true if the state permits no further transitions
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSuccess, TaskStateFailure, TaskStateTimeout, TaskStateCancelled:
		return true
	}
	return false
}

// IsSuccessful reports whether a terminal state represents success.
// Returns nil for non-terminal states.
func (s TaskState) IsSuccessful() *bool {
	if !s.IsTerminal() {
		return nil
	}
	ok := s == TaskStateSuccess
	return &ok
}

// TaskStatus is the uniform status shape returned by every client method,
// regardless of the queue's native vocabulary
type TaskStatus struct {
	TaskID     string                 `json:"task_id"`
	State      TaskState              `json:"state"`
	Ready      bool                   `json:"ready"`
	Successful *bool                  `json:"successful"` // nil until terminal
	Progress   int                    `json:"progress"`   // 0..100
	Tool       string                 `json:"tool,omitempty"`
	Script     string                 `json:"script,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Duration   time.Duration          `json:"duration,omitempty"`
}

// WorkflowStatus is the derived aggregate view over a set of tasks.
// Invariant: Completed+Failed+Running+Pending == Total.
type WorkflowStatus struct {
	Total       int                   `json:"total"`
	Completed   int                   `json:"completed"`
	Failed      int                   `json:"failed"`
	Running     int                   `json:"running"`
	Pending     int                   `json:"pending"`
	AllComplete bool                  `json:"all_complete"`
	Tasks       map[string]TaskStatus `json:"tasks"`
}

// ParallelStats summarizes parallel execution of a completed task set.
// Speedup is total duration over the critical path (max duration);
// Efficiency is speedup per completed task.
type ParallelStats struct {
	Total         int           `json:"total"`
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	Running       int           `json:"running"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	MaxDuration   time.Duration `json:"max_duration"`
	Speedup       float64       `json:"speedup"`
	Efficiency    float64       `json:"efficiency"`
}
