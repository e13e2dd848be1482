// Package queue defines the contract between the orchestration core and
// the external distributed worker pool, plus the transports that satisfy
// it. The core only submits and observes; execution concurrency lives
// entirely on the other side of this interface.
package queue

import (
	"context"
	"time"

	"github.com/simflowlab/simflow/pkg/models"
)

// Queue is the narrow contract the lifecycle client builds on.
// Poll is a pure read with no side effects on the remote job and must be
// safe to call at any rate. Cancel is advisory: acceptance means the
// request was taken, not that execution has stopped.
type Queue interface {
	// Submit enqueues work and returns an opaque correlation id
	Submit(ctx context.Context, spec models.TaskSpec) (string, error)

	// Poll returns the last reported status for a task
	Poll(ctx context.Context, taskID string) (*models.TaskStatus, error)

	// Cancel requests remote termination, best-effort
	Cancel(ctx context.Context, taskID string) (bool, error)

	// Close releases the transport
	Close() error
}

// TaskMessage is the wire shape of a submitted task
type TaskMessage struct {
	TaskID      string                 `json:"task_id"`
	Tool        string                 `json:"tool"`
	Script      string                 `json:"script"`
	Params      map[string]interface{} `json:"params,omitempty"`
	SubmittedAt time.Time              `json:"submitted_at"`
	Timeout     time.Duration          `json:"timeout,omitempty"`
}

// TaskResultMessage is the wire shape of a worker status report. Workers
// publish one with State=running (optionally carrying progress) when they
// pick a task up, and a terminal one when they finish.
type TaskResultMessage struct {
	TaskID       string                 `json:"task_id"`
	WorkerID     string                 `json:"worker_id"`
	State        models.TaskState       `json:"state"`
	Progress     int                    `json:"progress"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	StartTime    time.Time              `json:"start_time"`
	EndTime      time.Time              `json:"end_time"`
	Hostname     string                 `json:"hostname"`
}

// CancelMessage is the wire shape of an advisory cancellation request
type CancelMessage struct {
	TaskID      string    `json:"task_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// WorkerHeartbeat is the wire shape of a periodic worker liveness report
type WorkerHeartbeat struct {
	WorkerID    string    `json:"worker_id"`
	Hostname    string    `json:"hostname"`
	ActiveTasks int       `json:"active_tasks"`
	Timestamp   time.Time `json:"timestamp"`
}
