// Package client is the task lifecycle client: it submits, polls, and
// cancels individual units of work against the external queue and
// normalizes every native task state into one status shape.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/simflowlab/simflow/internal/dlq"
	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/internal/retry"
	"github.com/simflowlab/simflow/pkg/models"
)

// DefaultPollInterval is the delay between status polls when the caller
// does not specify one
const DefaultPollInterval = 500 * time.Millisecond

// StatusCallback receives a status snapshot on every poll
type StatusCallback func(status *models.TaskStatus)

// Config holds lifecycle client configuration
type Config struct {
	// PollInterval is the default delay between polls
	PollInterval time.Duration

	// SubmitRetry retries transient submission failures; validation
	// failures are never retried
	SubmitRetry *retry.Config

	// DeadLetters receives failed tasks observed by WaitForTask (optional)
	DeadLetters dlq.Queue
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		SubmitRetry: &retry.Config{
			MaxAttempts: 3,
			Strategy:    retry.NewExponentialBackoff(200*time.Millisecond, 5*time.Second, true),
		},
	}
}

// Client wraps a Queue with lifecycle operations. It holds no task
// state of its own: every read goes back to the queue, so concurrent
// callers need no coordination.
type Client struct {
	queue  queue.Queue
	config *Config
}

// New creates a lifecycle client over the given queue
func New(q queue.Queue, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Client{queue: q, config: config}
}

// SubmitTask validates the spec and enqueues it, returning the opaque
// task id immediately. Missing tool or script fails fast with a
// SubmissionError before anything reaches the queue.
func (c *Client) SubmitTask(ctx context.Context, tool, script string, params map[string]interface{}) (string, error) {
	if tool == "" {
		return "", &models.SubmissionError{Field: "tool", Reason: "is required"}
	}
	if script == "" {
		return "", &models.SubmissionError{Field: "script", Reason: "is required"}
	}

	spec := models.TaskSpec{Tool: tool, Script: script, Params: params}

	return retry.DoWithValue(ctx, c.config.SubmitRetry, func() (string, error) {
		return c.queue.Submit(ctx, spec)
	})
}

// GetTaskStatus returns the task's last reported status. This is a pure
// read, safe to call at any rate.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	return c.queue.Poll(ctx, taskID)
}

// MonitorTask polls the task at pollInterval, invoking callback with
// every snapshot, and returns after one final callback once the task is
// ready. A zero pollInterval uses the configured default.
func (c *Client) MonitorTask(ctx context.Context, taskID string, callback StatusCallback, pollInterval time.Duration) (*models.TaskStatus, error) {
	if pollInterval <= 0 {
		pollInterval = c.config.PollInterval
	}

	for {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if callback != nil {
			callback(status)
		}

		if status.Ready {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("monitoring cancelled: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// WaitForTask blocks until the task reaches a terminal state or the
// timeout elapses. It returns the task result on success and a typed
// error otherwise: TimeoutError when the deadline passes,
// RemoteExecutionError when the worker reported failure.
func (c *Client) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (map[string]interface{}, error) {
	deadline := time.Now().Add(timeout)

	for {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if status.Ready {
			if status.Successful != nil && *status.Successful {
				return status.Result, nil
			}
			c.recordDeadLetter(ctx, status)
			return nil, &models.RemoteExecutionError{
				TaskID:  taskID,
				State:   status.State,
				Message: status.Error,
			}
		}

		if time.Now().After(deadline) {
			return nil, &models.TimeoutError{Operation: fmt.Sprintf("WaitForTask(%s)", taskID), Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait cancelled: %w", ctx.Err())
		case <-time.After(c.config.PollInterval):
		}
	}
}

// CancelTask requests remote termination. A true return means the queue
// accepted the request, not that the job has stopped; in-flight work may
// still race with the signal.
func (c *Client) CancelTask(ctx context.Context, taskID string) (bool, error) {
	accepted, err := c.queue.Cancel(ctx, taskID)
	if err != nil {
		return false, err
	}
	if !accepted {
		return false, &models.CancellationError{TaskID: taskID, Reason: "task already terminal"}
	}
	return true, nil
}

// recordDeadLetter captures a failed task, ignoring duplicates from
// repeated waits on the same task
func (c *Client) recordDeadLetter(ctx context.Context, status *models.TaskStatus) {
	if c.config.DeadLetters == nil {
		return
	}
	if status.State == models.TaskStateCancelled {
		return
	}
	err := c.config.DeadLetters.Add(ctx, dlq.NewEntry(status, 1))
	if err != nil && !errors.Is(err, dlq.ErrAlreadyExists) {
		log.Printf("Failed to record dead letter for task %s: %v", status.TaskID, err)
	}
}
