package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simflowlab/simflow/pkg/models"
)

// ExecuteFunc simulates worker-side execution for the in-memory queue
type ExecuteFunc func(spec models.TaskSpec) (map[string]interface{}, error)

// MemoryQueue is an in-process Queue for tests and local development.
// With an ExecuteFunc configured, submitted tasks run asynchronously
// after the configured latency; without one, tasks stay pending until
// the test drives them through Complete/Fail.
type MemoryQueue struct {
	mu      sync.RWMutex
	tasks   map[string]*memoryTask
	execute ExecuteFunc
	latency time.Duration
	wg      sync.WaitGroup
	closed  bool
}

type memoryTask struct {
	spec      models.TaskSpec
	state     models.TaskState
	progress  int
	result    map[string]interface{}
	errMsg    string
	started   time.Time
	finished  time.Time
	cancelled chan struct{}
}

// NewMemoryQueue creates a queue whose tasks stay pending until driven
// explicitly
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		tasks: make(map[string]*memoryTask),
	}
}

// NewExecutingMemoryQueue creates a queue that runs each submitted task
// through fn after the given artificial latency
func NewExecutingMemoryQueue(fn ExecuteFunc, latency time.Duration) *MemoryQueue {
	return &MemoryQueue{
		tasks:   make(map[string]*memoryTask),
		execute: fn,
		latency: latency,
	}
}

// Submit enqueues a task and returns its id
func (q *MemoryQueue) Submit(ctx context.Context, spec models.TaskSpec) (string, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", models.ErrQueueUnavailable
	}

	id := uuid.New().String()
	task := &memoryTask{
		spec:      spec,
		state:     models.TaskStatePending,
		cancelled: make(chan struct{}),
	}
	q.tasks[id] = task
	q.mu.Unlock()

	if q.execute != nil {
		q.wg.Add(1)
		go q.run(id, task)
	}

	return id, nil
}

func (q *MemoryQueue) run(id string, task *memoryTask) {
	defer q.wg.Done()

	select {
	case <-time.After(q.latency):
	case <-task.cancelled:
		return
	}

	q.mu.Lock()
	if task.state != models.TaskStatePending {
		q.mu.Unlock()
		return
	}
	task.state = models.TaskStateRunning
	task.started = time.Now()
	spec := task.spec
	q.mu.Unlock()

	result, err := q.execute(spec)

	q.mu.Lock()
	defer q.mu.Unlock()
	if task.state != models.TaskStateRunning {
		// Cancelled while executing; the late result is dropped, which
		// is the expected race for advisory cancellation.
		return
	}
	task.finished = time.Now()
	task.progress = 100
	if err != nil {
		task.state = models.TaskStateFailure
		task.errMsg = err.Error()
	} else {
		task.state = models.TaskStateSuccess
		task.result = result
	}
}

// Poll returns the task's current status
func (q *MemoryQueue) Poll(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	return q.statusLocked(taskID, task), nil
}

func (q *MemoryQueue) statusLocked(id string, task *memoryTask) *models.TaskStatus {
	status := &models.TaskStatus{
		TaskID:     id,
		State:      task.state,
		Ready:      task.state.IsTerminal(),
		Successful: task.state.IsSuccessful(),
		Progress:   task.progress,
		Tool:       task.spec.Tool,
		Script:     task.spec.Script,
		Error:      task.errMsg,
	}
	if task.result != nil {
		status.Result = make(map[string]interface{}, len(task.result))
		for k, v := range task.result {
			status.Result[k] = v
		}
	}
	if !task.started.IsZero() && !task.finished.IsZero() {
		status.Duration = task.finished.Sub(task.started)
	}
	return status
}

// Cancel marks a non-terminal task cancelled. Terminal tasks reject the
// request.
func (q *MemoryQueue) Cancel(ctx context.Context, taskID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return false, models.ErrTaskNotFound
	}
	if task.state.IsTerminal() {
		return false, nil
	}

	task.state = models.TaskStateCancelled
	task.finished = time.Now()
	close(task.cancelled)
	return true, nil
}

// Close waits for in-flight executions and rejects further submissions
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

// Complete drives a pending or running task to success (test control)
func (q *MemoryQueue) Complete(taskID string, result map[string]interface{}, duration time.Duration) error {
	return q.finish(taskID, models.TaskStateSuccess, result, "", duration)
}

// Fail drives a pending or running task to failure (test control)
func (q *MemoryQueue) Fail(taskID string, errMsg string, duration time.Duration) error {
	return q.finish(taskID, models.TaskStateFailure, nil, errMsg, duration)
}

func (q *MemoryQueue) finish(taskID string, state models.TaskState, result map[string]interface{}, errMsg string, duration time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return models.ErrTaskNotFound
	}
	if task.state.IsTerminal() {
		return nil
	}

	now := time.Now()
	task.state = state
	task.result = result
	task.errMsg = errMsg
	task.progress = 100
	task.started = now.Add(-duration)
	task.finished = now
	return nil
}
