// Package worker implements the remote side of the queue contract: a
// NATS consumer that picks up submitted tasks, runs them through a
// registered script executor, and reports progress and results back on
// the results stream.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/pkg/models"
)

// Config holds worker configuration
type Config struct {
	NATSURL           string
	HeartbeatInterval time.Duration
	AckWait           time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATSURL:           nats.DefaultURL,
		HeartbeatInterval: 10 * time.Second,
		AckWait:           5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Worker consumes tasks from the pending stream, executes them with the
// executor registered for the task's tool, and publishes results
type Worker struct {
	id        string
	hostname  string
	nc        *nats.Conn
	js        nats.JetStreamContext
	executors map[string]ScriptExecutor
	config    *Config

	taskSub *nats.Subscription

	mu          sync.RWMutex
	running     bool
	activeTasks int
	cancels     map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New connects to NATS and builds a worker. Executors must be
// registered before Start.
func New(config *Config) (*Worker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	nc, err := nats.Connect(config.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Worker{
		id:        workerID,
		hostname:  hostname,
		nc:        nc,
		js:        js,
		executors: make(map[string]ScriptExecutor),
		config:    config,
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// RegisterExecutor registers a script executor for its tool
func (w *Worker) RegisterExecutor(executor ScriptExecutor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.executors[executor.Tool()] = executor
}

// Start subscribes to the pending task stream and begins processing
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}
	w.running = true

	var err error
	w.taskSub, err = w.js.QueueSubscribe(
		queue.TasksPendingSubject,
		"workers",
		w.handleTask,
		nats.Durable("workers"),
		nats.ManualAck(),
		nats.AckWait(w.config.AckWait),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to tasks: %w", err)
	}

	w.wg.Add(1)
	go w.sendHeartbeats(ctx)

	log.Printf("Worker %s started on %s", w.id, w.hostname)
	return nil
}

// Stop unsubscribes, waits for in-flight tasks, and closes the
// connection
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	log.Printf("Stopping worker %s...", w.id)

	if w.taskSub != nil {
		w.taskSub.Unsubscribe()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		log.Println("Worker shutdown timeout reached")
	}

	w.nc.Close()
	log.Printf("Worker %s stopped", w.id)
	return nil
}

// handleTask processes one task message from the queue
func (w *Worker) handleTask(msg *nats.Msg) {
	var taskMsg queue.TaskMessage
	if err := json.Unmarshal(msg.Data, &taskMsg); err != nil {
		log.Printf("Failed to unmarshal task message: %v", err)
		msg.Nak()
		return
	}

	log.Printf("Worker %s received task %s (tool: %s)", w.id, taskMsg.TaskID, taskMsg.Tool)

	w.mu.RLock()
	executor, ok := w.executors[taskMsg.Tool]
	w.mu.RUnlock()

	if !ok {
		w.publishTerminal(taskMsg.TaskID, models.TaskStateFailure, nil,
			fmt.Sprintf("no executor for tool: %s", taskMsg.Tool), time.Now(), time.Now())
		msg.Ack()
		return
	}

	ctx := context.Background()
	if taskMsg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, taskMsg.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Honor advisory cancellation for this task while it runs.
	cancelSub, err := w.nc.Subscribe(
		fmt.Sprintf("%s.%s", queue.TasksCancelSubject, taskMsg.TaskID),
		func(*nats.Msg) {
			log.Printf("Task %s cancelled remotely", taskMsg.TaskID)
			cancel()
		},
	)
	if err != nil {
		log.Printf("Failed to subscribe to cancel subject: %v", err)
	} else {
		defer cancelSub.Unsubscribe()
	}

	w.trackStart(taskMsg.TaskID, cancel)
	defer w.trackEnd(taskMsg.TaskID)

	start := time.Now()
	w.publishRunning(taskMsg.TaskID, start)

	result, execErr := executor.Run(ctx, taskMsg.Script, taskMsg.Params)
	end := time.Now()

	state := models.TaskStateSuccess
	errMsg := ""
	switch {
	case ctx.Err() == context.Canceled:
		state = models.TaskStateCancelled
		errMsg = "cancelled"
	case ctx.Err() == context.DeadlineExceeded:
		state = models.TaskStateTimeout
		errMsg = fmt.Sprintf("timed out after %v", taskMsg.Timeout)
	case execErr != nil:
		state = models.TaskStateFailure
		errMsg = execErr.Error()
	}

	if err := w.publishTerminal(taskMsg.TaskID, state, result, errMsg, start, end); err != nil {
		log.Printf("Failed to publish result for task %s: %v", taskMsg.TaskID, err)
		msg.Nak()
		return
	}

	msg.Ack()
	log.Printf("Worker %s completed task %s with state %s", w.id, taskMsg.TaskID, state)
}

func (w *Worker) trackStart(taskID string, cancel context.CancelFunc) {
	w.mu.Lock()
	w.activeTasks++
	w.cancels[taskID] = cancel
	w.mu.Unlock()
}

func (w *Worker) trackEnd(taskID string) {
	w.mu.Lock()
	w.activeTasks--
	delete(w.cancels, taskID)
	w.mu.Unlock()
}

// publishRunning reports that execution has started
func (w *Worker) publishRunning(taskID string, start time.Time) {
	msg := &queue.TaskResultMessage{
		TaskID:    taskID,
		WorkerID:  w.id,
		State:     models.TaskStateRunning,
		StartTime: start,
		Hostname:  w.hostname,
	}
	if err := w.publish(msg); err != nil {
		log.Printf("Failed to publish running update for task %s: %v", taskID, err)
	}
}

// publishTerminal reports the final outcome of a task
func (w *Worker) publishTerminal(taskID string, state models.TaskState, result map[string]interface{}, errMsg string, start, end time.Time) error {
	msg := &queue.TaskResultMessage{
		TaskID:       taskID,
		WorkerID:     w.id,
		State:        state,
		Progress:     100,
		Result:       result,
		ErrorMessage: errMsg,
		StartTime:    start,
		EndTime:      end,
		Hostname:     w.hostname,
	}
	return w.publish(msg)
}

func (w *Worker) publish(msg *queue.TaskResultMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if _, err := w.js.Publish(queue.TasksResultsSubject, data); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// sendHeartbeats publishes periodic liveness reports
func (w *Worker) sendHeartbeats(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.RLock()
			if !w.running {
				w.mu.RUnlock()
				return
			}
			active := w.activeTasks
			w.mu.RUnlock()

			heartbeat := &queue.WorkerHeartbeat{
				WorkerID:    w.id,
				Hostname:    w.hostname,
				ActiveTasks: active,
				Timestamp:   time.Now(),
			}

			data, err := json.Marshal(heartbeat)
			if err != nil {
				log.Printf("Failed to marshal heartbeat: %v", err)
				continue
			}
			if err := w.nc.Publish(queue.WorkerHeartbeatSubject, data); err != nil {
				log.Printf("Failed to publish heartbeat: %v", err)
			}
		}
	}
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.id
}

// ActiveTasks returns the number of tasks currently executing
func (w *Worker) ActiveTasks() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.activeTasks
}
