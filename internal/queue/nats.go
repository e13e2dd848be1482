package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/simflowlab/simflow/internal/state"
	"github.com/simflowlab/simflow/pkg/models"
)

const (
	// NATS stream names
	TasksPendingStream = "SIM_TASKS_PENDING"
	TasksResultsStream = "SIM_TASKS_RESULTS"

	// Subject names
	TasksPendingSubject    = "sim.tasks.pending"
	TasksResultsSubject    = "sim.tasks.results"
	TasksCancelSubject     = "sim.tasks.cancel"
	WorkerHeartbeatSubject = "sim.workers.heartbeat"
)

// WorkerInfo tracks a worker known through its heartbeats
type WorkerInfo struct {
	ID            string
	Hostname      string
	LastHeartbeat time.Time
	ActiveTasks   int
}

// Status summarizes the queue transport
type Status struct {
	Connected    bool
	WorkerCount  int
	QueueDepth   int
	TrackedTasks int
}

// NATSConfig holds NATS queue configuration
type NATSConfig struct {
	URL             string
	StreamMaxAge    time.Duration
	WorkerDeadAfter time.Duration

	// States validates worker status reports and publishes transition
	// events. Nil gets a manager that validates but discards events.
	States *state.Manager
}

// DefaultNATSConfig returns a config with sensible defaults
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:             nats.DefaultURL,
		StreamMaxAge:    24 * time.Hour,
		WorkerDeadAfter: 30 * time.Second,
	}
}

// NATSQueue is the JetStream-backed Queue. Task submissions go to a
// work-queue stream consumed by workers; results come back on a results
// stream that feeds a local status table, so Poll is a pure local read.
type NATSQueue struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config *NATSConfig
	states *state.Manager

	statuses map[string]*models.TaskStatus
	statusMu sync.RWMutex

	workers   map[string]*WorkerInfo
	workersMu sync.RWMutex

	resultSub    *nats.Subscription
	heartbeatSub *nats.Subscription

	stopMonitor chan struct{}
	wg          sync.WaitGroup
}

// NewNATSQueue connects to NATS, ensures the streams exist, and starts
// consuming results and heartbeats
func NewNATSQueue(config *NATSConfig) (*NATSQueue, error) {
	if config == nil {
		config = DefaultNATSConfig()
	}
	states := config.States
	if states == nil {
		states = state.NewManager(nil)
	}

	nc, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q := &NATSQueue{
		nc:          nc,
		js:          js,
		config:      config,
		states:      states,
		statuses:    make(map[string]*models.TaskStatus),
		workers:     make(map[string]*WorkerInfo),
		stopMonitor: make(chan struct{}),
	}

	if err := q.initStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	q.resultSub, err = q.js.Subscribe(TasksResultsSubject, q.handleResult,
		nats.Durable("orchestrator-results"),
		nats.ManualAck(),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to results: %w", err)
	}

	q.heartbeatSub, err = q.nc.Subscribe(WorkerHeartbeatSubject, q.handleHeartbeat)
	if err != nil {
		q.resultSub.Unsubscribe()
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to heartbeats: %w", err)
	}

	q.wg.Add(1)
	go q.monitorWorkers()

	return q, nil
}

func (q *NATSQueue) initStreams() error {
	_, err := q.js.AddStream(&nats.StreamConfig{
		Name:      TasksPendingStream,
		Subjects:  []string{TasksPendingSubject},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    q.config.StreamMaxAge,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create pending tasks stream: %w", err)
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:      TasksResultsStream,
		Subjects:  []string{TasksResultsSubject},
		Retention: nats.LimitsPolicy,
		MaxAge:    q.config.StreamMaxAge,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create results stream: %w", err)
	}

	return nil
}

// Submit publishes a task message and seeds the local status table
func (q *NATSQueue) Submit(ctx context.Context, spec models.TaskSpec) (string, error) {
	msg := &TaskMessage{
		TaskID:      uuid.New().String(),
		Tool:        spec.Tool,
		Script:      spec.Script,
		Params:      spec.Params,
		SubmittedAt: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task message: %w", err)
	}

	if _, err := q.js.Publish(TasksPendingSubject, data); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}

	q.statusMu.Lock()
	q.statuses[msg.TaskID] = &models.TaskStatus{
		TaskID: msg.TaskID,
		State:  models.TaskStatePending,
		Tool:   spec.Tool,
		Script: spec.Script,
	}
	q.statusMu.Unlock()

	return msg.TaskID, nil
}

// Poll returns a copy of the last reported status for a task
func (q *NATSQueue) Poll(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	q.statusMu.RLock()
	defer q.statusMu.RUnlock()

	status, ok := q.statuses[taskID]
	if !ok {
		return nil, models.ErrTaskNotFound
	}

	copied := *status
	return &copied, nil
}

// Cancel publishes an advisory cancellation request. Terminal tasks
// reject the request locally.
func (q *NATSQueue) Cancel(ctx context.Context, taskID string) (bool, error) {
	q.statusMu.RLock()
	status, ok := q.statuses[taskID]
	terminal := ok && status.State.IsTerminal()
	q.statusMu.RUnlock()

	if !ok {
		return false, models.ErrTaskNotFound
	}
	if terminal {
		return false, nil
	}

	msg := &CancelMessage{TaskID: taskID, RequestedAt: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cancel message: %w", err)
	}

	if err := q.nc.Publish(fmt.Sprintf("%s.%s", TasksCancelSubject, taskID), data); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}

	return true, nil
}

// handleResult folds a worker status report into the local table. Each
// report is validated against the task lifecycle state machine, which
// makes terminal states sticky: a late running-update for a task that
// already finished fails validation and is dropped. Accepted
// transitions are published as events through the state manager.
func (q *NATSQueue) handleResult(msg *nats.Msg) {
	var result TaskResultMessage
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		log.Printf("Failed to unmarshal task result: %v", err)
		msg.Nak()
		return
	}

	q.statusMu.Lock()
	status, ok := q.statuses[result.TaskID]
	if !ok {
		// A task submitted by another orchestrator instance; adopt the
		// reported state as the first observation so shared polling works.
		status = &models.TaskStatus{TaskID: result.TaskID, State: result.State}
		q.statuses[result.TaskID] = status
	}

	err := q.states.Transition(result.TaskID, status.State, result.State, map[string]interface{}{
		"worker_id": result.WorkerID,
		"hostname":  result.Hostname,
	})
	if err != nil {
		log.Printf("Dropping status report for task %s: %v", result.TaskID, err)
		q.statusMu.Unlock()
		msg.Ack()
		return
	}

	status.State = result.State
	status.Ready = result.State.IsTerminal()
	status.Successful = result.State.IsSuccessful()
	status.Progress = result.Progress
	status.Result = result.Result
	status.Error = result.ErrorMessage
	if !result.StartTime.IsZero() && !result.EndTime.IsZero() {
		status.Duration = result.EndTime.Sub(result.StartTime)
	}
	q.statusMu.Unlock()

	msg.Ack()
}

func (q *NATSQueue) handleHeartbeat(msg *nats.Msg) {
	var heartbeat WorkerHeartbeat
	if err := json.Unmarshal(msg.Data, &heartbeat); err != nil {
		log.Printf("Failed to unmarshal heartbeat: %v", err)
		return
	}

	q.workersMu.Lock()
	q.workers[heartbeat.WorkerID] = &WorkerInfo{
		ID:            heartbeat.WorkerID,
		Hostname:      heartbeat.Hostname,
		LastHeartbeat: heartbeat.Timestamp,
		ActiveTasks:   heartbeat.ActiveTasks,
	}
	q.workersMu.Unlock()
}

// monitorWorkers drops workers whose heartbeats stopped
func (q *NATSQueue) monitorWorkers() {
	defer q.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopMonitor:
			return
		case <-ticker.C:
			q.workersMu.Lock()
			now := time.Now()
			for id, worker := range q.workers {
				if now.Sub(worker.LastHeartbeat) > q.config.WorkerDeadAfter {
					log.Printf("Worker %s missed heartbeats, removing", id)
					delete(q.workers, id)
				}
			}
			q.workersMu.Unlock()
		}
	}
}

// GetStatus returns a transport summary
func (q *NATSQueue) GetStatus() Status {
	q.workersMu.RLock()
	workerCount := len(q.workers)
	q.workersMu.RUnlock()

	q.statusMu.RLock()
	tracked := len(q.statuses)
	q.statusMu.RUnlock()

	status := Status{
		Connected:    q.nc.IsConnected(),
		WorkerCount:  workerCount,
		TrackedTasks: tracked,
	}

	if stream, err := q.js.StreamInfo(TasksPendingStream); err == nil {
		status.QueueDepth = int(stream.State.Msgs)
	}

	return status
}

// Workers returns a snapshot of known workers
func (q *NATSQueue) Workers() []WorkerInfo {
	q.workersMu.RLock()
	defer q.workersMu.RUnlock()

	out := make([]WorkerInfo, 0, len(q.workers))
	for _, w := range q.workers {
		out = append(out, *w)
	}
	return out
}

// Close unsubscribes and closes the connection
func (q *NATSQueue) Close() error {
	close(q.stopMonitor)

	if q.resultSub != nil {
		q.resultSub.Unsubscribe()
	}
	if q.heartbeatSub != nil {
		q.heartbeatSub.Unsubscribe()
	}

	q.wg.Wait()
	q.nc.Close()
	return nil
}
