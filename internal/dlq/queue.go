// Package dlq captures tasks that failed against the remote queue so
// they can be inspected and resubmitted later.
package dlq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/simflowlab/simflow/pkg/models"
)

var (
	// ErrNotFound is returned when a DLQ entry is not found
	ErrNotFound = errors.New("dlq entry not found")

	// ErrAlreadyExists is returned when trying to add a duplicate entry
	ErrAlreadyExists = errors.New("dlq entry already exists")
)

// Entry represents a failed task in the dead letter queue
type Entry struct {
	TaskID          string                 `json:"task_id"`
	Spec            models.TaskSpec        `json:"spec"`
	State           models.TaskState       `json:"state"`
	FailureTime     time.Time              `json:"failure_time"`
	Attempts        int                    `json:"attempts"`
	LastAttemptTime time.Time              `json:"last_attempt_time"`
	ErrorMessage    string                 `json:"error_message"`
	Replayed        bool                   `json:"replayed"`
	ReplayedAt      *time.Time             `json:"replayed_at,omitempty"`
	ReplayTaskID    string                 `json:"replay_task_id,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Queue is a dead letter queue for failed tasks
type Queue interface {
	// Add adds an entry keyed by its task id
	Add(ctx context.Context, entry *Entry) error

	// Get retrieves an entry by task id
	Get(ctx context.Context, taskID string) (*Entry, error)

	// List lists entries with optional filters
	List(ctx context.Context, filters *Filters) ([]*Entry, error)

	// MarkReplayed records that an entry was resubmitted as replayTaskID
	MarkReplayed(ctx context.Context, taskID, replayTaskID string) error

	// Delete removes an entry
	Delete(ctx context.Context, taskID string) error

	// Purge removes all entries
	Purge(ctx context.Context) error

	// Count returns the number of entries
	Count(ctx context.Context) (int, error)
}

// Filters holds filtering options for listing DLQ entries
type Filters struct {
	Tool     string
	State    models.TaskState
	Replayed *bool
	After    *time.Time
	Before   *time.Time
	Limit    int
	Offset   int
}

// MemoryQueue is an in-memory implementation of the DLQ
type MemoryQueue struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryQueue creates a new in-memory DLQ
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		entries: make(map[string]*Entry),
	}
}

// Add adds an entry to the DLQ
func (q *MemoryQueue) Add(ctx context.Context, entry *Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[entry.TaskID]; exists {
		return ErrAlreadyExists
	}

	q.entries[entry.TaskID] = entry
	return nil
}

// Get retrieves an entry by task id
func (q *MemoryQueue) Get(ctx context.Context, taskID string) (*Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	entry, exists := q.entries[taskID]
	if !exists {
		return nil, ErrNotFound
	}

	return entry, nil
}

// List lists entries with optional filters
func (q *MemoryQueue) List(ctx context.Context, filters *Filters) ([]*Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var result []*Entry
	for _, entry := range q.entries {
		if filters != nil {
			if filters.Tool != "" && entry.Spec.Tool != filters.Tool {
				continue
			}
			if filters.State != "" && entry.State != filters.State {
				continue
			}
			if filters.Replayed != nil && entry.Replayed != *filters.Replayed {
				continue
			}
			if filters.After != nil && entry.FailureTime.Before(*filters.After) {
				continue
			}
			if filters.Before != nil && entry.FailureTime.After(*filters.Before) {
				continue
			}
		}

		result = append(result, entry)
	}

	if filters != nil {
		if filters.Offset > 0 && filters.Offset < len(result) {
			result = result[filters.Offset:]
		} else if filters.Offset >= len(result) {
			result = []*Entry{}
		}

		if filters.Limit > 0 && filters.Limit < len(result) {
			result = result[:filters.Limit]
		}
	}

	return result, nil
}

// MarkReplayed records that an entry was resubmitted
func (q *MemoryQueue) MarkReplayed(ctx context.Context, taskID, replayTaskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, exists := q.entries[taskID]
	if !exists {
		return ErrNotFound
	}

	now := time.Now()
	entry.Replayed = true
	entry.ReplayedAt = &now
	entry.ReplayTaskID = replayTaskID

	return nil
}

// Delete removes an entry from the DLQ
func (q *MemoryQueue) Delete(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[taskID]; !exists {
		return ErrNotFound
	}

	delete(q.entries, taskID)
	return nil
}

// Purge removes all entries from the DLQ
func (q *MemoryQueue) Purge(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = make(map[string]*Entry)
	return nil
}

// Count returns the number of entries in the DLQ
func (q *MemoryQueue) Count(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.entries), nil
}

// NewEntry builds a DLQ entry from a failed task status
func NewEntry(status *models.TaskStatus, attempts int) *Entry {
	now := time.Now()
	return &Entry{
		TaskID: status.TaskID,
		Spec: models.TaskSpec{
			Tool:   status.Tool,
			Script: status.Script,
		},
		State:           status.State,
		FailureTime:     now,
		Attempts:        attempts,
		LastAttemptTime: now,
		ErrorMessage:    status.Error,
	}
}
