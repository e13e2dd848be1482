package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Priority levels for deferred sweep runs
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityMedium Priority = 1
	PriorityHigh   Priority = 2
)

// QueuedRun is a sweep run waiting for a concurrency slot
type QueuedRun struct {
	RunID      string
	SweepID    string
	Tool       string
	FiredAt    time.Time
	Priority   Priority
	EnqueuedAt time.Time
	index      int
}

// runHeap implements heap.Interface
type runHeap []*QueuedRun

func (h runHeap) Len() int { return len(h) }

func (h runHeap) Less(i, j int) bool {
	// Higher priority first; FIFO within a priority level.
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].EnqueuedAt.Before(h[j].EnqueuedAt)
}

func (h runHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *runHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*QueuedRun)
	item.index = n
	*h = append(*h, item)
}

func (h *runHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// RunQueue is a thread-safe priority queue of deferred sweep runs
type RunQueue struct {
	heap runHeap
	mu   sync.Mutex
}

// NewRunQueue creates a new run queue
func NewRunQueue() *RunQueue {
	q := &RunQueue{
		heap: make(runHeap, 0),
	}
	heap.Init(&q.heap)
	return q
}

// Push adds a run to the queue
func (q *RunQueue) Push(run *QueuedRun) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, run)
}

// Pop removes and returns the highest priority run, or nil if empty
func (q *RunQueue) Pop() *QueuedRun {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*QueuedRun)
}

// Peek returns the highest priority run without removing it
func (q *RunQueue) Peek() *QueuedRun {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil
	}
	return q.heap[0]
}

// Len returns the number of queued runs
func (q *RunQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// IsEmpty returns true if the queue is empty
func (q *RunQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all queued runs
func (q *RunQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = make(runHeap, 0)
	heap.Init(&q.heap)
}

// Items returns a copy of all queued runs for inspection
func (q *RunQueue) Items() []*QueuedRun {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]*QueuedRun, len(q.heap))
	copy(items, q.heap)
	return items
}
