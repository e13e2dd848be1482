// Package metrics maintains per-node execution statistics used by
// adaptive routing decisions.
package metrics

import (
	"sync"
	"time"
)

// ExecutionMetrics holds running statistics for a single node or task type.
// Invariant: SuccessRate == (ExecutionCount-FailureCount)/ExecutionCount*100
// whenever ExecutionCount > 0, else 100.
type ExecutionMetrics struct {
	ExecutionCount   int           `json:"execution_count"`
	FailureCount     int           `json:"failure_count"`
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
	SuccessRate      float64       `json:"success_rate"`
	LastExecutionAt  time.Time     `json:"last_execution_time"`
}

// Table is a shared metrics table keyed by node name. Updates are
// serialized with a mutex; reads return copies so callers never see a
// partially applied update.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*ExecutionMetrics
}

// NewTable creates an empty metrics table
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*ExecutionMetrics),
	}
}

// Record applies one completed or failed execution to the node's entry
// as a single read-modify-write. The average is a running mean.
func (t *Table) Record(node string, duration time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.entries[node]
	if !ok {
		m = &ExecutionMetrics{SuccessRate: 100}
		t.entries[node] = m
	}

	prevCount := m.ExecutionCount
	m.ExecutionCount++
	if !success {
		m.FailureCount++
	}

	// Running mean: avg_n = (avg_{n-1}*(n-1) + x_n) / n
	m.AvgExecutionTime = time.Duration(
		(int64(m.AvgExecutionTime)*int64(prevCount) + int64(duration)) / int64(m.ExecutionCount),
	)

	m.SuccessRate = float64(m.ExecutionCount-m.FailureCount) / float64(m.ExecutionCount) * 100
	m.LastExecutionAt = time.Now()
}

// Get returns a snapshot of the node's metrics, or false if the node has
// never executed
func (t *Table) Get(node string) (ExecutionMetrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.entries[node]
	if !ok {
		return ExecutionMetrics{}, false
	}
	return *m, true
}

// Snapshot returns a copy of the entire table
func (t *Table) Snapshot() map[string]ExecutionMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ExecutionMetrics, len(t.entries))
	for node, m := range t.entries {
		out[node] = *m
	}
	return out
}

// Reset removes all entries
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*ExecutionMetrics)
}
