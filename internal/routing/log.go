package routing

import "sync"

// DecisionLogger receives every decision the engine produces. The log is
// append-only observability: nothing in the engine reads it back.
type DecisionLogger interface {
	Log(decision Decision)
}

// MemoryLog is an in-memory append-only decision log
type MemoryLog struct {
	mu        sync.Mutex
	decisions []Decision
}

// NewMemoryLog creates an empty decision log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends a decision
func (l *MemoryLog) Log(decision Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decisions = append(l.decisions, decision)
}

// Decisions returns a copy of all logged decisions in order
func (l *MemoryLog) Decisions() []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Decision, len(l.decisions))
	copy(out, l.decisions)
	return out
}

// Len returns the number of logged decisions
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.decisions)
}
