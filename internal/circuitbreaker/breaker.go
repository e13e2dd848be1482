// Package circuitbreaker guards workflow nodes against cascading retries.
// A breaker opens once consecutive failures reach its threshold and closes
// again on the first success.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the current state of a circuit breaker
type State int

const (
	// StateClosed allows executions through
	StateClosed State = iota

	// StateOpen rejects routing to the node until a success resets it
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// DefaultThreshold is the failure count at which a breaker opens
const DefaultThreshold = 5

// Config holds configuration for a circuit breaker
type Config struct {
	// Threshold is the failure count at which the circuit opens
	Threshold int

	// OnStateChange is called when the breaker changes state
	OnStateChange func(node string, from, to State)
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Threshold: DefaultThreshold,
	}
}

// Breaker tracks consecutive failures for a single node.
// Invariant after every update: open == (failureCount >= threshold).
type Breaker struct {
	node   string
	config *Config

	mu              sync.RWMutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
}

// New creates a closed breaker for the given node
func New(node string, config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}

	return &Breaker{
		node:            node,
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// RecordSuccess resets the breaker: failure count drops to zero and the
// circuit closes
func (b *Breaker) RecordSuccess() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.setState(StateClosed)
	return b.statsLocked()
}

// RecordFailure increments the failure count and opens the circuit once
// the threshold is reached
func (b *Breaker) RecordFailure() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()
	if b.failureCount >= b.config.Threshold {
		b.setState(StateOpen)
	}
	return b.statsLocked()
}

// IsOpen returns true if the circuit is open
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == StateOpen
}

// GetStats returns a snapshot of the breaker
func (b *Breaker) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.statsLocked()
}

func (b *Breaker) statsLocked() Stats {
	return Stats{
		Node:            b.node,
		State:           b.state,
		FailureCount:    b.failureCount,
		Threshold:       b.config.Threshold,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState
	b.lastStateChange = time.Now()

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.node, oldState, newState)
	}
}

// Stats holds a point-in-time snapshot of a breaker
type Stats struct {
	Node            string    `json:"node"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	Threshold       int       `json:"threshold"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}

// Open reports whether the snapshot represents an open circuit
func (s Stats) Open() bool {
	return s.State == StateOpen
}

// Registry holds one breaker per node name, created on first use
type Registry struct {
	mu       sync.Mutex
	config   *Config
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers share the given config
func NewRegistry(config *Config) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	return &Registry{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a node, creating it if needed
func (r *Registry) Get(node string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[node]
	if !ok {
		b = New(node, r.config)
		r.breakers[node] = b
	}
	return b
}

// Record applies one execution outcome to the node's breaker
func (r *Registry) Record(node string, success bool) Stats {
	b := r.Get(node)
	if success {
		return b.RecordSuccess()
	}
	return b.RecordFailure()
}

// Snapshot returns stats for every breaker in the registry
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.breakers))
	for node, b := range r.breakers {
		out[node] = b.GetStats()
	}
	return out
}
