// Package routing decides what happens next after each step of a
// multi-step simulation workflow. Every decision is a pure function of
// the workflow state passed in: the engine never mutates its input, so
// any decision is reproducible from the state that produced it.
package routing

import (
	"github.com/simflowlab/simflow/internal/metrics"
)

// NodeID names a step in a workflow graph
type NodeID string

// Terminal is the pseudo-node marking the end of a workflow path
const Terminal = NodeID("__terminal__")

// IsTerminal reports whether the id is the terminal pseudo-node
func (n NodeID) IsTerminal() bool {
	return n == Terminal
}

// NodeStatus is the per-attempt execution status of a workflow node,
// set by the node's executor and read-only to the routing engine
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeTimeout   NodeStatus = "timeout"
	NodeSkipped   NodeStatus = "skipped"
)

// ErrorSeverity classifies an error attached to the workflow state.
// Critical short-circuits all retry logic.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// Strategy is the closed set of routing strategies a decision can carry
type Strategy string

const (
	StrategySuccessPath       Strategy = "success_path"
	StrategyRetryWithBackoff  Strategy = "retry_with_backoff"
	StrategyErrorFallback     Strategy = "error_fallback"
	StrategyCircuitBreaker    Strategy = "circuit_breaker"
	StrategyConditionalBranch Strategy = "conditional_branch"
	StrategyContextRule       Strategy = "context_rule"
	StrategyParallelBranch    Strategy = "parallel_branch"
	StrategyAdaptiveSelection Strategy = "adaptive_selection"
)

// Decision is the immutable output of every routing call
type Decision struct {
	NextNode      NodeID                 `json:"next_node"`
	Strategy      Strategy               `json:"strategy"`
	Reason        string                 `json:"reason"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	FallbackNodes []NodeID               `json:"fallback_nodes,omitempty"`
}

// State is the aggregate workflow context passed into every routing
// call. It is owned by the calling orchestrator; the engine only reads
// it. Side effects such as metric or breaker updates are separate
// explicit calls.
type State struct {
	// NodeStatus maps each node to its latest execution status
	NodeStatus map[NodeID]NodeStatus `json:"node_status"`

	// NodeResults holds the output values produced by each node
	NodeResults map[NodeID]map[string]interface{} `json:"node_results"`

	// Errors accumulates error messages seen so far
	Errors []string `json:"errors"`

	// ErrorSeverity is the severity of the most recent error
	ErrorSeverity ErrorSeverity `json:"error_severity"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// CircuitBreakerOpen mirrors the breaker state for the current node
	CircuitBreakerOpen  bool `json:"circuit_breaker_open"`
	CircuitFailureCount int  `json:"circuit_failure_count"`

	// Metrics is a snapshot of the shared execution metrics table
	Metrics map[string]metrics.ExecutionMetrics `json:"execution_metrics,omitempty"`

	// Context carries arbitrary workflow key/values such as priority
	Context map[string]interface{} `json:"workflow_context,omitempty"`

	ResourceLimits map[string]float64 `json:"resource_limits,omitempty"`
	ResourceUsage  map[string]float64 `json:"current_resource_usage,omitempty"`
}

// StatusOf returns the recorded status for a node, or NodePending if
// none was recorded
func (s *State) StatusOf(node NodeID) NodeStatus {
	if st, ok := s.NodeStatus[node]; ok {
		return st
	}
	return NodePending
}

// ResultOf returns a node's result map, which may be nil
func (s *State) ResultOf(node NodeID) map[string]interface{} {
	return s.NodeResults[node]
}

// Metric selects which performance metric adaptive routing optimizes
type Metric string

const (
	// MetricSuccessRate picks the option with the highest success rate
	MetricSuccessRate Metric = "success_rate"

	// MetricAvgExecutionTime picks the option with the lowest average duration
	MetricAvgExecutionTime Metric = "avg_execution_time"
)
