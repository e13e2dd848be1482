package routing

import (
	"fmt"
	"math"
	"time"

	"github.com/simflowlab/simflow/internal/circuitbreaker"
	"github.com/simflowlab/simflow/internal/metrics"
	"github.com/simflowlab/simflow/pkg/models"
)

// DefaultBackoffMultiplier is the base of the exponential retry backoff
const DefaultBackoffMultiplier = 2.0

// Config holds routing engine configuration
type Config struct {
	// BackoffMultiplier is the base of the exponential retry backoff:
	// backoff_seconds = multiplier^retry_count
	BackoffMultiplier float64

	// Breakers is the shared per-node circuit breaker registry
	Breakers *circuitbreaker.Registry

	// Metrics is the shared per-node execution metrics table
	Metrics *metrics.Table

	// Logger receives every decision the engine produces (optional)
	Logger DecisionLogger
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BackoffMultiplier: DefaultBackoffMultiplier,
		Breakers:          circuitbreaker.NewRegistry(nil),
		Metrics:           metrics.NewTable(),
	}
}

// Engine maps workflow state to "what runs next". All Route methods are
// pure given their inputs; the only mutation the engine performs is
// through the explicit RecordExecution/UpdateCircuitBreaker calls.
type Engine struct {
	config *Config
}

// NewEngine creates a routing engine. Invalid backoff configuration is
// rejected eagerly.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if config.BackoffMultiplier < 1 {
		return nil, &models.ConfigurationError{
			Parameter: "backoff_multiplier",
			Value:     config.BackoffMultiplier,
			Reason:    "must be >= 1",
		}
	}
	if config.Breakers == nil {
		config.Breakers = circuitbreaker.NewRegistry(nil)
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewTable()
	}

	return &Engine{config: config}, nil
}

// RouteAfterExecution picks the next node after currentNode finished an
// attempt. retryNode may be empty, meaning no retry target exists.
//
// Precedence, evaluated in this fixed order:
//  1. critical error severity: terminal, no retry regardless of budget
//  2. open circuit breaker: error node
//  3. completed: success node
//  4. failed: retry with backoff while budget remains, else error node
//  5. timeout: error node
//  6. anything else: success node (documented fallback, not for
//     intentional control flow)
func (e *Engine) RouteAfterExecution(state *State, currentNode, successNode, errorNode, retryNode NodeID) (Decision, error) {
	if state.MaxRetries < 0 {
		return Decision{}, &models.ConfigurationError{
			Parameter: "max_retries",
			Value:     state.MaxRetries,
			Reason:    "must be >= 0",
		}
	}

	var d Decision
	switch {
	case state.ErrorSeverity == SeverityCritical:
		d = Decision{
			NextNode: Terminal,
			Strategy: StrategyErrorFallback,
			Reason:   fmt.Sprintf("critical error terminates workflow at node %s", currentNode),
		}

	case state.CircuitBreakerOpen:
		d = Decision{
			NextNode:      errorNode,
			Strategy:      StrategyCircuitBreaker,
			Reason:        fmt.Sprintf("circuit breaker open for node %s", currentNode),
			FallbackNodes: []NodeID{Terminal},
		}

	case state.StatusOf(currentNode) == NodeCompleted:
		d = Decision{
			NextNode: successNode,
			Strategy: StrategySuccessPath,
			Reason:   fmt.Sprintf("node %s completed", currentNode),
		}

	case state.StatusOf(currentNode) == NodeFailed:
		if retryNode != "" && state.RetryCount < state.MaxRetries {
			backoff := math.Pow(e.config.BackoffMultiplier, float64(state.RetryCount))
			d = Decision{
				NextNode: retryNode,
				Strategy: StrategyRetryWithBackoff,
				Reason: fmt.Sprintf("node %s failed, retry %d/%d with %.1fs backoff",
					currentNode, state.RetryCount+1, state.MaxRetries, backoff),
				Metadata: map[string]interface{}{
					"retry_count":     state.RetryCount + 1,
					"backoff_seconds": backoff,
				},
				FallbackNodes: []NodeID{errorNode, Terminal},
			}
		} else {
			d = Decision{
				NextNode: errorNode,
				Strategy: StrategyErrorFallback,
				Reason:   fmt.Sprintf("node %s failed with retry budget exhausted", currentNode),
			}
		}

	case state.StatusOf(currentNode) == NodeTimeout:
		d = Decision{
			NextNode: errorNode,
			Strategy: StrategyErrorFallback,
			Reason:   fmt.Sprintf("node %s timed out", currentNode),
			Metadata: map[string]interface{}{"error_type": "timeout"},
		}

	default:
		// Unknown or unclear status defaults to the success path. Callers
		// must not rely on this branch for intentional control flow.
		d = Decision{
			NextNode: successNode,
			Strategy: StrategySuccessPath,
			Reason: fmt.Sprintf("node %s has unclear status %q, defaulting to success path",
				currentNode, state.StatusOf(currentNode)),
		}
	}

	e.logDecision(d)
	return d, nil
}

// RouteByOutputValue branches on an output value produced by currentNode.
// Values are matched by their string form; unmatched values resolve to
// defaultNode.
func (e *Engine) RouteByOutputValue(state *State, currentNode NodeID, outputKey string, routingMap map[string]NodeID, defaultNode NodeID) Decision {
	d := Decision{
		NextNode: defaultNode,
		Strategy: StrategyConditionalBranch,
		Reason:   fmt.Sprintf("no routing match for output %q of node %s", outputKey, currentNode),
	}

	if results := state.ResultOf(currentNode); results != nil {
		if raw, ok := results[outputKey]; ok {
			value := fmt.Sprintf("%v", raw)
			if target, ok := routingMap[value]; ok {
				d.NextNode = target
				d.Reason = fmt.Sprintf("output %s=%q of node %s matched", outputKey, value, currentNode)
			}
			d.Metadata = map[string]interface{}{"output_value": value}
		}
	}

	e.logDecision(d)
	return d
}

// RouteByContext evaluates ordered rules against a workflow context
// value. The first rule whose predicate accepts the value wins; no match
// resolves to defaultNode.
func (e *Engine) RouteByContext(state *State, contextKey string, rules []Rule, defaultNode NodeID) Decision {
	value := state.Context[contextKey]

	for _, rule := range rules {
		if rule.Predicate != nil && rule.Predicate(value) {
			d := Decision{
				NextNode: rule.Target,
				Strategy: StrategyContextRule,
				Reason:   rule.Reason,
				Metadata: map[string]interface{}{"context_key": contextKey},
			}
			e.logDecision(d)
			return d
		}
	}

	d := Decision{
		NextNode: defaultNode,
		Strategy: StrategyContextRule,
		Reason:   fmt.Sprintf("no rule matched context key %q", contextKey),
		Metadata: map[string]interface{}{"context_key": contextKey},
	}
	e.logDecision(d)
	return d
}

// RouteParallelSplit labels one decision per parallel branch. The engine
// does not implement the join barrier itself; each decision carries the
// join node for the caller's fan-in logic.
func (e *Engine) RouteParallelSplit(state *State, parallelNodes []NodeID, joinNode NodeID) []Decision {
	decisions := make([]Decision, 0, len(parallelNodes))
	for _, node := range parallelNodes {
		d := Decision{
			NextNode: node,
			Strategy: StrategyParallelBranch,
			Reason:   fmt.Sprintf("parallel branch %s joining at %s", node, joinNode),
			Metadata: map[string]interface{}{"join_node": string(joinNode)},
		}
		e.logDecision(d)
		decisions = append(decisions, d)
	}
	return decisions
}

// RouteByResourceAvailability chooses the intensive node iff enough of
// the given resource remains, otherwise the lightweight node
func (e *Engine) RouteByResourceAvailability(state *State, intensiveNode, lightweightNode NodeID, resourceType string, threshold float64) Decision {
	available := state.ResourceLimits[resourceType] - state.ResourceUsage[resourceType]

	d := Decision{
		Strategy: StrategyAdaptiveSelection,
		Metadata: map[string]interface{}{
			"resource_type": resourceType,
			"available":     available,
			"threshold":     threshold,
		},
	}

	if available >= threshold {
		d.NextNode = intensiveNode
		d.Reason = fmt.Sprintf("%.1f %s available (threshold %.1f), using %s",
			available, resourceType, threshold, intensiveNode)
	} else {
		d.NextNode = lightweightNode
		d.Reason = fmt.Sprintf("only %.1f %s available (threshold %.1f), using %s",
			available, resourceType, threshold, lightweightNode)
	}

	e.logDecision(d)
	return d
}

// RouteByPerformanceMetrics picks the best node among nodeOptions by the
// given metric, considering only options with a recorded metrics entry.
// With no metrics at all, the first option wins by documented default; an
// empty option list routes to Terminal.
func (e *Engine) RouteByPerformanceMetrics(state *State, nodeOptions []NodeID, metric Metric) Decision {
	if len(nodeOptions) == 0 {
		d := Decision{
			NextNode: Terminal,
			Strategy: StrategyAdaptiveSelection,
			Reason:   "no candidate nodes to select from",
			Metadata: map[string]interface{}{"metric": string(metric)},
		}
		e.logDecision(d)
		return d
	}

	var best NodeID
	var bestValue float64
	found := false

	for _, node := range nodeOptions {
		m, ok := state.Metrics[string(node)]
		if !ok {
			continue
		}

		var value float64
		switch metric {
		case MetricAvgExecutionTime:
			value = -float64(m.AvgExecutionTime) // minimize
		default:
			value = m.SuccessRate // maximize
		}

		if !found || value > bestValue {
			best = node
			bestValue = value
			found = true
		}
	}

	var d Decision
	if found {
		d = Decision{
			NextNode: best,
			Strategy: StrategyAdaptiveSelection,
			Reason:   fmt.Sprintf("node %s is best by %s", best, metric),
			Metadata: map[string]interface{}{"metric": string(metric)},
		}
	} else {
		d = Decision{
			NextNode: nodeOptions[0],
			Strategy: StrategyAdaptiveSelection,
			Reason:   "no recorded metrics for any option, defaulting to first",
			Metadata: map[string]interface{}{"metric": string(metric)},
		}
	}

	e.logDecision(d)
	return d
}

// UpdateCircuitBreaker applies one execution outcome to the node's
// breaker and returns the resulting state. This is the explicit
// side-effect companion to the pure Route methods.
func (e *Engine) UpdateCircuitBreaker(node NodeID, success bool) circuitbreaker.Stats {
	return e.config.Breakers.Record(string(node), success)
}

// RecordExecution updates the shared metrics table and the node's
// circuit breaker in one call, after an execution attempt finished
func (e *Engine) RecordExecution(node NodeID, duration time.Duration, success bool) {
	e.config.Metrics.Record(string(node), duration, success)
	e.config.Breakers.Record(string(node), success)
}

// MetricsSnapshot returns a copy of the shared metrics table, suitable
// for embedding in a routing State
func (e *Engine) MetricsSnapshot() map[string]metrics.ExecutionMetrics {
	return e.config.Metrics.Snapshot()
}

// BreakerOpen reports whether the node's circuit breaker is currently open
func (e *Engine) BreakerOpen(node NodeID) bool {
	return e.config.Breakers.Get(string(node)).IsOpen()
}

func (e *Engine) logDecision(d Decision) {
	if e.config.Logger != nil {
		e.config.Logger.Log(d)
	}
}
