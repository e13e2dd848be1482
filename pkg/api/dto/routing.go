package dto

import (
	"time"

	"github.com/simflowlab/simflow/internal/routing"
)

// RouteRequest asks the routing engine what should run after a node
// finished an attempt
type RouteRequest struct {
	CurrentNode string `json:"current_node" validate:"required"`
	SuccessNode string `json:"success_node" validate:"required"`
	ErrorNode   string `json:"error_node" validate:"required"`
	RetryNode   string `json:"retry_node"`

	// NodeStatus maps node names to their latest execution status
	NodeStatus map[string]string `json:"node_status"`

	RetryCount    int    `json:"retry_count" validate:"min=0"`
	MaxRetries    int    `json:"max_retries" validate:"min=0"`
	ErrorSeverity string `json:"error_severity" validate:"omitempty,oneof=low medium high critical"`
}

// ToState converts the request into engine-facing workflow state
func (r *RouteRequest) ToState() *routing.State {
	statuses := make(map[routing.NodeID]routing.NodeStatus, len(r.NodeStatus))
	for node, status := range r.NodeStatus {
		statuses[routing.NodeID(node)] = routing.NodeStatus(status)
	}

	return &routing.State{
		NodeStatus:    statuses,
		ErrorSeverity: routing.ErrorSeverity(r.ErrorSeverity),
		RetryCount:    r.RetryCount,
		MaxRetries:    r.MaxRetries,
	}
}

// DecisionResponse is the API shape of one routing decision
type DecisionResponse struct {
	NextNode      string                 `json:"next_node"`
	Strategy      string                 `json:"strategy"`
	Reason        string                 `json:"reason"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	FallbackNodes []string               `json:"fallback_nodes,omitempty"`
}

// ToDecisionResponse converts a routing decision to its API shape
func ToDecisionResponse(d routing.Decision) DecisionResponse {
	fallbacks := make([]string, len(d.FallbackNodes))
	for i, node := range d.FallbackNodes {
		fallbacks[i] = string(node)
	}
	if len(fallbacks) == 0 {
		fallbacks = nil
	}

	return DecisionResponse{
		NextNode:      string(d.NextNode),
		Strategy:      string(d.Strategy),
		Reason:        d.Reason,
		Metadata:      d.Metadata,
		FallbackNodes: fallbacks,
	}
}

// DecisionRecordResponse is one persisted routing decision from the
// audit trail
type DecisionRecordResponse struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	Decision   DecisionResponse `json:"decision"`
	CreatedAt  time.Time        `json:"created_at"`
}

// DecisionListResponse is a page of persisted routing decisions
type DecisionListResponse struct {
	Decisions []DecisionRecordResponse `json:"decisions"`
	Count     int                      `json:"count"`
}
