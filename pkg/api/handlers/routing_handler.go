package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simflowlab/simflow/internal/routing"
	"github.com/simflowlab/simflow/internal/storage"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/middleware"
)

// RoutingHandler exposes the routing engine over HTTP. Evaluations run
// against the server's shared engine, so every decision flows through
// the engine's configured decision logger; the decisions endpoint reads
// back the persisted audit trail.
type RoutingHandler struct {
	engine    *routing.Engine
	decisions storage.DecisionRepository // optional audit trail
}

// NewRoutingHandler creates a routing handler. The decision repository
// may be nil when the server runs without a database.
func NewRoutingHandler(engine *routing.Engine, decisions storage.DecisionRepository) *RoutingHandler {
	return &RoutingHandler{engine: engine, decisions: decisions}
}

// Evaluate handles POST /api/v1/routing/evaluate
func (h *RoutingHandler) Evaluate(c *gin.Context) {
	var req dto.RouteRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	state := req.ToState()
	state.CircuitBreakerOpen = h.engine.BreakerOpen(routing.NodeID(req.CurrentNode))
	state.Metrics = h.engine.MetricsSnapshot()

	decision, err := h.engine.RouteAfterExecution(state,
		routing.NodeID(req.CurrentNode),
		routing.NodeID(req.SuccessNode),
		routing.NodeID(req.ErrorNode),
		routing.NodeID(req.RetryNode),
	)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_ROUTE", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ToDecisionResponse(decision))
}

// ListDecisions handles GET /api/v1/routing/decisions
func (h *RoutingHandler) ListDecisions(c *gin.Context) {
	if h.decisions == nil {
		middleware.AbortWithError(c, http.StatusNotImplemented, "NO_AUDIT_STORE", "Decision history requires a database")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var (
		records []storage.DecisionModel
		err     error
	)
	if workflowID := c.Query("workflow_id"); workflowID != "" {
		records, err = h.decisions.ListByWorkflow(c.Request.Context(), workflowID, limit)
	} else {
		records, err = h.decisions.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	responses := make([]dto.DecisionRecordResponse, len(records))
	for i, record := range records {
		responses[i] = dto.DecisionRecordResponse{
			ID:         record.ID.String(),
			WorkflowID: record.WorkflowID,
			Decision:   dto.ToDecisionResponse(record.ToDecision()),
			CreatedAt:  record.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, dto.DecisionListResponse{
		Decisions: responses,
		Count:     len(responses),
	})
}

// RegisterRoutes registers the routing routes on the given group
func (h *RoutingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/routing")
	{
		group.POST("/evaluate", h.Evaluate)
		group.GET("/decisions", h.ListDecisions)
	}
}
