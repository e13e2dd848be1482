package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/simflowlab/simflow/internal/workflow"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/middleware"
)

// WorkflowHandler handles workflow-level HTTP requests. Workflows are a
// client-side grouping of task ids; the handler keeps the grouping in
// memory so status queries can address the whole set by one id.
type WorkflowHandler struct {
	agg *workflow.Aggregator

	mu        sync.RWMutex
	workflows map[string][]string
}

// NewWorkflowHandler creates a workflow handler
func NewWorkflowHandler(agg *workflow.Aggregator) *WorkflowHandler {
	return &WorkflowHandler{
		agg:       agg,
		workflows: make(map[string][]string),
	}
}

func (h *WorkflowHandler) register(taskIDs []string) string {
	workflowID := uuid.New().String()
	h.mu.Lock()
	h.workflows[workflowID] = taskIDs
	h.mu.Unlock()
	return workflowID
}

func (h *WorkflowHandler) lookup(workflowID string) ([]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	taskIDs, ok := h.workflows[workflowID]
	return taskIDs, ok
}

// SubmitWorkflow handles POST /api/v1/workflows
func (h *WorkflowHandler) SubmitWorkflow(c *gin.Context) {
	var req dto.SubmitWorkflowRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	specs := req.ToSpecs()

	var taskIDs []string
	var err error
	if req.BatchSize > 0 {
		taskIDs, err = h.agg.SubmitBatchWorkflow(c.Request.Context(), specs, req.BatchSize, nil)
	} else {
		taskIDs, err = h.agg.SubmitWorkflow(c.Request.Context(), specs, req.Sequential)
	}
	if err != nil {
		// Partial submissions still get a workflow id so the caller
		// can inspect what did go through.
		if len(taskIDs) == 0 {
			middleware.AbortWithError(c, http.StatusServiceUnavailable, "WORKFLOW_FAILED", err.Error())
			return
		}
		_ = c.Error(err)
	}

	workflowID := h.register(taskIDs)

	c.JSON(http.StatusAccepted, dto.SubmitWorkflowResponse{
		WorkflowID: workflowID,
		TaskIDs:    taskIDs,
	})
}

// SubmitSweep handles POST /api/v1/workflows/sweep
func (h *WorkflowHandler) SubmitSweep(c *gin.Context) {
	var req dto.SweepRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	taskIDs, err := h.agg.ParameterSweep(c.Request.Context(), req.Tool, req.Script, req.Params, nil)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "SWEEP_FAILED", err.Error())
		return
	}
	if len(taskIDs) == 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, "EMPTY_SWEEP", "Parameter sweep produced no combinations")
		return
	}

	workflowID := h.register(taskIDs)

	c.JSON(http.StatusAccepted, dto.SubmitWorkflowResponse{
		WorkflowID: workflowID,
		TaskIDs:    taskIDs,
	})
}

// GetWorkflowStatus handles GET /api/v1/workflows/:id
func (h *WorkflowHandler) GetWorkflowStatus(c *gin.Context) {
	workflowID := c.Param("id")

	taskIDs, ok := h.lookup(workflowID)
	if !ok {
		middleware.AbortWithError(c, http.StatusNotFound, "WORKFLOW_NOT_FOUND", "Workflow not found: "+workflowID)
		return
	}

	status, err := h.agg.GetWorkflowStatus(c.Request.Context(), taskIDs)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "STATUS_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ToWorkflowStatusResponse(workflowID, status))
}

// GetWorkflowStats handles GET /api/v1/workflows/:id/stats
func (h *WorkflowHandler) GetWorkflowStats(c *gin.Context) {
	workflowID := c.Param("id")

	taskIDs, ok := h.lookup(workflowID)
	if !ok {
		middleware.AbortWithError(c, http.StatusNotFound, "WORKFLOW_NOT_FOUND", "Workflow not found: "+workflowID)
		return
	}

	stats, err := h.agg.GetParallelExecutionStats(c.Request.Context(), taskIDs)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ToParallelStatsResponse(workflowID, stats))
}

// RegisterRoutes registers the workflow routes on the given group
func (h *WorkflowHandler) RegisterRoutes(rg *gin.RouterGroup) {
	workflows := rg.Group("/workflows")
	{
		workflows.POST("", h.SubmitWorkflow)
		workflows.POST("/sweep", h.SubmitSweep)
		workflows.GET("/:id", h.GetWorkflowStatus)
		workflows.GET("/:id/stats", h.GetWorkflowStats)
	}
}
