// Package handlers implements the HTTP endpoints of the orchestrator API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simflowlab/simflow/internal/client"
	"github.com/simflowlab/simflow/internal/storage"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/middleware"
	"github.com/simflowlab/simflow/pkg/models"
)

// TaskHandler handles task lifecycle HTTP requests
type TaskHandler struct {
	client *client.Client
	runs   storage.TaskRunRepository // optional audit trail
}

// NewTaskHandler creates a task handler. The run repository may be nil
// when the server runs without a database.
func NewTaskHandler(c *client.Client, runs storage.TaskRunRepository) *TaskHandler {
	return &TaskHandler{client: c, runs: runs}
}

// SubmitTask handles POST /api/v1/tasks
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	var req dto.SubmitTaskRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	spec := req.ToSpec()
	taskID, err := h.client.SubmitTask(c.Request.Context(), spec.Tool, spec.Script, spec.Params)
	if err != nil {
		var submitErr *models.SubmissionError
		if errors.As(err, &submitErr) {
			middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_TASK", err.Error())
			return
		}
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "SUBMIT_FAILED", err.Error())
		return
	}

	if h.runs != nil {
		if err := h.runs.Create(c.Request.Context(), taskID, spec); err != nil {
			// The task is already queued; losing the audit row is not fatal.
			_ = c.Error(err)
		}
	}

	c.JSON(http.StatusAccepted, dto.SubmitTaskResponse{
		TaskID: taskID,
		State:  string(models.TaskStatePending),
	})
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID := c.Param("id")

	status, err := h.client.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, models.ErrTaskNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found: "+taskID)
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, "STATUS_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskStatusResponse(status))
}

// CancelTask handles DELETE /api/v1/tasks/:id
func (h *TaskHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("id")

	cancelled, err := h.client.CancelTask(c.Request.Context(), taskID)
	if err != nil {
		var cancelErr *models.CancellationError
		if errors.As(err, &cancelErr) {
			c.JSON(http.StatusConflict, dto.CancelTaskResponse{
				TaskID:    taskID,
				Cancelled: false,
				Message:   cancelErr.Reason,
			})
			return
		}
		if errors.Is(err, models.ErrTaskNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, "TASK_NOT_FOUND", "Task not found: "+taskID)
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, "CANCEL_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.CancelTaskResponse{
		TaskID:    taskID,
		Cancelled: cancelled,
	})
}

// ListTaskRuns handles GET /api/v1/tasks
func (h *TaskHandler) ListTaskRuns(c *gin.Context) {
	if h.runs == nil {
		middleware.AbortWithError(c, http.StatusNotImplemented, "NO_AUDIT_STORE", "Task run history requires a database")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filters := storage.TaskRunFilters{
		Tool:   c.Query("tool"),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if stateStr := c.Query("state"); stateStr != "" {
		state := models.TaskState(stateStr)
		filters.State = &state
	}

	runs, err := h.runs.List(c.Request.Context(), filters)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	responses := make([]dto.TaskRunResponse, len(runs))
	for i, run := range runs {
		responses[i] = dto.ToTaskRunResponse(run)
	}

	c.JSON(http.StatusOK, dto.TaskRunListResponse{
		Runs:       responses,
		Pagination: dto.NewPaginationMeta(page, pageSize, int64(len(responses))),
	})
}

// RegisterRoutes registers the task routes on the given group
func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tasks := rg.Group("/tasks")
	{
		tasks.POST("", h.SubmitTask)
		tasks.GET("", h.ListTaskRuns)
		tasks.GET("/:id", h.GetTask)
		tasks.DELETE("/:id", h.CancelTask)
	}
}
