package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simflowlab/simflow/internal/client"
	"github.com/simflowlab/simflow/internal/dlq"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/middleware"
	"github.com/simflowlab/simflow/pkg/models"
)

// DeadLetterHandler handles dead letter queue HTTP requests
type DeadLetterHandler struct {
	letters dlq.Queue
	client  *client.Client
}

// NewDeadLetterHandler creates a dead letter handler
func NewDeadLetterHandler(letters dlq.Queue, c *client.Client) *DeadLetterHandler {
	return &DeadLetterHandler{letters: letters, client: c}
}

// ListDeadLetters handles GET /api/v1/deadletters
func (h *DeadLetterHandler) ListDeadLetters(c *gin.Context) {
	filters := &dlq.Filters{
		Tool: c.Query("tool"),
	}
	if stateStr := c.Query("state"); stateStr != "" {
		filters.State = models.TaskState(stateStr)
	}
	if replayedStr := c.Query("replayed"); replayedStr != "" {
		replayed := replayedStr == "true"
		filters.Replayed = &replayed
	}

	entries, err := h.letters.List(c.Request.Context(), filters)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	responses := make([]dto.DeadLetterResponse, len(entries))
	for i, entry := range entries {
		responses[i] = dto.ToDeadLetterResponse(entry)
	}

	c.JSON(http.StatusOK, dto.DeadLetterListResponse{
		Entries: responses,
		Count:   len(responses),
	})
}

// GetDeadLetter handles GET /api/v1/deadletters/:id
func (h *DeadLetterHandler) GetDeadLetter(c *gin.Context) {
	taskID := c.Param("id")

	entry, err := h.letters.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, dlq.ErrNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, "ENTRY_NOT_FOUND", "Dead letter not found: "+taskID)
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.ToDeadLetterResponse(entry))
}

// ReplayDeadLetter handles POST /api/v1/deadletters/:id/replay
func (h *DeadLetterHandler) ReplayDeadLetter(c *gin.Context) {
	taskID := c.Param("id")

	entry, err := h.letters.Get(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, dlq.ErrNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, "ENTRY_NOT_FOUND", "Dead letter not found: "+taskID)
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	if entry.Replayed {
		middleware.AbortWithError(c, http.StatusConflict, "ALREADY_REPLAYED", "Dead letter already replayed as "+entry.ReplayTaskID)
		return
	}

	replayID, err := h.client.SubmitTask(c.Request.Context(), entry.Spec.Tool, entry.Spec.Script, entry.Spec.Params)
	if err != nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, "REPLAY_FAILED", err.Error())
		return
	}

	if err := h.letters.MarkReplayed(c.Request.Context(), taskID, replayID); err != nil {
		_ = c.Error(err)
	}

	c.JSON(http.StatusAccepted, dto.ReplayResponse{
		OriginalTaskID: taskID,
		ReplayTaskID:   replayID,
	})
}

// DeleteDeadLetter handles DELETE /api/v1/deadletters/:id
func (h *DeadLetterHandler) DeleteDeadLetter(c *gin.Context) {
	taskID := c.Param("id")

	if err := h.letters.Delete(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, dlq.ErrNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, "ENTRY_NOT_FOUND", "Dead letter not found: "+taskID)
			return
		}
		middleware.AbortWithError(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: true,
		Message: "Dead letter deleted",
	})
}

// RegisterRoutes registers the dead letter routes on the given group
func (h *DeadLetterHandler) RegisterRoutes(rg *gin.RouterGroup) {
	letters := rg.Group("/deadletters")
	{
		letters.GET("", h.ListDeadLetters)
		letters.GET("/:id", h.GetDeadLetter)
		letters.POST("/:id/replay", h.ReplayDeadLetter)
		letters.DELETE("/:id", h.DeleteDeadLetter)
	}
}
