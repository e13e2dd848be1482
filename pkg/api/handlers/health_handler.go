package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/internal/storage"
	"github.com/simflowlab/simflow/pkg/api/dto"
)

// QueueStatusProvider reports transport health; the NATS queue
// implements it, the in-memory queue does not need to.
type QueueStatusProvider interface {
	GetStatus() queue.Status
}

// HealthHandler handles health check requests
type HealthHandler struct {
	queue QueueStatusProvider
	db    *storage.DB
}

// NewHealthHandler creates a health handler. Both dependencies are
// optional and reported as "not configured" when nil.
func NewHealthHandler(q QueueStatusProvider, db *storage.DB) *HealthHandler {
	return &HealthHandler{queue: q, db: db}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	services := make(map[string]string)
	healthy := true
	workers := 0

	if h.queue != nil {
		status := h.queue.GetStatus()
		if status.Connected {
			services["queue"] = "healthy"
		} else {
			services["queue"] = "disconnected"
			healthy = false
		}
		workers = status.WorkerCount
	} else {
		services["queue"] = "not configured"
	}

	if h.db != nil {
		if err := h.db.Health(c.Request.Context()); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "not configured"
	}

	statusCode := http.StatusOK
	overall := "healthy"
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(statusCode, dto.HealthResponse{
		Status:   overall,
		Services: services,
		Workers:  workers,
	})
}

// RegisterRoutes registers the health route on the engine root
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
}
