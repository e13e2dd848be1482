package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflowlab/simflow/internal/dlq"
	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/handlers"
	"github.com/simflowlab/simflow/pkg/models"
)

func newDeadLetterRouter(letters dlq.Queue, q queue.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := handlers.NewDeadLetterHandler(letters, newTestClient(q))
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func seedDeadLetter(t *testing.T, letters dlq.Queue, taskID string) {
	t.Helper()
	err := letters.Add(context.Background(), &dlq.Entry{
		TaskID: taskID,
		Spec: models.TaskSpec{
			Tool:   "openfoam",
			Script: "cavity.sh",
		},
		State:           models.TaskStateFailure,
		FailureTime:     time.Now().UTC(),
		Attempts:        1,
		LastAttemptTime: time.Now().UTC(),
		ErrorMessage:    "solver diverged",
	})
	require.NoError(t, err)
}

func TestListDeadLetters(t *testing.T) {
	letters := dlq.NewMemoryQueue()
	router := newDeadLetterRouter(letters, queue.NewMemoryQueue())

	seedDeadLetter(t, letters, "task-1")
	seedDeadLetter(t, letters, "task-2")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deadletters", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.DeadLetterListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestGetDeadLetterNotFound(t *testing.T) {
	router := newDeadLetterRouter(dlq.NewMemoryQueue(), queue.NewMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deadletters/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplayDeadLetter(t *testing.T) {
	letters := dlq.NewMemoryQueue()
	q := queue.NewMemoryQueue()
	router := newDeadLetterRouter(letters, q)

	seedDeadLetter(t, letters, "task-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deadletters/task-1/replay", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.ReplayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.OriginalTaskID)
	assert.NotEmpty(t, resp.ReplayTaskID)

	entry, err := letters.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.True(t, entry.Replayed)
	assert.Equal(t, resp.ReplayTaskID, entry.ReplayTaskID)

	// Replaying twice is rejected.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/deadletters/task-1/replay", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteDeadLetter(t *testing.T) {
	letters := dlq.NewMemoryQueue()
	router := newDeadLetterRouter(letters, queue.NewMemoryQueue())

	seedDeadLetter(t, letters, "task-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/deadletters/task-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deadletters/task-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthWithoutDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers.NewHealthHandler(nil, nil).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "not configured", resp.Services["queue"])
	assert.Equal(t, "not configured", resp.Services["database"])
}
