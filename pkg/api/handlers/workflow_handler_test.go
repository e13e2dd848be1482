package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/internal/workflow"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/handlers"
)

func newWorkflowRouter(q queue.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	agg := workflow.NewAggregator(newTestClient(q), 5*time.Millisecond)
	handler := handlers.NewWorkflowHandler(agg)
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSubmitWorkflow(t *testing.T) {
	q := queue.NewMemoryQueue()
	router := newWorkflowRouter(q)

	w := postJSON(t, router, "/api/v1/workflows", dto.SubmitWorkflowRequest{
		Tasks: []dto.SubmitTaskRequest{
			{Tool: "openfoam", Script: "case_a.sh"},
			{Tool: "openfoam", Script: "case_b.sh"},
		},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.SubmitWorkflowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.WorkflowID)
	assert.Len(t, resp.TaskIDs, 2)
}

func TestSubmitWorkflowRequiresTasks(t *testing.T) {
	router := newWorkflowRouter(queue.NewMemoryQueue())

	w := postJSON(t, router, "/api/v1/workflows", dto.SubmitWorkflowRequest{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowStatus(t *testing.T) {
	q := queue.NewMemoryQueue()
	router := newWorkflowRouter(q)

	w := postJSON(t, router, "/api/v1/workflows", dto.SubmitWorkflowRequest{
		Tasks: []dto.SubmitTaskRequest{
			{Tool: "su2", Script: "a.sh"},
			{Tool: "su2", Script: "b.sh"},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitted dto.SubmitWorkflowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	// One task completes, one fails.
	require.NoError(t, q.Complete(submitted.TaskIDs[0], map[string]interface{}{"residual": 1e-6}, time.Second))
	require.NoError(t, q.Fail(submitted.TaskIDs[1], "solver diverged", time.Second))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+submitted.WorkflowID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status dto.WorkflowStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 1, status.Failed)
	assert.True(t, status.AllComplete)
}

func TestWorkflowStatusNotFound(t *testing.T) {
	router := newWorkflowRouter(queue.NewMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitSweep(t *testing.T) {
	q := queue.NewMemoryQueue()
	router := newWorkflowRouter(q)

	w := postJSON(t, router, "/api/v1/workflows/sweep", dto.SweepRequest{
		Tool:   "su2",
		Script: "airfoil.sh",
		Params: map[string][]interface{}{
			"alpha": {0.0, 2.0},
			"mach":  {0.3, 0.5},
		},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.SubmitWorkflowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.TaskIDs, 4)
}

func TestSubmitSweepEmptyAxis(t *testing.T) {
	router := newWorkflowRouter(queue.NewMemoryQueue())

	w := postJSON(t, router, "/api/v1/workflows/sweep", dto.SweepRequest{
		Tool:   "su2",
		Script: "airfoil.sh",
		Params: map[string][]interface{}{
			"alpha": {},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowStats(t *testing.T) {
	q := queue.NewMemoryQueue()
	router := newWorkflowRouter(q)

	w := postJSON(t, router, "/api/v1/workflows", dto.SubmitWorkflowRequest{
		Tasks: []dto.SubmitTaskRequest{
			{Tool: "su2", Script: "a.sh"},
			{Tool: "su2", Script: "b.sh"},
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitted dto.SubmitWorkflowResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	require.NoError(t, q.Complete(submitted.TaskIDs[0], nil, 10*time.Second))
	require.NoError(t, q.Complete(submitted.TaskIDs[1], nil, 15*time.Second))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+submitted.WorkflowID+"/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats dto.ParallelStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, int64(25000), stats.TotalDurationMS)
	assert.Equal(t, int64(15000), stats.MaxDurationMS)
	assert.InDelta(t, 25.0/15.0, stats.Speedup, 1e-9)
	assert.InDelta(t, 25.0/15.0/2.0, stats.Efficiency, 1e-9)
}
