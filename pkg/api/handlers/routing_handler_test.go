package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflowlab/simflow/internal/routing"
	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/api/handlers"
)

func newRoutingRouter(t *testing.T, logger routing.DecisionLogger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := routing.NewEngine(&routing.Config{Logger: logger})
	require.NoError(t, err)

	router := gin.New()
	handlers.NewRoutingHandler(engine, nil).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestEvaluateRoute(t *testing.T) {
	decisionLog := routing.NewMemoryLog()
	router := newRoutingRouter(t, decisionLog)

	w := postJSON(t, router, "/api/v1/routing/evaluate", dto.RouteRequest{
		CurrentNode: "solve",
		SuccessNode: "postprocess",
		ErrorNode:   "cleanup",
		NodeStatus:  map[string]string{"solve": "completed"},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "postprocess", resp.NextNode)
	assert.Equal(t, string(routing.StrategySuccessPath), resp.Strategy)

	// The shared engine must feed its configured decision logger.
	assert.Equal(t, 1, decisionLog.Len())
}

func TestEvaluateRouteCriticalError(t *testing.T) {
	router := newRoutingRouter(t, routing.NewMemoryLog())

	w := postJSON(t, router, "/api/v1/routing/evaluate", dto.RouteRequest{
		CurrentNode:   "solve",
		SuccessNode:   "postprocess",
		ErrorNode:     "cleanup",
		NodeStatus:    map[string]string{"solve": "failed"},
		ErrorSeverity: "critical",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(routing.Terminal), resp.NextNode)
}

func TestEvaluateRouteRejectsBadRequest(t *testing.T) {
	router := newRoutingRouter(t, nil)

	w := postJSON(t, router, "/api/v1/routing/evaluate", dto.RouteRequest{
		CurrentNode: "solve",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDecisionsWithoutStore(t *testing.T) {
	router := newRoutingRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/routing/decisions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
