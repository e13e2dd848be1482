package storage

import (
	"context"
	"time"

	"github.com/simflowlab/simflow/pkg/models"
)

// TaskRunRepository persists the audit trail of submitted tasks
type TaskRunRepository interface {
	Create(ctx context.Context, taskID string, spec models.TaskSpec) error
	Get(ctx context.Context, taskID string) (*models.Task, error)
	List(ctx context.Context, filters TaskRunFilters) ([]*models.Task, error)
	RecordStarted(ctx context.Context, taskID, workerID string, startedAt time.Time) error
	RecordFinished(ctx context.Context, taskID string, state models.TaskState, errMsg string, finishedAt time.Time) error
	Delete(ctx context.Context, taskID string) error
}

// TaskRunFilters defines filters for listing task runs
type TaskRunFilters struct {
	Tool   string
	State  *models.TaskState
	After  *time.Time
	Before *time.Time
	Limit  int
	Offset int
}

// DecisionRepository persists routing decisions for later inspection
type DecisionRepository interface {
	Create(ctx context.Context, model *DecisionModel) error
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]DecisionModel, error)
	ListRecent(ctx context.Context, limit int) ([]DecisionModel, error)
}
