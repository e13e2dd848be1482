package dto

import (
	"github.com/simflowlab/simflow/pkg/models"
)

// SubmitWorkflowRequest is the payload for submitting a group of tasks
type SubmitWorkflowRequest struct {
	Tasks      []SubmitTaskRequest `json:"tasks" validate:"required,min=1,dive"`
	Sequential bool                `json:"sequential"`
	BatchSize  int                 `json:"batch_size" validate:"min=0"`
}

// ToSpecs converts the request tasks to task specs
func (r *SubmitWorkflowRequest) ToSpecs() []models.TaskSpec {
	specs := make([]models.TaskSpec, len(r.Tasks))
	for i, t := range r.Tasks {
		specs[i] = t.ToSpec()
	}
	return specs
}

// SweepRequest is the payload for submitting a parameter sweep
type SweepRequest struct {
	Tool   string                   `json:"tool" validate:"required"`
	Script string                   `json:"script" validate:"required"`
	Params map[string][]interface{} `json:"params" validate:"required"`
}

// SubmitWorkflowResponse acknowledges a submitted workflow
type SubmitWorkflowResponse struct {
	WorkflowID string   `json:"workflow_id"`
	TaskIDs    []string `json:"task_ids"`
}

// WorkflowStatusResponse is the aggregate view over a workflow's tasks
type WorkflowStatusResponse struct {
	WorkflowID  string                        `json:"workflow_id"`
	Total       int                           `json:"total"`
	Completed   int                           `json:"completed"`
	Failed      int                           `json:"failed"`
	Running     int                           `json:"running"`
	Pending     int                           `json:"pending"`
	AllComplete bool                          `json:"all_complete"`
	Tasks       map[string]TaskStatusResponse `json:"tasks"`
}

// ToWorkflowStatusResponse converts a domain workflow status to its API shape
func ToWorkflowStatusResponse(workflowID string, status *models.WorkflowStatus) WorkflowStatusResponse {
	tasks := make(map[string]TaskStatusResponse, len(status.Tasks))
	for id, ts := range status.Tasks {
		s := ts
		tasks[id] = ToTaskStatusResponse(&s)
	}

	return WorkflowStatusResponse{
		WorkflowID:  workflowID,
		Total:       status.Total,
		Completed:   status.Completed,
		Failed:      status.Failed,
		Running:     status.Running,
		Pending:     status.Pending,
		AllComplete: status.AllComplete,
		Tasks:       tasks,
	}
}

// ParallelStatsResponse summarizes parallel execution of a workflow
type ParallelStatsResponse struct {
	WorkflowID      string  `json:"workflow_id"`
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Running         int     `json:"running"`
	TotalDurationMS int64   `json:"total_duration_ms"`
	AvgDurationMS   int64   `json:"avg_duration_ms"`
	MaxDurationMS   int64   `json:"max_duration_ms"`
	Speedup         float64 `json:"speedup"`
	Efficiency      float64 `json:"efficiency"`
}

// ToParallelStatsResponse converts domain stats to their API shape
func ToParallelStatsResponse(workflowID string, stats *models.ParallelStats) ParallelStatsResponse {
	return ParallelStatsResponse{
		WorkflowID:      workflowID,
		Total:           stats.Total,
		Completed:       stats.Completed,
		Failed:          stats.Failed,
		Running:         stats.Running,
		TotalDurationMS: stats.TotalDuration.Milliseconds(),
		AvgDurationMS:   stats.AvgDuration.Milliseconds(),
		MaxDurationMS:   stats.MaxDuration.Milliseconds(),
		Speedup:         stats.Speedup,
		Efficiency:      stats.Efficiency,
	}
}
