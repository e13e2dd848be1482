package dto

import (
	"time"

	"github.com/simflowlab/simflow/pkg/models"
)

// SubmitTaskRequest is the payload for submitting a single task
type SubmitTaskRequest struct {
	Tool   string                 `json:"tool" validate:"required"`
	Script string                 `json:"script" validate:"required"`
	Params map[string]interface{} `json:"params"`
}

// ToSpec converts the request to a task spec
func (r *SubmitTaskRequest) ToSpec() models.TaskSpec {
	return models.TaskSpec{
		Tool:   r.Tool,
		Script: r.Script,
		Params: r.Params,
	}
}

// SubmitTaskResponse acknowledges a submitted task
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
}

// TaskStatusResponse is the uniform status view of one task
type TaskStatusResponse struct {
	TaskID     string                 `json:"task_id"`
	State      string                 `json:"state"`
	Ready      bool                   `json:"ready"`
	Successful *bool                  `json:"successful"`
	Progress   int                    `json:"progress"`
	Tool       string                 `json:"tool,omitempty"`
	Script     string                 `json:"script,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMS int64                  `json:"duration_ms,omitempty"`
}

// ToTaskStatusResponse converts a domain status to its API shape
func ToTaskStatusResponse(status *models.TaskStatus) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:     status.TaskID,
		State:      string(status.State),
		Ready:      status.Ready,
		Successful: status.Successful,
		Progress:   status.Progress,
		Tool:       status.Tool,
		Script:     status.Script,
		Result:     status.Result,
		Error:      status.Error,
		DurationMS: status.Duration.Milliseconds(),
	}
}

// CancelTaskResponse reports the outcome of a cancellation request
type CancelTaskResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message,omitempty"`
}

// TaskRunResponse is one persisted task run audit record
type TaskRunResponse struct {
	TaskID      string     `json:"task_id"`
	Tool        string     `json:"tool"`
	Script      string     `json:"script"`
	State       string     `json:"state"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ToTaskRunResponse converts a persisted task to its API shape
func ToTaskRunResponse(task *models.Task) TaskRunResponse {
	return TaskRunResponse{
		TaskID:      task.ID,
		Tool:        task.Spec.Tool,
		Script:      task.Spec.Script,
		State:       string(task.State),
		SubmittedAt: task.SubmittedAt,
		StartedAt:   task.StartedAt,
		FinishedAt:  task.FinishedAt,
	}
}

// TaskRunListResponse is a paginated list of task runs
type TaskRunListResponse struct {
	Runs       []TaskRunResponse `json:"runs"`
	Pagination PaginationMeta    `json:"pagination"`
}
