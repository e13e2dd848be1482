package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simflowlab/simflow/internal/routing"
	"github.com/simflowlab/simflow/pkg/models"
)

// TaskRunModel is the audit record of one submitted task
type TaskRunModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	Tool         string     `gorm:"type:varchar(100);not null;index:idx_task_runs_tool"`
	Script       string     `gorm:"type:varchar(500);not null"`
	Params       string     `gorm:"type:jsonb;default:'{}'"`
	State        string     `gorm:"type:varchar(50);not null;index:idx_task_runs_state"`
	ErrorMessage string     `gorm:"type:text"`
	WorkerID     string     `gorm:"type:varchar(200)"`
	DurationMS   int64      `gorm:"default:0"`
	SubmittedAt  time.Time  `gorm:"not null;index:idx_task_runs_submitted_at"`
	StartedAt    *time.Time ``
	FinishedAt   *time.Time ``
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for TaskRunModel
func (TaskRunModel) TableName() string {
	return "task_runs"
}

// NewTaskRunModel builds an audit record from a submitted spec
func NewTaskRunModel(taskID string, spec models.TaskSpec) (*TaskRunModel, error) {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task ID: %w", err)
	}

	params, err := json.Marshal(spec.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	return &TaskRunModel{
		ID:          id,
		Tool:        spec.Tool,
		Script:      spec.Script,
		Params:      string(params),
		State:       string(models.TaskStatePending),
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// ToTask converts the audit record back to the domain shape
func (m *TaskRunModel) ToTask() *models.Task {
	var params map[string]interface{}
	if m.Params != "" {
		json.Unmarshal([]byte(m.Params), &params)
	}

	return &models.Task{
		ID: m.ID.String(),
		Spec: models.TaskSpec{
			Tool:   m.Tool,
			Script: m.Script,
			Params: params,
		},
		State:       models.TaskState(m.State),
		SubmittedAt: m.SubmittedAt,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
}

// DecisionModel is the persisted form of one routing decision
type DecisionModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	WorkflowID    string    `gorm:"type:varchar(200);index:idx_decisions_workflow"`
	NextNode      string    `gorm:"type:varchar(200);not null"`
	Strategy      string    `gorm:"type:varchar(50);not null;index:idx_decisions_strategy"`
	Reason        string    `gorm:"type:text"`
	Metadata      string    `gorm:"type:jsonb;default:'{}'"`
	FallbackNodes string    `gorm:"type:jsonb;default:'[]'"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_decisions_created_at"`
}

// TableName specifies the table name for DecisionModel
func (DecisionModel) TableName() string {
	return "routing_decisions"
}

// FromDecision converts a routing decision to its persisted form
func FromDecision(workflowID string, d routing.Decision) (*DecisionModel, error) {
	metadata, err := json.Marshal(d.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	fallbacks, err := json.Marshal(d.FallbackNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fallback nodes: %w", err)
	}

	return &DecisionModel{
		WorkflowID:    workflowID,
		NextNode:      string(d.NextNode),
		Strategy:      string(d.Strategy),
		Reason:        d.Reason,
		Metadata:      string(metadata),
		FallbackNodes: string(fallbacks),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ToDecision converts the persisted form back to a routing decision
func (m *DecisionModel) ToDecision() routing.Decision {
	var metadata map[string]interface{}
	if m.Metadata != "" {
		json.Unmarshal([]byte(m.Metadata), &metadata)
	}
	var fallbacks []routing.NodeID
	if m.FallbackNodes != "" {
		json.Unmarshal([]byte(m.FallbackNodes), &fallbacks)
	}

	return routing.Decision{
		NextNode:      routing.NodeID(m.NextNode),
		Strategy:      routing.Strategy(m.Strategy),
		Reason:        m.Reason,
		Metadata:      metadata,
		FallbackNodes: fallbacks,
	}
}
