package dto

import (
	"time"

	"github.com/simflowlab/simflow/internal/dlq"
)

// DeadLetterResponse is one failed task held in the dead letter queue
type DeadLetterResponse struct {
	TaskID       string     `json:"task_id"`
	Tool         string     `json:"tool"`
	Script       string     `json:"script"`
	State        string     `json:"state"`
	ErrorMessage string     `json:"error_message"`
	FailureTime  time.Time  `json:"failure_time"`
	Attempts     int        `json:"attempts"`
	Replayed     bool       `json:"replayed"`
	ReplayedAt   *time.Time `json:"replayed_at,omitempty"`
	ReplayTaskID string     `json:"replay_task_id,omitempty"`
}

// ToDeadLetterResponse converts a DLQ entry to its API shape
func ToDeadLetterResponse(entry *dlq.Entry) DeadLetterResponse {
	return DeadLetterResponse{
		TaskID:       entry.TaskID,
		Tool:         entry.Spec.Tool,
		Script:       entry.Spec.Script,
		State:        string(entry.State),
		ErrorMessage: entry.ErrorMessage,
		FailureTime:  entry.FailureTime,
		Attempts:     entry.Attempts,
		Replayed:     entry.Replayed,
		ReplayedAt:   entry.ReplayedAt,
		ReplayTaskID: entry.ReplayTaskID,
	}
}

// DeadLetterListResponse is the list of dead letter entries
type DeadLetterListResponse struct {
	Entries []DeadLetterResponse `json:"entries"`
	Count   int                  `json:"count"`
}

// ReplayResponse acknowledges a replayed dead letter
type ReplayResponse struct {
	OriginalTaskID string `json:"original_task_id"`
	ReplayTaskID   string `json:"replay_task_id"`
}
