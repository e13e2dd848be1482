package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simflowlab/simflow/pkg/models"
)

// HistoryEntry records one task state change
type HistoryEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	TaskID    uuid.UUID `gorm:"type:uuid;not null;index:idx_task_history_task" json:"task_id"`
	OldState  *string   `gorm:"type:varchar(50)" json:"old_state"`
	NewState  string    `gorm:"type:varchar(50);not null" json:"new_state"`
	ChangedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_task_history_changed_at" json:"changed_at"`
}

// TableName specifies the table name for HistoryEntry
func (HistoryEntry) TableName() string {
	return "task_state_history"
}

// HistoryTracker persists state changes to a database
type HistoryTracker struct {
	db *gorm.DB
}

// NewHistoryTracker creates a new history tracker
func NewHistoryTracker(db *gorm.DB) *HistoryTracker {
	return &HistoryTracker{db: db}
}

// Record appends a state change to the history table
func (h *HistoryTracker) Record(ctx context.Context, taskID string, oldState, newState models.TaskState) error {
	taskUUID, err := uuid.Parse(taskID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}

	var oldStateStr *string
	if oldState != "" {
		str := string(oldState)
		oldStateStr = &str
	}

	entry := HistoryEntry{
		TaskID:    taskUUID,
		OldState:  oldStateStr,
		NewState:  string(newState),
		ChangedAt: time.Now().UTC(),
	}

	if err := h.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record state history: %w", err)
	}
	return nil
}

// GetHistory retrieves state history for a task, newest first
func (h *HistoryTracker) GetHistory(ctx context.Context, taskID string, limit int) ([]HistoryEntry, error) {
	taskUUID, err := uuid.Parse(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task ID: %w", err)
	}

	var entries []HistoryEntry
	query := h.db.WithContext(ctx).
		Where("task_id = ?", taskUUID).
		Order("changed_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get state history: %w", err)
	}
	return entries, nil
}

// GetRecentHistory retrieves recent state changes across all tasks
func (h *HistoryTracker) GetRecentHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	query := h.db.WithContext(ctx).Order("changed_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent history: %w", err)
	}
	return entries, nil
}

// HistoryPublisher records state change events to the history tracker
type HistoryPublisher struct {
	tracker *HistoryTracker
}

// NewHistoryPublisher creates a new history publisher
func NewHistoryPublisher(db *gorm.DB) *HistoryPublisher {
	return &HistoryPublisher{
		tracker: NewHistoryTracker(db),
	}
}

// Publish records a state change event to the history
func (p *HistoryPublisher) Publish(event TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.tracker.Record(ctx, event.TaskID, event.OldState, event.NewState)
}
