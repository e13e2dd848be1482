package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simflowlab/simflow/pkg/models"
)

type taskRunRepository struct {
	db *gorm.DB
}

// NewTaskRunRepository creates a task run audit repository
func NewTaskRunRepository(db *gorm.DB) TaskRunRepository {
	return &taskRunRepository{db: db}
}

func (r *taskRunRepository) Create(ctx context.Context, taskID string, spec models.TaskSpec) error {
	model, err := NewTaskRunModel(taskID, spec)
	if err != nil {
		return fmt.Errorf("failed to build task run record: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create task run: %w", err)
	}
	return nil
}

func (r *taskRunRepository) Get(ctx context.Context, taskID string) (*models.Task, error) {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return nil, fmt.Errorf("invalid task ID: %w", err)
	}

	var model TaskRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task run: %w", err)
	}

	return model.ToTask(), nil
}

func (r *taskRunRepository) List(ctx context.Context, filters TaskRunFilters) ([]*models.Task, error) {
	query := r.db.WithContext(ctx).Model(&TaskRunModel{})

	if filters.Tool != "" {
		query = query.Where("tool = ?", filters.Tool)
	}
	if filters.State != nil {
		query = query.Where("state = ?", string(*filters.State))
	}
	if filters.After != nil {
		query = query.Where("submitted_at > ?", *filters.After)
	}
	if filters.Before != nil {
		query = query.Where("submitted_at < ?", *filters.Before)
	}

	query = query.Order("submitted_at DESC")

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var runModels []TaskRunModel
	if err := query.Find(&runModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}

	tasks := make([]*models.Task, len(runModels))
	for i, m := range runModels {
		tasks[i] = m.ToTask()
	}
	return tasks, nil
}

func (r *taskRunRepository) RecordStarted(ctx context.Context, taskID, workerID string, startedAt time.Time) error {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}

	result := r.db.WithContext(ctx).Model(&TaskRunModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":      string(models.TaskStateRunning),
			"worker_id":  workerID,
			"started_at": startedAt,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record start: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRunRepository) RecordFinished(ctx context.Context, taskID string, state models.TaskState, errMsg string, finishedAt time.Time) error {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}

	updates := map[string]interface{}{
		"state":         string(state),
		"error_message": errMsg,
		"finished_at":   finishedAt,
		"updated_at":    time.Now().UTC(),
	}

	// Derive duration when the start was recorded.
	var model TaskRunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err == nil && model.StartedAt != nil {
		updates["duration_ms"] = finishedAt.Sub(*model.StartedAt).Milliseconds()
	}

	result := r.db.WithContext(ctx).Model(&TaskRunModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to record finish: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRunRepository) Delete(ctx context.Context, taskID string) error {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&TaskRunModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
