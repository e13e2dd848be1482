// Package workflow composes many task lifecycles into a single
// aggregate view with blocking wait primitives, batch submission, and
// parameter sweep expansion. It builds entirely on the lifecycle
// client and introduces no remote I/O of its own.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/simflowlab/simflow/internal/client"
	"github.com/simflowlab/simflow/internal/errorhandling"
	"github.com/simflowlab/simflow/pkg/models"
)

// DefaultPollInterval is the delay between aggregate polls when the
// caller does not specify one
const DefaultPollInterval = 500 * time.Millisecond

// BatchProgress describes one submitted chunk of a batch workflow
type BatchProgress struct {
	BatchNum  int `json:"batch_num"`  // 1-based chunk index
	BatchSize int `json:"batch_size"` // size of this chunk
	Submitted int `json:"submitted"`  // running total submitted so far
	Total     int `json:"total"`      // total tasks across all chunks
}

// BatchCallback is invoked after each chunk of a batch workflow is
// submitted
type BatchCallback func(progress BatchProgress)

// WorkflowCallback receives the aggregate view on every poll of
// WaitForWorkflow
type WorkflowCallback func(status *models.WorkflowStatus)

// AnyResult identifies the first task observed ready by WaitForAny
type AnyResult struct {
	TaskID string
	Status *models.TaskStatus
}

// Aggregator provides workflow-level operations over a lifecycle client
type Aggregator struct {
	client       *client.Client
	pollInterval time.Duration
	classifier   *errorhandling.Classifier
}

// NewAggregator creates a workflow aggregator. A zero pollInterval uses
// the default.
func NewAggregator(c *client.Client, pollInterval time.Duration) *Aggregator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Aggregator{
		client:       c,
		pollInterval: pollInterval,
		classifier:   errorhandling.NewClassifier(),
	}
}

// SubmitWorkflow submits every task and returns their ids in input
// order. In sequential mode each task is waited on before the next is
// submitted; a failed task is classified and, under the
// continue-on-error policy, logged and skipped past. A failure of
// critical severity (out of memory, full disk, license loss) aborts the
// chain. In parallel mode tasks are submitted back to back without
// waiting.
func (a *Aggregator) SubmitWorkflow(ctx context.Context, specs []models.TaskSpec, sequential bool) ([]string, error) {
	taskIDs := make([]string, 0, len(specs))

	for i, spec := range specs {
		id, err := a.client.SubmitTask(ctx, spec.Tool, spec.Script, spec.Params)
		if err != nil {
			return taskIDs, fmt.Errorf("submitting task %d of %d: %w", i+1, len(specs), err)
		}
		taskIDs = append(taskIDs, id)

		if !sequential {
			continue
		}

		if _, err := a.client.WaitForTask(ctx, id, waitBudget(ctx)); err != nil {
			var remoteErr *models.RemoteExecutionError
			if !errors.As(err, &remoteErr) {
				// Not a worker-reported failure (context gone, queue
				// unreachable): nothing left to continue with.
				return taskIDs, err
			}

			severity := a.classifier.Classify(err)
			if !errorhandling.ShouldContinue(errorhandling.PolicyContinueOnError, severity) {
				return taskIDs, fmt.Errorf("sequential workflow stopped at step %d/%d on %s error: %w",
					i+1, len(specs), severity, err)
			}
			log.Printf("Sequential workflow: task %s (step %d/%d) failed with %s severity, continuing: %v",
				id, i+1, len(specs), severity, err)
		}
	}

	return taskIDs, nil
}

// waitBudget derives a per-task wait timeout from the context deadline,
// falling back to an effectively unbounded wait when none is set
func waitBudget(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 24 * time.Hour
}

// GetWorkflowStatus polls every task once and folds the snapshots into
// aggregate counts. Completed plus failed plus running plus pending
// always equals total.
func (a *Aggregator) GetWorkflowStatus(ctx context.Context, taskIDs []string) (*models.WorkflowStatus, error) {
	status := &models.WorkflowStatus{
		Total: len(taskIDs),
		Tasks: make(map[string]models.TaskStatus, len(taskIDs)),
	}

	for _, id := range taskIDs {
		ts, err := a.client.GetTaskStatus(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("polling task %s: %w", id, err)
		}
		status.Tasks[id] = *ts

		switch {
		case ts.Ready && ts.Successful != nil && *ts.Successful:
			status.Completed++
		case ts.Ready:
			status.Failed++
		case ts.State == models.TaskStateRunning:
			status.Running++
		default:
			status.Pending++
		}
	}

	status.AllComplete = status.Completed+status.Failed == status.Total
	return status, nil
}

// WaitForWorkflow polls the aggregate view until every task is terminal
// or the timeout elapses, invoking callback with each snapshot
func (a *Aggregator) WaitForWorkflow(ctx context.Context, taskIDs []string, timeout time.Duration, callback WorkflowCallback) (*models.WorkflowStatus, error) {
	deadline := time.Now().Add(timeout)

	for {
		status, err := a.GetWorkflowStatus(ctx, taskIDs)
		if err != nil {
			return nil, err
		}

		if callback != nil {
			callback(status)
		}

		if status.AllComplete {
			return status, nil
		}

		if time.Now().After(deadline) {
			return status, &models.TimeoutError{
				Operation: fmt.Sprintf("WaitForWorkflow(%d tasks)", len(taskIDs)),
				Timeout:   timeout,
			}
		}

		select {
		case <-ctx.Done():
			return status, fmt.Errorf("workflow wait cancelled: %w", ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}

// SubmitBatchWorkflow partitions specs into chunks of batchSize (the
// last chunk may be smaller), submits each chunk, and reports progress
// after every chunk
func (a *Aggregator) SubmitBatchWorkflow(ctx context.Context, specs []models.TaskSpec, batchSize int, callback BatchCallback) ([]string, error) {
	if batchSize <= 0 {
		return nil, &models.ConfigurationError{Parameter: "batchSize", Value: batchSize, Reason: "must be positive"}
	}

	taskIDs := make([]string, 0, len(specs))
	batchNum := 0

	for start := 0; start < len(specs); start += batchSize {
		end := start + batchSize
		if end > len(specs) {
			end = len(specs)
		}
		batchNum++

		for _, spec := range specs[start:end] {
			id, err := a.client.SubmitTask(ctx, spec.Tool, spec.Script, spec.Params)
			if err != nil {
				return taskIDs, fmt.Errorf("submitting batch %d: %w", batchNum, err)
			}
			taskIDs = append(taskIDs, id)
		}

		if callback != nil {
			callback(BatchProgress{
				BatchNum:  batchNum,
				BatchSize: end - start,
				Submitted: len(taskIDs),
				Total:     len(specs),
			})
		}
	}

	return taskIDs, nil
}

// SweepCallback is invoked once per submitted sweep combination
type SweepCallback func(taskID string, params map[string]interface{})

// ParameterSweep expands paramGrid into its cartesian product and
// submits one task per combination. Combinations are generated with
// keys in sorted order, last key varying fastest, so submission order
// is deterministic.
func (a *Aggregator) ParameterSweep(ctx context.Context, tool, script string, paramGrid map[string][]interface{}, callback SweepCallback) ([]string, error) {
	combos := ExpandGrid(paramGrid)

	taskIDs := make([]string, 0, len(combos))
	for _, params := range combos {
		id, err := a.client.SubmitTask(ctx, tool, script, params)
		if err != nil {
			return taskIDs, fmt.Errorf("submitting sweep combination %v: %w", params, err)
		}
		taskIDs = append(taskIDs, id)

		if callback != nil {
			callback(id, params)
		}
	}

	return taskIDs, nil
}

// WaitForAny polls every task each round and returns as soon as any one
// is ready. If the deadline passes with none ready it returns a
// TimeoutError.
func (a *Aggregator) WaitForAny(ctx context.Context, taskIDs []string, timeout time.Duration) (*AnyResult, error) {
	deadline := time.Now().Add(timeout)

	for {
		for _, id := range taskIDs {
			status, err := a.client.GetTaskStatus(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("polling task %s: %w", id, err)
			}
			if status.Ready {
				return &AnyResult{TaskID: id, Status: status}, nil
			}
		}

		if time.Now().After(deadline) {
			return nil, &models.TimeoutError{
				Operation: fmt.Sprintf("No task completed among %d", len(taskIDs)),
				Timeout:   timeout,
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait-any cancelled: %w", ctx.Err())
		case <-time.After(a.pollInterval):
		}
	}
}

// GetParallelExecutionStats summarizes durations across the task set.
// Speedup compares the summed duration of completed tasks against the
// critical path (the longest single task); efficiency divides that by
// the completed count. With zero completed tasks speedup is 1.0 and all
// durations are zero.
func (a *Aggregator) GetParallelExecutionStats(ctx context.Context, taskIDs []string) (*models.ParallelStats, error) {
	stats := &models.ParallelStats{
		Total:   len(taskIDs),
		Speedup: 1.0,
	}

	for _, id := range taskIDs {
		ts, err := a.client.GetTaskStatus(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("polling task %s: %w", id, err)
		}

		switch {
		case ts.Ready && ts.Successful != nil && *ts.Successful:
			stats.Completed++
			stats.TotalDuration += ts.Duration
			if ts.Duration > stats.MaxDuration {
				stats.MaxDuration = ts.Duration
			}
		case ts.Ready:
			stats.Failed++
		case ts.State == models.TaskStateRunning:
			stats.Running++
		}
	}

	if stats.Completed > 0 {
		stats.AvgDuration = stats.TotalDuration / time.Duration(stats.Completed)
		if stats.MaxDuration > 0 {
			stats.Speedup = float64(stats.TotalDuration) / float64(stats.MaxDuration)
		}
		stats.Efficiency = stats.Speedup / float64(stats.Completed)
	}

	return stats, nil
}
