package workflow

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/simflowlab/simflow/internal/client"
	"github.com/simflowlab/simflow/internal/queue"
	"github.com/simflowlab/simflow/internal/retry"
	"github.com/simflowlab/simflow/pkg/models"
)

func newTestClient(q queue.Queue) *client.Client {
	return client.New(q, &client.Config{
		PollInterval: 2 * time.Millisecond,
		SubmitRetry:  &retry.Config{MaxAttempts: 1, Strategy: &retry.NoRetry{}},
	})
}

func specs(n int) []models.TaskSpec {
	out := make([]models.TaskSpec, n)
	for i := range out {
		out[i] = models.TaskSpec{Tool: "openfoam", Script: "run.sh"}
	}
	return out
}

func TestSubmitWorkflow_Parallel(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)

	ids, err := agg.SubmitWorkflow(context.Background(), specs(3), false)
	if err != nil {
		t.Fatalf("SubmitWorkflow failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 task ids, got %d", len(ids))
	}

	status, _ := agg.GetWorkflowStatus(context.Background(), ids)
	if status.Pending != 3 {
		t.Errorf("Pending = %d, want 3 (parallel mode must not wait)", status.Pending)
	}
}

func TestSubmitWorkflow_SequentialContinuesOnError(t *testing.T) {
	calls := 0
	q := queue.NewExecutingMemoryQueue(func(spec models.TaskSpec) (map[string]interface{}, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("solver diverged")
		}
		return map[string]interface{}{"ok": true}, nil
	}, time.Millisecond)
	defer q.Close()

	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)

	ids, err := agg.SubmitWorkflow(context.Background(), specs(3), true)
	if err != nil {
		t.Fatalf("Sequential workflow should continue past a failed step: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 task ids, got %d", len(ids))
	}

	status, _ := agg.GetWorkflowStatus(context.Background(), ids)
	if status.Completed != 2 || status.Failed != 1 {
		t.Errorf("counts = completed %d / failed %d, want 2/1", status.Completed, status.Failed)
	}
}

func TestSubmitWorkflow_SequentialStopsOnCriticalError(t *testing.T) {
	calls := 0
	q := queue.NewExecutingMemoryQueue(func(spec models.TaskSpec) (map[string]interface{}, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("solver killed: out of memory")
		}
		return map[string]interface{}{"ok": true}, nil
	}, time.Millisecond)
	defer q.Close()

	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)

	ids, err := agg.SubmitWorkflow(context.Background(), specs(3), true)
	if err == nil {
		t.Fatal("Sequential workflow should stop on a critical failure")
	}
	var remoteErr *models.RemoteExecutionError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("error should wrap the worker failure, got: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected 2 task ids before the stop, got %d", len(ids))
	}
	if calls != 2 {
		t.Errorf("executed %d tasks, want 2 (third step must not run)", calls)
	}
}

func TestGetWorkflowStatus_CountsInvariant(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(4), false)
	q.Complete(ids[0], nil, time.Second)
	q.Fail(ids[1], "boom", time.Second)

	status, err := agg.GetWorkflowStatus(ctx, ids)
	if err != nil {
		t.Fatalf("GetWorkflowStatus failed: %v", err)
	}

	if status.Completed != 1 || status.Failed != 1 || status.Pending != 2 {
		t.Errorf("counts = %+v", status)
	}
	if sum := status.Completed + status.Failed + status.Running + status.Pending; sum != status.Total {
		t.Errorf("Counts invariant broken: %d != %d", sum, status.Total)
	}
	if status.AllComplete {
		t.Error("AllComplete should be false with pending tasks")
	}
}

func TestWaitForWorkflow_Completes(t *testing.T) {
	q := queue.NewExecutingMemoryQueue(func(spec models.TaskSpec) (map[string]interface{}, error) {
		return nil, nil
	}, time.Millisecond)
	defer q.Close()

	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(3), false)

	polls := 0
	status, err := agg.WaitForWorkflow(ctx, ids, 2*time.Second, func(s *models.WorkflowStatus) {
		polls++
	})
	if err != nil {
		t.Fatalf("WaitForWorkflow failed: %v", err)
	}
	if !status.AllComplete || status.Completed != 3 {
		t.Errorf("status = %+v", status)
	}
	if polls == 0 {
		t.Error("Callback never invoked")
	}
}

func TestWaitForWorkflow_Timeout(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(2), false)

	status, err := agg.WaitForWorkflow(ctx, ids, 20*time.Millisecond, nil)
	if !models.IsTimeout(err) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if status == nil || status.AllComplete {
		t.Error("Timeout should still return the last partial view")
	}
}

func TestSubmitBatchWorkflow(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)

	var progress []BatchProgress
	ids, err := agg.SubmitBatchWorkflow(context.Background(), specs(7), 3, func(p BatchProgress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("SubmitBatchWorkflow failed: %v", err)
	}
	if len(ids) != 7 {
		t.Fatalf("Expected 7 ids, got %d", len(ids))
	}

	want := []BatchProgress{
		{BatchNum: 1, BatchSize: 3, Submitted: 3, Total: 7},
		{BatchNum: 2, BatchSize: 3, Submitted: 6, Total: 7},
		{BatchNum: 3, BatchSize: 1, Submitted: 7, Total: 7},
	}
	if len(progress) != len(want) {
		t.Fatalf("Expected %d progress callbacks, got %d", len(want), len(progress))
	}
	for i, p := range progress {
		if p != want[i] {
			t.Errorf("progress[%d] = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestSubmitBatchWorkflow_InvalidBatchSize(t *testing.T) {
	agg := NewAggregator(newTestClient(queue.NewMemoryQueue()), 2*time.Millisecond)

	_, err := agg.SubmitBatchWorkflow(context.Background(), specs(2), 0, nil)
	var confErr *models.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}

func TestParameterSweep(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)

	var seen []map[string]interface{}
	ids, err := agg.ParameterSweep(context.Background(), "su2", "airfoil.sh", map[string][]interface{}{
		"mach":  {0.3, 0.8},
		"alpha": {0, 5},
	}, func(taskID string, params map[string]interface{}) {
		seen = append(seen, params)
	})
	if err != nil {
		t.Fatalf("ParameterSweep failed: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("2x2 grid should submit 4 tasks, got %d", len(ids))
	}

	// alpha sorts before mach, so mach varies fastest.
	if seen[0]["alpha"] != 0 || seen[0]["mach"] != 0.3 {
		t.Errorf("First combination = %v", seen[0])
	}
	if seen[1]["alpha"] != 0 || seen[1]["mach"] != 0.8 {
		t.Errorf("Second combination = %v", seen[1])
	}
}

func TestWaitForAny(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(3), false)

	go func() {
		time.Sleep(15 * time.Millisecond)
		q.Complete(ids[1], nil, time.Second)
	}()

	result, err := agg.WaitForAny(ctx, ids, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForAny failed: %v", err)
	}
	if result.TaskID != ids[1] {
		t.Errorf("TaskID = %s, want %s", result.TaskID, ids[1])
	}
	if !result.Status.Ready {
		t.Error("Returned status should be ready")
	}
}

func TestWaitForAny_Timeout(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(2), false)

	start := time.Now()
	_, err := agg.WaitForAny(ctx, ids, 20*time.Millisecond)
	if !models.IsTimeout(err) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	// Must not overshoot the deadline by more than one poll interval
	// plus scheduling slack.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("WaitForAny overshot timeout: %v", elapsed)
	}
}

func TestGetParallelExecutionStats(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(2), false)
	q.Complete(ids[0], nil, 10*time.Second)
	q.Complete(ids[1], nil, 15*time.Second)

	stats, err := agg.GetParallelExecutionStats(ctx, ids)
	if err != nil {
		t.Fatalf("GetParallelExecutionStats failed: %v", err)
	}

	if stats.TotalDuration != 25*time.Second {
		t.Errorf("TotalDuration = %v, want 25s", stats.TotalDuration)
	}
	if stats.AvgDuration != 12500*time.Millisecond {
		t.Errorf("AvgDuration = %v, want 12.5s", stats.AvgDuration)
	}
	if stats.MaxDuration != 15*time.Second {
		t.Errorf("MaxDuration = %v, want 15s", stats.MaxDuration)
	}
	if math.Abs(stats.Speedup-25.0/15.0) > 1e-9 {
		t.Errorf("Speedup = %v, want ~1.67", stats.Speedup)
	}
	if math.Abs(stats.Efficiency-stats.Speedup/2) > 1e-9 {
		t.Errorf("Efficiency = %v", stats.Efficiency)
	}
}

func TestGetParallelExecutionStats_NoneCompleted(t *testing.T) {
	q := queue.NewMemoryQueue()
	agg := NewAggregator(newTestClient(q), 2*time.Millisecond)
	ctx := context.Background()

	ids, _ := agg.SubmitWorkflow(ctx, specs(2), false)
	q.Fail(ids[0], "boom", time.Second)

	stats, err := agg.GetParallelExecutionStats(ctx, ids)
	if err != nil {
		t.Fatalf("GetParallelExecutionStats failed: %v", err)
	}
	if stats.Speedup != 1.0 {
		t.Errorf("Speedup = %v, want 1.0 with zero completed", stats.Speedup)
	}
	if stats.TotalDuration != 0 || stats.AvgDuration != 0 || stats.MaxDuration != 0 {
		t.Errorf("Durations should all be zero: %+v", stats)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
}
