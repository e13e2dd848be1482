// Package executor provides a bounded local worker pool for in-process
// fan-out, for work that does not need the remote queue. It offers two
// ordering contracts: ExecuteParallel collects results in completion
// order, ExecuteMap preserves input order.
package executor

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"
)

// Callable is one unit of local work
type Callable func(ctx context.Context) (map[string]interface{}, error)

// ResultStatus marks a TaskResult as succeeded or failed
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailed  ResultStatus = "failed"
)

// TaskResult is the outcome of one callable. Index refers to the
// position in the submitted slice, which matters for ExecuteParallel
// callers because the result slice itself is in completion order.
type TaskResult struct {
	Index    int                    `json:"index"`
	Status   ResultStatus           `json:"status"`
	Value    map[string]interface{} `json:"value,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration"`
}

// ResultCallback is invoked as each result arrives
type ResultCallback func(result TaskResult)

// PoolStatus is a snapshot of pool activity
type PoolStatus struct {
	Workers        int  `json:"workers"`
	Running        bool `json:"running"`
	ActiveTasks    int  `json:"active_tasks"`
	CompletedTasks int  `json:"completed_tasks"`
	FailedTasks    int  `json:"failed_tasks"`
	QueueDepth     int  `json:"queue_depth"`
}

type poolJob struct {
	index   int
	fn      Callable
	ctx     context.Context
	results chan<- TaskResult
}

// Pool is a fixed-size local worker pool. It must be closed after use;
// Close joins every worker goroutine.
type Pool struct {
	size int
	jobs chan poolJob
	wg   sync.WaitGroup

	// sendMu orders producer sends against Close so the jobs channel is
	// never closed with a send in flight
	sendMu sync.RWMutex

	mu     sync.Mutex
	closed bool
	status PoolStatus
}

// NewPool creates a pool with the given number of workers. A size of
// zero or less uses the host core count.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p := &Pool{
		size: size,
		jobs: make(chan poolJob, size*2),
		status: PoolStatus{
			Workers: size,
			Running: true,
		},
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.runJob(id, job)
	}
}

// runJob executes one callable, converting panics and errors into a
// failed result so one bad item never aborts the batch
func (p *Pool) runJob(workerID int, job poolJob) {
	p.mu.Lock()
	p.status.ActiveTasks++
	p.mu.Unlock()

	start := time.Now()
	result := TaskResult{Index: job.index}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Status = StatusFailed
				result.Error = fmt.Sprintf("panic: %v", r)
				log.Printf("Worker %d: task %d panicked: %v", workerID, job.index, r)
			}
		}()

		if err := job.ctx.Err(); err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			return
		}

		value, err := job.fn(job.ctx)
		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			return
		}
		result.Status = StatusSuccess
		result.Value = value
	}()

	result.Duration = time.Since(start)

	p.mu.Lock()
	p.status.ActiveTasks--
	if result.Status == StatusSuccess {
		p.status.CompletedTasks++
	} else {
		p.status.FailedTasks++
	}
	p.mu.Unlock()

	job.results <- result
}

// ExecuteParallel runs all callables on the pool and returns their
// results in completion order. A callable that errors or panics yields
// a failed result; the rest of the batch is unaffected. When timeout is
// positive the batch is abandoned at the deadline and the collected
// results are returned alongside a deadline error.
func (p *Pool) ExecuteParallel(ctx context.Context, tasks []Callable, callback ResultCallback, timeout time.Duration) ([]TaskResult, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make(chan TaskResult, len(tasks))

	go func() {
		for i, fn := range tasks {
			if !p.submit(poolJob{index: i, fn: fn, ctx: ctx, results: results}) {
				// Pool closed mid-batch: synthesize a failed result so
				// the collector still terminates.
				results <- TaskResult{Index: i, Status: StatusFailed, Error: "pool is closed"}
			}
		}
	}()

	collected := make([]TaskResult, 0, len(tasks))
	for len(collected) < len(tasks) {
		select {
		case r := <-results:
			collected = append(collected, r)
			if callback != nil {
				callback(r)
			}
		case <-ctx.Done():
			return collected, fmt.Errorf("parallel execution abandoned after %d of %d results: %w",
				len(collected), len(tasks), ctx.Err())
		}
	}

	return collected, nil
}

// ExecuteMap applies fn to every item and returns results in input
// order. This is the ordering counterpart to ExecuteParallel: both run
// on the same pool, but here result i always corresponds to item i.
func (p *Pool) ExecuteMap(ctx context.Context, fn func(ctx context.Context, item interface{}) (map[string]interface{}, error), items []interface{}, callback ResultCallback, timeout time.Duration) ([]TaskResult, error) {
	tasks := make([]Callable, len(items))
	for i, item := range items {
		item := item
		tasks[i] = func(ctx context.Context) (map[string]interface{}, error) {
			return fn(ctx, item)
		}
	}

	completed, err := p.ExecuteParallel(ctx, tasks, callback, timeout)
	if err != nil {
		return nil, err
	}

	ordered := make([]TaskResult, len(items))
	for _, r := range completed {
		ordered[r.Index] = r
	}
	return ordered, nil
}

// Status returns a snapshot of pool activity
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.status
	status.QueueDepth = len(p.jobs)
	return status
}

// submit enqueues a job unless the pool has been closed. Holding the
// read lock across the send keeps Close from closing the channel
// between the check and the send.
func (p *Pool) submit(job poolJob) bool {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return false
	}

	p.jobs <- job
	return true
}

func (p *Pool) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("pool is closed")
	}
	return nil
}

// Close stops accepting work and joins every worker goroutine. It is
// safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.status.Running = false
	p.mu.Unlock()

	p.sendMu.Lock()
	close(p.jobs)
	p.sendMu.Unlock()

	p.wg.Wait()
	return nil
}
