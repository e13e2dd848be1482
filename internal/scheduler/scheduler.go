package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simflowlab/simflow/internal/sweep"
	"github.com/simflowlab/simflow/internal/workflow"
)

// Config holds scheduler configuration
type Config struct {
	// DispatchInterval is how often deferred runs are retried
	DispatchInterval time.Duration

	// DefaultTimezone is the default timezone for cron schedules
	DefaultTimezone string

	// LockPrefix namespaces the distributed locks for scheduled runs
	LockPrefix string
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		DispatchInterval: 10 * time.Second,
		DefaultTimezone:  "UTC",
		LockPrefix:       "simflow:sweep-run:",
	}
}

// Scheduler fires registered sweep definitions on their cron schedules.
// Runs that don't fit under the concurrency limits are parked in a
// priority queue and dispatched when slots free up.
type Scheduler struct {
	config         *Config
	aggregator     *workflow.Aggregator
	cronScheduler  *CronScheduler
	concurrencyMgr *ConcurrencyManager
	runQueue       *RunQueue

	sweeps map[string]*sweep.Definition

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler over the given aggregator and concurrency
// manager
func New(config *Config, aggregator *workflow.Aggregator, concurrencyMgr *ConcurrencyManager) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		config:         config,
		aggregator:     aggregator,
		concurrencyMgr: concurrencyMgr,
		runQueue:       NewRunQueue(),
		sweeps:         make(map[string]*sweep.Definition),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Register adds a sweep definition and, if it carries a schedule and is
// not paused, arms its cron entry
func (s *Scheduler) Register(def *sweep.Definition) error {
	s.mu.Lock()
	s.sweeps[def.ID] = def
	s.mu.Unlock()

	if def.Schedule == "" || def.IsPaused {
		return nil
	}
	if s.cronScheduler == nil {
		return nil // armed on Start
	}
	return s.cronScheduler.AddSweep(def.ID, def.Schedule)
}

// Unregister removes a sweep definition and its cron entry
func (s *Scheduler) Unregister(sweepID string) {
	s.mu.Lock()
	delete(s.sweeps, sweepID)
	s.mu.Unlock()

	if s.cronScheduler != nil {
		s.cronScheduler.RemoveSweep(sweepID)
	}
}

// Start arms the cron entries and begins dispatching deferred runs
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	log.Println("Starting scheduler...")

	location, err := time.LoadLocation(s.config.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	s.cronScheduler = NewCronScheduler(location, s.onSweepFired)

	for id, def := range s.sweeps {
		if def.Schedule == "" || def.IsPaused {
			continue
		}
		if err := s.cronScheduler.AddSweep(id, def.Schedule); err != nil {
			return fmt.Errorf("failed to register sweep %s: %w", id, err)
		}
	}

	s.cronScheduler.Start()
	s.running = true

	s.wg.Add(1)
	go s.dispatchLoop()

	log.Println("Scheduler started successfully")
	return nil
}

// Stop stops the cron entries and the dispatch loop
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// onSweepFired is the cron callback: it launches the sweep immediately
// when a slot is free, otherwise parks it in the run queue
func (s *Scheduler) onSweepFired(sweepID string, firedAt time.Time) error {
	s.mu.RLock()
	def, ok := s.sweeps[sweepID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("sweep %s is not registered", sweepID)
	}

	run := &QueuedRun{
		RunID:      uuid.New().String(),
		SweepID:    sweepID,
		Tool:       def.Tool,
		FiredAt:    firedAt,
		Priority:   PriorityMedium,
		EnqueuedAt: time.Now(),
	}

	if !s.concurrencyMgr.CanSchedule(def.Tool) {
		log.Printf("Sweep %s deferred: no %s slots available", sweepID, def.Tool)
		s.runQueue.Push(run)
		return nil
	}

	return s.launch(run, def)
}

// dispatchLoop periodically retries deferred runs
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDeferred()
		}
	}
}

func (s *Scheduler) dispatchDeferred() {
	for {
		next := s.runQueue.Peek()
		if next == nil {
			return
		}
		if !s.concurrencyMgr.CanSchedule(next.Tool) {
			return
		}

		run := s.runQueue.Pop()
		if run == nil {
			return
		}

		s.mu.RLock()
		def, ok := s.sweeps[run.SweepID]
		s.mu.RUnlock()
		if !ok {
			// Unregistered while deferred; drop it.
			continue
		}

		if err := s.launch(run, def); err != nil {
			log.Printf("Failed to launch deferred sweep run %s: %v", run.RunID, err)
		}
	}
}

// launch submits one sweep run, holding a concurrency slot and a
// distributed lock for its duration. The lock keys on sweep id and fire
// time, so two scheduler instances firing the same schedule submit only
// once.
func (s *Scheduler) launch(run *QueuedRun, def *sweep.Definition) error {
	lockKey := fmt.Sprintf("%s%s:%d", s.config.LockPrefix, run.SweepID, run.FiredAt.Unix())
	if acquired, err := s.concurrencyMgr.AcquireDistributedLock(lockKey); err == nil && !acquired {
		log.Printf("Sweep run %s already claimed by another scheduler", run.RunID)
		return nil
	}

	if err := s.concurrencyMgr.Acquire(def.Tool); err != nil {
		s.runQueue.Push(run)
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.concurrencyMgr.Release(def.Tool)

		taskIDs, err := s.aggregator.ParameterSweep(s.ctx, def.Tool, def.Script, def.Params, nil)
		if err != nil {
			log.Printf("Sweep run %s (%s) failed to submit: %v", run.RunID, def.ID, err)
			return
		}
		log.Printf("Sweep run %s (%s) submitted %d tasks", run.RunID, def.ID, len(taskIDs))
	}()

	return nil
}

// QueuedRuns returns the deferred runs waiting for slots
func (s *Scheduler) QueuedRuns() []*QueuedRun {
	return s.runQueue.Items()
}
