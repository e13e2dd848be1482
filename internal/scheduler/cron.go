// Package scheduler triggers recurring parameter sweeps from cron
// schedules and enforces submission concurrency limits across
// orchestrator instances.
package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepRunner is invoked each time a scheduled sweep fires
type SweepRunner func(sweepID string, firedAt time.Time) error

// CronScheduler manages cron-based scheduling for sweep definitions
type CronScheduler struct {
	cron     *cron.Cron
	location *time.Location
	runner   SweepRunner
	entries  map[string]cron.EntryID // sweepID -> entryID
	mu       sync.RWMutex
}

// NewCronScheduler creates a new cron scheduler
func NewCronScheduler(location *time.Location, runner SweepRunner) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{
		cron:     cron.New(cron.WithLocation(location)),
		location: location,
		runner:   runner,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start starts the cron scheduler
func (cs *CronScheduler) Start() {
	cs.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to complete
func (cs *CronScheduler) Stop() {
	ctx := cs.cron.Stop()
	<-ctx.Done()
}

// AddSweep registers a sweep on the given cron schedule
func (cs *CronScheduler) AddSweep(sweepID, schedule string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.entries[sweepID]; exists {
		return fmt.Errorf("sweep %s is already registered", sweepID)
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %s: %w", schedule, err)
	}

	entryID, err := cs.cron.AddFunc(schedule, func() {
		firedAt := time.Now().In(cs.location)
		if err := cs.runner(sweepID, firedAt); err != nil {
			// A failed run must not stop the scheduler.
			log.Printf("Error running scheduled sweep %s: %v", sweepID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	cs.entries[sweepID] = entryID
	return nil
}

// RemoveSweep unregisters a sweep
func (cs *CronScheduler) RemoveSweep(sweepID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if entryID, exists := cs.entries[sweepID]; exists {
		cs.cron.Remove(entryID)
		delete(cs.entries, sweepID)
	}
}

// ScheduledSweeps returns all currently registered sweep ids
func (cs *CronScheduler) ScheduledSweeps() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	ids := make([]string, 0, len(cs.entries))
	for id := range cs.entries {
		ids = append(ids, id)
	}
	return ids
}

// NextExecution returns the next scheduled run time for a sweep
func (cs *CronScheduler) NextExecution(sweepID string) (*time.Time, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entryID, exists := cs.entries[sweepID]
	if !exists {
		return nil, fmt.Errorf("sweep %s is not registered", sweepID)
	}

	entry := cs.cron.Entry(entryID)
	if entry.ID == 0 {
		return nil, fmt.Errorf("entry not found for sweep %s", sweepID)
	}

	next := entry.Next
	return &next, nil
}

// MissedExecutions lists run times a schedule would have fired between
// start and end, capped at maxRuns
func (cs *CronScheduler) MissedExecutions(schedule string, start, end time.Time, maxRuns int) ([]time.Time, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	var executions []time.Time
	current := start
	for len(executions) < maxRuns {
		next := sched.Next(current)
		if next.After(end) {
			break
		}
		executions = append(executions, next)
		current = next
	}
	return executions, nil
}

// IsRegistered checks if a sweep is registered with the scheduler
func (cs *CronScheduler) IsRegistered(sweepID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, exists := cs.entries[sweepID]
	return exists
}

// UpdateSchedule replaces a sweep's schedule
func (cs *CronScheduler) UpdateSchedule(sweepID, newSchedule string) error {
	cs.RemoveSweep(sweepID)
	return cs.AddSweep(sweepID, newSchedule)
}
