package storage

import (
	"context"
	"log"
	"time"

	"github.com/simflowlab/simflow/internal/routing"
)

// PersistentDecisionLog writes routing decisions to the database. Failures
// are logged and swallowed: losing an audit row must never stall routing.
type PersistentDecisionLog struct {
	repo       DecisionRepository
	workflowID string
	timeout    time.Duration
}

// NewPersistentDecisionLog creates a decision log scoped to one workflow
func NewPersistentDecisionLog(repo DecisionRepository, workflowID string) *PersistentDecisionLog {
	return &PersistentDecisionLog{
		repo:       repo,
		workflowID: workflowID,
		timeout:    5 * time.Second,
	}
}

// Log persists a single routing decision
func (l *PersistentDecisionLog) Log(decision routing.Decision) {
	model, err := FromDecision(l.workflowID, decision)
	if err != nil {
		log.Printf("Failed to encode routing decision for workflow %s: %v", l.workflowID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.repo.Create(ctx, model); err != nil {
		log.Printf("Failed to persist routing decision for workflow %s: %v", l.workflowID, err)
	}
}
