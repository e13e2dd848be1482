package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type decisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a routing decision repository
func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) Create(ctx context.Context, model *DecisionModel) error {
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create routing decision: %w", err)
	}
	return nil
}

func (r *decisionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]DecisionModel, error) {
	query := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var decisions []DecisionModel
	if err := query.Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to list routing decisions: %w", err)
	}
	return decisions, nil
}

func (r *decisionRepository) ListRecent(ctx context.Context, limit int) ([]DecisionModel, error) {
	if limit <= 0 {
		limit = 50
	}

	var decisions []DecisionModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&decisions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list routing decisions: %w", err)
	}
	return decisions, nil
}
