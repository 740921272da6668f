package storage

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// --- Lead Repository Methods ---

// FindLeadsByStageWithOwner returns leads in the given stage that have an owner assigned.
func (r *PostgresRepo) FindLeadsByStageWithOwner(ctx context.Context, stage string) ([]model.Lead, error) {
	var leads []model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("stage = ? AND owner_id IS NOT NULL", stage).
			Find(&leads)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_by_stage", "lead", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to find leads by stage after retries",
			zap.String("stage", stage),
			zap.Error(err))
		return nil, err
	}
	return leads, nil
}
