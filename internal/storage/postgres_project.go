package storage

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// FindProjectsByStatus returns every project in the given status, owned or not.
func (r *PostgresRepo) FindProjectsByStatus(ctx context.Context, status string) ([]model.Project, error) {
	var projects []model.Project
	operation := func() error {
		result := r.db.WithContext(ctx).Where("status = ?", status).Find(&projects)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_by_status", "project", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to find projects by status after retries",
			zap.String("status", status),
			zap.Error(err))
		return nil, err
	}
	return projects, nil
}
