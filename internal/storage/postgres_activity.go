package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// CreateActivity appends an activity entry and returns the stored row.
func (r *PostgresRepo) CreateActivity(ctx context.Context, activity model.Activity) (*model.Activity, error) {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = utils.Now()
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&activity)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: create operation affected 0 rows", apperrors.ErrDatabase)
		}
		return nil
	}

	if err := observedInsert(ctx, "activity", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to create activity after retries",
			zap.String("entity_type", activity.EntityType),
			zap.String("entity_id", activity.EntityID),
			zap.Error(err))
		return nil, err
	}
	return &activity, nil
}

// ActivityExistsForEntitySince reports whether any activity was logged for the entity at or after since.
func (r *PostgresRepo) ActivityExistsForEntitySince(ctx context.Context, entityType, entityID string, since time.Time) (bool, error) {
	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Activity{}).
			Where("entity_type = ? AND entity_id = ? AND created_at >= ?", entityType, entityID, since).
			Count(&count)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "exists_since", "activity", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to check recent activities",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// FindLatestActivityForEntity returns the newest activity of an entity, or apperrors.ErrNotFound.
func (r *PostgresRepo) FindLatestActivityForEntity(ctx context.Context, entityType, entityID string) (*model.Activity, error) {
	var activity model.Activity
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("entity_type = ? AND entity_id = ?", entityType, entityID).
			Order("created_at DESC").
			First(&activity)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_latest", "activity", operation); err != nil {
		return nil, err
	}
	return &activity, nil
}
