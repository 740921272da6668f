package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// CreateNotification inserts an unread notification and returns the stored row.
func (r *PostgresRepo) CreateNotification(ctx context.Context, notification model.Notification) (*model.Notification, error) {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = utils.Now()
	}
	notification.ReadAt = nil

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&notification)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: create operation affected 0 rows", apperrors.ErrDatabase)
		}
		return nil
	}

	if err := observedInsert(ctx, "notification", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to create notification after retries",
			zap.String("user_profile_id", notification.UserProfileID),
			zap.String("entity_id", notification.EntityID),
			zap.Error(err))
		return nil, err
	}
	return &notification, nil
}
