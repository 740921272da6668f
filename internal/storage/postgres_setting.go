package storage

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// FindSetting fetches a setting by key, or apperrors.ErrNotFound.
func (r *PostgresRepo) FindSetting(ctx context.Context, key string) (*model.Setting, error) {
	var setting model.Setting
	operation := func() error {
		result := r.db.WithContext(ctx).Where(&model.Setting{Key: key}).First(&setting)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_by_key", "setting", operation); err != nil {
		return nil, err
	}
	return &setting, nil
}

// UpsertSetting writes a setting, replacing the value of an existing key.
func (r *PostgresRepo) UpsertSetting(ctx context.Context, key, value string) error {
	setting := model.Setting{Key: key, Value: value, UpdatedAt: utils.Now()}
	operation := func() error {
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).
			Create(&setting)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedWrite(ctx, "upsert", "setting", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to upsert setting", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
