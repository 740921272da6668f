package storage

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

const insertBatchSize = 200

// InsertBatch bulk inserts a slice of engine models in one transaction. Used to load demo data.
func (r *PostgresRepo) InsertBatch(ctx context.Context, entity string, records interface{}) error {
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(records, insertBatchSize).Error
		}))
	}

	if err := observedWrite(ctx, "insert_batch", entity, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to insert batch after retries", zap.String("entity", entity), zap.Error(err))
		return err
	}
	return nil
}
