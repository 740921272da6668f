package storage

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// defaultRuleLogLimit caps FindRuleLogsByRuleID when the caller passes a non-positive limit.
const defaultRuleLogLimit = 50

// CreateRuleLog appends an execution log entry.
func (r *PostgresRepo) CreateRuleLog(ctx context.Context, entry model.AutomationRuleLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = utils.Now()
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedInsert(ctx, "automation_rule_log", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to save automation rule log after retries",
			zap.String("rule_id", entry.RuleID),
			zap.String("result", entry.Result),
			zap.Error(err))
		return err
	}
	return nil
}

// FindRuleLogsByRuleID returns the newest log entries of a rule first.
func (r *PostgresRepo) FindRuleLogsByRuleID(ctx context.Context, ruleID string, limit int) ([]model.AutomationRuleLog, error) {
	if limit <= 0 {
		limit = defaultRuleLogLimit
	}

	var entries []model.AutomationRuleLog
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("rule_id = ?", ruleID).
			Order("executed_at DESC").
			Limit(limit).
			Find(&entries)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_by_rule_id", "automation_rule_log", operation); err != nil {
		return nil, err
	}
	return entries, nil
}
