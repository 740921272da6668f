package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// --- Automation Rule Repository Methods ---

// FindActiveRulesByTrigger loads active rules for a trigger type, oldest first.
func (r *PostgresRepo) FindActiveRulesByTrigger(ctx context.Context, triggerType string) ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("trigger_type = ? AND is_active = ?", triggerType, true).
			Order("created_at ASC").
			Find(&rules)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_active_by_trigger", "automation_rule", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to load active automation rules",
			zap.String("trigger_type", triggerType),
			zap.Error(err))
		return nil, err
	}
	return rules, nil
}

// ListRules returns every rule regardless of trigger or state.
func (r *PostgresRepo) ListRules(ctx context.Context) ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	operation := func() error {
		result := r.db.WithContext(ctx).Order("created_at ASC").Find(&rules)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "list", "automation_rule", operation); err != nil {
		return nil, err
	}
	return rules, nil
}

// FindRuleByID fetches a single rule.
func (r *PostgresRepo) FindRuleByID(ctx context.Context, id string) (*model.AutomationRule, error) {
	var rule model.AutomationRule
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&rule)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_by_id", "automation_rule", operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("automation rule %s: %w", id, apperrors.ErrNotFound)
		}
		logger.FromContext(ctx).Error("Failed to find automation rule", zap.String("rule_id", id), zap.Error(err))
		return nil, err
	}
	return &rule, nil
}

// CreateRule inserts a new rule and returns the stored row.
func (r *PostgresRepo) CreateRule(ctx context.Context, rule model.AutomationRule) (*model.AutomationRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := utils.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = rule.CreatedAt
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&rule)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedInsert(ctx, "automation_rule", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to create automation rule", zap.String("name", rule.Name), zap.Error(err))
		return nil, err
	}
	return &rule, nil
}

// SetRuleActive toggles is_active on a rule. Returns apperrors.ErrNotFound when no row matched.
func (r *PostgresRepo) SetRuleActive(ctx context.Context, id string, active bool) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.AutomationRule{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_active":  active,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("automation rule %s: %w", id, apperrors.ErrNotFound)
		}
		return nil
	}

	if err := observedWrite(ctx, "set_active", "automation_rule", operation); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.FromContext(ctx).Error("Failed to update automation rule state",
				zap.String("rule_id", id),
				zap.Bool("active", active),
				zap.Error(err))
		}
		return err
	}
	return nil
}
