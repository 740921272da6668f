package usecase

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/validator"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// DefaultRules are the two daily rules installed by Seed.
func DefaultRules() []model.AutomationRule {
	return []model.AutomationRule{
		{
			Name:        "Stale lead follow-up",
			Description: "Creates a follow-up task for contacted leads without activity",
			IsActive:    true,
			TriggerType: model.TriggerDailyCron,
			Condition: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
				"entity":                model.EntityTypeLead,
				"days_without_activity": DefaultStaleLeadDays,
			})),
			Action: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
				"type":                          model.ActionCreateTaskAndNotification,
				"task_title_template":           DefaultLeadTaskTitleTemplate,
				"task_description_template":     DefaultLeadTaskDescriptionTemplate,
				"notification_message_template": DefaultLeadNotificationTemplate,
			})),
		},
		{
			Name:        "Project at risk",
			Description: "Notifies owners of active projects without task activity",
			IsActive:    true,
			TriggerType: model.TriggerDailyCron,
			Condition: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
				"entity":            model.EntityTypeProject,
				"days_without_task": DefaultStaleProjectDays,
			})),
			Action: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
				"type":             model.ActionCreateNotificationOnly,
				"message_template": DefaultProjectRiskMessageTemplate,
			})),
		},
	}
}

// RuleAdmin backs the operator commands: listing, toggling, seeding rules and editing settings.
type RuleAdmin struct {
	rules      storage.AutomationRuleRepo
	ruleLogs   storage.AutomationRuleLogRepo
	settings   storage.SettingsRepo
	baseLogger *zap.Logger
}

// NewRuleAdmin creates a RuleAdmin.
func NewRuleAdmin(
	rules storage.AutomationRuleRepo,
	ruleLogs storage.AutomationRuleLogRepo,
	settings storage.SettingsRepo,
	baseLogger *zap.Logger,
) *RuleAdmin {
	return &RuleAdmin{
		rules:      rules,
		ruleLogs:   ruleLogs,
		settings:   settings,
		baseLogger: baseLogger.Named("rule_admin"),
	}
}

func (a *RuleAdmin) List(ctx context.Context) ([]model.AutomationRule, error) {
	return a.rules.List(ctx)
}

func (a *RuleAdmin) Get(ctx context.Context, id string) (*model.AutomationRule, error) {
	if err := validator.ValidateVar(id, "required,uuid"); err != nil {
		return nil, fmt.Errorf("invalid rule id %q: %w", id, err)
	}
	return a.rules.FindByID(ctx, id)
}

// SetActive enables or disables a rule.
func (a *RuleAdmin) SetActive(ctx context.Context, id string, active bool) error {
	if err := validator.ValidateVar(id, "required,uuid"); err != nil {
		return fmt.Errorf("invalid rule id %q: %w", id, err)
	}
	if err := a.rules.SetActive(ctx, id, active); err != nil {
		return err
	}
	logger.FromContextOr(ctx, a.baseLogger).Info("Automation rule toggled",
		zap.String("rule_id", id), zap.Bool("is_active", active))
	return nil
}

// Logs returns the newest execution log entries of a rule.
func (a *RuleAdmin) Logs(ctx context.Context, id string, limit int) ([]model.AutomationRuleLog, error) {
	if err := validator.ValidateVar(id, "required,uuid"); err != nil {
		return nil, fmt.Errorf("invalid rule id %q: %w", id, err)
	}
	return a.ruleLogs.FindByRuleID(ctx, id, limit)
}

// Seed inserts every default rule whose name is not taken yet and returns the inserted rules.
func (a *RuleAdmin) Seed(ctx context.Context) ([]model.AutomationRule, error) {
	log := logger.FromContextOr(ctx, a.baseLogger)

	existing, err := a.rules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, rule := range existing {
		taken[rule.Name] = true
	}

	var created []model.AutomationRule
	for _, rule := range DefaultRules() {
		if taken[rule.Name] {
			log.Debug("Default rule already present", zap.String("rule_name", rule.Name))
			continue
		}
		stored, err := a.rules.Create(ctx, rule)
		if err != nil {
			return created, fmt.Errorf("failed to create rule %q: %w", rule.Name, err)
		}
		log.Info("Default rule created", zap.String("rule_id", stored.ID), zap.String("rule_name", stored.Name))
		created = append(created, *stored)
	}
	return created, nil
}

// SetStaleWindow stores a stale_lead_days / stale_project_days override.
func (a *RuleAdmin) SetStaleWindow(ctx context.Context, key string, days int) error {
	if err := validator.ValidateVar(key, "oneof="+model.SettingStaleLeadDays+" "+model.SettingStaleProjectDays); err != nil {
		return fmt.Errorf("unknown setting %q: %w", key, err)
	}
	if err := validator.ValidateVar(days, "min=1,max=3650"); err != nil {
		return fmt.Errorf("invalid window %d: %w", days, err)
	}
	return a.settings.Upsert(ctx, key, strconv.Itoa(days))
}
