package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// RunSummary aggregates one daily run.
type RunSummary struct {
	RulesExecuted        int `json:"rules_executed"`
	TasksCreated         int `json:"tasks_created"`
	NotificationsCreated int `json:"notifications_created"`
	Errors               int `json:"errors"`
}

// DailyAutomationRunner is the entry point shared by the scheduler, the CLI and the HTTP trigger.
type DailyAutomationRunner interface {
	RunDailyAutomations(ctx context.Context) (RunSummary, error)
}

// DailyRunner loads active daily_cron rules and executes them one after another.
// Concurrent calls are not serialized.
type DailyRunner struct {
	rules      storage.AutomationRuleRepo
	ruleLogs   storage.AutomationRuleLogRepo
	executor   RuleRunner
	baseLogger *zap.Logger
}

var _ DailyAutomationRunner = (*DailyRunner)(nil)

// NewDailyRunner creates a daily runner.
func NewDailyRunner(
	rules storage.AutomationRuleRepo,
	ruleLogs storage.AutomationRuleLogRepo,
	executor RuleRunner,
	baseLogger *zap.Logger,
) *DailyRunner {
	return &DailyRunner{
		rules:      rules,
		ruleLogs:   ruleLogs,
		executor:   executor,
		baseLogger: baseLogger.Named("daily_runner"),
	}
}

// RunDailyAutomations executes every active daily_cron rule. Only a failure to load the rules is
// returned; per-rule failures are counted in RunSummary.Errors.
func (r *DailyRunner) RunDailyAutomations(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	ctx = r.withRunContext(ctx)
	log := logger.FromContext(ctx)
	companyID := tenant.CompanyOrUnknown(ctx)

	var summary RunSummary

	rules, err := r.rules.FindActiveByTrigger(ctx, model.TriggerDailyCron)
	if err != nil {
		log.Error("Failed to load daily automation rules", zap.Error(err))
		observer.ObserveDailyRun(companyID, time.Since(start), err)
		return summary, fmt.Errorf("failed to load daily rules: %w", err)
	}
	if len(rules) == 0 {
		log.Info("No active daily automation rules")
		observer.ObserveDailyRun(companyID, time.Since(start), nil)
		return summary, nil
	}

	log.Info("Starting daily automations", zap.Int("rules", len(rules)))

	for _, rule := range rules {
		result, err := r.runRule(ctx, rule)
		if err != nil {
			summary.Errors++
			continue
		}
		summary.RulesExecuted++
		summary.TasksCreated += result.TasksCreated
		summary.NotificationsCreated += result.NotificationsCreated
	}

	observer.ObserveDailyRun(companyID, time.Since(start), nil)
	log.Info("Daily automations finished",
		zap.Int("rules_executed", summary.RulesExecuted),
		zap.Int("tasks_created", summary.TasksCreated),
		zap.Int("notifications_created", summary.NotificationsCreated),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// RunRule executes a single rule outside the daily loop and records its log entry.
func (r *DailyRunner) RunRule(ctx context.Context, rule model.AutomationRule) (ExecutionResult, error) {
	return r.runRule(r.withRunContext(ctx), rule)
}

// withRunContext tags ctx with a fresh run ID and the runner's logger.
func (r *DailyRunner) withRunContext(ctx context.Context) context.Context {
	if _, err := tenant.RunIDFromContext(ctx); err != nil {
		ctx = tenant.WithRunID(ctx, uuid.NewString())
	}
	return logger.WithLogger(ctx, logger.FromContextOr(ctx, r.baseLogger))
}

// runRule executes one rule with panic isolation and appends its AutomationRuleLog row.
func (r *DailyRunner) runRule(ctx context.Context, rule model.AutomationRule) (ExecutionResult, error) {
	log := logger.FromContext(ctx).With(zap.String("rule_id", rule.ID), zap.String("rule_name", rule.Name))

	var result ExecutionResult
	err := utils.WrapWithContextRecovery(func(ctx context.Context) error {
		var execErr error
		result, execErr = r.executor.Execute(ctx, rule)
		return execErr
	})(ctx)

	entry := model.AutomationRuleLog{
		RuleID: rule.ID,
		Result: model.RuleResultSuccess,
	}
	metadata := map[string]interface{}{
		"tasks_created":         result.TasksCreated,
		"notifications_created": result.NotificationsCreated,
	}
	if runID, idErr := tenant.RunIDFromContext(ctx); idErr == nil {
		metadata["run_id"] = runID
	}
	if err != nil {
		log.Error("Automation rule failed", zap.Error(err))
		entry.Result = model.RuleResultError
		entry.Error = err.Error()
		metadata["error_type"] = observer.SanitizeErrorType(err.Error())
		metadata["failure_class"] = failureClass(err)
	}
	entry.Metadata = datatypes.JSON(utils.MustMarshalJSON(metadata))

	if logErr := r.ruleLogs.Create(ctx, entry); logErr != nil {
		log.Warn("Failed to write automation rule log", zap.Error(logErr))
	}
	return result, err
}

// failureClass tells whether a failed rule is worth rerunning before its next cron slot.
func failureClass(err error) string {
	switch {
	case apperrors.IsFatal(err):
		return "fatal"
	case apperrors.IsRetryable(err):
		return "retryable"
	default:
		return "error"
	}
}
