package usecase

import (
	"context"
	"fmt"
	"time"

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

// ExecutionResult counts the records one rule execution created.
type ExecutionResult struct {
	TasksCreated         int `json:"tasks_created"`
	NotificationsCreated int `json:"notifications_created"`
}

// RuleRunner executes a single automation rule.
type RuleRunner interface {
	Execute(ctx context.Context, rule model.AutomationRule) (ExecutionResult, error)
}

// RuleExecutor decodes rules and runs the matching handler.
type RuleExecutor struct {
	finder        StaleEntityFinder
	tasks         storage.TaskRepo
	notifications storage.NotificationRepo
	activities    storage.ActivityRepo
	publisher     NotificationPublisher
	ruleDefaults  DetectorConfig
	now           func() time.Time
	baseLogger    *zap.Logger
}

var _ RuleRunner = (*RuleExecutor)(nil)

// NewRuleExecutor creates a rule executor. A nil publisher disables notification events.
func NewRuleExecutor(
	finder StaleEntityFinder,
	tasks storage.TaskRepo,
	notifications storage.NotificationRepo,
	activities storage.ActivityRepo,
	publisher NotificationPublisher,
	baseLogger *zap.Logger,
) *RuleExecutor {
	if publisher == nil {
		publisher = NoopNotificationPublisher{}
	}
	return &RuleExecutor{
		finder:        finder,
		tasks:         tasks,
		notifications: notifications,
		activities:    activities,
		publisher:     publisher,
		ruleDefaults:  DefaultDetectorConfig(),
		now:           utils.Now,
		baseLogger:    baseLogger.Named("rule_executor"),
	}
}

// WithClock overrides the time source used for due dates.
func (e *RuleExecutor) WithClock(now func() time.Time) *RuleExecutor {
	e.now = now
	return e
}

// WithRuleDefaults sets the windows used by rules that omit days_without_activity / days_without_task.
func (e *RuleExecutor) WithRuleDefaults(cfg DetectorConfig) *RuleExecutor {
	e.ruleDefaults = cfg
	return e
}

// Execute decodes rule and dispatches it. Write failures inside a handler are logged and skipped;
// only decode and read failures are returned.
func (e *RuleExecutor) Execute(ctx context.Context, rule model.AutomationRule) (ExecutionResult, error) {
	log := logger.FromContextOr(ctx, e.baseLogger).With(
		zap.String("rule_id", rule.ID),
		zap.String("rule_name", rule.Name),
	)
	ctx = logger.WithLogger(ctx, log)

	var (
		result ExecutionResult
		err    error
	)

	spec, err := DecodeRule(rule, e.ruleDefaults)
	if err == nil {
		switch s := spec.(type) {
		case *LeadFollowUpRule:
			result, err = e.executeLeadFollowUp(ctx, s)
		case *ProjectRiskRule:
			result, err = e.executeProjectRisk(ctx, s)
		default:
			err = fmt.Errorf("no handler for rule spec %T", spec)
		}
	} else {
		err = apperrors.NewFatal(err, "rule %s cannot be decoded", rule.ID)
	}

	observer.IncRuleExecution(rule.TriggerType, tenant.CompanyOrUnknown(ctx), err)
	return result, err
}

func (e *RuleExecutor) executeLeadFollowUp(ctx context.Context, spec *LeadFollowUpRule) (ExecutionResult, error) {
	var result ExecutionResult
	log := logger.FromContext(ctx)
	companyID := tenant.CompanyOrUnknown(ctx)

	staleLeads, err := e.finder.FindStaleLeads(ctx, spec.DaysWithoutActivity)
	if err != nil {
		return result, fmt.Errorf("failed to find stale leads: %w", err)
	}

	for _, stale := range staleLeads {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("lead follow-up interrupted: %w", err)
		}

		lead := stale.Lead
		if !lead.HasOwner() {
			continue
		}
		ownerID := *lead.OwnerID
		leadLog := log.With(zap.String("lead_id", lead.ID))

		data := map[string]any{
			"lead": map[string]any{"id": lead.ID, "title": lead.Title},
			"days": spec.DaysWithoutActivity,
		}
		now := e.now()
		leadID := lead.ID

		task, err := e.tasks.Create(ctx, model.Task{
			Title:       Substitute(spec.TaskTitleTemplate, data),
			Description: Substitute(spec.TaskDescriptionTemplate, data),
			Status:      model.TaskStatusTodo,
			Priority:    model.TaskPriorityMedium,
			LeadID:      &leadID,
			AssignedTo:  &ownerID,
			CreatedBy:   &ownerID,
			DueDate:     &now,
		})
		if err != nil {
			leadLog.Error("Failed to create follow-up task, skipping lead", zap.Error(err))
			observer.IncRecordWriteFailure("task", model.EntityTypeLead, companyID)
			continue
		}
		result.TasksCreated++
		observer.IncRecordCreated("task", model.EntityTypeLead, companyID)

		notification, err := e.notifications.Create(ctx, model.Notification{
			UserProfileID: ownerID,
			Type:          model.NotificationTypeTaskAssigned,
			Message:       Substitute(spec.NotificationMessageTemplate, data),
			EntityType:    model.EntityTypeLead,
			EntityID:      lead.ID,
		})
		if err != nil {
			leadLog.Error("Failed to create follow-up notification", zap.String("task_id", task.ID), zap.Error(err))
			observer.IncRecordWriteFailure("notification", model.EntityTypeLead, companyID)
		} else {
			result.NotificationsCreated++
			observer.IncRecordCreated("notification", model.EntityTypeLead, companyID)
			e.publisher.PublishCreated(ctx, *notification)
		}

		_, err = e.activities.Create(ctx, model.Activity{
			EntityType: model.EntityTypeLead,
			EntityID:   lead.ID,
			Type:       model.ActivityTypeTaskCreated,
			Metadata: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
				"task_id":    task.ID,
				"task_title": task.Title,
				"automated":  true,
				"rule_id":    spec.RuleID,
			})),
		})
		if err != nil {
			leadLog.Error("Failed to record task_created activity", zap.String("task_id", task.ID), zap.Error(err))
			observer.IncRecordWriteFailure("activity", model.EntityTypeLead, companyID)
		} else {
			observer.IncRecordCreated("activity", model.EntityTypeLead, companyID)
		}
	}

	log.Info("Lead follow-up rule finished",
		zap.Int("stale_leads", len(staleLeads)),
		zap.Int("tasks_created", result.TasksCreated),
		zap.Int("notifications_created", result.NotificationsCreated),
	)
	return result, nil
}

func (e *RuleExecutor) executeProjectRisk(ctx context.Context, spec *ProjectRiskRule) (ExecutionResult, error) {
	var result ExecutionResult
	log := logger.FromContext(ctx)
	companyID := tenant.CompanyOrUnknown(ctx)

	staleProjects, err := e.finder.FindStaleProjects(ctx, spec.DaysWithoutTask)
	if err != nil {
		return result, fmt.Errorf("failed to find stale projects: %w", err)
	}

	for _, stale := range staleProjects {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("project risk check interrupted: %w", err)
		}

		project := stale.Project
		if !project.HasOwner() {
			continue
		}

		data := map[string]any{
			"project": map[string]any{"id": project.ID, "name": project.Name},
			"days":    spec.DaysWithoutTask,
		}

		notification, err := e.notifications.Create(ctx, model.Notification{
			UserProfileID: *project.OwnerID,
			Type:          model.NotificationTypeStatusChange,
			Message:       Substitute(spec.MessageTemplate, data),
			EntityType:    model.EntityTypeProject,
			EntityID:      project.ID,
		})
		if err != nil {
			log.Error("Failed to create project risk notification",
				zap.String("project_id", project.ID), zap.Error(err))
			observer.IncRecordWriteFailure("notification", model.EntityTypeProject, companyID)
			continue
		}
		result.NotificationsCreated++
		observer.IncRecordCreated("notification", model.EntityTypeProject, companyID)
		e.publisher.PublishCreated(ctx, *notification)
	}

	log.Info("Project risk rule finished",
		zap.Int("stale_projects", len(staleProjects)),
		zap.Int("notifications_created", result.NotificationsCreated),
	)
	return result, nil
}
