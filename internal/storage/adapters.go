package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
)

// Repositories groups every adapter built on one PostgresRepo.
type Repositories struct {
	Leads         LeadRepo
	Projects      ProjectRepo
	Tasks         TaskRepo
	Activities    ActivityRepo
	Notifications NotificationRepo
	Rules         AutomationRuleRepo
	RuleLogs      AutomationRuleLogRepo
	Settings      SettingsRepo
}

// NewRepositories wires all adapters to the same connection.
func NewRepositories(postgres *PostgresRepo) *Repositories {
	return &Repositories{
		Leads:         NewLeadRepoAdapter(postgres),
		Projects:      NewProjectRepoAdapter(postgres),
		Tasks:         NewTaskRepoAdapter(postgres),
		Activities:    NewActivityRepoAdapter(postgres),
		Notifications: NewNotificationRepoAdapter(postgres),
		Rules:         NewAutomationRuleRepoAdapter(postgres),
		RuleLogs:      NewAutomationRuleLogRepoAdapter(postgres),
		Settings:      NewSettingsRepoAdapter(postgres),
	}
}

// LeadRepoAdapter adapts the PostgresRepo to the LeadRepo interface
type LeadRepoAdapter struct {
	postgres *PostgresRepo
}

// NewLeadRepoAdapter creates a new lead repository adapter
func NewLeadRepoAdapter(postgres *PostgresRepo) LeadRepo {
	return &LeadRepoAdapter{postgres: postgres}
}

func (a *LeadRepoAdapter) FindByStageWithOwner(ctx context.Context, stage string) ([]model.Lead, error) {
	return a.postgres.FindLeadsByStageWithOwner(ctx, stage)
}

// ProjectRepoAdapter adapts the PostgresRepo to the ProjectRepo interface
type ProjectRepoAdapter struct {
	postgres *PostgresRepo
}

// NewProjectRepoAdapter creates a new project repository adapter
func NewProjectRepoAdapter(postgres *PostgresRepo) ProjectRepo {
	return &ProjectRepoAdapter{postgres: postgres}
}

func (a *ProjectRepoAdapter) FindByStatus(ctx context.Context, status string) ([]model.Project, error) {
	return a.postgres.FindProjectsByStatus(ctx, status)
}

// TaskRepoAdapter adapts the PostgresRepo to the TaskRepo interface
type TaskRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTaskRepoAdapter creates a new task repository adapter
func NewTaskRepoAdapter(postgres *PostgresRepo) TaskRepo {
	return &TaskRepoAdapter{postgres: postgres}
}

func (a *TaskRepoAdapter) Create(ctx context.Context, task model.Task) (*model.Task, error) {
	return a.postgres.CreateTask(ctx, task)
}

func (a *TaskRepoAdapter) ExistsForProjectSince(ctx context.Context, projectID string, since time.Time) (bool, error) {
	return a.postgres.TaskExistsForProjectSince(ctx, projectID, since)
}

func (a *TaskRepoAdapter) CountOpenForProject(ctx context.Context, projectID string) (int64, error) {
	return a.postgres.CountOpenTasksForProject(ctx, projectID)
}

func (a *TaskRepoAdapter) FindLatestForProject(ctx context.Context, projectID string) (*model.Task, error) {
	return a.postgres.FindLatestTaskForProject(ctx, projectID)
}

// ActivityRepoAdapter adapts the PostgresRepo to the ActivityRepo interface
type ActivityRepoAdapter struct {
	postgres *PostgresRepo
}

// NewActivityRepoAdapter creates a new activity repository adapter
func NewActivityRepoAdapter(postgres *PostgresRepo) ActivityRepo {
	return &ActivityRepoAdapter{postgres: postgres}
}

func (a *ActivityRepoAdapter) Create(ctx context.Context, activity model.Activity) (*model.Activity, error) {
	return a.postgres.CreateActivity(ctx, activity)
}

func (a *ActivityRepoAdapter) ExistsForEntitySince(ctx context.Context, entityType, entityID string, since time.Time) (bool, error) {
	return a.postgres.ActivityExistsForEntitySince(ctx, entityType, entityID, since)
}

func (a *ActivityRepoAdapter) FindLatestForEntity(ctx context.Context, entityType, entityID string) (*model.Activity, error) {
	return a.postgres.FindLatestActivityForEntity(ctx, entityType, entityID)
}

// NotificationRepoAdapter adapts the PostgresRepo to the NotificationRepo interface
type NotificationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewNotificationRepoAdapter creates a new notification repository adapter
func NewNotificationRepoAdapter(postgres *PostgresRepo) NotificationRepo {
	return &NotificationRepoAdapter{postgres: postgres}
}

func (a *NotificationRepoAdapter) Create(ctx context.Context, notification model.Notification) (*model.Notification, error) {
	return a.postgres.CreateNotification(ctx, notification)
}

// AutomationRuleRepoAdapter adapts the PostgresRepo to the AutomationRuleRepo interface
type AutomationRuleRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAutomationRuleRepoAdapter creates a new automation rule repository adapter
func NewAutomationRuleRepoAdapter(postgres *PostgresRepo) AutomationRuleRepo {
	return &AutomationRuleRepoAdapter{postgres: postgres}
}

func (a *AutomationRuleRepoAdapter) FindActiveByTrigger(ctx context.Context, triggerType string) ([]model.AutomationRule, error) {
	return a.postgres.FindActiveRulesByTrigger(ctx, triggerType)
}

func (a *AutomationRuleRepoAdapter) List(ctx context.Context) ([]model.AutomationRule, error) {
	return a.postgres.ListRules(ctx)
}

func (a *AutomationRuleRepoAdapter) FindByID(ctx context.Context, id string) (*model.AutomationRule, error) {
	return a.postgres.FindRuleByID(ctx, id)
}

func (a *AutomationRuleRepoAdapter) Create(ctx context.Context, rule model.AutomationRule) (*model.AutomationRule, error) {
	return a.postgres.CreateRule(ctx, rule)
}

func (a *AutomationRuleRepoAdapter) SetActive(ctx context.Context, id string, active bool) error {
	return a.postgres.SetRuleActive(ctx, id, active)
}

// AutomationRuleLogRepoAdapter adapts the PostgresRepo to the AutomationRuleLogRepo interface
type AutomationRuleLogRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAutomationRuleLogRepoAdapter creates a new rule log repository adapter
func NewAutomationRuleLogRepoAdapter(postgres *PostgresRepo) AutomationRuleLogRepo {
	return &AutomationRuleLogRepoAdapter{postgres: postgres}
}

func (a *AutomationRuleLogRepoAdapter) Create(ctx context.Context, entry model.AutomationRuleLog) error {
	return a.postgres.CreateRuleLog(ctx, entry)
}

func (a *AutomationRuleLogRepoAdapter) FindByRuleID(ctx context.Context, ruleID string, limit int) ([]model.AutomationRuleLog, error) {
	return a.postgres.FindRuleLogsByRuleID(ctx, ruleID, limit)
}

// SettingsRepoAdapter adapts the PostgresRepo to the SettingsRepo interface
type SettingsRepoAdapter struct {
	postgres *PostgresRepo
}

// NewSettingsRepoAdapter creates a new settings repository adapter
func NewSettingsRepoAdapter(postgres *PostgresRepo) SettingsRepo {
	return &SettingsRepoAdapter{postgres: postgres}
}

func (a *SettingsRepoAdapter) Find(ctx context.Context, key string) (*model.Setting, error) {
	return a.postgres.FindSetting(ctx, key)
}

func (a *SettingsRepoAdapter) Upsert(ctx context.Context, key, value string) error {
	return a.postgres.UpsertSetting(ctx, key, value)
}
