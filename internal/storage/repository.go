package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
)

// LeadRepo defines lead read operations used by the stale detector
type LeadRepo interface {
	FindByStageWithOwner(ctx context.Context, stage string) ([]model.Lead, error)
}

// ProjectRepo defines project read operations
type ProjectRepo interface {
	FindByStatus(ctx context.Context, status string) ([]model.Project, error)
}

// TaskRepo defines task storage operations
type TaskRepo interface {
	Create(ctx context.Context, task model.Task) (*model.Task, error)
	ExistsForProjectSince(ctx context.Context, projectID string, since time.Time) (bool, error)
	CountOpenForProject(ctx context.Context, projectID string) (int64, error)
	FindLatestForProject(ctx context.Context, projectID string) (*model.Task, error)
}

// ActivityRepo defines activity storage operations
type ActivityRepo interface {
	Create(ctx context.Context, activity model.Activity) (*model.Activity, error)
	ExistsForEntitySince(ctx context.Context, entityType, entityID string, since time.Time) (bool, error)
	FindLatestForEntity(ctx context.Context, entityType, entityID string) (*model.Activity, error)
}

// NotificationRepo defines notification storage operations
type NotificationRepo interface {
	Create(ctx context.Context, notification model.Notification) (*model.Notification, error)
}

// AutomationRuleRepo defines automation rule storage operations
type AutomationRuleRepo interface {
	FindActiveByTrigger(ctx context.Context, triggerType string) ([]model.AutomationRule, error)
	List(ctx context.Context) ([]model.AutomationRule, error)
	FindByID(ctx context.Context, id string) (*model.AutomationRule, error)
	Create(ctx context.Context, rule model.AutomationRule) (*model.AutomationRule, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// AutomationRuleLogRepo defines rule execution log storage operations
type AutomationRuleLogRepo interface {
	Create(ctx context.Context, entry model.AutomationRuleLog) error
	FindByRuleID(ctx context.Context, ruleID string, limit int) ([]model.AutomationRuleLog, error)
}

// SettingsRepo defines key/value settings storage operations
type SettingsRepo interface {
	Find(ctx context.Context, key string) (*model.Setting, error)
	Upsert(ctx context.Context, key, value string) error
}
