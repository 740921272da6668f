package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
)

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

// FindByStageWithOwner mocks the FindByStageWithOwner method
func (m *LeadRepoMock) FindByStageWithOwner(ctx context.Context, stage string) ([]model.Lead, error) {
	args := m.Called(ctx, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

// --- ProjectRepo Mock ---

// ProjectRepoMock mocks the ProjectRepo interface
type ProjectRepoMock struct {
	mock.Mock
}

// FindByStatus mocks the FindByStatus method
func (m *ProjectRepoMock) FindByStatus(ctx context.Context, status string) ([]model.Project, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Project), args.Error(1)
}

// --- TaskRepo Mock ---

// TaskRepoMock mocks the TaskRepo interface
type TaskRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *TaskRepoMock) Create(ctx context.Context, task model.Task) (*model.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

// ExistsForProjectSince mocks the ExistsForProjectSince method
func (m *TaskRepoMock) ExistsForProjectSince(ctx context.Context, projectID string, since time.Time) (bool, error) {
	args := m.Called(ctx, projectID, since)
	return args.Bool(0), args.Error(1)
}

// CountOpenForProject mocks the CountOpenForProject method
func (m *TaskRepoMock) CountOpenForProject(ctx context.Context, projectID string) (int64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(int64), args.Error(1)
}

// FindLatestForProject mocks the FindLatestForProject method
func (m *TaskRepoMock) FindLatestForProject(ctx context.Context, projectID string) (*model.Task, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

// --- ActivityRepo Mock ---

// ActivityRepoMock mocks the ActivityRepo interface
type ActivityRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *ActivityRepoMock) Create(ctx context.Context, activity model.Activity) (*model.Activity, error) {
	args := m.Called(ctx, activity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Activity), args.Error(1)
}

// ExistsForEntitySince mocks the ExistsForEntitySince method
func (m *ActivityRepoMock) ExistsForEntitySince(ctx context.Context, entityType, entityID string, since time.Time) (bool, error) {
	args := m.Called(ctx, entityType, entityID, since)
	return args.Bool(0), args.Error(1)
}

// FindLatestForEntity mocks the FindLatestForEntity method
func (m *ActivityRepoMock) FindLatestForEntity(ctx context.Context, entityType, entityID string) (*model.Activity, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Activity), args.Error(1)
}

// --- NotificationRepo Mock ---

// NotificationRepoMock mocks the NotificationRepo interface
type NotificationRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *NotificationRepoMock) Create(ctx context.Context, notification model.Notification) (*model.Notification, error) {
	args := m.Called(ctx, notification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

// --- AutomationRuleRepo Mock ---

// AutomationRuleRepoMock mocks the AutomationRuleRepo interface
type AutomationRuleRepoMock struct {
	mock.Mock
}

// FindActiveByTrigger mocks the FindActiveByTrigger method
func (m *AutomationRuleRepoMock) FindActiveByTrigger(ctx context.Context, triggerType string) ([]model.AutomationRule, error) {
	args := m.Called(ctx, triggerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AutomationRule), args.Error(1)
}

// List mocks the List method
func (m *AutomationRuleRepoMock) List(ctx context.Context) ([]model.AutomationRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AutomationRule), args.Error(1)
}

// FindByID mocks the FindByID method
func (m *AutomationRuleRepoMock) FindByID(ctx context.Context, id string) (*model.AutomationRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AutomationRule), args.Error(1)
}

// Create mocks the Create method
func (m *AutomationRuleRepoMock) Create(ctx context.Context, rule model.AutomationRule) (*model.AutomationRule, error) {
	args := m.Called(ctx, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AutomationRule), args.Error(1)
}

// SetActive mocks the SetActive method
func (m *AutomationRuleRepoMock) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// --- AutomationRuleLogRepo Mock ---

// AutomationRuleLogRepoMock mocks the AutomationRuleLogRepo interface
type AutomationRuleLogRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *AutomationRuleLogRepoMock) Create(ctx context.Context, entry model.AutomationRuleLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// FindByRuleID mocks the FindByRuleID method
func (m *AutomationRuleLogRepoMock) FindByRuleID(ctx context.Context, ruleID string, limit int) ([]model.AutomationRuleLog, error) {
	args := m.Called(ctx, ruleID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AutomationRuleLog), args.Error(1)
}

// --- SettingsRepo Mock ---

// SettingsRepoMock mocks the SettingsRepo interface
type SettingsRepoMock struct {
	mock.Mock
}

// Find mocks the Find method
func (m *SettingsRepoMock) Find(ctx context.Context, key string) (*model.Setting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Setting), args.Error(1)
}

// Upsert mocks the Upsert method
func (m *SettingsRepoMock) Upsert(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
