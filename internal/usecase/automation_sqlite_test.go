package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

type automationFixture struct {
	db       *gorm.DB
	repos    *storage.Repositories
	detector *StaleDetector
	runner   *DailyRunner
	now      time.Time
}

// newAutomationFixture wires the engine on an in-memory sqlite database.
func newAutomationFixture(t *testing.T) *automationFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc: utils.Now,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	postgres := storage.NewPostgresRepoFromDB(db)
	require.NoError(t, postgres.AutoMigrate())
	repos := storage.NewRepositories(postgres)

	log := zaptest.NewLogger(t)
	now := utils.Now().Truncate(time.Second)
	clock := func() time.Time { return now }

	detector := NewStaleDetector(repos.Leads, repos.Projects, repos.Tasks, repos.Activities,
		NewRepoSettingsProvider(repos.Settings, log), DefaultDetectorConfig(), log).WithClock(clock)
	executor := NewRuleExecutor(detector, repos.Tasks, repos.Notifications, repos.Activities, nil, log).WithClock(clock)

	return &automationFixture{
		db:       db,
		repos:    repos,
		detector: detector,
		runner:   NewDailyRunner(repos.Rules, repos.RuleLogs, executor, log),
		now:      now,
	}
}

func (f *automationFixture) insert(t *testing.T, records ...interface{}) {
	t.Helper()
	for _, r := range records {
		require.NoError(t, f.db.Create(r).Error)
	}
}

func (f *automationFixture) activityAt(t *testing.T, leadID string, at time.Time) {
	t.Helper()
	f.insert(t, model.NewActivity(&model.Activity{
		EntityType: model.EntityTypeLead,
		EntityID:   leadID,
		Type:       model.ActivityTypeCall,
		CreatedAt:  at,
	}))
}

func TestAutomation_EndToEndLeadFollowUp(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := tenant.WithCompanyID(context.Background(), "acme")

	lead := model.NewLead(&model.Lead{Title: "Acme Deal", OwnerID: ptr("u1")})
	f.insert(t, lead)

	_, err := f.repos.Rules.Create(ctx, *model.NewAutomationRule(&model.AutomationRule{IsActive: true}))
	require.NoError(t, err)

	summary, err := f.runner.RunDailyAutomations(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{RulesExecuted: 1, TasksCreated: 1, NotificationsCreated: 1, Errors: 0}, summary)

	var tasks []model.Task
	require.NoError(t, f.db.Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, "u1", *tasks[0].AssignedTo)
	assert.Equal(t, model.TaskStatusTodo, tasks[0].Status)
	assert.Equal(t, "Follow-up lead: Acme Deal", tasks[0].Title)
	assert.Equal(t, lead.ID, *tasks[0].LeadID)

	var notifications []model.Notification
	require.NoError(t, f.db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, "u1", notifications[0].UserProfileID)
	assert.Equal(t, model.NotificationTypeTaskAssigned, notifications[0].Type)
	assert.Nil(t, notifications[0].ReadAt)

	var activities []model.Activity
	require.NoError(t, f.db.Where("type = ?", model.ActivityTypeTaskCreated).Find(&activities).Error)
	require.Len(t, activities, 1)
	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal(activities[0].Metadata, &metadata))
	assert.Equal(t, true, metadata["automated"])
	assert.Equal(t, tasks[0].ID, metadata["task_id"])

	var logs []model.AutomationRuleLog
	require.NoError(t, f.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, model.RuleResultSuccess, logs[0].Result)
}

// The task_created activity counts as lead activity, so a second run inside the window
// finds nothing to follow up.
func TestAutomation_SecondRunSeesAuditActivity(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	f.insert(t, model.NewLead(&model.Lead{OwnerID: ptr("u1")}))
	_, err := f.repos.Rules.Create(ctx, *model.NewAutomationRule(&model.AutomationRule{IsActive: true}))
	require.NoError(t, err)

	first, err := f.runner.RunDailyAutomations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TasksCreated)

	second, err := f.runner.RunDailyAutomations(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{RulesExecuted: 1}, second)
}

func TestAutomation_StaleLeadBoundary(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	atCutoff := model.NewLead(&model.Lead{Title: "at cutoff", OwnerID: ptr("u1")})
	pastCutoff := model.NewLead(&model.Lead{Title: "past cutoff", OwnerID: ptr("u2")})
	unowned := model.NewLead(&model.Lead{Title: "unowned", OwnerID: nil})
	f.insert(t, atCutoff, pastCutoff, unowned)

	f.activityAt(t, atCutoff.ID, f.now.Add(-7*24*time.Hour))
	f.activityAt(t, pastCutoff.ID, f.now.Add(-8*24*time.Hour))

	stale, err := f.detector.FindStaleLeads(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, pastCutoff.ID, stale[0].Lead.ID)
	assert.Equal(t, 8, stale[0].DaysSinceLastActivity)
}

func TestAutomation_StaleLeadWindowFromSettings(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	lead := model.NewLead(&model.Lead{OwnerID: ptr("u1")})
	f.insert(t, lead)
	f.activityAt(t, lead.ID, f.now.Add(-8*24*time.Hour))

	require.NoError(t, f.repos.Settings.Upsert(ctx, model.SettingStaleLeadDays, "10"))
	stale, err := f.detector.FindStaleLeads(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = f.detector.FindStaleLeads(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestAutomation_StaleProjectDoubleGate(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	old := f.now.Add(-30 * 24 * time.Hour)
	withOpenTask := model.NewProject(&model.Project{Name: "open work", OwnerID: ptr("u1")})
	noTasks := model.NewProject(&model.Project{Name: "empty", OwnerID: ptr("u2"), CreatedAt: f.now.Add(-20 * 24 * time.Hour)})
	onHold := model.NewProject(&model.Project{Name: "paused", Status: model.ProjectStatusOnHold, OwnerID: ptr("u3")})
	f.insert(t, withOpenTask, noTasks, onHold)
	f.insert(t, model.NewTask(&model.Task{
		Status:    model.TaskStatusInProgress,
		ProjectID: &withOpenTask.ID,
		CreatedAt: old,
		UpdatedAt: old,
	}))

	stale, err := f.detector.FindStaleProjects(ctx, 14)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, noTasks.ID, stale[0].Project.ID)
	assert.Equal(t, 20, stale[0].DaysSinceLastTask)
}

func TestAutomation_ProjectRiskRuleAndUnsupportedRule(t *testing.T) {
	f := newAutomationFixture(t)
	ctx := context.Background()

	f.insert(t, model.NewProject(&model.Project{Name: "Apollo", OwnerID: ptr("u9")}))
	for _, rule := range DefaultRules() {
		_, err := f.repos.Rules.Create(ctx, rule)
		require.NoError(t, err)
	}
	bad := model.NewAutomationRule(&model.AutomationRule{IsActive: true})
	bad.Condition = []byte(`{"entity":"deal"}`)
	stored, err := f.repos.Rules.Create(ctx, *bad)
	require.NoError(t, err)

	summary, err := f.runner.RunDailyAutomations(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{RulesExecuted: 2, NotificationsCreated: 1, Errors: 1}, summary)

	var notification model.Notification
	require.NoError(t, f.db.Where("type = ?", model.NotificationTypeStatusChange).First(&notification).Error)
	assert.Equal(t, "u9", notification.UserProfileID)
	assert.Contains(t, notification.Message, "Project Apollo has had no task activity for 14 days")

	logs, err := f.repos.RuleLogs.FindByRuleID(ctx, stored.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.RuleResultError, logs[0].Result)
	assert.Contains(t, logs[0].Error, "unsupported rule combination")
}
