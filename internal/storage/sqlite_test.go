package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// newSQLiteRepo returns a repo on a private in-memory database with every table migrated.
func newSQLiteRepo(t *testing.T) (*PostgresRepo, *gorm.DB) {
	t.Helper()
	logger.Log = zaptest.NewLogger(t).Named("test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc: utils.Now,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // one connection keeps the in-memory database alive and shared
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewPostgresRepoFromDB(db)
	require.NoError(t, repo.AutoMigrate())
	return repo, db
}

func ptr(s string) *string { return &s }

func TestSQLite_FindLeadsByStageWithOwner(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := tenantContext()

	owned := model.NewLead()
	unowned := model.NewLead(&model.Lead{OwnerID: nil})
	otherStage := model.NewLead(&model.Lead{Stage: model.LeadStageWon, OwnerID: ptr("owner-x")})
	require.NoError(t, db.Create([]*model.Lead{owned, unowned, otherStage}).Error)

	leads, err := repo.FindLeadsByStageWithOwner(ctx, model.LeadStageContacted)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, owned.ID, leads[0].ID)
}

func TestSQLite_ActivityExistsForEntitySince(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := tenantContext()
	now := utils.Now()

	leadID := "lead-activity-1"
	old := model.NewActivity(&model.Activity{EntityID: leadID, CreatedAt: now.Add(-10 * 24 * time.Hour)})
	recent := model.NewActivity(&model.Activity{EntityID: leadID, CreatedAt: now.Add(-2 * 24 * time.Hour)})
	otherEntity := model.NewActivity(&model.Activity{EntityType: model.EntityTypeProject, EntityID: leadID, CreatedAt: now})
	require.NoError(t, db.Create([]*model.Activity{old, recent, otherEntity}).Error)

	exists, err := repo.ActivityExistsForEntitySince(ctx, model.EntityTypeLead, leadID, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ActivityExistsForEntitySince(ctx, model.EntityTypeLead, leadID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, exists, "the project activity must not count for the lead")

	latest, err := repo.FindLatestActivityForEntity(ctx, model.EntityTypeLead, leadID)
	require.NoError(t, err)
	assert.Equal(t, recent.ID, latest.ID)

	_, err = repo.FindLatestActivityForEntity(ctx, model.EntityTypeLead, "no-activity")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLite_ProjectTasks(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := tenantContext()
	now := utils.Now()

	project := model.NewProject()
	require.NoError(t, db.Create(project).Error)

	oldCreated := now.Add(-30 * 24 * time.Hour)
	doneRecentlyUpdated := model.NewTask(&model.Task{
		ProjectID: &project.ID,
		Status:    model.TaskStatusDone,
		CreatedAt: oldCreated,
		UpdatedAt: now.Add(-3 * 24 * time.Hour),
	})
	doneOld := model.NewTask(&model.Task{
		ProjectID: &project.ID,
		Status:    model.TaskStatusDone,
		CreatedAt: oldCreated,
		UpdatedAt: oldCreated,
	})
	require.NoError(t, db.Create([]*model.Task{doneRecentlyUpdated, doneOld}).Error)

	exists, err := repo.TaskExistsForProjectSince(ctx, project.ID, now.Add(-14*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, exists, "an update inside the window counts as recent")

	exists, err = repo.TaskExistsForProjectSince(ctx, project.ID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, exists)

	open, err := repo.CountOpenTasksForProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Zero(t, open)

	created, err := repo.CreateTask(ctx, model.Task{Title: "Kickoff", Status: model.TaskStatusTodo, ProjectID: &project.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	open, err = repo.CountOpenTasksForProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), open)

	latest, err := repo.FindLatestTaskForProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, latest.ID)

	_, err = repo.FindLatestTaskForProject(ctx, "no-tasks")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLite_CreateNotification(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	readAt := utils.Now()

	n, err := repo.CreateNotification(tenantContext(), model.Notification{
		UserProfileID: "user-1",
		Type:          model.NotificationTypeTaskAssigned,
		Message:       "hello",
		EntityType:    model.EntityTypeLead,
		EntityID:      "lead-1",
		ReadAt:        &readAt,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Nil(t, n.ReadAt)

	var stored model.Notification
	require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
	assert.Nil(t, stored.ReadAt)
	assert.Equal(t, "hello", stored.Message)
}

func TestSQLite_AutomationRules(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := tenantContext()
	base := utils.Now().Add(-time.Hour)

	first, err := repo.CreateRule(ctx, *model.NewAutomationRule(&model.AutomationRule{Name: "first", IsActive: true, CreatedAt: base}))
	require.NoError(t, err)
	second, err := repo.CreateRule(ctx, *model.NewAutomationRule(&model.AutomationRule{Name: "second", IsActive: true, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, err)
	_, err = repo.CreateRule(ctx, *model.NewAutomationRule(&model.AutomationRule{Name: "inactive", IsActive: false}))
	require.NoError(t, err)
	_, err = repo.CreateRule(ctx, *model.NewAutomationRule(&model.AutomationRule{Name: "other trigger", IsActive: true, TriggerType: model.TriggerTaskCompleted}))
	require.NoError(t, err)

	active, err := repo.FindActiveRulesByTrigger(ctx, model.TriggerDailyCron)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
	assert.JSONEq(t, string(first.Condition), string(active[0].Condition))

	all, err := repo.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, repo.SetRuleActive(ctx, first.ID, false))
	active, err = repo.FindActiveRulesByTrigger(ctx, model.TriggerDailyCron)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	reloaded, err := repo.FindRuleByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	assert.ErrorIs(t, repo.SetRuleActive(ctx, "missing-rule", true), apperrors.ErrNotFound)
}

func TestSQLite_RuleLogs(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := tenantContext()
	now := utils.Now()

	for i, offset := range []time.Duration{3 * time.Hour, 2 * time.Hour, time.Hour} {
		entry := model.NewAutomationRuleLog(&model.AutomationRuleLog{RuleID: "rule-1", ExecutedAt: now.Add(-offset)})
		if i == 2 {
			entry.Result = model.RuleResultError
			entry.Error = "boom"
		}
		require.NoError(t, repo.CreateRuleLog(ctx, *entry))
	}
	require.NoError(t, repo.CreateRuleLog(ctx, *model.NewAutomationRuleLog(&model.AutomationRuleLog{RuleID: "rule-2"})))

	logs, err := repo.FindRuleLogsByRuleID(ctx, "rule-1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.RuleResultError, logs[0].Result)
	assert.Equal(t, "boom", logs[0].Error)
	assert.True(t, logs[0].ExecutedAt.After(logs[1].ExecutedAt))

	logs, err = repo.FindRuleLogsByRuleID(ctx, "rule-1", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestSQLite_Settings(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := tenantContext()

	_, err := repo.FindSetting(ctx, model.SettingStaleLeadDays)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.UpsertSetting(ctx, model.SettingStaleLeadDays, "10"))
	require.NoError(t, repo.UpsertSetting(ctx, model.SettingStaleLeadDays, "12"))

	setting, err := repo.FindSetting(ctx, model.SettingStaleLeadDays)
	require.NoError(t, err)
	assert.Equal(t, "12", setting.Value)
}

func TestRepositories_WireAdapters(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	repos := NewRepositories(repo)
	ctx := tenantContext()

	lead := model.NewLead()
	require.NoError(t, db.Create(lead).Error)

	leads, err := repos.Leads.FindByStageWithOwner(ctx, model.LeadStageContacted)
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	require.NoError(t, repos.Settings.Upsert(ctx, model.SettingStaleProjectDays, "21"))
	s, err := repos.Settings.Find(ctx, model.SettingStaleProjectDays)
	require.NoError(t, err)
	assert.Equal(t, "21", s.Value)
}

func TestSQLite_InsertBatch(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := tenantContext()

	leads := []*model.Lead{model.NewLead(), model.NewLead(), model.NewLead()}
	require.NoError(t, repo.InsertBatch(ctx, "lead", leads))

	var count int64
	require.NoError(t, db.Model(&model.Lead{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	// Re-inserting the same primary keys fails and leaves the table untouched
	err := repo.InsertBatch(ctx, "lead", leads)
	require.Error(t, err)
	require.NoError(t, db.Model(&model.Lead{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}
