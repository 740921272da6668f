//go:build integration

package integration_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

type AutomationIntegrationSuite struct {
	BaseIntegrationSuite
}

func TestAutomationIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container backed tests in short mode")
	}
	suite.Run(t, new(AutomationIntegrationSuite))
}

func ptr(s string) *string { return &s }

func (s *AutomationIntegrationSuite) TestPing() {
	s.Require().NoError(s.Repo.Ping(s.Ctx))
}

func (s *AutomationIntegrationSuite) TestDailyRun_PersistsFollowUpAndLogs() {
	ctx := s.TenantContext()
	runner, admin := s.Engine(nil)

	rules, err := admin.Seed(ctx)
	s.Require().NoError(err)
	s.Require().Len(rules, 2)

	owner := "8d5c9a3e-0000-4000-8000-000000000001"
	lead := model.NewLead(&model.Lead{Title: "Container Deal", OwnerID: ptr(owner)})
	s.Require().NoError(s.Raw.Table(fmt.Sprintf("%q.leads", storage.SchemaName(s.CompanyID))).Create(lead).Error)

	summary, err := runner.RunDailyAutomations(ctx)
	s.Require().NoError(err)
	s.Equal(usecase.RunSummary{RulesExecuted: 2, TasksCreated: 1, NotificationsCreated: 1}, summary)

	exists, err := s.Repos.Activities.ExistsForEntitySince(ctx, model.EntityTypeLead, lead.ID, utils.Now().Add(-time.Hour))
	s.Require().NoError(err)
	s.True(exists, "task_created audit activity should be recorded")

	logs, err := admin.Logs(ctx, rules[0].ID, 10)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(model.RuleResultSuccess, logs[0].Result)

	var counters map[string]interface{}
	s.Require().NoError(json.Unmarshal(logs[0].Metadata, &counters))
	s.EqualValues(1, counters["tasks_created"])

	// The audit activity keeps the lead fresh for the next run
	second, err := runner.RunDailyAutomations(ctx)
	s.Require().NoError(err)
	s.Equal(0, second.TasksCreated)
}

func (s *AutomationIntegrationSuite) TestDailyRun_PublishesNotificationEvents() {
	ctx := s.TenantContext()
	sub := s.SubscribeNotifications()

	publisher := s.NATSPublisher()
	runner, admin := s.Engine(publisher)
	_, err := admin.Seed(ctx)
	s.Require().NoError(err)

	owner := "8d5c9a3e-0000-4000-8000-000000000002"
	project := model.NewProject(&model.Project{Name: "Quiet Rollout", OwnerID: ptr(owner)})
	s.Require().NoError(s.Raw.Table(fmt.Sprintf("%q.projects", storage.SchemaName(s.CompanyID))).Create(project).Error)

	summary, err := runner.RunDailyAutomations(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.NotificationsCreated)
	publisher.Stop()

	msg, err := sub.NextMsg(10 * time.Second)
	s.Require().NoError(err)

	var event usecase.NotificationCreatedEvent
	s.Require().NoError(json.Unmarshal(msg.Data, &event))
	s.Equal(s.CompanyID, event.CompanyID)
	s.Equal(owner, event.UserProfileID)
	s.Equal(model.NotificationTypeStatusChange, event.Type)
	s.Equal(project.ID, event.EntityID)
	s.Contains(event.Message, "Quiet Rollout")
	s.NotEmpty(msg.Header.Get("Nats-Msg-Id"))
}

func (s *AutomationIntegrationSuite) TestTenantIsolation() {
	ctx := s.TenantContext()
	_, admin := s.Engine(nil)
	_, err := admin.Seed(ctx)
	s.Require().NoError(err)

	otherCompany := "secondcompany"
	otherRepo, err := storage.NewPostgresRepo(s.PostgresDSN, true, otherCompany)
	s.Require().NoError(err)
	defer func() { _ = otherRepo.Close(s.Ctx) }()

	otherCtx := tenant.WithCompanyID(s.Ctx, otherCompany)
	rules, err := storage.NewRepositories(otherRepo).Rules.List(otherCtx)
	s.Require().NoError(err)
	s.Empty(rules, "rules seeded for %s must not leak into %s", s.CompanyID, otherCompany)
}

func (s *AutomationIntegrationSuite) TestSetupStream_Idempotent() {
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.JSClient.SetupStream(s.Ctx, jetstream.NotificationStreamConfig(notificationStream, notificationSubject)))
	}
}
