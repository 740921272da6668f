//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

const (
	DefaultCompanyID     = "defaultcompanyid"
	notificationStream   = "crm_notifications_test"
	notificationSubject  = "v1.notifications.created"
	containerStartupWait = 60 * time.Second
)

// engineTables are truncated between tests.
var engineTables = []string{
	"leads",
	"projects",
	"tasks",
	"notifications",
	"activities",
	"automation_rules",
	"automation_rule_logs",
	"settings",
}

// BaseIntegrationSuite runs the automation engine against real Postgres and NATS containers.
type BaseIntegrationSuite struct {
	suite.Suite
	Postgres    testcontainers.Container
	PostgresDSN string
	NATS        testcontainers.Container
	NATSURL     string
	CompanyID   string

	Repo     *storage.PostgresRepo
	Repos    *storage.Repositories
	JSClient *jetstream.Client
	Raw      *gorm.DB // untenanted handle for assertions and truncation

	Ctx    context.Context
	cancel context.CancelFunc
}

// SetupSuite starts the containers and migrates the company schema.
func (s *BaseIntegrationSuite) SetupSuite() {
	s.Ctx, s.cancel = context.WithCancel(context.Background())
	logger.Log = zaptest.NewLogger(s.T()).Named("integration")
	startTime := time.Now()

	s.CompanyID = os.Getenv("TEST_COMPANY_ID")
	if s.CompanyID == "" {
		s.CompanyID = DefaultCompanyID
	}

	var err error
	s.Postgres, s.PostgresDSN, err = startPostgres(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start postgres: %v", err)
	}
	s.NATS, s.NATSURL, err = startNATSContainer(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start NATS: %v", err)
	}

	s.Repo, err = storage.NewPostgresRepo(s.PostgresDSN, true, s.CompanyID)
	s.Require().NoError(err, "Failed to initialize tenant repository")
	s.Repos = storage.NewRepositories(s.Repo)

	s.Raw, err = gorm.Open(postgres.Open(s.PostgresDSN), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	s.Require().NoError(err)

	s.JSClient, err = jetstream.NewClient(s.NATSURL)
	s.Require().NoError(err)
	s.Require().NoError(s.JSClient.SetupStream(s.Ctx, jetstream.NotificationStreamConfig(notificationStream, notificationSubject)))

	log.Printf("BaseIntegrationSuite setup complete in %v", time.Since(startTime))
}

// TearDownSuite closes connections and terminates the containers.
func (s *BaseIntegrationSuite) TearDownSuite() {
	if s.JSClient != nil {
		s.JSClient.Close()
	}
	if s.Repo != nil {
		_ = s.Repo.Close(s.Ctx)
	}
	if s.Raw != nil {
		if sqlDB, err := s.Raw.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	for _, c := range []testcontainers.Container{s.NATS, s.Postgres} {
		if c == nil {
			continue
		}
		if err := c.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating container: %v", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// SetupTest truncates every engine table in the company schema.
func (s *BaseIntegrationSuite) SetupTest() {
	s.Require().NoError(s.truncate(storage.SchemaName(s.CompanyID)))
}

func (s *BaseIntegrationSuite) truncate(schemaName string) error {
	qualified := make([]string, 0, len(engineTables))
	for _, table := range engineTables {
		qualified = append(qualified, fmt.Sprintf("%q.%s", schemaName, table))
	}
	return s.Raw.Exec("TRUNCATE TABLE " + strings.Join(qualified, ", ") + " CASCADE").Error
}

// TenantContext scopes ctx to the suite company.
func (s *BaseIntegrationSuite) TenantContext() context.Context {
	return tenant.WithCompanyID(s.Ctx, s.CompanyID)
}

// Engine wires the daily runner on the suite repositories with the given publisher.
func (s *BaseIntegrationSuite) Engine(publisher usecase.NotificationPublisher) (*usecase.DailyRunner, *usecase.RuleAdmin) {
	log := zaptest.NewLogger(s.T())
	repos := s.Repos
	detector := usecase.NewStaleDetector(repos.Leads, repos.Projects, repos.Tasks, repos.Activities,
		usecase.NewRepoSettingsProvider(repos.Settings, log), usecase.DefaultDetectorConfig(), log)
	executor := usecase.NewRuleExecutor(detector, repos.Tasks, repos.Notifications, repos.Activities, publisher, log).
		WithRuleDefaults(usecase.DefaultDetectorConfig())
	return usecase.NewDailyRunner(repos.Rules, repos.RuleLogs, executor, log),
		usecase.NewRuleAdmin(repos.Rules, repos.RuleLogs, repos.Settings, log)
}

// NATSPublisher builds a notification publisher on the suite JetStream client.
func (s *BaseIntegrationSuite) NATSPublisher() *usecase.NATSNotificationPublisher {
	publisher, err := usecase.NewNATSNotificationPublisher(config.PublisherWorkerPoolConfig{
		PoolSize:   2,
		QueueSize:  100,
		ExpiryTime: time.Minute,
	}, s.JSClient, notificationSubject, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	return publisher
}

// SubscribeNotifications binds a synchronous subscription to the company's notification subject.
func (s *BaseIntegrationSuite) SubscribeNotifications() *natsgo.Subscription {
	nc, err := natsgo.Connect(s.NATSURL, natsgo.Name("integration-subscriber "+s.T().Name()))
	s.Require().NoError(err)
	s.T().Cleanup(nc.Close)

	js, err := nc.JetStream()
	s.Require().NoError(err)
	sub, err := js.SubscribeSync(notificationSubject+"."+s.CompanyID,
		natsgo.BindStream(notificationStream),
		natsgo.DeliverNew(),
	)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = sub.Unsubscribe() })
	logger.Log.Debug("Subscribed to notification events", zap.String("subject", sub.Subject))
	return sub
}
