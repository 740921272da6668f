package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// cliApp is the engine wired for one CLI invocation.
type cliApp struct {
	cfg       *config.Config
	detector  *usecase.StaleDetector
	runner    *usecase.DailyRunner
	admin     *usecase.RuleAdmin
	publisher usecase.NotificationPublisher
	closers   []func(ctx context.Context)
}

// appOpener builds the app from configuration. Tests swap it for a sqlite backed one.
type appOpener func(ctx context.Context, cfg *config.Config) (*cliApp, error)

// openApp connects to Postgres and, when enabled, NATS.
func openApp(ctx context.Context, cfg *config.Config) (*cliApp, error) {
	if cfg.Database.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	db, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate, cfg.Company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	var publisher usecase.NotificationPublisher = usecase.NoopNotificationPublisher{}
	var jsClient *jetstream.Client
	if cfg.NATS.Enabled {
		jsClient, err = jetstream.NewClient(cfg.NATS.URL)
		if err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to create JetStream client: %w", err)
		}
		if err := jsClient.SetupStream(ctx, jetstream.NotificationStreamConfig(cfg.NATS.Stream, cfg.NATS.NotificationSubject)); err != nil {
			jsClient.Close()
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to set up notification stream: %w", err)
		}
		natsPublisher, err := usecase.NewNATSNotificationPublisher(cfg.WorkerPools.Publisher, jsClient, cfg.NATS.NotificationSubject, logger.Log)
		if err != nil {
			jsClient.Close()
			_ = db.Close(ctx)
			return nil, err
		}
		publisher = natsPublisher
	}

	app := buildApp(cfg, db, publisher)
	if jsClient != nil {
		app.closers = append(app.closers, func(context.Context) { jsClient.Close() })
	}
	app.closers = append(app.closers, func(ctx context.Context) {
		if err := db.Close(ctx); err != nil {
			logger.Log.Warn("Failed to close database", zap.Error(err))
		}
	})
	return app, nil
}

// buildApp wires the engine on an open repository.
func buildApp(cfg *config.Config, db *storage.PostgresRepo, publisher usecase.NotificationPublisher) *cliApp {
	repos := storage.NewRepositories(db)
	settings := usecase.NewRepoSettingsProvider(repos.Settings, logger.Log)
	windows := usecase.DetectorConfig{StaleLeadDays: cfg.Automation.StaleLeadDays, StaleProjectDays: cfg.Automation.StaleProjectDays}
	detector := usecase.NewStaleDetector(repos.Leads, repos.Projects, repos.Tasks, repos.Activities, settings, windows, logger.Log)
	executor := usecase.NewRuleExecutor(detector, repos.Tasks, repos.Notifications, repos.Activities, publisher, logger.Log).
		WithRuleDefaults(windows)

	return &cliApp{
		cfg:       cfg,
		detector:  detector,
		runner:    usecase.NewDailyRunner(repos.Rules, repos.RuleLogs, executor, logger.Log),
		admin:     usecase.NewRuleAdmin(repos.Rules, repos.RuleLogs, repos.Settings, logger.Log),
		publisher: publisher,
	}
}

// tenantContext scopes ctx to the configured company.
func (a *cliApp) tenantContext(ctx context.Context) context.Context {
	return tenant.WithCompanyID(ctx, a.cfg.Company.ID)
}

// Close flushes pending notification events and releases connections.
func (a *cliApp) Close(ctx context.Context) {
	a.publisher.Stop()
	for _, closeFn := range a.closers {
		closeFn(ctx)
	}
}
