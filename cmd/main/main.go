package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/healthcheck"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/scheduler"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting CRM automation service",
		zap.String("environment", cfg.Environment),
		zap.String("company_id", cfg.Company.ID),
		zap.String("cron", cfg.Automation.Cron),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate, cfg.Company.ID)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}
	repos := storage.NewRepositories(postgresRepo)

	mainCtx, mainCancel := context.WithCancel(tenant.WithCompanyID(context.Background(), cfg.Company.ID))
	defer mainCancel()

	var jsClient *jetstream.Client
	var publisher usecase.NotificationPublisher = usecase.NoopNotificationPublisher{}
	if cfg.NATS.Enabled {
		jsClient, err = initJetStreamClient(mainCtx, cfg)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}
		natsPublisher, err := usecase.NewNATSNotificationPublisher(cfg.WorkerPools.Publisher, jsClient, cfg.NATS.NotificationSubject, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to initialize notification publisher", zap.Error(err))
		}
		publisher = natsPublisher
	} else {
		logger.Log.Info("NATS disabled, notification events will not be published")
	}

	settings := usecase.NewRepoSettingsProvider(repos.Settings, logger.Log)
	windows := usecase.DetectorConfig{StaleLeadDays: cfg.Automation.StaleLeadDays, StaleProjectDays: cfg.Automation.StaleProjectDays}
	detector := usecase.NewStaleDetector(repos.Leads, repos.Projects, repos.Tasks, repos.Activities, settings, windows, logger.Log)
	executor := usecase.NewRuleExecutor(detector, repos.Tasks, repos.Notifications, repos.Activities, publisher, logger.Log).
		WithRuleDefaults(windows)
	runner := usecase.NewDailyRunner(repos.Rules, repos.RuleLogs, executor, logger.Log)

	dailyScheduler, err := scheduler.New(mainCtx, cfg.Automation, runner, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize scheduler", zap.Error(err))
	}

	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), postgresRepo, logger.Log)
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled", zap.String("environment", cfg.Environment))
	}
	healthServer.RegisterAutomationTrigger(runner, cfg.Company.ID)
	healthServer.Start()

	logger.Log.Info("HTTP endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
		zap.String("manual_run", fmt.Sprintf("http://localhost:%d/automations/daily/run", cfg.Server.Port)),
	)

	dailyScheduler.Start()
	if cfg.Automation.RunOnStart {
		if err := dailyScheduler.RunNow(); err != nil {
			logger.Log.Error("Failed to trigger startup run", zap.Error(err))
		} else {
			logger.Log.Info("Startup run triggered")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Cancels any in-flight run; the runner stops between entities.
	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", shutdownTimeout))

	var wg sync.WaitGroup

	// Scheduler first so no new run starts while dependencies go away
	wg.Add(1)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping scheduler")
		start := time.Now()
		if err := dailyScheduler.Stop(); err != nil {
			logger.Log.Error("[shutdown] Error stopping scheduler", zap.Error(err))
			return
		}
		logger.Log.Info("[shutdown] Scheduler stopped", zap.Duration("duration", time.Since(start)))
	}, shutdownPanicHandler("scheduler"))
	wg.Wait()

	wg.Add(2)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
			return
		}
		logger.Log.Info("[shutdown] Health check server stopped", zap.Duration("duration", time.Since(start)))
	}, shutdownPanicHandler("health check server"))

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping notification publisher")
		start := time.Now()
		publisher.Stop()
		logger.Log.Info("[shutdown] Notification publisher stopped", zap.Duration("duration", time.Since(start)))
	}, shutdownPanicHandler("notification publisher"))

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("[shutdown] Closing PostgreSQL connection")
	if err := postgresRepo.Close(shutdownCtx); err != nil {
		logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
	}
	if jsClient != nil {
		logger.Log.Info("[shutdown] Closing JetStream connection")
		jsClient.Close()
	}

	logger.Log.Info("CRM automation service shutdown complete")
}

// shutdownPanicHandler only logs; the deferred wg.Done in each stop func already ran.
func shutdownPanicHandler(component string) utils.RecoverFn {
	return func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping "+component,
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
	}
}

func initPostgresRepo(dsn string, autoMigrate bool, companyID string) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

func initJetStreamClient(ctx context.Context, cfg *config.Config) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	if err := client.SetupStream(ctx, jetstream.NotificationStreamConfig(cfg.NATS.Stream, cfg.NATS.NotificationSubject)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set up notification stream: %w", err)
	}
	return client, nil
}
