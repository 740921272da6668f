package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

const (
	dailyJobName = "daily_automations"
	dailyJobTag  = "automation"
	stopTimeout  = 30 * time.Second
)

// zapLogger adapts zap to gocron.Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any) { l.sugar.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any) { l.sugar.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// DailyScheduler fires the daily runner on the configured cron expression.
// The job runs in singleton mode: a fire that lands while a run is still in progress is skipped,
// and the job waits for its next cron slot.
type DailyScheduler struct {
	scheduler  gocron.Scheduler
	job        gocron.Job
	runner     usecase.DailyAutomationRunner
	cfg        config.AutomationConfig
	baseCtx    context.Context
	baseLogger *zap.Logger
}

// New creates the scheduler and registers the daily job. baseCtx carries the tenant and is the
// parent of every run context.
func New(baseCtx context.Context, cfg config.AutomationConfig, runner usecase.DailyAutomationRunner, baseLogger *zap.Logger) (*DailyScheduler, error) {
	log := baseLogger.Named("scheduler")
	s := &DailyScheduler{
		runner:     runner,
		cfg:        cfg,
		baseCtx:    baseCtx,
		baseLogger: log,
	}

	sched, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(zapLogger{sugar: log.Sugar()}),
		gocron.WithStopTimeout(stopTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	job, err := sched.NewJob(
		gocron.CronJob(cfg.Cron, false),
		gocron.NewTask(s.runOnce),
		gocron.WithName(dailyJobName),
		gocron.WithTags(dailyJobTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
				log.Error("Scheduled job failed", zap.String("job_id", jobID.String()), zap.String("job_name", jobName), zap.Error(err))
			}),
		),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule daily automations with cron %q: %w", cfg.Cron, err)
	}

	s.scheduler = sched
	s.job = job
	return s, nil
}

// Start begins firing the job.
func (s *DailyScheduler) Start() {
	s.scheduler.Start()
	next, err := s.NextRun()
	if err != nil {
		s.baseLogger.Warn("Daily automations scheduled, next run unknown", zap.String("cron", s.cfg.Cron), zap.Error(err))
		return
	}
	s.baseLogger.Info("Daily automations scheduled",
		zap.String("cron", s.cfg.Cron),
		zap.String("job_id", s.job.ID().String()),
		zap.Time("next_run", next),
	)
}

// NextRun returns the next scheduled fire time.
func (s *DailyScheduler) NextRun() (time.Time, error) {
	return s.job.NextRun()
}

// RunNow fires the job immediately, still subject to singleton mode. Used for automation.runOnStart.
func (s *DailyScheduler) RunNow() error {
	return s.job.RunNow()
}

// Stop shuts down the scheduler, waiting for a running job up to the stop timeout.
func (s *DailyScheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		s.baseLogger.Error("Error shutting down gocron scheduler", zap.Error(err))
		return err
	}
	s.baseLogger.Info("Gocron scheduler shut down successfully")
	return nil
}

// runOnce is the gocron task body.
func (s *DailyScheduler) runOnce() error {
	ctx := s.baseCtx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	ctx = logger.WithLogger(ctx, s.baseLogger)

	summary, err := s.runner.RunDailyAutomations(ctx)
	if err != nil {
		return fmt.Errorf("daily automations failed: %w", err)
	}
	if summary.Errors > 0 {
		logger.FromContext(ctx).Warn("Daily automations finished with rule errors", zap.Int("errors", summary.Errors))
	}
	return nil
}
