package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

const defaultBatchSize = 50

// seedTask is one batch handed to a pool worker.
type seedTask struct {
	leads    *leadBatch
	projects *projectBatch
}

type seedCounters struct {
	leads, activities, projects, tasks, failedBatches atomic.Int64
}

func main() {
	time.Local = time.UTC

	configPath := flag.String("config", "", "directory containing default.yaml")
	leadCount := flag.Int("leads", 200, "number of contacted leads to create")
	projectCount := flag.Int("projects", 40, "number of active projects to create")
	staleRatio := flag.Float64("stale-ratio", 0.3, "share of leads/projects generated without recent activity (0-1)")
	concurrency := flag.Int("concurrency", 4, "number of concurrent insert workers")
	batchSize := flag.Int("batch-size", defaultBatchSize, "entities per insert batch")
	seed := flag.Int64("seed", 0, "gofakeit seed (0 picks one from the clock)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "CRM demo data seeder\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Loads owned, contacted leads and active projects, part of them stale, into the company schema.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	observer.InitMetrics(false)

	if *batchSize <= 0 {
		*batchSize = defaultBatchSize
	}
	if *staleRatio < 0 || *staleRatio > 1 {
		logger.Log.Fatal("stale-ratio must be between 0 and 1", zap.Float64("stale_ratio", *staleRatio))
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	gofakeit.Seed(*seed)

	repo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, true, cfg.Company.ID)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}
	defer func() { _ = repo.Close(context.Background()) }()

	ctx, stop := signal.NotifyContext(tenant.WithCompanyID(context.Background(), cfg.Company.ID), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("Seeding demo data",
		zap.String("company_id", cfg.Company.ID),
		zap.Int("leads", *leadCount),
		zap.Int("projects", *projectCount),
		zap.Float64("stale_ratio", *staleRatio),
		zap.Int("concurrency", *concurrency),
		zap.Int64("seed", *seed),
	)

	var counters seedCounters
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(*concurrency, func(data interface{}) {
		defer wg.Done()
		task, ok := data.(seedTask)
		if !ok {
			logger.Log.Error("Invalid seed task type received", zap.Any("data", data))
			return
		}
		insertSeedTask(ctx, repo, task, &counters)
	}, ants.WithPanicHandler(func(p interface{}) {
		logger.Log.Error("Panic recovered in seed worker", zap.Any("panic", p), zap.Stack("stack"))
	}))
	if err != nil {
		logger.Log.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	start := time.Now()
	now := utils.Now()
	for _, task := range planTasks(*leadCount, *projectCount, *batchSize, *staleRatio, now) {
		if ctx.Err() != nil {
			logger.Log.Warn("Seeding interrupted, waiting for in-flight batches")
			break
		}
		wg.Add(1)
		if err := pool.Invoke(task); err != nil {
			wg.Done()
			counters.failedBatches.Add(1)
			logger.Log.Error("Failed to submit seed batch", zap.Error(err))
		}
	}
	wg.Wait()

	logger.Log.Info("Seeding finished",
		zap.Int64("leads", counters.leads.Load()),
		zap.Int64("activities", counters.activities.Load()),
		zap.Int64("projects", counters.projects.Load()),
		zap.Int64("tasks", counters.tasks.Load()),
		zap.Int64("failed_batches", counters.failedBatches.Load()),
		zap.Duration("duration", time.Since(start)),
	)
	if counters.failedBatches.Load() > 0 {
		os.Exit(1)
	}
}

// planTasks splits the requested volume into batches.
func planTasks(leads, projects, batchSize int, staleRatio float64, now time.Time) []seedTask {
	var tasks []seedTask
	for remaining := leads; remaining > 0; remaining -= batchSize {
		batch := generateLeadBatch(min(batchSize, remaining), staleRatio, now)
		tasks = append(tasks, seedTask{leads: &batch})
	}
	for remaining := projects; remaining > 0; remaining -= batchSize {
		batch := generateProjectBatch(min(batchSize, remaining), staleRatio, now)
		tasks = append(tasks, seedTask{projects: &batch})
	}
	return tasks
}

// batchInserter is the storage surface the seeder writes through.
type batchInserter interface {
	InsertBatch(ctx context.Context, entity string, records interface{}) error
}

func insertSeedTask(ctx context.Context, repo batchInserter, task seedTask, counters *seedCounters) {
	log := logger.FromContext(ctx)

	if b := task.leads; b != nil {
		if err := repo.InsertBatch(ctx, "lead", b.Leads); err != nil {
			counters.failedBatches.Add(1)
			log.Error("Lead batch failed", zap.Int("size", len(b.Leads)), zap.Error(err))
			return
		}
		counters.leads.Add(int64(len(b.Leads)))
		if err := repo.InsertBatch(ctx, "activity", b.Activities); err != nil {
			counters.failedBatches.Add(1)
			log.Error("Activity batch failed", zap.Int("size", len(b.Activities)), zap.Error(err))
			return
		}
		counters.activities.Add(int64(len(b.Activities)))
	}

	if b := task.projects; b != nil {
		if err := repo.InsertBatch(ctx, "project", b.Projects); err != nil {
			counters.failedBatches.Add(1)
			log.Error("Project batch failed", zap.Int("size", len(b.Projects)), zap.Error(err))
			return
		}
		counters.projects.Add(int64(len(b.Projects)))
		if len(b.Tasks) == 0 {
			return
		}
		if err := repo.InsertBatch(ctx, "task", b.Tasks); err != nil {
			counters.failedBatches.Add(1)
			log.Error("Task batch failed", zap.Int("size", len(b.Tasks)), zap.Error(err))
			return
		}
		counters.tasks.Add(int64(len(b.Tasks)))
	}
}
