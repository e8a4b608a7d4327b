package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/siting-service/internal/config"
	"github.com/siting-service/internal/coverage"
	probe "github.com/siting-service/internal/delivery/http"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/logger"
	"github.com/siting-service/internal/repository/cache"
	"github.com/siting-service/internal/repository/filesource"
	"github.com/siting-service/internal/repository/postgres"
	redisRepo "github.com/siting-service/internal/repository/redis"
	"github.com/siting-service/internal/scenario"
	"github.com/siting-service/internal/selector"
	"github.com/siting-service/internal/usecase"
	"github.com/siting-service/internal/worker"
	"github.com/siting-service/internal/worker/planning"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Check if worker is enabled
	if !cfg.Worker.Enabled {
		fmt.Println("Worker is disabled in configuration. Set WORKER_ENABLED=true to enable.")
		os.Exit(0)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level, "worker")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Scenario Planning Worker")
	log.Info("Configuration loaded",
		zap.String("consumer_group", cfg.Worker.ConsumerGroup),
		zap.Int64("batch_size", cfg.Worker.BatchSize),
		zap.Int("max_retries", cfg.Worker.MaxRetries),
		zap.String("solver_strategy", cfg.Solver.Strategy),
		zap.Duration("solver_timeout", cfg.Solver.Timeout))

	// 3. Connect to PostgreSQL
	db, err := postgres.New(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close PostgreSQL connection", zap.Error(err))
		}
	}()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = db.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 4. Connect to Redis (cache) and Redis Streams
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	streamsClient, err := cache.NewRedisStreams(&cfg.RedisStreams, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis Streams", zap.Error(err))
	}
	defer func() {
		if err := streamsClient.Close(); err != nil {
			log.Error("Failed to close Redis Streams connection", zap.Error(err))
		}
	}()

	// 5. Initialize repositories
	coverageRepo := postgres.NewCoverageRepository(db)
	scenarioRepo := postgres.NewScenarioRepository(db)
	cacheRepo := cache.NewCacheRepository(redisClient)
	streamRepo := redisRepo.NewStreamRepository(streamsClient, log)

	// Без плана worker работает только с уже построенным покрытием
	var source repository.LocationSource
	if cfg.Coverage.PlanPath != "" {
		plan, err := config.LoadPlan(cfg.Coverage.PlanPath)
		if err != nil {
			log.Fatal("Failed to load coverage plan", zap.String("path", cfg.Coverage.PlanPath), zap.Error(err))
		}
		source = filesource.NewPlanSource(plan, log)
		log.Info("Missing coverage will be built on demand",
			zap.String("plan", cfg.Coverage.PlanPath),
			zap.Int("regions", len(plan.Regions)))
	}

	// 6. Initialize use cases
	builder := coverage.NewBuilder(coverage.Config{
		Workers:   cfg.Coverage.Workers,
		SnapWarnM: cfg.Coverage.SnapWarnM,
	}, log)

	coverageUC := usecase.NewCoverageUseCase(coverageRepo, cacheRepo, source, builder, usecase.CoverageConfig{
		CacheTTL: cfg.Cache.CoverageTTL,
		LockTTL:  cfg.Cache.LockTTL,
		LockWait: cfg.Cache.LockWait,
	}, log)

	planningUC := usecase.NewPlanningUseCase(coverageUC, scenarioRepo, usecase.PlanningConfig{
		Solver: selector.Config{
			Strategy:     cfg.Solver.Strategy,
			Timeout:      cfg.Solver.Timeout,
			MaxVariables: cfg.Solver.MaxVariables,
		},
		Scenario: scenario.Config{
			Parallelism:          cfg.Scenario.Parallelism,
			DiminishingThreshold: cfg.Scenario.DiminishingThreshold,
		},
		EquityThreshold: cfg.Solver.EquityThreshold,
	}, log)

	// 7. Initialize workers
	scenarioWorker := planning.NewScenarioWorker(streamRepo, planningUC, planning.Config{
		ConsumerGroup: cfg.Worker.ConsumerGroup,
		BatchSize:     cfg.Worker.BatchSize,
		PollInterval:  cfg.Worker.PollInterval,
		MaxRetries:    cfg.Worker.MaxRetries,
	}, log)

	// 8. Create worker manager and register workers
	workerManager := worker.NewWorkerManager(log)
	// текущий расчёт может занять до SOLVER_TIMEOUT
	workerManager.SetShutdownTimeout(cfg.Solver.Timeout + 10*time.Second)
	workerManager.Register(scenarioWorker)

	// 9. Probe server
	probeServer := probe.NewServer(cfg.GetProbeAddr(), log)
	probeServer.AddCheck("postgres", db)
	probeServer.AddCheck("redis", redisClient)
	probeServer.AddCheck("redis_streams", probe.HealthCheckFunc(func(ctx context.Context) error {
		return streamsClient.Ping(ctx).Err()
	}))
	go func() {
		if err := probeServer.Start(); err != nil {
			log.Error("Probe server stopped", zap.Error(err))
		}
	}()

	// 10. Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Received shutdown signal")

	// Сначала останавливаем воркеры, чтобы текущий батч успел подтвердиться
	if err := workerManager.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := probeServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping probe server", zap.Error(err))
	}

	log.Info("Worker shutdown complete")
}
