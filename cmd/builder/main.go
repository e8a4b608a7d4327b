package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/siting-service/internal/config"
	"github.com/siting-service/internal/coverage"
	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/logger"
	"github.com/siting-service/internal/repository/cache"
	"github.com/siting-service/internal/repository/filesource"
	"github.com/siting-service/internal/repository/postgres"
	"github.com/siting-service/internal/scenario"
	"github.com/siting-service/internal/selector"
	"github.com/siting-service/internal/usecase"
)

func main() {
	envFile := flag.String("env", ".env", "env file with connection settings")
	planPath := flag.String("plan", "", "YAML plan (default COVERAGE_PLAN_PATH)")
	only := flag.String("region", "", "build only this region")
	force := flag.Bool("force", false, "rebuild coverage even if it is stored")
	skipScenarios := flag.Bool("skip-scenarios", false, "do not solve scenarios from the plan")
	outDir := flag.String("out", "", "also write coverage artifacts as JSON into this directory")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if *planPath == "" {
		*planPath = cfg.Coverage.PlanPath
	}
	if *planPath == "" {
		fmt.Fprintln(os.Stderr, "No plan given. Use -plan or set COVERAGE_PLAN_PATH.")
		os.Exit(2)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level, "builder")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	// 3. Load plan
	plan, err := config.LoadPlan(*planPath)
	if err != nil {
		log.Fatal("Failed to load plan", zap.String("path", *planPath), zap.Error(err))
	}
	log.Info("Plan loaded",
		zap.String("path", *planPath),
		zap.String("data_dir", plan.DataDir),
		zap.Int("regions", len(plan.Regions)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Connect to PostgreSQL and migrate
	db, err := postgres.New(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close PostgreSQL connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 5. Connect to Redis; без Redis строим без кеша и блокировок
	var cacheRepo repository.CacheRepository
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, building without cache and locks", zap.Error(err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Failed to close Redis connection", zap.Error(err))
			}
		}()
		cacheRepo = cache.NewCacheRepository(redisClient)
	}

	// 6. Initialize repositories and use cases
	coverageRepo := postgres.NewCoverageRepository(db)
	scenarioRepo := postgres.NewScenarioRepository(db)
	source := filesource.NewPlanSource(plan, log)
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

	// 7. Build coverage per region/mode
	failed := 0
	var planned []string
	for _, region := range plan.Regions {
		if *only != "" && region.Name != *only {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		ok := buildRegion(ctx, log, coverageUC, plan, &region, *force, *outDir)
		if !ok {
			failed++
			continue
		}

		// 8. Solve scenarios from the plan
		if plan.Scenarios == nil || *skipScenarios {
			continue
		}
		if err := solveRegion(ctx, log, planningUC, plan, &region); err != nil {
			log.Error("Scenarios failed", zap.String("region", region.Name), zap.Error(err))
			failed++
			continue
		}
		planned = append(planned, region.Name)
	}

	// 9. Compare regions
	if len(planned) > 1 {
		cmp, err := planningUC.Compare(ctx, planned)
		if err != nil {
			log.Error("Failed to compare regions", zap.Error(err))
		} else {
			log.Info("Regional comparison",
				zap.Int("regions", cmp.Summary.TotalRegions),
				zap.Int("solutions", cmp.Summary.TotalSolutions),
				zap.Any("by_mode", cmp.ByMode))
		}
	}

	if failed > 0 {
		log.Error("Builder finished with errors", zap.Int("failed", failed))
		log.Sync()
		os.Exit(1)
	}
	log.Info("Builder finished")
}

func buildRegion(ctx context.Context, log *zap.Logger, uc *usecase.CoverageUseCase, plan *config.Plan, region *config.RegionPlan, force bool, outDir string) bool {
	ok := true
	for _, mode := range region.Modes() {
		key := domain.CoverageKey{
			Region:        region.Name,
			Mode:          mode,
			TimeBudgetMin: plan.Budget(mode),
		}

		start := time.Now()
		var (
			artifact *domain.CoverageArtifact
			err      error
		)
		if force {
			artifact, err = uc.Build(ctx, key)
		} else {
			artifact, err = uc.Get(ctx, key)
		}
		if err != nil {
			log.Error("Coverage build failed", zap.String("key", key.String()), zap.Error(err))
			ok = false
			continue
		}

		summary := coverage.Summarize(artifact)
		log.Info("Coverage ready",
			zap.String("key", key.String()),
			zap.Int("demand", artifact.NumDemand()),
			zap.Int("supply", artifact.NumSupply()),
			zap.Int("links", artifact.Relation.Links()),
			zap.Float64("coverage_rate", summary.CoverageRate),
			zap.Float64("coverable_weight", summary.CoverableWeight),
			zap.Int("warnings", len(artifact.Warnings)),
			zap.Duration("duration", time.Since(start)))

		if outDir != "" {
			path, err := writeArtifact(outDir, artifact)
			if err != nil {
				log.Error("Failed to write artifact", zap.String("key", key.String()), zap.Error(err))
				ok = false
				continue
			}
			log.Info("Artifact written", zap.String("path", path))
		}
	}
	return ok
}

// writeArtifact пишет артефакт в <dir>/<region>_<mode>_<budget>min.json
func writeArtifact(dir string, artifact *domain.CoverageArtifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", err
	}

	name := strings.ReplaceAll(artifact.Key.String(), ":", "_") + "min.json"
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, data, 0o644)
}

func solveRegion(ctx context.Context, log *zap.Logger, uc *usecase.PlanningUseCase, plan *config.Plan, region *config.RegionPlan) error {
	req := usecase.PlanRequest{
		Region:   region.Name,
		Budgets:  make(map[domain.TravelMode]float64),
		KValues:  plan.Scenarios.KValues,
		Strategy: plan.Scenarios.Strategy,
		Equity:   plan.Scenarios.EquityThreshold != nil,
		Theta:    plan.Scenarios.EquityThreshold,
	}
	for _, mode := range region.Modes() {
		req.Budgets[mode] = plan.Budget(mode)
	}

	run, err := uc.Plan(ctx, req)
	if err != nil {
		return err
	}

	for _, mode := range run.Modes() {
		for _, res := range run.Ordered(mode) {
			fields := []zap.Field{
				zap.String("run_id", run.ID.String()),
				zap.String("region", run.Region),
				zap.String("mode", string(mode)),
				zap.Int("k", res.K),
			}
			if res.Solution == nil {
				log.Warn("Scenario without solution", append(fields, zap.String("error", res.Error))...)
				continue
			}
			log.Info("Scenario solved", append(fields,
				zap.String("status", string(res.Solution.Provenance.Status)),
				zap.String("algorithm", string(res.Solution.Provenance.Algorithm)),
				zap.Float64("coverage_rate", res.Solution.CoverageRate),
				zap.Int("recommended_sites", len(res.Sites)))...)
		}
		if a := run.Analysis[mode]; a != nil {
			for _, p := range a.Efficiency {
				if p.DiminishingReturns {
					log.Info("Diminishing returns reached",
						zap.String("region", run.Region),
						zap.String("mode", string(mode)),
						zap.Int("k", p.K),
						zap.Float64("marginal_coverage_per_site", p.MarginalCoveragePerSite))
					break
				}
			}
		}
	}
	return nil
}
