package scenario

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/selector"
)

// DefaultDiminishingThreshold - прирост покрытия на площадку, ниже которого
// отдача считается убывающей (1 п.п.)
const DefaultDiminishingThreshold = 0.01

// Config - параметры оркестратора
type Config struct {
	// Parallelism - одновременных решений; 0 = GOMAXPROCS
	Parallelism          int
	DiminishingThreshold float64
}

// Request - сетка сценариев для одного региона
type Request struct {
	Region   string
	Coverage map[domain.TravelMode]*domain.CoverageArtifact
	KValues  []int
	Equity   bool
	Theta    float64
}

// Validate отклоняет запрос до начала решений
func (r *Request) Validate() error {
	if len(r.Coverage) == 0 {
		return errors.ErrInvalidRequest.Withf("no coverage relations for region %q", r.Region)
	}
	if len(r.KValues) == 0 {
		return errors.ErrInvalidK.Withf("no K values")
	}
	for _, k := range r.KValues {
		if k <= 0 {
			return errors.ErrInvalidK.Withf("got %d", k)
		}
	}
	for mode, a := range r.Coverage {
		if a == nil || a.Relation == nil {
			return errors.ErrInvalidRelation.Withf("coverage for mode %s is missing", mode)
		}
	}
	if r.Equity && (math.IsNaN(r.Theta) || r.Theta < 0 || r.Theta > 1) {
		return errors.ErrInvalidEquityThreshold.Withf("got %v", r.Theta)
	}
	return nil
}

// Orchestrator прогоняет выбор площадок по всем парам (режим, K)
// и считает производные ряды. Отношения покрытия только читаются.
type Orchestrator struct {
	strategy selector.Strategy
	cfg      Config
	logger   *zap.Logger
}

// NewOrchestrator создает новый Orchestrator
func NewOrchestrator(strategy selector.Strategy, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.GOMAXPROCS(0)
	}
	if cfg.DiminishingThreshold <= 0 {
		cfg.DiminishingThreshold = DefaultDiminishingThreshold
	}
	return &Orchestrator{strategy: strategy, cfg: cfg, logger: logger}
}

type job struct {
	mode     domain.TravelMode
	k        int
	artifact *domain.CoverageArtifact
}

// Run решает все сценарии. Фатальная ошибка любого решения прерывает прогон;
// нефатальная (решатель недоступен без возможности отката) сохраняется в результате.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.ScenarioRun, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	modes := sortedModes(req.Coverage)
	ks := uniqueSorted(req.KValues)

	jobs := make([]job, 0, len(modes)*len(ks))
	for _, m := range modes {
		for _, k := range ks {
			jobs = append(jobs, job{mode: m, k: k, artifact: req.Coverage[m]})
		}
	}

	results := make([]*domain.ScenarioResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)

	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			res, err := o.solve(gctx, j, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run := domain.NewScenarioRun(req.Region, o.strategy.Name())
	for _, res := range results {
		run.Put(res)
	}
	for _, m := range modes {
		run.Analysis[m] = Analyze(run.Ordered(m), o.cfg.DiminishingThreshold)
	}

	o.logger.Info("Scenario run completed",
		zap.String("run_id", run.ID.String()),
		zap.String("region", req.Region),
		zap.Int("modes", len(modes)),
		zap.Ints("k_values", ks),
		zap.Bool("equity", req.Equity),
		zap.Duration("duration", time.Since(start)))

	return run, nil
}

func (o *Orchestrator) solve(ctx context.Context, j job, req Request) (*domain.ScenarioResult, error) {
	p := selector.NewProblem(j.artifact, j.k)
	if req.Equity {
		p = p.WithEquity(req.Theta)
	}

	res := &domain.ScenarioResult{Mode: j.mode, K: j.k}

	sol, err := o.strategy.Solve(ctx, p)
	if err != nil {
		if errors.IsFatal(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("solve %s K=%d: %w", j.mode, j.k, err)
		}
		o.logger.Warn("Scenario solved without a feasible selection",
			zap.String("region", req.Region),
			zap.String("mode", string(j.mode)),
			zap.Int("k", j.k),
			zap.String("code", errors.CodeOf(err)),
			zap.Error(err))
		res.Error = err.Error()
		if sol == nil {
			sol = &domain.Solution{
				Selected:   []int32{},
				Covered:    []int32{},
				Provenance: domain.Provenance{Status: domain.StatusInfeasible},
			}
		}
	}

	res.Solution = sol
	res.Sites = Recommend(j.artifact, sol.Selected)

	o.logger.Debug("Scenario solved",
		zap.String("mode", string(j.mode)),
		zap.Int("k", j.k),
		zap.String("status", string(sol.Status())),
		zap.Float64("covered_weight", sol.CoveredWeight),
		zap.Float64("coverage_rate", sol.CoverageRate))

	return res, nil
}

func sortedModes(cov map[domain.TravelMode]*domain.CoverageArtifact) []domain.TravelMode {
	modes := make([]domain.TravelMode, 0, len(cov))
	for m := range cov {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

func uniqueSorted(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
