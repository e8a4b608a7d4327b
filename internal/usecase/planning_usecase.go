package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/scenario"
	"github.com/siting-service/internal/selector"
)

// CoverageProvider - источник артефактов покрытия для планирования
type CoverageProvider interface {
	Get(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error)
}

// PlanningConfig - параметры решателя и оркестратора по умолчанию
type PlanningConfig struct {
	Solver          selector.Config
	Scenario        scenario.Config
	EquityThreshold float64
}

// PlanRequest - сценарии для одного региона
type PlanRequest struct {
	Region string
	// Budgets - бюджет времени в минутах для каждого режима
	Budgets  map[domain.TravelMode]float64
	KValues  []int
	Strategy string // пусто = из конфигурации
	Equity   bool
	Theta    *float64 // nil = порог из конфигурации
}

// PlanningUseCase - расчёт сценариев по сохранённому покрытию
type PlanningUseCase struct {
	coverage     CoverageProvider
	scenarioRepo repository.ScenarioRepository
	cfg          PlanningConfig
	logger       *zap.Logger
}

// NewPlanningUseCase создает новый PlanningUseCase
func NewPlanningUseCase(
	coverage CoverageProvider,
	scenarioRepo repository.ScenarioRepository,
	cfg PlanningConfig,
	logger *zap.Logger,
) *PlanningUseCase {
	return &PlanningUseCase{
		coverage:     coverage,
		scenarioRepo: scenarioRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// Plan загружает покрытие по всем режимам, решает сетку (режим, K)
// и сохраняет прогон
func (uc *PlanningUseCase) Plan(ctx context.Context, req PlanRequest) (*domain.ScenarioRun, error) {
	if strings.TrimSpace(req.Region) == "" {
		return nil, errors.ErrInvalidRequest.Withf("region is required")
	}
	if len(req.Budgets) == 0 {
		return nil, errors.ErrInvalidRequest.Withf("no travel modes for region %q", req.Region)
	}
	if len(req.KValues) == 0 {
		return nil, errors.ErrInvalidK.Withf("no K values")
	}
	for _, k := range req.KValues {
		if k <= 0 {
			return nil, errors.ErrInvalidK.Withf("got %d", k)
		}
	}

	theta := uc.cfg.EquityThreshold
	if req.Theta != nil {
		theta = *req.Theta
	}
	if req.Equity && (math.IsNaN(theta) || theta < 0 || theta > 1) {
		return nil, errors.ErrInvalidEquityThreshold.Withf("got %v", theta)
	}

	solverCfg := uc.cfg.Solver
	if req.Strategy != "" {
		solverCfg.Strategy = req.Strategy
	}
	if req.Equity && strings.EqualFold(strings.TrimSpace(solverCfg.Strategy), selector.StrategyGreedy) {
		return nil, errors.ErrEquityUnsupported.Withf("strategy %q", solverCfg.Strategy)
	}
	strategy, err := selector.New(solverCfg, uc.logger)
	if err != nil {
		return nil, err
	}

	artifacts := make(map[domain.TravelMode]*domain.CoverageArtifact, len(req.Budgets))
	for mode, budget := range req.Budgets {
		key := domain.CoverageKey{Region: req.Region, Mode: mode, TimeBudgetMin: budget}
		artifact, err := uc.coverage.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("coverage %s: %w", key, err)
		}
		artifacts[mode] = artifact
	}

	orchestrator := scenario.NewOrchestrator(strategy, uc.cfg.Scenario, uc.logger)
	run, err := orchestrator.Run(ctx, scenario.Request{
		Region:   req.Region,
		Coverage: artifacts,
		KValues:  req.KValues,
		Equity:   req.Equity,
		Theta:    theta,
	})
	if err != nil {
		return nil, err
	}

	if uc.scenarioRepo != nil {
		if err := uc.scenarioRepo.SaveRun(ctx, run); err != nil {
			return nil, err
		}
	}

	return run, nil
}

// HandleRequest выполняет запрос из стрима. Ошибка расчёта попадает в событие,
// а не возвращается, чтобы сообщение всё равно было подтверждено.
func (uc *PlanningUseCase) HandleRequest(ctx context.Context, event *domain.ScenarioRequestEvent) *domain.ScenarioDoneEvent {
	done := &domain.ScenarioDoneEvent{
		RequestID: event.RequestID,
		Region:    event.Region,
	}

	req := PlanRequest{
		Region:   event.Region,
		Budgets:  make(map[domain.TravelMode]float64, len(event.Modes)),
		KValues:  event.KValues,
		Strategy: event.Strategy,
		Equity:   event.HasEquity(),
		Theta:    event.EquityThreshold,
	}
	for _, mode := range event.TravelModes() {
		req.Budgets[mode] = event.TimeBudgetMin
	}

	run, err := uc.Plan(ctx, req)
	if err != nil {
		uc.logger.Error("Scenario request failed",
			zap.String("request_id", event.RequestID.String()),
			zap.String("region", event.Region),
			zap.String("code", errors.CodeOf(err)),
			zap.Error(err))
		done.Error = err.Error()
		done.ErrorCode = errors.CodeOf(err)
		return done
	}

	done.RunID = &run.ID
	done.Run = run
	return done
}

// Compare сравнивает последние прогоны регионов
func (uc *PlanningUseCase) Compare(ctx context.Context, regions []string) (*domain.MultiRegionAnalysis, error) {
	runs, err := uc.scenarioRepo.LatestRuns(ctx, regions)
	if err != nil {
		return nil, err
	}
	return scenario.CompareRegions(runs), nil
}
