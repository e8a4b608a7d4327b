package selector

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

// Strategy - алгоритм выбора площадок
type Strategy interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*domain.Solution, error)
}

// Имена стратегий в конфигурации
const (
	StrategyExact  = "exact"
	StrategyGreedy = "greedy"
	StrategyAuto   = "auto"
)

// Config - выбор и параметры стратегии
type Config struct {
	Strategy     string
	Timeout      time.Duration
	MaxVariables int
}

// New создаёт стратегию по конфигурации. auto - точный решатель с откатом на жадный.
func New(cfg Config, logger *zap.Logger) (Strategy, error) {
	exact := NewExactSolver(ExactConfig{Timeout: cfg.Timeout, MaxVariables: cfg.MaxVariables}, logger)

	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case StrategyExact:
		return exact, nil
	case StrategyGreedy:
		return NewGreedySolver(), nil
	case StrategyAuto, "":
		return NewFallbackSolver(exact, NewGreedySolver(), logger), nil
	default:
		return nil, errors.ErrInvalidStrategy.Withf("%q", cfg.Strategy)
	}
}

// FallbackSolver запускает основной решатель и, если он недоступен или не
// уложился во время, ровно один раз запускает запасной. Откат отмечается в Provenance.
type FallbackSolver struct {
	primary  Strategy
	fallback Strategy
	logger   *zap.Logger
}

// NewFallbackSolver создаёт FallbackSolver
func NewFallbackSolver(primary, fallback Strategy, logger *zap.Logger) *FallbackSolver {
	return &FallbackSolver{primary: primary, fallback: fallback, logger: logger}
}

func (s *FallbackSolver) Name() string { return StrategyAuto }

// Solve - доказанная недопустимость не приводит к откату
func (s *FallbackSolver) Solve(ctx context.Context, p *Problem) (*domain.Solution, error) {
	sol, err := s.primary.Solve(ctx, p)
	if err == nil {
		return sol, nil
	}
	if !errors.Is(err, errors.ErrSolverUnavailable) && !errors.Is(err, errors.ErrSolverTimeout) {
		return sol, err
	}

	reason := errors.CodeOf(err)

	// жадный алгоритм не поддерживает справедливость: отдаём недопустимость
	if p.Equity {
		s.logger.Warn("Exact solver failed on equity request, no fallback available",
			zap.Int("k", p.K),
			zap.Error(err))
		if sol == nil {
			sol = infeasibleSolution(domain.Algorithm(s.primary.Name()), 0)
		}
		sol.Provenance.FallbackReason = reason
		return sol, err
	}

	s.logger.Warn("Exact solver failed, falling back to greedy",
		zap.Int("k", p.K),
		zap.String("reason", reason),
		zap.Error(err))

	fb, fbErr := s.fallback.Solve(ctx, p)
	if fbErr != nil {
		return nil, fbErr
	}
	fb.Provenance.Fallback = true
	fb.Provenance.FallbackReason = reason
	if sol != nil {
		fb.Provenance.Timeout = sol.Provenance.Timeout
		fb.Provenance.SolveTime += sol.Provenance.SolveTime
	}
	return fb, nil
}
