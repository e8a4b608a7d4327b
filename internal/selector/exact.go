package selector

import (
	"context"
	stderrors "errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

const (
	// DefaultMaxVariables - предел размера задачи для точного решателя.
	// Плотная LP-релаксация такого размера решается за доли секунды.
	DefaultMaxVariables = 250

	integralityTol = 1e-6
	feasibilityTol = 1e-9
)

// ExactConfig - параметры точного решателя
type ExactConfig struct {
	// Timeout - бюджет времени на одно решение; 0 = только контекст вызывающего
	Timeout time.Duration
	// MaxVariables - задачи с большим числом переменных не решаются (SolverUnavailable)
	MaxVariables int
}

// ExactSolver решает целочисленную задачу MCLP ветвлением и границами
// по LP-релаксациям. Решение жадной эвристики служит начальной нижней оценкой.
type ExactSolver struct {
	cfg    ExactConfig
	logger *zap.Logger
}

// NewExactSolver создаёт ExactSolver
func NewExactSolver(cfg ExactConfig, logger *zap.Logger) *ExactSolver {
	if cfg.MaxVariables <= 0 {
		cfg.MaxVariables = DefaultMaxVariables
	}
	return &ExactSolver{cfg: cfg, logger: logger}
}

func (s *ExactSolver) Name() string { return string(domain.AlgorithmExact) }

// node - узел дерева ветвления
type node struct {
	fix fixing
}

// Solve возвращает OPTIMAL или INFEASIBLE. По истечении бюджета времени
// возвращается INFEASIBLE с ErrSolverTimeout.
func (s *ExactSolver) Solve(ctx context.Context, p *Problem) (*domain.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	if p.K == 0 && !p.Equity {
		return newSolution(p, nil, domain.AlgorithmExact, domain.StatusOptimal, time.Since(start)), nil
	}

	m := newModel(p)
	if n := m.numVariables(); n > s.cfg.MaxVariables {
		return nil, errors.ErrSolverUnavailable.Withf("%d variables exceed the limit of %d", n, s.cfg.MaxVariables)
	}

	// группа высокого риска не покрывается даже всеми площадками
	if m.equity && m.coverableHighRisk()+feasibilityTol < m.equityRHS {
		s.logger.Debug("Equity constraint cannot be met by any selection",
			zap.Float64("required", m.equityRHS),
			zap.Float64("coverable", m.coverableHighRisk()))
		return infeasibleSolution(domain.AlgorithmExact, time.Since(start)), nil
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	best, stats, err := s.branchAndBound(ctx, p, m)
	explored := stats.explored
	elapsed := time.Since(start)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			sol := infeasibleSolution(domain.AlgorithmExact, elapsed)
			sol.Provenance.Timeout = true
			sol.Provenance.NodesExplored = explored
			return sol, errors.ErrSolverTimeout.Wrap(err).Withf("after %d nodes", explored)
		}
		if stderrors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errors.ErrSolverUnavailable.Wrap(err)
	}

	if best == nil {
		sol := infeasibleSolution(domain.AlgorithmExact, elapsed)
		sol.Provenance.NodesExplored = explored
		return sol, nil
	}

	sort.Slice(best, func(a, b int) bool { return best[a] < best[b] })
	sol := newSolution(p, best, domain.AlgorithmExact, domain.StatusOptimal, elapsed)
	sol.Provenance.NodesExplored = explored

	s.logger.Debug("Exact solve finished",
		zap.Int("k", p.K),
		zap.Int("variables", m.numVariables()),
		zap.Int("nodes", explored),
		zap.Int("lp_failures", stats.lpFailures),
		zap.Float64("objective", sol.Objective),
		zap.Duration("duration", elapsed))

	return sol, nil
}

type searchStats struct {
	explored   int
	lpFailures int // узлы, где симплекс-метод не сошёлся
}

// branchAndBound - поиск в глубину, сначала ветка y=1.
// Возвращает индексы кандидатов лучшего допустимого решения или nil.
// Если релаксация узла не решилась численно, узел не отсекается,
// а ветвится по первой свободной площадке.
func (s *ExactSolver) branchAndBound(ctx context.Context, p *Problem, m *model) ([]int32, searchStats, error) {
	var (
		incumbent    []int32
		incumbentVal = math.Inf(-1)
	)

	// начальная нижняя оценка
	if seed := greedySelect(p); m.feasible(p, seed) {
		_, w := evaluate(p, seed)
		incumbent, incumbentVal = seed, w
	}

	root := make(fixing, len(m.sites))
	for i := range root {
		root[i] = free
	}
	stack := []node{{fix: root}}
	var stats searchStats

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stats.explored++

		rel, err := m.relaxCtx(ctx, cur.fix, feasibilityTol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			branch := firstFree(cur.fix)
			if branch < 0 {
				return nil, stats, err
			}
			stats.lpFailures++
			s.logger.Debug("LP relaxation failed, branching without bound",
				zap.Int("node", stats.explored),
				zap.Error(err))
			stack = append(stack, children(cur.fix, branch)...)
			continue
		}
		if rel.infeasible {
			continue
		}
		if rel.bound <= incumbentVal+pruneTol(incumbentVal) {
			continue
		}

		branch := mostFractional(rel.y, cur.fix)
		if branch < 0 {
			selected := m.selection(rel.y)
			if !m.feasible(p, selected) {
				// погрешность LP: узел не отсекается
				if site := firstFree(cur.fix); site >= 0 {
					stack = append(stack, children(cur.fix, site)...)
				}
				continue
			}
			if _, w := evaluate(p, selected); w > incumbentVal+pruneTol(incumbentVal) || incumbent == nil {
				incumbent, incumbentVal = selected, w
			}
			continue
		}

		stack = append(stack, children(cur.fix, branch)...)
	}

	return incumbent, stats, nil
}

// children - узлы y=0 и y=1 для площадки branch; y=1 снимается со стека первым
func children(fix fixing, branch int) []node {
	down := append(fixing(nil), fix...)
	down[branch] = 0
	up := append(fixing(nil), fix...)
	up[branch] = 1
	return []node{{fix: down}, {fix: up}}
}

// firstFree - первая нефиксированная площадка или -1
func firstFree(fix fixing) int {
	for s, f := range fix {
		if f == free {
			return s
		}
	}
	return -1
}

// mostFractional - свободная площадка с дробным значением, ближайшим к 0.5.
// -1, если все значения целые.
func mostFractional(y []float64, fix fixing) int {
	best := -1
	bestDist := math.Inf(1)
	for s, v := range y {
		if fix[s] != free {
			continue
		}
		if v < integralityTol || v > 1-integralityTol {
			continue
		}
		if d := math.Abs(v - 0.5); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

// selection переводит значения y в индексы кандидатов
func (m *model) selection(y []float64) []int32 {
	out := []int32{}
	for s, v := range y {
		if v > 0.5 {
			out = append(out, m.sites[s])
		}
	}
	return out
}

// feasible проверяет бюджет и ограничение справедливости для набора площадок
func (m *model) feasible(p *Problem, selected []int32) bool {
	if len(selected) > p.K {
		return false
	}
	if !m.equity {
		return true
	}
	covered, _ := evaluate(p, selected)
	h := 0.0
	for _, i := range covered {
		if m.inH[i] {
			h += p.Weights[i]
		}
	}
	return h+feasibilityTol >= m.equityRHS
}

func pruneTol(v float64) float64 {
	if math.IsInf(v, -1) {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(v))
}
