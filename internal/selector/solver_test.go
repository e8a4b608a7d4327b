package selector

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

func newExact() *ExactSolver {
	return NewExactSolver(ExactConfig{Timeout: 10 * time.Second}, zap.NewNop())
}

// threeSites - веса [10, 1, 1], каждая площадка покрывает одну точку
func threeSites(k int) *Problem {
	return &Problem{
		Relation:  relation([]int32{0}, []int32{1}, []int32{2}),
		Weights:   []float64{10, 1, 1},
		NumSupply: 3,
		K:         k,
		Theta:     DefaultEquityThreshold,
	}
}

func TestSolvers_PickHeaviestDemand(t *testing.T) {
	for _, s := range []Strategy{NewGreedySolver(), newExact()} {
		t.Run(s.Name(), func(t *testing.T) {
			sol, err := s.Solve(context.Background(), threeSites(1))
			require.NoError(t, err)

			assert.Equal(t, []int32{0}, sol.Selected)
			assert.Equal(t, []int32{0}, sol.Covered)
			assert.Equal(t, 10.0, sol.CoveredWeight)
			assert.Equal(t, 10.0, sol.Objective)
			assert.InDelta(t, 1.0/3, sol.CoverageRate, 1e-12)
			assert.Equal(t, domain.Algorithm(s.Name()), sol.Provenance.Algorithm)
			assert.True(t, sol.Status().HasSolution())
		})
	}
}

func TestSolvers_StatusByAlgorithm(t *testing.T) {
	sol, err := NewGreedySolver().Solve(context.Background(), threeSites(2))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHeuristicSolved, sol.Status())

	sol, err = newExact().Solve(context.Background(), threeSites(2))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, sol.Status())
	assert.Equal(t, []int32{0, 1}, sol.Selected)
	assert.Equal(t, 11.0, sol.CoveredWeight)
}

func TestSolvers_ZeroK(t *testing.T) {
	for _, s := range []Strategy{NewGreedySolver(), newExact()} {
		t.Run(s.Name(), func(t *testing.T) {
			sol, err := s.Solve(context.Background(), threeSites(0))
			require.NoError(t, err)
			assert.Empty(t, sol.Selected)
			assert.Empty(t, sol.Covered)
			assert.Equal(t, 0.0, sol.CoveredWeight)
			assert.NotNil(t, sol.Selected)
		})
	}
}

func TestSolvers_NegativeKRejected(t *testing.T) {
	for _, s := range []Strategy{NewGreedySolver(), newExact()} {
		_, err := s.Solve(context.Background(), threeSites(-1))
		assert.True(t, errors.Is(err, errors.ErrInvalidK), s.Name())
	}
}

func TestSolvers_KCoversAllCoverable(t *testing.T) {
	p := &Problem{
		Relation:  relation([]int32{0, 2}, []int32{}, []int32{1}, []int32{2}, []int32{0}),
		Weights:   []float64{1, 5, 2, 3, 0},
		NumSupply: 4,
		K:         4,
	}

	for _, s := range []Strategy{NewGreedySolver(), newExact()} {
		t.Run(s.Name(), func(t *testing.T) {
			sol, err := s.Solve(context.Background(), p)
			require.NoError(t, err)
			// точка 1 не покрывается никем
			assert.Equal(t, 6.0, sol.CoveredWeight)
			assert.NotContains(t, sol.Covered, int32(1))
			assert.Contains(t, sol.Covered, int32(0))
			assert.Contains(t, sol.Covered, int32(2))
			assert.Contains(t, sol.Covered, int32(3))
			// площадка 3 ничего не покрывает
			assert.NotContains(t, sol.Selected, int32(3))
			assert.LessOrEqual(t, len(sol.Selected), 3)
		})
	}
}

func TestGreedy_SelectionOrderAndTies(t *testing.T) {
	p := &Problem{
		// площадки 1 и 2 равноценны на первом шаге
		Relation:  relation([]int32{1, 2}, []int32{1}, []int32{2}, []int32{0}),
		Weights:   []float64{4, 1, 1, 2},
		NumSupply: 3,
		K:         3,
	}

	sol, err := NewGreedySolver().Solve(context.Background(), p)
	require.NoError(t, err)
	// 1 (5), затем 0 (2), затем 2 (1)
	assert.Equal(t, []int32{1, 0, 2}, sol.Selected)
	assert.Equal(t, 8.0, sol.CoveredWeight)
}

func TestGreedy_StopsWithoutPositiveGain(t *testing.T) {
	p := &Problem{
		Relation:  relation([]int32{0}, []int32{0}, []int32{1}),
		Weights:   []float64{3, 2, 0},
		NumSupply: 3,
		K:         3,
	}

	sol, err := NewGreedySolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, sol.Selected)
}

func TestGreedy_RejectsEquity(t *testing.T) {
	_, err := NewGreedySolver().Solve(context.Background(), threeSites(1).WithEquity(0.6))
	assert.True(t, errors.Is(err, errors.ErrEquityUnsupported))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestExact_EquityInfeasible(t *testing.T) {
	// самая тяжёлая точка не покрывается никакой площадкой
	p := &Problem{
		Relation:  relation([]int32{}, []int32{0}, []int32{1}, []int32{2}),
		Weights:   []float64{10, 1, 1, 1},
		NumSupply: 3,
		K:         3,
	}

	sol, err := newExact().Solve(context.Background(), p.WithEquity(1.0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInfeasible, sol.Status())
	assert.Empty(t, sol.Selected)
	assert.Equal(t, 0.0, sol.CoveredWeight)
}

func TestExact_EquityInfeasibleWithinBudget(t *testing.T) {
	// группа высокого риска покрывается только двумя площадками сразу, K=1
	p := &Problem{
		Relation:  relation([]int32{0}, []int32{1}, []int32{2}, []int32{2}),
		Weights:   []float64{9, 9, 1, 1},
		NumSupply: 3,
		K:         1,
	}

	sol, err := newExact().Solve(context.Background(), p.WithEquity(1.0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInfeasible, sol.Status())
	assert.Empty(t, sol.Selected)
}

func TestExact_EquityChangesSelection(t *testing.T) {
	p := &Problem{
		Relation:  relation([]int32{1}, []int32{0}, []int32{0}, []int32{}),
		Weights:   []float64{5, 4, 4, 1},
		NumSupply: 2,
		K:         1,
	}

	sol, err := newExact().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, sol.Selected)
	assert.Equal(t, 8.0, sol.CoveredWeight)

	sol, err = newExact().Solve(context.Background(), p.WithEquity(0.6))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, sol.Status())
	assert.Equal(t, []int32{1}, sol.Selected)
	assert.Equal(t, 5.0, sol.CoveredWeight)
}

func TestExact_TooLargeIsUnavailable(t *testing.T) {
	s := NewExactSolver(ExactConfig{MaxVariables: 3}, zap.NewNop())
	_, err := s.Solve(context.Background(), threeSites(1))
	assert.True(t, errors.Is(err, errors.ErrSolverUnavailable))
	assert.False(t, errors.IsFatal(err))
}

func TestExact_DeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	sol, err := newExact().Solve(ctx, randomProblem(rand.New(rand.NewSource(1)), 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSolverTimeout))
	require.NotNil(t, sol)
	assert.Equal(t, domain.StatusInfeasible, sol.Status())
	assert.True(t, sol.Provenance.Timeout)
}

func TestExact_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newExact().Solve(ctx, randomProblem(rand.New(rand.NewSource(2)), 2))
	assert.ErrorIs(t, err, context.Canceled)
}

// randomProblem - небольшая случайная задача
func randomProblem(rng *rand.Rand, k int) *Problem {
	const numDemand, numSupply = 14, 8
	covers := make([][]int32, numDemand)
	weights := make([]float64, numDemand)
	for i := range covers {
		weights[i] = math.Round(rng.Float64()*100) / 10
		for j := 0; j < numSupply; j++ {
			if rng.Float64() < 0.25 {
				covers[i] = append(covers[i], int32(j))
			}
		}
	}
	return &Problem{
		Relation:  &domain.CoverageRelation{Covers: covers},
		Weights:   weights,
		NumSupply: numSupply,
		K:         k,
	}
}

// bruteForce - оптимум полным перебором подмножеств размера не больше K
func bruteForce(p *Problem) float64 {
	best := 0.0
	for mask := 0; mask < 1<<p.NumSupply; mask++ {
		var selected []int32
		for j := 0; j < p.NumSupply; j++ {
			if mask&(1<<j) != 0 {
				selected = append(selected, int32(j))
			}
		}
		if len(selected) > p.K {
			continue
		}
		if _, w := evaluate(p, selected); w > best {
			best = w
		}
	}
	return best
}

func TestSolvers_RandomInstances(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	bound := 1 - 1/math.E

	for n := 0; n < 300; n++ {
		k := 1 + n%4
		p := randomProblem(rng, k)

		exact, err := newExact().Solve(context.Background(), p)
		require.NoError(t, err)
		greedy, err := NewGreedySolver().Solve(context.Background(), p)
		require.NoError(t, err)

		optimum := bruteForce(p)
		assert.InDelta(t, optimum, exact.CoveredWeight, 1e-6, "instance %d", n)
		assert.Equal(t, domain.StatusOptimal, exact.Status())
		assert.LessOrEqual(t, len(exact.Selected), k)

		assert.GreaterOrEqual(t, greedy.CoveredWeight+1e-9, bound*exact.CoveredWeight, "instance %d", n)
		assert.LessOrEqual(t, greedy.CoveredWeight, exact.CoveredWeight+1e-6, "instance %d", n)
	}
}

// bruteForceEquity - оптимум перебором среди наборов, покрывающих не меньше
// theta веса группы высокого риска. false, если таких наборов нет.
func bruteForceEquity(p *Problem) (float64, bool) {
	h, total := p.HighRiskSet()
	inH := make(map[int32]bool, len(h))
	for _, i := range h {
		inH[i] = true
	}
	required := p.Theta * total

	best, found := 0.0, false
	for mask := 0; mask < 1<<p.NumSupply; mask++ {
		var selected []int32
		for j := 0; j < p.NumSupply; j++ {
			if mask&(1<<j) != 0 {
				selected = append(selected, int32(j))
			}
		}
		if len(selected) > p.K {
			continue
		}
		covered, w := evaluate(p, selected)
		risk := 0.0
		for _, i := range covered {
			if inH[i] {
				risk += p.Weights[i]
			}
		}
		if risk+1e-9 < required {
			continue
		}
		if !found || w > best {
			best, found = w, true
		}
	}
	return best, found
}

func TestExact_EquityMatchesExhaustiveSearch(t *testing.T) {
	thetas := []float64{0.3, 0.6, 0.8, 1.0}

	for _, seed := range []int64{7, 11, 2024} {
		rng := rand.New(rand.NewSource(seed))
		for n := 0; n < 200; n++ {
			base := randomProblem(rng, 1)
			for k := 1; k <= 4; k++ {
				for _, theta := range thetas {
					p := *base
					p.K = k
					eq := p.WithEquity(theta)

					sol, err := newExact().Solve(context.Background(), eq)
					require.NoError(t, err, "seed %d instance %d k=%d theta=%v", seed, n, k, theta)

					optimum, feasible := bruteForceEquity(eq)
					if !feasible {
						assert.Equal(t, domain.StatusInfeasible, sol.Status(),
							"seed %d instance %d k=%d theta=%v", seed, n, k, theta)
						continue
					}
					require.Equal(t, domain.StatusOptimal, sol.Status(),
						"seed %d instance %d k=%d theta=%v", seed, n, k, theta)
					assert.InDelta(t, optimum, sol.CoveredWeight, 1e-6,
						"seed %d instance %d k=%d theta=%v", seed, n, k, theta)
					assert.LessOrEqual(t, len(sol.Selected), k)
				}
			}
		}
	}
}

func TestExact_UnconstrainedSeedsMatchExhaustiveSearch(t *testing.T) {
	for _, seed := range []int64{7, 11} {
		rng := rand.New(rand.NewSource(seed))
		for n := 0; n < 200; n++ {
			p := randomProblem(rng, 1+n%4)

			sol, err := newExact().Solve(context.Background(), p)
			require.NoError(t, err, "seed %d instance %d", seed, n)
			assert.Equal(t, domain.StatusOptimal, sol.Status())
			assert.InDelta(t, bruteForce(p), sol.CoveredWeight, 1e-6, "seed %d instance %d", seed, n)
		}
	}
}

func TestExact_TimeoutInterruptsRelaxation(t *testing.T) {
	const numDemand, numSupply = 200, 40
	rng := rand.New(rand.NewSource(5))
	covers := make([][]int32, numDemand)
	weights := make([]float64, numDemand)
	for i := range covers {
		weights[i] = 1 + rng.Float64()*9
		for j := 0; j < numSupply; j++ {
			if rng.Float64() < 0.2 {
				covers[i] = append(covers[i], int32(j))
			}
		}
	}
	p := &Problem{
		Relation:  &domain.CoverageRelation{Covers: covers},
		Weights:   weights,
		NumSupply: numSupply,
		K:         5,
	}

	s := NewExactSolver(ExactConfig{Timeout: 30 * time.Millisecond, MaxVariables: 10000}, zap.NewNop())
	start := time.Now()
	sol, err := s.Solve(context.Background(), p)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSolverTimeout))
	assert.Less(t, elapsed, time.Second)
	require.NotNil(t, sol)
	assert.Equal(t, domain.StatusInfeasible, sol.Status())
	assert.True(t, sol.Provenance.Timeout)
}

func TestModel_MergesDemandWithSameCoverers(t *testing.T) {
	p := &Problem{
		Relation:  relation([]int32{0, 1}, []int32{0, 1}, []int32{1}, []int32{0, 1}, nil),
		Weights:   []float64{2, 3, 4, 0, 7},
		NumSupply: 2,
		K:         1,
	}

	m := newModel(p)
	// две площадки, группы {0,1} с весом 5 и {1} с весом 4
	assert.Equal(t, 4, m.numVariables())
	assert.Equal(t, []float64{5, 4}, m.weights)

	sol, err := newExact().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, sol.Selected)
	assert.Equal(t, 9.0, sol.CoveredWeight)
}

func TestModel_KeepsRiskGroupsApart(t *testing.T) {
	p := &Problem{
		Relation:  relation([]int32{0}, []int32{0}, []int32{0}, []int32{0}, []int32{1}),
		Weights:   []float64{1, 2, 3, 10, 4},
		NumSupply: 2,
		K:         1,
	}

	m := newModel(p.WithEquity(0.5))
	assert.Len(t, m.weights, 3)
	assert.True(t, m.inH[3])
	assert.False(t, m.inH[0])
}
