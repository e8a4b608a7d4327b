package scenario

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/selector"
)

// MockStrategy - мок стратегии решения
type MockStrategy struct {
	mock.Mock
}

func (m *MockStrategy) Name() string {
	return "mock"
}

func (m *MockStrategy) Solve(ctx context.Context, p *selector.Problem) (*domain.Solution, error) {
	args := m.Called(ctx, p)
	var sol *domain.Solution
	if v := args.Get(0); v != nil {
		sol = v.(*domain.Solution)
	}
	return sol, args.Error(1)
}

func artifact(mode domain.TravelMode, covers [][]int32, weights []float64, numSupply int) *domain.CoverageArtifact {
	a := &domain.CoverageArtifact{
		Key:      domain.CoverageKey{Region: "test", Mode: mode, TimeBudgetMin: 10},
		Relation: &domain.CoverageRelation{Covers: covers},
	}
	for i, w := range weights {
		a.Demand.IDs = append(a.Demand.IDs, fmt.Sprintf("d%d", i))
		a.Demand.Weights = append(a.Demand.Weights, w)
		a.Demand.NetworkNodes = append(a.Demand.NetworkNodes, domain.NodeID(i))
	}
	for j := 0; j < numSupply; j++ {
		a.Supply.IDs = append(a.Supply.IDs, fmt.Sprintf("s%d", j))
		a.Supply.Names = append(a.Supply.Names, fmt.Sprintf("Site %d", j))
		a.Supply.Categories = append(a.Supply.Categories, "school")
		a.Supply.FootprintAreas = append(a.Supply.FootprintAreas, 1200)
		a.Supply.NetworkNodes = append(a.Supply.NetworkNodes, domain.NodeID(100+j))
	}
	return a
}

// walkArtifact - каждая площадка покрывает одну точку, веса [10, 1, 1]
func walkArtifact() *domain.CoverageArtifact {
	return artifact(domain.TravelModeWalk, [][]int32{{0}, {1}, {2}}, []float64{10, 1, 1}, 3)
}

// driveArtifact - площадка 0 покрывает все точки
func driveArtifact() *domain.CoverageArtifact {
	return artifact(domain.TravelModeDrive, [][]int32{{0}, {0}, {0, 1}}, []float64{10, 1, 1}, 2)
}

func TestOrchestrator_RunGrid(t *testing.T) {
	o := NewOrchestrator(selector.NewGreedySolver(), Config{Parallelism: 2}, zap.NewNop())

	run, err := o.Run(context.Background(), Request{
		Region: "test",
		Coverage: map[domain.TravelMode]*domain.CoverageArtifact{
			domain.TravelModeWalk:  walkArtifact(),
			domain.TravelModeDrive: driveArtifact(),
		},
		KValues: []int{2, 1, 3, 1},
	})
	require.NoError(t, err)

	assert.Equal(t, "test", run.Region)
	assert.Equal(t, "greedy", run.Strategy)
	assert.Equal(t, []domain.TravelMode{domain.TravelModeDrive, domain.TravelModeWalk}, run.Modes())

	walk := run.Ordered(domain.TravelModeWalk)
	require.Len(t, walk, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{walk[0].K, walk[1].K, walk[2].K})
	assert.Equal(t, 10.0, walk[0].Solution.CoveredWeight)
	assert.Equal(t, 11.0, walk[1].Solution.CoveredWeight)
	assert.Equal(t, 12.0, walk[2].Solution.CoveredWeight)
	assert.Equal(t, "s0", walk[0].Sites[0].ID)
	assert.Equal(t, 1, walk[0].Sites[0].Rank)

	drive := run.Ordered(domain.TravelModeDrive)
	require.Len(t, drive, 3)
	for _, res := range drive {
		assert.Equal(t, []int32{0}, res.Solution.Selected)
		assert.Equal(t, 12.0, res.Solution.CoveredWeight)
	}

	walkAnalysis := run.Analysis[domain.TravelModeWalk]
	require.NotNil(t, walkAnalysis)
	assert.Equal(t, []domain.MarginalBenefit{
		{FromK: 1, ToK: 2, MarginalBenefit: 1},
		{FromK: 2, ToK: 3, MarginalBenefit: 1},
	}, walkAnalysis.MarginalBenefits)

	driveAnalysis := run.Analysis[domain.TravelModeDrive]
	require.Len(t, driveAnalysis.Efficiency, 3)
	assert.False(t, driveAnalysis.Efficiency[0].DiminishingReturns)
	assert.InDelta(t, 1.0, driveAnalysis.Efficiency[0].MarginalCoveragePerSite, 1e-12)
	// дополнительных площадок нет
	assert.True(t, driveAnalysis.Efficiency[1].DiminishingReturns)
	assert.Equal(t, 0.0, driveAnalysis.Efficiency[1].MarginalCoveragePerSite)
	assert.True(t, driveAnalysis.Efficiency[2].DiminishingReturns)
}

func TestOrchestrator_RejectsInvalidRequest(t *testing.T) {
	strategy := new(MockStrategy)
	o := NewOrchestrator(strategy, Config{}, zap.NewNop())
	cov := map[domain.TravelMode]*domain.CoverageArtifact{domain.TravelModeWalk: walkArtifact()}

	tests := []struct {
		name     string
		req      Request
		expected error
	}{
		{name: "zero K", req: Request{Coverage: cov, KValues: []int{1, 0}}, expected: errors.ErrInvalidK},
		{name: "no K", req: Request{Coverage: cov}, expected: errors.ErrInvalidK},
		{name: "no coverage", req: Request{KValues: []int{1}}, expected: errors.ErrInvalidRequest},
		{
			name:     "missing artifact",
			req:      Request{Coverage: map[domain.TravelMode]*domain.CoverageArtifact{domain.TravelModeDrive: nil}, KValues: []int{1}},
			expected: errors.ErrInvalidRelation,
		},
		{
			name:     "theta out of range",
			req:      Request{Coverage: cov, KValues: []int{1}, Equity: true, Theta: 1.2},
			expected: errors.ErrInvalidEquityThreshold,
		},
		{
			name:     "theta NaN",
			req:      Request{Coverage: cov, KValues: []int{1}, Equity: true, Theta: math.NaN()},
			expected: errors.ErrInvalidEquityThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Run(context.Background(), tt.req)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}

	strategy.AssertNotCalled(t, "Solve", mock.Anything, mock.Anything)
}

func TestOrchestrator_RecordsNonFatalSolverError(t *testing.T) {
	strategy := new(MockStrategy)
	strategy.On("Solve", mock.Anything, mock.Anything).
		Return(nil, errors.ErrSolverUnavailable.Withf("no fallback")).Twice()

	o := NewOrchestrator(strategy, Config{}, zap.NewNop())
	run, err := o.Run(context.Background(), Request{
		Region:   "test",
		Coverage: map[domain.TravelMode]*domain.CoverageArtifact{domain.TravelModeWalk: walkArtifact()},
		KValues:  []int{1, 2},
		Equity:   true,
		Theta:    0.6,
	})
	require.NoError(t, err)

	for _, res := range run.Ordered(domain.TravelModeWalk) {
		assert.Contains(t, res.Error, errors.KindSolverUnavailable)
		assert.Equal(t, domain.StatusInfeasible, res.Solution.Status())
		assert.Empty(t, res.Solution.Selected)
		assert.Empty(t, res.Sites)
	}
	strategy.AssertExpectations(t)
}

func TestOrchestrator_FatalErrorAbortsRun(t *testing.T) {
	strategy := new(MockStrategy)
	strategy.On("Solve", mock.Anything, mock.Anything).
		Return(nil, errors.ErrInvalidRelation.Withf("demand 0 references supply index 9"))

	o := NewOrchestrator(strategy, Config{Parallelism: 1}, zap.NewNop())
	run, err := o.Run(context.Background(), Request{
		Coverage: map[domain.TravelMode]*domain.CoverageArtifact{domain.TravelModeWalk: walkArtifact()},
		KValues:  []int{1, 2, 3},
	})

	assert.Nil(t, run)
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}

func TestOrchestrator_PassesEquityToSolver(t *testing.T) {
	strategy := new(MockStrategy)
	strategy.On("Solve", mock.Anything, mock.MatchedBy(func(p *selector.Problem) bool {
		return p.Equity && p.Theta == 0.8 && p.K == 1 && p.NumSupply == 3
	})).Return(&domain.Solution{
		Selected:      []int32{0},
		Covered:       []int32{0},
		CoveredWeight: 10,
		CoverageRate:  1.0 / 3,
		Provenance:    domain.Provenance{Algorithm: domain.AlgorithmExact, Status: domain.StatusOptimal},
	}, nil).Once()

	o := NewOrchestrator(strategy, Config{}, zap.NewNop())
	run, err := o.Run(context.Background(), Request{
		Coverage: map[domain.TravelMode]*domain.CoverageArtifact{domain.TravelModeWalk: walkArtifact()},
		KValues:  []int{1},
		Equity:   true,
		Theta:    0.8,
	})
	require.NoError(t, err)

	res := run.Results[domain.TravelModeWalk][1]
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusOptimal, res.Solution.Status())
	assert.Empty(t, res.Error)
	strategy.AssertExpectations(t)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exact := selector.NewExactSolver(selector.ExactConfig{}, zap.NewNop())
	o := NewOrchestrator(exact, Config{}, zap.NewNop())
	_, err := o.Run(ctx, Request{
		Coverage: map[domain.TravelMode]*domain.CoverageArtifact{domain.TravelModeWalk: walkArtifact()},
		KValues:  []int{1},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
