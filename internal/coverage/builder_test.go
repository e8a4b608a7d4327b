package coverage

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

func lineNetwork(n int, cost float64) *domain.Network {
	net := &domain.Network{Region: "line", Mode: domain.TravelModeWalk}
	for i := 1; i <= n; i++ {
		net.Nodes = append(net.Nodes, domain.Node{ID: domain.NodeID(i), Point: orb.Point{float64(i), 0}})
	}
	for i := 1; i < n; i++ {
		net.Edges = append(net.Edges,
			domain.Edge{From: domain.NodeID(i), To: domain.NodeID(i + 1), TravelTime: cost},
			domain.Edge{From: domain.NodeID(i + 1), To: domain.NodeID(i), TravelTime: cost},
		)
	}
	return net
}

func demandAt(xs ...float64) []domain.DemandPoint {
	out := make([]domain.DemandPoint, len(xs))
	for i, x := range xs {
		out[i] = domain.DemandPoint{ID: string(rune('a' + i)), Weight: 1, Location: orb.Point{x, 0}}
	}
	return out
}

func supplyAt(xs ...float64) []domain.SupplyCandidate {
	out := make([]domain.SupplyCandidate, len(xs))
	for j, x := range xs {
		out[j] = domain.SupplyCandidate{ID: string(rune('A' + j)), Location: orb.Point{x, 0}}
	}
	return out
}

func newTestBuilder() *Builder {
	return NewBuilder(Config{Workers: 4}, zap.NewNop())
}

func TestBuild_LineGraph(t *testing.T) {
	// узлы 1..5 через 60 с, бюджет 2 минуты
	in := BuildInput{
		Key:     domain.CoverageKey{Region: "line", Mode: domain.TravelModeWalk, TimeBudgetMin: 2},
		Network: lineNetwork(5, 60),
		Demand:  demandAt(1, 3, 5),
		Supply:  supplyAt(2, 5),
	}

	art, err := newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, [][]int32{{0}, {0, 1}, {1}}, art.Relation.Covers)
	assert.Equal(t, []domain.NodeID{1, 3, 5}, art.Demand.NetworkNodes)
	assert.Equal(t, []domain.NodeID{2, 5}, art.Supply.NetworkNodes)
	assert.Equal(t, domain.NetworkSummary{Nodes: 5, Edges: 8, MaxTravelTimeMin: 2}, art.Network)
	assert.Empty(t, art.Warnings)
	require.NoError(t, art.Validate())

	// 1 минута: только соседние узлы
	in.Key.TimeBudgetMin = 1
	art, err = newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{0}, {0}, {1}}, art.Relation.Covers)
}

func TestBuild_SameNodeAlwaysCovered(t *testing.T) {
	net := lineNetwork(3, 1000)
	net.Edges = nil

	in := BuildInput{
		Key:     domain.CoverageKey{Region: "line", Mode: domain.TravelModeDrive, TimeBudgetMin: 0},
		Network: net,
		Demand:  demandAt(1.1, 2, 3),
		Supply:  supplyAt(0.9, 3.2),
	}

	art, err := newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)
	// без рёбер покрытие только внутри одного узла
	assert.Equal(t, [][]int32{{0}, {}, {1}}, normalizeEmpty(art.Relation.Covers))
}

func TestBuild_UnresolvedEntitiesBecomeWarnings(t *testing.T) {
	demand := demandAt(1, 2)
	demand = append(demand, domain.DemandPoint{ID: "ghost", Weight: 4, Node: 99})
	supply := supplyAt(1)
	supply = append(supply, domain.SupplyCandidate{ID: "known", Node: 2})
	supply = append(supply, domain.SupplyCandidate{ID: "broken", Location: orb.MultiPoint{}})

	in := BuildInput{
		Key:     domain.CoverageKey{Region: "line", Mode: domain.TravelModeWalk, TimeBudgetMin: 0},
		Network: lineNetwork(3, 60),
		Demand:  demand,
		Supply:  supply,
	}

	art, err := newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, art.Warnings, 2)
	assert.Equal(t, domain.WarningUnresolvedNode, art.Warnings[0].Kind)
	assert.Equal(t, "demand", art.Warnings[0].Entity)
	assert.Equal(t, "ghost", art.Warnings[0].ID)
	assert.Equal(t, "supply", art.Warnings[1].Entity)
	assert.Equal(t, 2, art.Warnings[1].Index)

	assert.Equal(t, [][]int32{{0}, {1}, {}}, normalizeEmpty(art.Relation.Covers))
	// неразрешённая точка остаётся в артефакте с исходным id узла
	assert.Equal(t, domain.NodeID(99), art.Demand.NetworkNodes[2])
	assert.Equal(t, 4.0, art.Demand.Weights[2])
}

func TestBuild_FarSnapWarning(t *testing.T) {
	b := NewBuilder(Config{Workers: 1, SnapWarnM: 0.5}, zap.NewNop())
	in := BuildInput{
		Key:     domain.CoverageKey{Region: "line", Mode: domain.TravelModeWalk, TimeBudgetMin: 5},
		Network: lineNetwork(3, 60),
		Demand:  []domain.DemandPoint{{ID: "far", Weight: 1, Location: orb.Point{2, 2}}},
		Supply:  supplyAt(2),
	}

	art, err := b.Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, art.Warnings, 1)
	assert.Equal(t, domain.WarningFarSnap, art.Warnings[0].Kind)
	// предупреждение не мешает покрытию
	assert.Equal(t, []int32{0}, art.Relation.Covers[0])
}

func TestBuild_Errors(t *testing.T) {
	base := BuildInput{
		Key:     domain.CoverageKey{Region: "line", Mode: domain.TravelModeWalk, TimeBudgetMin: 2},
		Network: lineNetwork(3, 60),
		Demand:  demandAt(1),
		Supply:  supplyAt(1),
	}

	in := base
	in.Key.TimeBudgetMin = -1
	_, err := newTestBuilder().Build(context.Background(), in)
	assert.True(t, errors.Is(err, errors.ErrInvalidTimeBudget))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	in = base
	in.Demand = []domain.DemandPoint{{ID: "neg", Weight: -2, Location: orb.Point{1, 0}}}
	_, err = newTestBuilder().Build(context.Background(), in)
	assert.True(t, errors.Is(err, errors.ErrNegativeWeight))

	in = base
	in.Network = lineNetwork(3, 60)
	in.Network.Edges[0].TravelTime = -5
	_, err = newTestBuilder().Build(context.Background(), in)
	assert.True(t, errors.Is(err, errors.ErrInvalidEdge))

	in = base
	in.Network = &domain.Network{}
	_, err = newTestBuilder().Build(context.Background(), in)
	assert.True(t, errors.Is(err, errors.ErrEmptyNetwork))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestBuilder().Build(ctx, base)
	assert.ErrorIs(t, err, context.Canceled)
}

// randomInstance - случайная сеть-решётка с направленными рёбрами
func randomInstance(seed int64) BuildInput {
	rng := rand.New(rand.NewSource(seed))
	net := &domain.Network{Region: "grid", Mode: domain.TravelModeDrive}
	const side = 12
	id := func(x, y int) domain.NodeID { return domain.NodeID(y*side + x + 1) }
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			net.Nodes = append(net.Nodes, domain.Node{ID: id(x, y), Point: orb.Point{float64(x), float64(y)}})
			if x+1 < side {
				net.Edges = append(net.Edges, domain.Edge{From: id(x, y), To: id(x+1, y), TravelTime: 10 + rng.Float64()*50})
				net.Edges = append(net.Edges, domain.Edge{From: id(x+1, y), To: id(x, y), TravelTime: 10 + rng.Float64()*50})
			}
			if y+1 < side {
				net.Edges = append(net.Edges, domain.Edge{From: id(x, y), To: id(x, y+1), TravelTime: 10 + rng.Float64()*50})
			}
		}
	}

	in := BuildInput{Key: domain.CoverageKey{Region: "grid", Mode: domain.TravelModeDrive}, Network: net}
	for i := 0; i < 40; i++ {
		in.Demand = append(in.Demand, domain.DemandPoint{
			ID:       string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Weight:   rng.Float64() * 10,
			Location: orb.Point{rng.Float64() * side, rng.Float64() * side},
		})
	}
	for j := 0; j < 15; j++ {
		in.Supply = append(in.Supply, domain.SupplyCandidate{
			ID:       string(rune('A' + j)),
			Location: orb.Point{rng.Float64() * side, rng.Float64() * side},
		})
	}
	return in
}

func TestBuild_MonotoneInTimeBudget(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		in := randomInstance(seed)
		var prev *domain.CoverageRelation
		for _, budget := range []float64{0, 1, 2, 4, 8} {
			in.Key.TimeBudgetMin = budget
			art, err := newTestBuilder().Build(context.Background(), in)
			require.NoError(t, err)

			if prev != nil {
				for i := range prev.Covers {
					for _, j := range prev.Covers[i] {
						assert.True(t, art.Relation.Contains(i, j),
							"seed %d budget %v: demand %d lost supply %d", seed, budget, i, j)
					}
				}
			}
			prev = art.Relation
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	in := randomInstance(42)
	in.Key.TimeBudgetMin = 3

	first, err := NewBuilder(Config{Workers: 1}, zap.NewNop()).Build(context.Background(), in)
	require.NoError(t, err)
	second, err := NewBuilder(Config{Workers: 8}, zap.NewNop()).Build(context.Background(), in)
	require.NoError(t, err)

	a, err := json.Marshal(first.Relation)
	require.NoError(t, err)
	b, err := json.Marshal(second.Relation)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	for i, covers := range second.Relation.Covers {
		for n := 1; n < len(covers); n++ {
			assert.Less(t, covers[n-1], covers[n], "demand %d list not ascending", i)
		}
	}
}

func normalizeEmpty(covers [][]int32) [][]int32 {
	out := make([][]int32, len(covers))
	for i, c := range covers {
		if c == nil {
			c = []int32{}
		}
		out[i] = c
	}
	return out
}
