package network

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

// lineNetwork - узлы 1..n на оси x, рёбра в обе стороны по cost секунд
func lineNetwork(n int, cost float64) *domain.Network {
	net := &domain.Network{Region: "test", Mode: domain.TravelModeWalk}
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

func TestNewGraph_IndexesByAscendingID(t *testing.T) {
	net := &domain.Network{
		Nodes: []domain.Node{
			{ID: 30, Point: orb.Point{3, 0}},
			{ID: 10, Point: orb.Point{1, 0}},
			{ID: 20, Point: orb.Point{2, 0}},
		},
	}

	g, err := NewGraph(net)
	require.NoError(t, err)
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 0, g.NumArcs())

	idx, ok := g.Index(10)
	require.True(t, ok)
	assert.Equal(t, domain.NodeIndex(0), idx)
	assert.Equal(t, domain.NodeID(30), g.ID(2))
	assert.Equal(t, orb.Point{2, 0}, g.Point(1))

	_, ok = g.Index(99)
	assert.False(t, ok)
}

func TestNewGraph_KeepsCheapestParallelEdge(t *testing.T) {
	net := &domain.Network{
		Nodes: []domain.Node{{ID: 1}, {ID: 2, Point: orb.Point{1, 0}}},
		Edges: []domain.Edge{
			{From: 1, To: 2, TravelTime: 90},
			{From: 1, To: 2, TravelTime: 30},
			{From: 1, To: 2, TravelTime: 60},
			{From: 1, To: 1, TravelTime: 5},
		},
	}

	g, err := NewGraph(net)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumArcs())
	assert.Equal(t, 4, g.NumRawEdges())

	targets, costs := g.neighbors(0)
	require.Len(t, targets, 1)
	assert.Equal(t, domain.NodeIndex(1), targets[0])
	assert.Equal(t, 30.0, costs[0])
}

func TestNewGraph_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		net      *domain.Network
		expected error
	}{
		{
			name:     "nil network",
			net:      nil,
			expected: errors.ErrEmptyNetwork,
		},
		{
			name:     "no nodes",
			net:      &domain.Network{},
			expected: errors.ErrEmptyNetwork,
		},
		{
			name: "negative travel time",
			net: &domain.Network{
				Nodes: []domain.Node{{ID: 1}, {ID: 2}},
				Edges: []domain.Edge{{From: 1, To: 2, TravelTime: -1}},
			},
			expected: errors.ErrInvalidEdge,
		},
		{
			name: "NaN travel time",
			net: &domain.Network{
				Nodes: []domain.Node{{ID: 1}, {ID: 2}},
				Edges: []domain.Edge{{From: 1, To: 2, TravelTime: math.NaN()}},
			},
			expected: errors.ErrInvalidEdge,
		},
		{
			name: "unknown endpoint",
			net: &domain.Network{
				Nodes: []domain.Node{{ID: 1}, {ID: 2}},
				Edges: []domain.Edge{{From: 1, To: 3, TravelTime: 10}},
			},
			expected: errors.ErrInvalidEdge,
		},
		{
			name: "duplicate node",
			net: &domain.Network{
				Nodes: []domain.Node{{ID: 1}, {ID: 1}},
			},
			expected: errors.ErrDataIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.net)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
			assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestSearcher_Within_LineGraph(t *testing.T) {
	g, err := NewGraph(lineNetwork(5, 60))
	require.NoError(t, err)
	s := NewSearcher(g)

	got, err := s.Distances(context.Background(), 0, 120)
	require.NoError(t, err)
	assert.Equal(t, map[domain.NodeIndex]float64{0: 0, 1: 60, 2: 120}, got)

	got, err = s.Distances(context.Background(), 2, 60)
	require.NoError(t, err)
	assert.Equal(t, map[domain.NodeIndex]float64{1: 60, 2: 0, 3: 60}, got)

	// нулевой бюджет - только сам источник
	got, err = s.Distances(context.Background(), 4, 0)
	require.NoError(t, err)
	assert.Equal(t, map[domain.NodeIndex]float64{4: 0}, got)
}

func TestSearcher_Within_PrefersShorterPath(t *testing.T) {
	net := &domain.Network{
		Nodes: []domain.Node{{ID: 1}, {ID: 2}, {ID: 3}},
		Edges: []domain.Edge{
			{From: 1, To: 3, TravelTime: 100},
			{From: 1, To: 2, TravelTime: 10},
			{From: 2, To: 3, TravelTime: 10},
		},
	}
	g, err := NewGraph(net)
	require.NoError(t, err)

	got, err := NewSearcher(g).Distances(context.Background(), 0, math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, 20.0, got[2])

	// рёбра направленные: из 3 никуда не попасть
	got, err = NewSearcher(g).Distances(context.Background(), 2, math.Inf(1))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearcher_ReuseAcrossSources(t *testing.T) {
	g, err := NewGraph(lineNetwork(4, 1))
	require.NoError(t, err)
	s := NewSearcher(g)

	for src := 0; src < g.NumNodes(); src++ {
		visited := 0
		err := s.Within(context.Background(), domain.NodeIndex(src), 10, func(domain.NodeIndex, float64) {
			visited++
		})
		require.NoError(t, err)
		assert.Equal(t, 4, visited, "source %d", src)
	}
}
