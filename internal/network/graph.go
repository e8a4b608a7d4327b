package network

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

// Graph - компактное представление сети (CSR). Узлы адресуются плотным
// NodeIndex, назначенным по возрастанию внешнего id. Из параллельных рёбер
// остаётся минимальное по времени. Только для чтения после NewGraph.
type Graph struct {
	ids        []domain.NodeID
	index      map[domain.NodeID]domain.NodeIndex
	points     []orb.Point
	offsets    []int32
	targets    []domain.NodeIndex
	costs      []float64
	geographic bool
	rawEdges   int
}

// NewGraph компилирует domain.Network в Graph.
// Отрицательное или нечисловое время, ребро к неизвестному узлу и дубли узлов
// считаются нарушением целостности данных.
func NewGraph(n *domain.Network) (*Graph, error) {
	if n == nil || len(n.Nodes) == 0 {
		return nil, errors.ErrEmptyNetwork
	}

	nodes := make([]domain.Node, len(n.Nodes))
	copy(nodes, n.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	g := &Graph{
		ids:        make([]domain.NodeID, len(nodes)),
		index:      make(map[domain.NodeID]domain.NodeIndex, len(nodes)),
		points:     make([]orb.Point, len(nodes)),
		geographic: n.Geographic,
		rawEdges:   len(n.Edges),
	}
	for i, node := range nodes {
		if i > 0 && nodes[i-1].ID == node.ID {
			return nil, errors.ErrDataIntegrity.Withf("duplicate node id %d", node.ID)
		}
		g.ids[i] = node.ID
		g.index[node.ID] = domain.NodeIndex(i)
		g.points[i] = node.Point
	}

	// минимальная стоимость для каждой упорядоченной пары
	type arc struct {
		from, to domain.NodeIndex
	}
	best := make(map[arc]float64, len(n.Edges))
	for _, e := range n.Edges {
		if math.IsNaN(e.TravelTime) || math.IsInf(e.TravelTime, 0) || e.TravelTime < 0 {
			return nil, errors.ErrInvalidEdge.Withf("edge %d->%d has travel time %v", e.From, e.To, e.TravelTime)
		}
		from, ok := g.index[e.From]
		if !ok {
			return nil, errors.ErrInvalidEdge.Withf("edge source %d is not a network node", e.From)
		}
		to, ok := g.index[e.To]
		if !ok {
			return nil, errors.ErrInvalidEdge.Withf("edge target %d is not a network node", e.To)
		}
		if from == to {
			continue
		}
		key := arc{from, to}
		if cur, seen := best[key]; !seen || e.TravelTime < cur {
			best[key] = e.TravelTime
		}
	}

	arcs := make([]arc, 0, len(best))
	for a := range best {
		arcs = append(arcs, a)
	}
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].from != arcs[j].from {
			return arcs[i].from < arcs[j].from
		}
		return arcs[i].to < arcs[j].to
	})

	g.offsets = make([]int32, len(nodes)+1)
	g.targets = make([]domain.NodeIndex, len(arcs))
	g.costs = make([]float64, len(arcs))
	for i, a := range arcs {
		g.offsets[a.from+1]++
		g.targets[i] = a.to
		g.costs[i] = best[a]
	}
	for i := 1; i < len(g.offsets); i++ {
		g.offsets[i] += g.offsets[i-1]
	}

	return g, nil
}

// NumNodes - количество узлов
func (g *Graph) NumNodes() int {
	return len(g.ids)
}

// NumArcs - количество рёбер после схлопывания параллельных
func (g *Graph) NumArcs() int {
	return len(g.targets)
}

// NumRawEdges - количество рёбер во входной сети
func (g *Graph) NumRawEdges() int {
	return g.rawEdges
}

// Geographic - координаты в градусах WGS84
func (g *Graph) Geographic() bool {
	return g.geographic
}

// Index возвращает плотный индекс узла по внешнему id
func (g *Graph) Index(id domain.NodeID) (domain.NodeIndex, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// ID возвращает внешний id узла
func (g *Graph) ID(idx domain.NodeIndex) domain.NodeID {
	return g.ids[idx]
}

// Point возвращает координату узла
func (g *Graph) Point(idx domain.NodeIndex) orb.Point {
	return g.points[idx]
}

// neighbors - исходящие рёбра узла
func (g *Graph) neighbors(idx domain.NodeIndex) ([]domain.NodeIndex, []float64) {
	lo, hi := g.offsets[idx], g.offsets[idx+1]
	return g.targets[lo:hi], g.costs[lo:hi]
}
