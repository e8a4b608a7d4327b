package network

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

// Resolution - результат привязки геометрии к узлу сети
type Resolution struct {
	Node      domain.NodeID
	Index     domain.NodeIndex
	Distance  float64 // в единицах координат
	DistanceM float64 // в метрах
}

// Indexer - поиск ближайшего узла сети по плоскому евклидову расстоянию.
// Равные расстояния разрешаются в пользу меньшего id узла.
type Indexer interface {
	Nearest(p orb.Point) (Resolution, error)
}

// nodePointer реализует orb.Pointer для квадродерева
type nodePointer struct {
	idx domain.NodeIndex
	p   orb.Point
}

func (n nodePointer) Point() orb.Point { return n.p }

// QuadtreeIndexer - индекс на квадродереве, строится один раз на сеть
type QuadtreeIndexer struct {
	g    *Graph
	tree *quadtree.Quadtree
}

// NewIndexer строит пространственный индекс узлов графа
func NewIndexer(g *Graph) (*QuadtreeIndexer, error) {
	if g == nil || g.NumNodes() == 0 {
		return nil, errors.ErrEmptyNetwork
	}

	bound := orb.Bound{Min: g.points[0], Max: g.points[0]}
	for _, p := range g.points[1:] {
		bound = bound.Extend(p)
	}
	// вырожденный bound (все узлы в одной точке) недопустим для дерева
	bound = bound.Pad(1)

	tree := quadtree.New(bound)
	for i, p := range g.points {
		if err := tree.Add(nodePointer{idx: domain.NodeIndex(i), p: p}); err != nil {
			return nil, errors.ErrDataIntegrity.Wrap(err).Withf("node %d at %v", g.ids[i], p)
		}
	}

	return &QuadtreeIndexer{g: g, tree: tree}, nil
}

// Nearest возвращает ближайший узел к точке
func (ix *QuadtreeIndexer) Nearest(p orb.Point) (Resolution, error) {
	if !finitePoint(p) {
		return Resolution{}, errors.ErrMalformedInput.Withf("query point %v is not finite", p)
	}

	found := ix.tree.Find(p)
	if found == nil {
		return Resolution{}, errors.ErrEmptyNetwork
	}

	// Find не гарантирует порядок при равных расстояниях: собираем все
	// узлы в квадрате радиуса d0 и выбираем минимальный (расстояние, id)
	d0 := planar.Distance(p, found.Point())
	r := d0 + 1e-9*(1+d0)
	box := orb.Bound{
		Min: orb.Point{p[0] - r, p[1] - r},
		Max: orb.Point{p[0] + r, p[1] + r},
	}

	best := found.(nodePointer).idx
	bestD := planar.DistanceSquared(p, found.Point())
	for _, cand := range ix.tree.InBound(nil, box) {
		np := cand.(nodePointer)
		d := planar.DistanceSquared(p, np.p)
		if d < bestD || (d == bestD && ix.g.ids[np.idx] < ix.g.ids[best]) {
			best, bestD = np.idx, d
		}
	}

	return ix.g.resolution(p, best), nil
}

// LinearIndexer - полный перебор узлов. Для маленьких сетей и как эталон в тестах.
type LinearIndexer struct {
	g *Graph
}

// NewLinearIndexer создаёт индекс полного перебора
func NewLinearIndexer(g *Graph) (*LinearIndexer, error) {
	if g == nil || g.NumNodes() == 0 {
		return nil, errors.ErrEmptyNetwork
	}
	return &LinearIndexer{g: g}, nil
}

// Nearest возвращает ближайший узел к точке
func (ix *LinearIndexer) Nearest(p orb.Point) (Resolution, error) {
	if !finitePoint(p) {
		return Resolution{}, errors.ErrMalformedInput.Withf("query point %v is not finite", p)
	}

	best := domain.NodeIndex(0)
	bestD := math.Inf(1)
	// узлы отсортированы по id, поэтому строгое сравнение оставляет меньший id
	for i, np := range ix.g.points {
		if d := planar.DistanceSquared(p, np); d < bestD {
			best, bestD = domain.NodeIndex(i), d
		}
	}
	return ix.g.resolution(p, best), nil
}

func (g *Graph) resolution(p orb.Point, idx domain.NodeIndex) Resolution {
	np := g.points[idx]
	res := Resolution{
		Node:     g.ids[idx],
		Index:    idx,
		Distance: planar.Distance(p, np),
	}
	if g.geographic {
		res.DistanceM = geo.DistanceHaversine(p, np)
	} else {
		res.DistanceM = res.Distance
	}
	return res
}

// QueryPoint приводит геометрию к точке запроса: точка как есть,
// для линий и полигонов - центроид
func QueryPoint(geom orb.Geometry) (orb.Point, error) {
	if geom == nil {
		return orb.Point{}, errors.ErrMalformedInput.Withf("geometry is missing")
	}
	if p, ok := geom.(orb.Point); ok {
		return p, nil
	}
	if geom.Dimensions() == 0 {
		// MultiPoint
		if mp, ok := geom.(orb.MultiPoint); ok && len(mp) == 0 {
			return orb.Point{}, errors.ErrMalformedInput.Withf("empty multipoint")
		}
	}
	c, _ := planar.CentroidArea(geom)
	if !finitePoint(c) {
		return orb.Point{}, errors.ErrMalformedInput.Withf("geometry %s has no centroid", geom.GeoJSONType())
	}
	return c, nil
}

// Resolve привязывает геометрию к ближайшему узлу
func Resolve(ix Indexer, geom orb.Geometry) (Resolution, error) {
	p, err := QueryPoint(geom)
	if err != nil {
		return Resolution{}, err
	}
	return ix.Nearest(p)
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
