package network

import (
	"container/heap"
	"context"

	"github.com/siting-service/internal/domain"
)

// item - элемент очереди с приоритетом. Устаревшие записи пропускаются
// при извлечении (ленивое уменьшение ключа).
type item struct {
	node domain.NodeIndex
	dist float64
}

type minHeap []item

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].node < h[j].node
}
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Searcher - однопоточный Dijkstra с переиспользуемыми буферами.
// Один Searcher на горутину; Graph можно разделять между ними.
type Searcher struct {
	g     *Graph
	dist  []float64
	stamp []uint32
	done  []uint32
	epoch uint32
	pq    minHeap
}

// NewSearcher создаёт Searcher для графа
func NewSearcher(g *Graph) *Searcher {
	return &Searcher{
		g:     g,
		dist:  make([]float64, g.NumNodes()),
		stamp: make([]uint32, g.NumNodes()),
		done:  make([]uint32, g.NumNodes()),
	}
}

// ctxCheckInterval - как часто проверять отмену контекста (в извлечённых узлах)
const ctxCheckInterval = 4096

// Within обходит узлы, достижимые из src не дальше limit секунд, в порядке
// возрастания расстояния. Узлы дальше limit не раскрываются; расстояния до
// посещённых узлов точные. visit вызывается ровно один раз на узел.
func (s *Searcher) Within(ctx context.Context, src domain.NodeIndex, limit float64, visit func(domain.NodeIndex, float64)) error {
	s.epoch++
	if s.epoch == 0 {
		// переполнение счётчика: сбрасываем метки
		for i := range s.stamp {
			s.stamp[i] = 0
			s.done[i] = 0
		}
		s.epoch = 1
	}
	s.pq = s.pq[:0]

	s.dist[src] = 0
	s.stamp[src] = s.epoch
	heap.Push(&s.pq, item{node: src, dist: 0})

	popped := 0
	for s.pq.Len() > 0 {
		cur := heap.Pop(&s.pq).(item)
		if s.done[cur.node] == s.epoch {
			continue
		}
		if cur.dist > limit {
			break
		}
		s.done[cur.node] = s.epoch
		visit(cur.node, cur.dist)

		popped++
		if popped%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		targets, costs := s.g.neighbors(cur.node)
		for i, v := range targets {
			if s.done[v] == s.epoch {
				continue
			}
			nd := cur.dist + costs[i]
			if nd > limit {
				continue
			}
			if s.stamp[v] != s.epoch || nd < s.dist[v] {
				s.stamp[v] = s.epoch
				s.dist[v] = nd
				heap.Push(&s.pq, item{node: v, dist: nd})
			}
		}
	}
	return nil
}

// Distances возвращает расстояния от src до всех узлов в пределах limit
func (s *Searcher) Distances(ctx context.Context, src domain.NodeIndex, limit float64) (map[domain.NodeIndex]float64, error) {
	out := make(map[domain.NodeIndex]float64)
	err := s.Within(ctx, src, limit, func(v domain.NodeIndex, d float64) {
		out[v] = d
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
