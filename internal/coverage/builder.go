package coverage

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/network"
	"github.com/siting-service/internal/pkg/errors"
)

// Config - параметры построения покрытия
type Config struct {
	// Workers - сколько кандидатов обрабатывается параллельно; 0 = GOMAXPROCS
	Workers int
	// SnapWarnM - расстояние привязки к узлу (м), выше которого пишется предупреждение; 0 = выключено
	SnapWarnM float64
}

// BuildInput - исходные данные одного построения
type BuildInput struct {
	Key     domain.CoverageKey
	Network *domain.Network
	Demand  []domain.DemandPoint
	Supply  []domain.SupplyCandidate
}

// Builder строит отношение покрытия: точка спроса i покрыта кандидатом j,
// если кратчайшее время от узла j до узла i не больше бюджета.
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

// NewBuilder создаёт Builder
func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Builder{cfg: cfg, logger: logger}
}

// resolved - привязка сущности к узлу графа
type resolved struct {
	node domain.NodeID
	idx  domain.NodeIndex
	ok   bool
}

// Build строит артефакт покрытия. Сущности без узла в сети получают
// пустое покрытие и предупреждение; ошибки целостности сети фатальны.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*domain.CoverageArtifact, error) {
	start := time.Now()

	budget := in.Key.TimeBudgetMin
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return nil, errors.ErrInvalidTimeBudget.Withf("%v minutes", budget)
	}
	limit := budget * 60

	for i, d := range in.Demand {
		if d.Weight < 0 || math.IsNaN(d.Weight) || math.IsInf(d.Weight, 0) {
			return nil, errors.ErrNegativeWeight.Withf("demand %d (%s) weight %v", i, d.ID, d.Weight)
		}
	}

	g, err := network.NewGraph(in.Network)
	if err != nil {
		return nil, err
	}
	ix, err := network.NewIndexer(g)
	if err != nil {
		return nil, err
	}

	var warnings []domain.Warning
	demandNodes := make([]resolved, len(in.Demand))
	for i, d := range in.Demand {
		r, w := b.resolve(g, ix, "demand", i, d.ID, d.Location, d.Node)
		demandNodes[i] = r
		warnings = append(warnings, w...)
	}
	supplyNodes := make([]resolved, len(in.Supply))
	for j, s := range in.Supply {
		r, w := b.resolve(g, ix, "supply", j, s.ID, s.Location, s.Node)
		supplyNodes[j] = r
		warnings = append(warnings, w...)
	}

	// точки спроса, привязанные к каждому узлу
	demandAt := make(map[domain.NodeIndex][]int32)
	for i, r := range demandNodes {
		if r.ok {
			demandAt[r.idx] = append(demandAt[r.idx], int32(i))
		}
	}

	// каждый кандидат пишет только в свой слот
	reach := make([][]int32, len(in.Supply))
	searchers := sync.Pool{
		New: func() interface{} { return network.NewSearcher(g) },
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.cfg.Workers)
	for j := range in.Supply {
		if !supplyNodes[j].ok {
			continue
		}
		j := j
		eg.Go(func() error {
			s := searchers.Get().(*network.Searcher)
			defer searchers.Put(s)

			var covered []int32
			err := s.Within(egCtx, supplyNodes[j].idx, limit, func(v domain.NodeIndex, _ float64) {
				covered = append(covered, demandAt[v]...)
			})
			if err != nil {
				return err
			}
			reach[j] = covered
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// слияние по возрастанию j даёт отсортированные списки
	relation := domain.NewCoverageRelation(len(in.Demand))
	for j, covered := range reach {
		for _, i := range covered {
			relation.Covers[i] = append(relation.Covers[i], int32(j))
		}
	}

	artifact := &domain.CoverageArtifact{
		ID:        uuid.New(),
		Key:       in.Key,
		Relation:  relation,
		Demand:    demandMetadata(in.Demand, demandNodes),
		Supply:    supplyMetadata(in.Supply, supplyNodes),
		Network:   domain.NetworkSummary{Nodes: g.NumNodes(), Edges: g.NumRawEdges(), MaxTravelTimeMin: budget},
		Warnings:  warnings,
		CreatedAt: time.Now().UTC(),
	}

	b.logger.Info("Coverage relation built",
		zap.String("key", in.Key.String()),
		zap.Int("demand", len(in.Demand)),
		zap.Int("supply", len(in.Supply)),
		zap.Int("links", relation.Links()),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", time.Since(start)))

	return artifact, nil
}

// resolve привязывает сущность к узлу: по геометрии через индекс,
// иначе по заранее известному id узла
func (b *Builder) resolve(g *network.Graph, ix network.Indexer, entity string, i int, id string, geom orb.Geometry, node domain.NodeID) (resolved, []domain.Warning) {
	unresolved := func(msg string) (resolved, []domain.Warning) {
		b.logger.Warn("Entity has no network node",
			zap.String("entity", entity),
			zap.String("id", id),
			zap.String("reason", msg))
		return resolved{node: node}, []domain.Warning{{
			Kind:    domain.WarningUnresolvedNode,
			Entity:  entity,
			Index:   i,
			ID:      id,
			Message: msg,
		}}
	}

	if geom == nil {
		idx, ok := g.Index(node)
		if !ok {
			return unresolved(fmt.Sprintf("node %d is not in the network", node))
		}
		return resolved{node: node, idx: idx, ok: true}, nil
	}

	res, err := network.Resolve(ix, geom)
	if err != nil {
		return unresolved(err.Error())
	}

	r := resolved{node: res.Node, idx: res.Index, ok: true}
	if b.cfg.SnapWarnM > 0 && res.DistanceM > b.cfg.SnapWarnM {
		return r, []domain.Warning{{
			Kind:    domain.WarningFarSnap,
			Entity:  entity,
			Index:   i,
			ID:      id,
			Message: fmt.Sprintf("snapped %.0f m to node %d", res.DistanceM, res.Node),
		}}
	}
	return r, nil
}

func demandMetadata(demand []domain.DemandPoint, nodes []resolved) domain.DemandMetadata {
	md := domain.DemandMetadata{
		IDs:          make([]string, len(demand)),
		Weights:      make([]float64, len(demand)),
		RiskScores:   make([]float64, len(demand)),
		NetworkNodes: make([]domain.NodeID, len(demand)),
	}
	for i, d := range demand {
		md.IDs[i] = d.ID
		md.Weights[i] = d.Weight
		md.RiskScores[i] = d.Risk
		md.NetworkNodes[i] = nodes[i].node
	}
	return md
}

func supplyMetadata(supply []domain.SupplyCandidate, nodes []resolved) domain.SupplyMetadata {
	md := domain.SupplyMetadata{
		IDs:            make([]string, len(supply)),
		Categories:     make([]string, len(supply)),
		Names:          make([]string, len(supply)),
		FootprintAreas: make([]float64, len(supply)),
		NetworkNodes:   make([]domain.NodeID, len(supply)),
	}
	for j, s := range supply {
		md.IDs[j] = s.ID
		md.Categories[j] = s.Category
		md.Names[j] = s.Name
		md.FootprintAreas[j] = s.FootprintAreaM2
		md.NetworkNodes[j] = nodes[j].node
	}
	return md
}
