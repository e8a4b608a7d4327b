package filesource

import (
	"context"

	"go.uber.org/zap"

	"github.com/siting-service/internal/config"
	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/network"
	"github.com/siting-service/internal/pkg/errors"
)

type planSource struct {
	plan    *config.Plan
	regions map[string]*config.RegionPlan
	logger  *zap.Logger
}

// NewPlanSource создает LocationSource поверх файлов, перечисленных в плане
func NewPlanSource(plan *config.Plan, logger *zap.Logger) repository.LocationSource {
	regions := make(map[string]*config.RegionPlan, len(plan.Regions))
	for i := range plan.Regions {
		regions[plan.Regions[i].Name] = &plan.Regions[i]
	}
	return &planSource{plan: plan, regions: regions, logger: logger}
}

func (s *planSource) region(name string) (*config.RegionPlan, error) {
	r, ok := s.regions[name]
	if !ok {
		return nil, errors.ErrInvalidRequest.Withf("region %q is not in the plan", name)
	}
	return r, nil
}

// Network загружает граф OSMnx региона для режима
func (s *planSource) Network(ctx context.Context, region string, mode domain.TravelMode) (*domain.Network, error) {
	r, err := s.region(region)
	if err != nil {
		return nil, err
	}
	rel := r.NetworkPath(mode)
	if rel == "" {
		return nil, errors.ErrInvalidTravelMode.Withf("region %s has no %s network", region, mode)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.plan.Path(rel)
	n, err := network.LoadNetworkFile(path, region, mode)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Network loaded",
		zap.String("region", region),
		zap.String("mode", string(mode)),
		zap.String("path", path),
		zap.Int("nodes", len(n.Nodes)),
		zap.Int("edges", len(n.Edges)))
	return n, nil
}

// Demand загружает точки спроса региона
func (s *planSource) Demand(ctx context.Context, region string) ([]domain.DemandPoint, error) {
	r, err := s.region(region)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return network.LoadDemandFile(s.plan.Path(r.Demand), filter(r))
}

// Supply загружает кандидатов региона
func (s *planSource) Supply(ctx context.Context, region string) ([]domain.SupplyCandidate, error) {
	r, err := s.region(region)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return network.LoadSupplyFile(s.plan.Path(r.Supply), filter(r))
}

func filter(r *config.RegionPlan) network.RegionFilter {
	if r.Filter == nil {
		return network.RegionFilter{}
	}
	return network.RegionFilter{Property: r.Filter.Property, Value: r.Filter.Value}
}
