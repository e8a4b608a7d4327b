package coverage

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/siting-service/internal/domain"
)

// Stats - статистика одного отношения покрытия
type Stats struct {
	Key                 domain.CoverageKey `json:"key"`
	DemandPoints        int                `json:"demand_points"`
	SupplyPoints        int                `json:"supply_points"`
	CoveredDemandPoints int                `json:"covered_demand_points"`
	CoverageRate        float64            `json:"coverage_rate"`
	CoverableWeight     float64            `json:"coverable_weight"`
	TotalWeight         float64            `json:"total_weight"`
	AvgSupplyOptions    float64            `json:"avg_supply_options"`
	TotalCoverageLinks  int                `json:"total_coverage_links"`
	Warnings            int                `json:"warnings"`
}

// Summarize считает статистику артефакта
func Summarize(a *domain.CoverageArtifact) Stats {
	nd := a.NumDemand()
	st := Stats{
		Key:          a.Key,
		DemandPoints: nd,
		SupplyPoints: a.NumSupply(),
		TotalWeight:  floats.Sum(a.Demand.Weights),
		Warnings:     len(a.Warnings),
	}
	if a.Relation == nil || nd == 0 {
		return st
	}

	options := make([]float64, nd)
	for i := 0; i < nd && i < a.Relation.NumDemand(); i++ {
		n := len(a.Relation.CoveringSites(i))
		options[i] = float64(n)
		st.TotalCoverageLinks += n
		if n > 0 {
			st.CoveredDemandPoints++
			st.CoverableWeight += a.Demand.Weights[i]
		}
	}
	st.AvgSupplyOptions = stat.Mean(options, nil)
	st.CoverageRate = float64(st.CoveredDemandPoints) / float64(nd)
	return st
}

// RegionTotals - итог по всем регионам
type RegionTotals struct {
	TotalRegions       int `json:"total_counties"`
	TotalDemandPoints  int `json:"total_demand_points"`
	TotalSupplyPoints  int `json:"total_supply_points"`
	TotalCoverageLinks int `json:"total_coverage_links"`
}

// Report - сводка по набору артефактов: регион -> режим -> статистика
type Report struct {
	Regions map[string]map[domain.TravelMode]Stats `json:"counties"`
	Overall RegionTotals                           `json:"overall"`
}

// BuildReport собирает сводку. Итоги считаются по одному режиму на регион
// (пешему, если он есть), чтобы не учитывать одни и те же точки дважды.
func BuildReport(artifacts []*domain.CoverageArtifact) Report {
	rep := Report{Regions: make(map[string]map[domain.TravelMode]Stats)}
	for _, a := range artifacts {
		byMode, ok := rep.Regions[a.Key.Region]
		if !ok {
			byMode = make(map[domain.TravelMode]Stats)
			rep.Regions[a.Key.Region] = byMode
		}
		byMode[a.Key.Mode] = Summarize(a)
	}

	regions := make([]string, 0, len(rep.Regions))
	for r := range rep.Regions {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	rep.Overall.TotalRegions = len(regions)
	for _, r := range regions {
		byMode := rep.Regions[r]
		st, ok := byMode[domain.TravelModeWalk]
		if !ok {
			continue
		}
		rep.Overall.TotalDemandPoints += st.DemandPoints
		rep.Overall.TotalSupplyPoints += st.SupplyPoints
		rep.Overall.TotalCoverageLinks += st.TotalCoverageLinks
	}
	return rep
}
