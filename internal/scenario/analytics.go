package scenario

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/utils"
)

// Analyze считает производные ряды по результатам одного режима, отсортированным по K
func Analyze(results []*domain.ScenarioResult, threshold float64) *domain.ModeAnalysis {
	return &domain.ModeAnalysis{
		MarginalBenefits: MarginalBenefits(results),
		Efficiency:       EfficiencySeries(results, threshold),
	}
}

// MarginalBenefits - (W(k2) - W(k1)) / (k2 - k1) для соседних K
func MarginalBenefits(results []*domain.ScenarioResult) []domain.MarginalBenefit {
	out := []domain.MarginalBenefit{}
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		gain := weight(cur) - weight(prev)
		out = append(out, domain.MarginalBenefit{
			FromK:           prev.K,
			ToK:             cur.K,
			MarginalBenefit: utils.SafeDiv(gain, float64(cur.K-prev.K)),
		})
	}
	return out
}

// EfficiencySeries - прирост доли покрытия на каждую добавленную площадку.
// Первая точка считается от нуля и не помечается как убывающая отдача.
func EfficiencySeries(results []*domain.ScenarioResult, threshold float64) []domain.EfficiencyPoint {
	out := []domain.EfficiencyPoint{}
	for i, res := range results {
		cov, sites := rate(res), selected(res)

		marginalRate, marginalSites := cov, sites
		if i > 0 {
			marginalRate -= rate(results[i-1])
			marginalSites -= selected(results[i-1])
		}

		eff := 0.0
		if marginalSites > 0 {
			eff = marginalRate / float64(marginalSites)
		}

		out = append(out, domain.EfficiencyPoint{
			K:                       res.K,
			CoverageRate:            cov,
			SitesSelected:           sites,
			CoveragePerSite:         utils.SafeDiv(cov, float64(sites)),
			MarginalCoveragePerSite: eff,
			DiminishingReturns:      i > 0 && eff < threshold,
		})
	}
	return out
}

// CompareRegions сводит прогоны нескольких регионов: средняя доля покрытия
// по K и лучший регион по K для каждого режима
func CompareRegions(runs []*domain.ScenarioRun) *domain.MultiRegionAnalysis {
	sorted := make([]*domain.ScenarioRun, 0, len(runs))
	for _, r := range runs {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Region < sorted[j].Region })

	modes := make(map[domain.TravelMode]struct{})
	ks := make(map[int]struct{})
	total := 0

	for _, run := range sorted {
		for mode, byK := range run.Results {
			modes[mode] = struct{}{}
			for k := range byK {
				ks[k] = struct{}{}
			}
			total += len(byK)
		}
	}

	analysis := &domain.MultiRegionAnalysis{
		Summary: domain.RegionSummary{
			TotalRegions:   len(sorted),
			Modes:          make([]domain.TravelMode, 0, len(modes)),
			KValues:        make([]int, 0, len(ks)),
			TotalSolutions: total,
		},
		ByMode: make(map[domain.TravelMode]*domain.ModeComparison, len(modes)),
	}
	for m := range modes {
		analysis.Summary.Modes = append(analysis.Summary.Modes, m)
	}
	sort.Slice(analysis.Summary.Modes, func(i, j int) bool {
		return analysis.Summary.Modes[i] < analysis.Summary.Modes[j]
	})
	for k := range ks {
		analysis.Summary.KValues = append(analysis.Summary.KValues, k)
	}
	sort.Ints(analysis.Summary.KValues)

	for _, mode := range analysis.Summary.Modes {
		cmp := &domain.ModeComparison{
			AvgCoverageByK: make(map[int]float64),
			BestRegionByK:  make(map[int]domain.RegionCoverage),
		}
		rates := make(map[int][]float64)

		for _, run := range sorted {
			if _, ok := run.Results[mode]; !ok {
				continue
			}
			cmp.RegionsWithData++

			for _, res := range run.Ordered(mode) {
				r := rate(res)
				rates[res.K] = append(rates[res.K], r)

				best, seen := cmp.BestRegionByK[res.K]
				if !seen || r > best.CoverageRate {
					cmp.BestRegionByK[res.K] = domain.RegionCoverage{
						Region:       run.Region,
						CoverageRate: r,
						TotalWeight:  weight(res),
					}
				}
			}
		}

		for k, values := range rates {
			cmp.AvgCoverageByK[k] = stat.Mean(values, nil)
		}
		analysis.ByMode[mode] = cmp
	}

	return analysis
}

func weight(res *domain.ScenarioResult) float64 {
	if res == nil || res.Solution == nil {
		return 0
	}
	return res.Solution.CoveredWeight
}

func rate(res *domain.ScenarioResult) float64 {
	if res == nil || res.Solution == nil {
		return 0
	}
	return res.Solution.CoverageRate
}

func selected(res *domain.ScenarioResult) int {
	if res == nil || res.Solution == nil {
		return 0
	}
	return res.Solution.NumSelected()
}
