package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siting-service/internal/domain"
)

func result(mode domain.TravelMode, k int, weight, rate float64, sites int) *domain.ScenarioResult {
	selected := make([]int32, sites)
	for i := range selected {
		selected[i] = int32(i)
	}
	return &domain.ScenarioResult{
		Mode: mode,
		K:    k,
		Solution: &domain.Solution{
			Selected:      selected,
			CoveredWeight: weight,
			CoverageRate:  rate,
		},
	}
}

func TestMarginalBenefits_UnevenSteps(t *testing.T) {
	results := []*domain.ScenarioResult{
		result(domain.TravelModeWalk, 5, 100, 0.4, 5),
		result(domain.TravelModeWalk, 10, 150, 0.6, 10),
		result(domain.TravelModeWalk, 20, 175, 0.65, 20),
	}

	mb := MarginalBenefits(results)
	require.Len(t, mb, 2)
	assert.Equal(t, domain.MarginalBenefit{FromK: 5, ToK: 10, MarginalBenefit: 10}, mb[0])
	assert.Equal(t, domain.MarginalBenefit{FromK: 10, ToK: 20, MarginalBenefit: 2.5}, mb[1])

	assert.Empty(t, MarginalBenefits(results[:1]))
	assert.NotNil(t, MarginalBenefits(nil))
}

func TestEfficiencySeries_DiminishingReturns(t *testing.T) {
	results := []*domain.ScenarioResult{
		result(domain.TravelModeWalk, 5, 100, 0.4, 5),
		result(domain.TravelModeWalk, 10, 150, 0.6, 10),
		result(domain.TravelModeWalk, 20, 175, 0.65, 20),
	}

	eff := EfficiencySeries(results, DefaultDiminishingThreshold)
	require.Len(t, eff, 3)

	assert.InDelta(t, 0.08, eff[0].MarginalCoveragePerSite, 1e-12)
	assert.False(t, eff[0].DiminishingReturns)

	assert.InDelta(t, 0.04, eff[1].MarginalCoveragePerSite, 1e-12)
	assert.False(t, eff[1].DiminishingReturns)

	assert.InDelta(t, 0.005, eff[2].MarginalCoveragePerSite, 1e-12)
	assert.True(t, eff[2].DiminishingReturns)
	assert.InDelta(t, 0.0325, eff[2].CoveragePerSite, 1e-12)
	assert.Equal(t, 20, eff[2].SitesSelected)

	// порог настраивается
	eff = EfficiencySeries(results, 0.05)
	assert.True(t, eff[1].DiminishingReturns)
}

func TestEfficiencySeries_FirstPointNeverDiminishing(t *testing.T) {
	eff := EfficiencySeries([]*domain.ScenarioResult{
		result(domain.TravelModeDrive, 1, 0, 0, 0),
	}, DefaultDiminishingThreshold)

	require.Len(t, eff, 1)
	assert.False(t, eff[0].DiminishingReturns)
	assert.Equal(t, 0.0, eff[0].CoveragePerSite)
}

func TestCompareRegions(t *testing.T) {
	b := domain.NewScenarioRun("region_b", "auto")
	b.Put(result(domain.TravelModeWalk, 1, 5, 0.5, 1))
	b.Put(result(domain.TravelModeWalk, 2, 7, 0.7, 2))
	b.Put(result(domain.TravelModeDrive, 1, 9, 0.9, 1))

	a := domain.NewScenarioRun("region_a", "auto")
	a.Put(result(domain.TravelModeWalk, 1, 3, 0.3, 1))
	a.Put(result(domain.TravelModeWalk, 2, 8, 0.8, 2))

	analysis := CompareRegions([]*domain.ScenarioRun{b, nil, a})

	assert.Equal(t, 2, analysis.Summary.TotalRegions)
	assert.Equal(t, []domain.TravelMode{domain.TravelModeDrive, domain.TravelModeWalk}, analysis.Summary.Modes)
	assert.Equal(t, []int{1, 2}, analysis.Summary.KValues)
	assert.Equal(t, 5, analysis.Summary.TotalSolutions)

	walk := analysis.ByMode[domain.TravelModeWalk]
	require.NotNil(t, walk)
	assert.Equal(t, 2, walk.RegionsWithData)
	assert.InDelta(t, 0.4, walk.AvgCoverageByK[1], 1e-12)
	assert.InDelta(t, 0.75, walk.AvgCoverageByK[2], 1e-12)
	assert.Equal(t, "region_b", walk.BestRegionByK[1].Region)
	assert.Equal(t, "region_a", walk.BestRegionByK[2].Region)
	assert.Equal(t, 8.0, walk.BestRegionByK[2].TotalWeight)

	drive := analysis.ByMode[domain.TravelModeDrive]
	require.NotNil(t, drive)
	assert.Equal(t, 1, drive.RegionsWithData)
	assert.InDelta(t, 0.9, drive.AvgCoverageByK[1], 1e-12)
}

func TestCompareRegions_TieGoesToFirstRegionByName(t *testing.T) {
	b := domain.NewScenarioRun("b", "greedy")
	b.Put(result(domain.TravelModeWalk, 1, 1, 0.5, 1))
	a := domain.NewScenarioRun("a", "greedy")
	a.Put(result(domain.TravelModeWalk, 1, 1, 0.5, 1))

	analysis := CompareRegions([]*domain.ScenarioRun{b, a})
	assert.Equal(t, "a", analysis.ByMode[domain.TravelModeWalk].BestRegionByK[1].Region)
}
