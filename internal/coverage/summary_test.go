package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siting-service/internal/domain"
)

func artifact(region string, mode domain.TravelMode, covers [][]int32, weights []float64, supply int) *domain.CoverageArtifact {
	a := &domain.CoverageArtifact{
		Key:      domain.CoverageKey{Region: region, Mode: mode, TimeBudgetMin: 10},
		Relation: &domain.CoverageRelation{Covers: covers},
		Demand: domain.DemandMetadata{
			IDs:     make([]string, len(weights)),
			Weights: weights,
		},
		Supply: domain.SupplyMetadata{IDs: make([]string, supply)},
	}
	return a
}

func TestSummarize(t *testing.T) {
	a := artifact("harris", domain.TravelModeWalk, [][]int32{{0, 1}, {}, {1}, {0, 1, 2}}, []float64{1, 2, 3, 4}, 3)

	st := Summarize(a)
	assert.Equal(t, 4, st.DemandPoints)
	assert.Equal(t, 3, st.SupplyPoints)
	assert.Equal(t, 3, st.CoveredDemandPoints)
	assert.InDelta(t, 0.75, st.CoverageRate, 1e-12)
	assert.InDelta(t, 1.5, st.AvgSupplyOptions, 1e-12)
	assert.Equal(t, 6, st.TotalCoverageLinks)
	assert.InDelta(t, 8.0, st.CoverableWeight, 1e-12)
	assert.InDelta(t, 10.0, st.TotalWeight, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(artifact("empty", domain.TravelModeDrive, nil, nil, 2))
	assert.Equal(t, 0, st.DemandPoints)
	assert.Equal(t, 0.0, st.CoverageRate)
	assert.Equal(t, 0.0, st.AvgSupplyOptions)
}

func TestBuildReport_CountsWalkOnce(t *testing.T) {
	arts := []*domain.CoverageArtifact{
		artifact("harris", domain.TravelModeWalk, [][]int32{{0}, {}}, []float64{1, 1}, 2),
		artifact("harris", domain.TravelModeDrive, [][]int32{{0, 1}, {1}}, []float64{1, 1}, 2),
		artifact("maricopa", domain.TravelModeWalk, [][]int32{{0}}, []float64{5}, 1),
		artifact("pima", domain.TravelModeDrive, [][]int32{{0}}, []float64{5}, 1),
	}

	rep := BuildReport(arts)
	assert.Equal(t, 3, rep.Overall.TotalRegions)
	assert.Equal(t, 3, rep.Overall.TotalDemandPoints)
	assert.Equal(t, 3, rep.Overall.TotalSupplyPoints)
	assert.Equal(t, 2, rep.Overall.TotalCoverageLinks)
	assert.Len(t, rep.Regions["harris"], 2)
	assert.Equal(t, 3, rep.Regions["harris"][domain.TravelModeDrive].TotalCoverageLinks)
}
