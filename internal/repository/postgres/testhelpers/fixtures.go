package testhelpers

import (
	"time"

	"github.com/siting-service/internal/domain"
)

// CoverageFixture returns a small consistent artifact:
// d0 <- {s0, s1}, d1 uncovered, d2 <- {s1}
func CoverageFixture(region string, mode domain.TravelMode, budgetMin float64) *domain.CoverageArtifact {
	return &domain.CoverageArtifact{
		Key:      domain.CoverageKey{Region: region, Mode: mode, TimeBudgetMin: budgetMin},
		Relation: &domain.CoverageRelation{Covers: [][]int32{{0, 1}, {}, {1}}},
		Demand: domain.DemandMetadata{
			IDs:          []string{"d0", "d1", "d2"},
			Weights:      []float64{120, 40, 75.5},
			RiskScores:   []float64{0.4, 0.9, 0.1},
			NetworkNodes: []domain.NodeID{101, 102, 103},
		},
		Supply: domain.SupplyMetadata{
			IDs:            []string{"s0", "s1"},
			Categories:     []string{"school", "library"},
			Names:          []string{"North School", "Central Library"},
			FootprintAreas: []float64{1800, 950},
			NetworkNodes:   []domain.NodeID{101, 103},
		},
		Network: domain.NetworkSummary{Nodes: 3, Edges: 6, MaxTravelTimeMin: budgetMin},
		Warnings: []domain.Warning{{
			Kind:    domain.WarningUnresolvedNode,
			Entity:  "demand",
			Index:   1,
			ID:      "d1",
			Message: "no network node",
		}},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// ScenarioRunFixture returns a run with one walk result per K
func ScenarioRunFixture(region string, createdAt time.Time, ks ...int) *domain.ScenarioRun {
	run := domain.NewScenarioRun(region, "greedy")
	run.CreatedAt = createdAt.UTC().Truncate(time.Millisecond)

	for _, k := range ks {
		run.Put(&domain.ScenarioResult{
			Mode: domain.TravelModeWalk,
			K:    k,
			Solution: &domain.Solution{
				Selected:      []int32{1},
				Covered:       []int32{0, 2},
				CoveredWeight: 195.5,
				Objective:     195.5,
				CoverageRate:  195.5 / 235.5,
				Provenance: domain.Provenance{
					Algorithm: domain.AlgorithmGreedy,
					Status:    domain.StatusHeuristicSolved,
					SolveTime: 3 * time.Millisecond,
				},
			},
			Sites: []domain.SiteInfo{{
				Rank: 1, SiteIndex: 1, ID: "s1", Name: "Central Library", Category: "library",
				FootprintAreaM2: 950, SuitabilityScore: 0.95, MinSizeMet: false,
			}},
		})
	}
	run.Analysis[domain.TravelModeWalk] = &domain.ModeAnalysis{
		MarginalBenefits: []domain.MarginalBenefit{},
		Efficiency:       []domain.EfficiencyPoint{},
	}
	return run
}
