package selector

import (
	"context"
	"time"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

// GreedySolver - жадная эвристика взвешенного покрытия: на каждом шаге
// берётся площадка с наибольшим приростом ещё не покрытого веса.
// При равенстве выбирается меньший индекс. Ограничение справедливости
// не поддерживается.
type GreedySolver struct{}

// NewGreedySolver создаёт GreedySolver
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{}
}

func (s *GreedySolver) Name() string { return string(domain.AlgorithmGreedy) }

// Solve выполняет не более K итераций и останавливается, когда прирост не положителен
func (s *GreedySolver) Solve(ctx context.Context, p *Problem) (*domain.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Equity {
		return nil, errors.ErrEquityUnsupported
	}

	start := time.Now()
	selected := greedySelect(p)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newSolution(p, selected, domain.AlgorithmGreedy, domain.StatusHeuristicSolved, time.Since(start)), nil
}

// greedySelect возвращает площадки в порядке выбора
func greedySelect(p *Problem) []int32 {
	sites := p.Relation.SiteCoverage(p.NumSupply)
	covered := make([]bool, p.Relation.NumDemand())
	taken := make([]bool, p.NumSupply)
	selected := make([]int32, 0, p.K)

	for iter := 0; iter < p.K; iter++ {
		best := -1
		bestGain := 0.0
		for j, demand := range sites {
			if taken[j] {
				continue
			}
			gain := 0.0
			for _, i := range demand {
				if !covered[i] {
					gain += p.Weights[i]
				}
			}
			if gain > bestGain {
				best, bestGain = j, gain
			}
		}
		if best < 0 {
			break
		}

		taken[best] = true
		selected = append(selected, int32(best))
		for _, i := range sites[best] {
			covered[i] = true
		}
	}
	return selected
}
