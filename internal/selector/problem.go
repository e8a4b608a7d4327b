package selector

import (
	"math"
	"sort"
	"time"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

const (
	// DefaultEquityThreshold - доля веса группы высокого риска, которую нужно покрыть
	DefaultEquityThreshold = 0.6
	// HighRiskPercentile - порог веса для группы высокого риска
	HighRiskPercentile = 75.0
)

// Problem - запрос на выбор площадок
type Problem struct {
	Relation  *domain.CoverageRelation
	Weights   []float64
	NumSupply int
	K         int

	// Equity включает ограничение справедливости с порогом Theta
	Equity bool
	Theta  float64
}

// NewProblem собирает задачу из артефакта покрытия
func NewProblem(a *domain.CoverageArtifact, k int) *Problem {
	return &Problem{
		Relation:  a.Relation,
		Weights:   a.Demand.Weights,
		NumSupply: a.NumSupply(),
		K:         k,
		Theta:     DefaultEquityThreshold,
	}
}

// WithEquity возвращает копию задачи с ограничением справедливости
func (p *Problem) WithEquity(theta float64) *Problem {
	c := *p
	c.Equity = true
	c.Theta = theta
	return &c
}

// Validate проверяет запрос до начала вычислений
func (p *Problem) Validate() error {
	if p.Relation == nil {
		return errors.ErrInvalidRelation.Withf("coverage relation is missing")
	}
	if p.K < 0 {
		return errors.ErrInvalidK.Withf("got %d", p.K)
	}
	if p.NumSupply < 0 {
		return errors.ErrInvalidRequest.Withf("negative supply count %d", p.NumSupply)
	}
	if len(p.Weights) != p.Relation.NumDemand() {
		return errors.ErrInvalidRequest.Withf("%d weights for %d demand points", len(p.Weights), p.Relation.NumDemand())
	}
	for i, w := range p.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return errors.ErrNegativeWeight.Withf("demand %d weight %v", i, w)
		}
	}
	if p.Equity && (math.IsNaN(p.Theta) || p.Theta < 0 || p.Theta > 1) {
		return errors.ErrInvalidEquityThreshold.Withf("got %v", p.Theta)
	}
	if err := p.Relation.Validate(p.Relation.NumDemand(), p.NumSupply); err != nil {
		return errors.ErrInvalidRelation.Wrap(err)
	}
	return nil
}

// HighRiskSet - точки спроса с весом не ниже 75-го процентиля и их суммарный вес
func (p *Problem) HighRiskSet() ([]int32, float64) {
	if len(p.Weights) == 0 {
		return nil, 0
	}
	threshold := Percentile(p.Weights, HighRiskPercentile)
	var (
		idx   []int32
		total float64
	)
	for i, w := range p.Weights {
		if w >= threshold {
			idx = append(idx, int32(i))
			total += w
		}
	}
	return idx, total
}

// Percentile - процентиль q (0..100) с линейной интерполяцией между
// соседними рангами: ранг q/100*(n-1)
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// evaluate - покрытые точки и их суммарный вес для набора площадок
func evaluate(p *Problem, selected []int32) ([]int32, float64) {
	chosen := make(map[int32]struct{}, len(selected))
	for _, j := range selected {
		chosen[j] = struct{}{}
	}

	var (
		covered []int32
		weight  float64
	)
	for i, covers := range p.Relation.Covers {
		for _, j := range covers {
			if _, ok := chosen[j]; ok {
				covered = append(covered, int32(i))
				weight += p.Weights[i]
				break
			}
		}
	}
	return covered, weight
}

// newSolution заполняет решение по выбранным площадкам
func newSolution(p *Problem, selected []int32, algo domain.Algorithm, status domain.SolveStatus, elapsed time.Duration) *domain.Solution {
	if selected == nil {
		selected = []int32{}
	}
	covered, weight := evaluate(p, selected)
	if covered == nil {
		covered = []int32{}
	}

	sol := &domain.Solution{
		Selected:      selected,
		Covered:       covered,
		CoveredWeight: weight,
		Objective:     weight,
		Provenance: domain.Provenance{
			Algorithm: algo,
			Status:    status,
			SolveTime: elapsed,
		},
	}
	if nd := p.Relation.NumDemand(); nd > 0 {
		sol.CoverageRate = float64(len(covered)) / float64(nd)
	}
	return sol
}

// infeasibleSolution - пустой результат без выбранных площадок
func infeasibleSolution(algo domain.Algorithm, elapsed time.Duration) *domain.Solution {
	return &domain.Solution{
		Selected: []int32{},
		Covered:  []int32{},
		Provenance: domain.Provenance{
			Algorithm: algo,
			Status:    domain.StatusInfeasible,
			SolveTime: elapsed,
		},
	}
}
