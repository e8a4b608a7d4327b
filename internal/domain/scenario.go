package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SiteInfo - метаданные выбранной площадки для отчётов
type SiteInfo struct {
	Rank             int     `json:"rank"`
	SiteIndex        int32   `json:"site_index"`
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Category         string  `json:"amenity"`
	FootprintAreaM2  float64 `json:"footprint_area_m2"`
	SuitabilityScore float64 `json:"suitability_score"`
	MinSizeMet       bool    `json:"min_size_met"`
}

// ScenarioResult - решение для пары (режим, K)
type ScenarioResult struct {
	Mode     TravelMode `json:"mode"`
	K        int        `json:"k"`
	Solution *Solution  `json:"solution"`
	Sites    []SiteInfo `json:"site_metadata,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// MarginalBenefit - прирост взвешенного покрытия на одну площадку между FromK и ToK
type MarginalBenefit struct {
	FromK           int     `json:"from_k"`
	ToK             int     `json:"to_k"`
	MarginalBenefit float64 `json:"marginal_benefit"`
}

// EfficiencyPoint - точка кривой эффективности
type EfficiencyPoint struct {
	K                       int     `json:"k"`
	CoverageRate            float64 `json:"coverage_rate"`
	SitesSelected           int     `json:"sites_selected"`
	CoveragePerSite         float64 `json:"coverage_rate_per_site"`
	MarginalCoveragePerSite float64 `json:"marginal_coverage_per_site"`
	DiminishingReturns      bool    `json:"diminishing_returns"`
}

// ModeAnalysis - производные ряды для одного режима
type ModeAnalysis struct {
	MarginalBenefits []MarginalBenefit `json:"marginal_benefits"`
	Efficiency       []EfficiencyPoint `json:"efficiency"`
}

// ScenarioRun - набор результатов по режимам и K для одного региона
type ScenarioRun struct {
	ID        uuid.UUID                              `json:"run_id"`
	Region    string                                 `json:"region"`
	Strategy  string                                 `json:"strategy"`
	Results   map[TravelMode]map[int]*ScenarioResult `json:"results"`
	Analysis  map[TravelMode]*ModeAnalysis           `json:"analysis"`
	CreatedAt time.Time                              `json:"created_at"`
}

// NewScenarioRun создаёт пустой прогон
func NewScenarioRun(region, strategy string) *ScenarioRun {
	return &ScenarioRun{
		ID:        uuid.New(),
		Region:    region,
		Strategy:  strategy,
		Results:   make(map[TravelMode]map[int]*ScenarioResult),
		Analysis:  make(map[TravelMode]*ModeAnalysis),
		CreatedAt: time.Now().UTC(),
	}
}

// Put добавляет результат
func (r *ScenarioRun) Put(res *ScenarioResult) {
	byK, ok := r.Results[res.Mode]
	if !ok {
		byK = make(map[int]*ScenarioResult)
		r.Results[res.Mode] = byK
	}
	byK[res.K] = res
}

// Modes возвращает режимы прогона в отсортированном порядке
func (r *ScenarioRun) Modes() []TravelMode {
	modes := make([]TravelMode, 0, len(r.Results))
	for m := range r.Results {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// Ordered возвращает результаты режима, отсортированные по K
func (r *ScenarioRun) Ordered(mode TravelMode) []*ScenarioResult {
	byK := r.Results[mode]
	out := make([]*ScenarioResult, 0, len(byK))
	for _, res := range byK {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].K < out[j].K })
	return out
}

// RegionSummary - сводка по нескольким регионам
type RegionSummary struct {
	TotalRegions   int          `json:"total_regions"`
	Modes          []TravelMode `json:"scenarios"`
	KValues        []int        `json:"k_values"`
	TotalSolutions int          `json:"total_solutions"`
}

// RegionCoverage - покрытие региона при заданном K
type RegionCoverage struct {
	Region       string  `json:"region"`
	CoverageRate float64 `json:"coverage_rate"`
	TotalWeight  float64 `json:"total_weight"`
}

// ModeComparison - сравнение регионов для одного режима
type ModeComparison struct {
	RegionsWithData int                    `json:"regions_with_data"`
	AvgCoverageByK  map[int]float64        `json:"avg_coverage_by_k"`
	BestRegionByK   map[int]RegionCoverage `json:"best_regions"`
}

// MultiRegionAnalysis - анализ нескольких прогонов
type MultiRegionAnalysis struct {
	Summary RegionSummary                  `json:"summary"`
	ByMode  map[TravelMode]*ModeComparison `json:"by_scenario"`
}
