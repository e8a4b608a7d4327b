package scenario

import (
	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/utils"
)

const (
	// MaxRecommendedSites - сколько выбранных площадок попадает в отчёт
	MaxRecommendedSites = 15
	// MinFootprintM2 - минимальная площадь здания для размещения
	MinFootprintM2 = 300

	defaultSuitability = 0.5
	// площадь, если она неизвестна
	defaultFootprintM2 = 1000
)

// Оценка пригодности по типу объекта
var categorySuitability = map[string]float64{
	"school":           0.9,
	"library":          0.9,
	"community_centre": 0.85,
	"place_of_worship": 0.7,
	"hospital":         0.6,
}

// SuitabilityScore - оценка пригодности площадки в [0, 1]: тип объекта
// плюс поправка на размер здания
func SuitabilityScore(category string, footprintM2 float64) float64 {
	score, ok := categorySuitability[category]
	if !ok {
		score = defaultSuitability
	}

	switch {
	case footprintM2 > 2000:
		score += 0.1
	case footprintM2 < 500:
		score -= 0.1
	}

	return utils.Clamp(score, 0, 1)
}

// Recommend собирает метаданные выбранных площадок в порядке выбора,
// не больше MaxRecommendedSites
func Recommend(a *domain.CoverageArtifact, selected []int32) []domain.SiteInfo {
	n := len(selected)
	if n > MaxRecommendedSites {
		n = MaxRecommendedSites
	}

	sites := make([]domain.SiteInfo, 0, n)
	for _, idx := range selected[:n] {
		if idx < 0 || int(idx) >= a.NumSupply() {
			continue
		}
		footprint := valueAt(a.Supply.FootprintAreas, idx)
		scored := footprint
		if scored <= 0 {
			scored = defaultFootprintM2
		}
		category := stringAt(a.Supply.Categories, idx)

		sites = append(sites, domain.SiteInfo{
			Rank:             len(sites) + 1,
			SiteIndex:        idx,
			ID:               a.Supply.IDs[idx],
			Name:             stringAt(a.Supply.Names, idx),
			Category:         category,
			FootprintAreaM2:  footprint,
			SuitabilityScore: SuitabilityScore(category, scored),
			MinSizeMet:       scored >= MinFootprintM2,
		})
	}
	return sites
}

func stringAt(values []string, idx int32) string {
	if int(idx) < len(values) {
		return values[idx]
	}
	return ""
}

func valueAt(values []float64, idx int32) float64 {
	if int(idx) < len(values) {
		return values[idx]
	}
	return 0
}
