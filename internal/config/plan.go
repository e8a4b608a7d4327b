package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/pkg/validator"
)

// Plan - пакетное задание для builder: какие регионы, режимы и бюджеты времени строить
type Plan struct {
	DataDir     string             `yaml:"data_dir"`
	Regions     []RegionPlan       `yaml:"regions" validate:"required,min=1,dive"`
	TimeBudgets map[string]float64 `yaml:"time_budgets_min" validate:"required,min=1,dive,keys,travelmode,endkeys,gt=0"`
	Scenarios   *ScenarioPlan      `yaml:"scenarios"`
}

// RegionPlan - исходные файлы региона. Пути относительны DataDir.
type RegionPlan struct {
	Name     string            `yaml:"name" validate:"required"`
	Networks map[string]string `yaml:"networks" validate:"required,min=1,dive,keys,travelmode,endkeys,required"`
	Demand   string            `yaml:"demand" validate:"required"`
	Supply   string            `yaml:"supply" validate:"required"`
	// Filter - необязательный отбор объектов региона из общих слоёв
	Filter *FilterPlan `yaml:"filter"`
}

type FilterPlan struct {
	Property string `yaml:"property" validate:"required"`
	Value    string `yaml:"value" validate:"required"`
}

// ScenarioPlan - сценарии, которые решаются сразу после построения покрытия
type ScenarioPlan struct {
	KValues         []int    `yaml:"k_values" validate:"required,min=1,dive,gte=1"`
	Strategy        string   `yaml:"strategy" validate:"omitempty,oneof=exact greedy auto"`
	EquityThreshold *float64 `yaml:"equity_threshold" validate:"omitempty,gte=0,lte=1"`
}

// LoadPlan читает и проверяет YAML-план
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data, filepath.Dir(path))
}

// ParsePlan разбирает план; относительный data_dir считается от baseDir
func ParsePlan(data []byte, baseDir string) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.ErrInvalidRequest.Wrap(err).Withf("plan is not valid YAML")
	}

	if err := validator.Validate(&plan); err != nil {
		return nil, errors.ErrInvalidRequest.Withf("%s", validator.Describe(err))
	}

	if plan.DataDir == "" {
		plan.DataDir = baseDir
	} else if !filepath.IsAbs(plan.DataDir) {
		plan.DataDir = filepath.Join(baseDir, plan.DataDir)
	}

	seen := make(map[string]bool, len(plan.Regions))
	for _, r := range plan.Regions {
		if seen[r.Name] {
			return nil, errors.ErrInvalidRequest.Withf("region %q is listed twice", r.Name)
		}
		seen[r.Name] = true

		for _, mode := range r.Modes() {
			if plan.Budget(mode) <= 0 {
				return nil, errors.ErrInvalidTimeBudget.Withf("no time budget for mode %s (region %s)", mode, r.Name)
			}
		}
	}

	return &plan, nil
}

// Path возвращает абсолютный путь к файлу плана
func (p *Plan) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.DataDir, rel)
}

// Modes возвращает режимы сетей региона
func (r *RegionPlan) Modes() []domain.TravelMode {
	modes := make([]domain.TravelMode, 0, len(r.Networks))
	for _, m := range domain.AllTravelModes {
		for key := range r.Networks {
			if parsed, err := domain.ParseTravelMode(key); err == nil && parsed == m {
				modes = append(modes, m)
				break
			}
		}
	}
	return modes
}

// NetworkPath - файл сети для режима или "" если его нет
func (r *RegionPlan) NetworkPath(mode domain.TravelMode) string {
	for key, path := range r.Networks {
		if parsed, err := domain.ParseTravelMode(key); err == nil && parsed == mode {
			return path
		}
	}
	return ""
}

// Budget - бюджет времени для режима в минутах
func (p *Plan) Budget(mode domain.TravelMode) float64 {
	for key, v := range p.TimeBudgets {
		if parsed, err := domain.ParseTravelMode(key); err == nil && parsed == mode {
			return v
		}
	}
	return 0
}
