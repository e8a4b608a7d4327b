package network

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
)

// Свойства GeoJSON для точек спроса и кандидатов
const (
	PropGEOID        = "GEOID"
	PropDemandWeight = "demand_weight"
	PropRisk         = "risk"

	PropSiteID    = "id"
	PropAmenity   = "amenity"
	PropName      = "name"
	PropFootprint = "footprint_area_m2"
)

// RegionFilter отбирает объекты региона по значению свойства.
// Пустой Property означает, что файл уже содержит только один регион.
type RegionFilter struct {
	Property string
	Value    string
}

func (f RegionFilter) match(props geojson.Properties) bool {
	if f.Property == "" {
		return true
	}
	return props.MustString(f.Property, "") == f.Value
}

// LoadDemandFile читает точки спроса из GeoJSON FeatureCollection
func LoadDemandFile(path string, filter RegionFilter) ([]domain.DemandPoint, error) {
	fc, err := readCollection(path)
	if err != nil {
		return nil, err
	}
	return DemandFromFeatures(fc, filter)
}

// DemandFromFeatures - вес обязателен и должен быть конечным неотрицательным числом
func DemandFromFeatures(fc *geojson.FeatureCollection, filter RegionFilter) ([]domain.DemandPoint, error) {
	out := make([]domain.DemandPoint, 0, len(fc.Features))
	for i, f := range fc.Features {
		if !filter.match(f.Properties) {
			continue
		}
		if f.Geometry == nil {
			return nil, errors.ErrMalformedInput.Withf("demand feature %d has no geometry", i)
		}

		id := propString(f.Properties, PropGEOID)
		if id == "" {
			id = featureID(f, i)
		}

		weight, ok := propFloat(f.Properties, PropDemandWeight)
		if !ok {
			return nil, errors.ErrMalformedInput.Withf("demand feature %s has no %s", id, PropDemandWeight)
		}
		if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return nil, errors.ErrNegativeWeight.Withf("demand %s weight %v", id, weight)
		}
		risk, _ := propFloat(f.Properties, PropRisk)

		out = append(out, domain.DemandPoint{
			ID:       id,
			Weight:   weight,
			Risk:     risk,
			Location: f.Geometry,
		})
	}
	return out, nil
}

// LoadSupplyFile читает кандидатов из GeoJSON FeatureCollection
func LoadSupplyFile(path string, filter RegionFilter) ([]domain.SupplyCandidate, error) {
	fc, err := readCollection(path)
	if err != nil {
		return nil, err
	}
	return SupplyFromFeatures(fc, filter)
}

// SupplyFromFeatures - метаданные кандидатов нужны только для отчётов
func SupplyFromFeatures(fc *geojson.FeatureCollection, filter RegionFilter) ([]domain.SupplyCandidate, error) {
	out := make([]domain.SupplyCandidate, 0, len(fc.Features))
	for i, f := range fc.Features {
		if !filter.match(f.Properties) {
			continue
		}
		if f.Geometry == nil {
			return nil, errors.ErrMalformedInput.Withf("supply feature %d has no geometry", i)
		}

		id := propString(f.Properties, PropSiteID)
		if id == "" {
			id = featureID(f, i)
		}
		area, _ := propFloat(f.Properties, PropFootprint)

		out = append(out, domain.SupplyCandidate{
			ID:              id,
			Category:        propString(f.Properties, PropAmenity),
			Name:            propString(f.Properties, PropName),
			FootprintAreaM2: area,
			Location:        f.Geometry,
		})
	}
	return out, nil
}

func readCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.ErrMalformedInput.Wrap(err).Withf("%s", path)
	}
	return fc, nil
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return strconv.Itoa(i)
}

// propString - строковое значение свойства; числа приводятся к строке
func propString(props geojson.Properties, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// propFloat - числовое значение свойства; числовые строки тоже принимаются
func propFloat(props geojson.Properties, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
