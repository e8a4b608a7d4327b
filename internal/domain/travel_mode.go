package domain

import (
	"fmt"
	"strings"
)

// TravelMode - режим передвижения, для которого строится сеть
type TravelMode string

const (
	TravelModeWalk  TravelMode = "walk"
	TravelModeDrive TravelMode = "drive"
)

// AllTravelModes - режимы в порядке по умолчанию для сценариев
var AllTravelModes = []TravelMode{TravelModeWalk, TravelModeDrive}

// ParseTravelMode приводит строку к TravelMode
func ParseTravelMode(s string) (TravelMode, error) {
	switch TravelMode(strings.ToLower(strings.TrimSpace(s))) {
	case TravelModeWalk:
		return TravelModeWalk, nil
	case TravelModeDrive:
		return TravelModeDrive, nil
	default:
		return "", fmt.Errorf("unknown travel mode %q", s)
	}
}

// Скорости по типу дороги (км/ч), используются когда у ребра нет travel_time
var speedTables = map[TravelMode]map[string]float64{
	TravelModeWalk: {
		"default":     4.8, // 1.33 m/s
		"residential": 4.8,
		"footway":     4.8,
		"path":        4.0,
	},
	TravelModeDrive: {
		"default":     40,
		"residential": 25,
		"primary":     55,
		"secondary":   45,
		"tertiary":    35,
		"trunk":       65,
		"motorway":    80,
	},
}

// SpeedKmh возвращает скорость для типа дороги; неизвестный режим считается пешим
func (m TravelMode) SpeedKmh(highway string) float64 {
	table, ok := speedTables[m]
	if !ok {
		table = speedTables[TravelModeWalk]
	}
	if v, ok := table[highway]; ok {
		return v
	}
	return table["default"]
}

// TravelTimeSec - время прохождения ребра длиной lengthM метров
func (m TravelMode) TravelTimeSec(lengthM float64, highway string) float64 {
	return (lengthM / 1000) / m.SpeedKmh(highway) * 3600
}
