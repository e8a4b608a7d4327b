package domain

import "github.com/paulmach/orb"

// DemandPoint - взвешенная точка спроса (например, квартал переписи).
// Вес задаётся снаружи и никогда не вычисляется ядром.
type DemandPoint struct {
	ID       string       `json:"id"`
	Weight   float64      `json:"weight"`
	Risk     float64      `json:"risk"`
	Location orb.Geometry `json:"-"`
	Node     NodeID       `json:"node"`
}

// SupplyCandidate - кандидат на размещение объекта.
// Category, Name и FootprintAreaM2 нужны только для отчётов.
type SupplyCandidate struct {
	ID              string       `json:"id"`
	Category        string       `json:"category"`
	Name            string       `json:"name"`
	FootprintAreaM2 float64      `json:"footprint_area_m2"`
	Location        orb.Geometry `json:"-"`
	Node            NodeID       `json:"node"`
}
