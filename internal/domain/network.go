package domain

import "github.com/paulmach/orb"

// NodeID - внешний идентификатор узла сети (OSM node id)
type NodeID int64

// NodeIndex - плотный индекс узла, назначается при загрузке сети
type NodeIndex int32

// Node - узел транспортной сети
type Node struct {
	ID    NodeID    `json:"id"`
	Point orb.Point `json:"point"` // x = lon, y = lat для географических сетей
}

// Edge - направленное ребро со временем прохождения в секундах.
// Параллельные рёбра между одной парой узлов допустимы.
type Edge struct {
	From       NodeID  `json:"from"`
	To         NodeID  `json:"to"`
	TravelTime float64 `json:"travel_time"`
}

// Network - направленный мультиграф. После построения только читается.
type Network struct {
	Region     string     `json:"region"`
	Mode       TravelMode `json:"mode"`
	Geographic bool       `json:"geographic"` // координаты в градусах WGS84
	Nodes      []Node     `json:"nodes"`
	Edges      []Edge     `json:"edges"`
}

// NetworkSummary - сводка сети, сохраняемая вместе с отношением покрытия
type NetworkSummary struct {
	Nodes            int     `json:"nodes" db:"network_nodes"`
	Edges            int     `json:"edges" db:"network_edges"`
	MaxTravelTimeMin float64 `json:"max_travel_time_min" db:"time_budget_min"`
}

// Summary возвращает сводку сети для заданного бюджета времени
func (n *Network) Summary(budgetMin float64) NetworkSummary {
	return NetworkSummary{
		Nodes:            len(n.Nodes),
		Edges:            len(n.Edges),
		MaxTravelTimeMin: budgetMin,
	}
}
