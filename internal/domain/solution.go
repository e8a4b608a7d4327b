package domain

import "time"

// SolveStatus - итоговое состояние решателя.
// Переходы: UNSOLVED -> SOLVING -> {OPTIMAL | INFEASIBLE | HEURISTIC_SOLVED}
type SolveStatus string

const (
	StatusUnsolved        SolveStatus = "unsolved"
	StatusSolving         SolveStatus = "solving"
	StatusOptimal         SolveStatus = "optimal"
	StatusInfeasible      SolveStatus = "infeasible"
	StatusHeuristicSolved SolveStatus = "heuristic_solved"
)

// Terminal - является ли статус конечным
func (s SolveStatus) Terminal() bool {
	return s == StatusOptimal || s == StatusInfeasible || s == StatusHeuristicSolved
}

// HasSolution - содержит ли результат допустимый выбор площадок
func (s SolveStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusHeuristicSolved
}

// Algorithm - алгоритм, который дал решение
type Algorithm string

const (
	AlgorithmExact  Algorithm = "exact"
	AlgorithmGreedy Algorithm = "greedy"
)

// Provenance - происхождение решения
type Provenance struct {
	Algorithm      Algorithm     `json:"algorithm"`
	Status         SolveStatus   `json:"status"`
	SolveTime      time.Duration `json:"solve_time_ns"`
	Fallback       bool          `json:"fallback"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	Timeout        bool          `json:"timeout,omitempty"`
	NodesExplored  int           `json:"nodes_explored,omitempty"`
}

// Solution - выбранные кандидаты и статистика покрытия
type Solution struct {
	Selected      []int32    `json:"selected_sites"`
	Covered       []int32    `json:"covered_demand"`
	CoveredWeight float64    `json:"total_covered_weight"`
	Objective     float64    `json:"objective_value"`
	CoverageRate  float64    `json:"coverage_rate"`
	Provenance    Provenance `json:"provenance"`
}

// Status - сокращение для Provenance.Status
func (s *Solution) Status() SolveStatus {
	return s.Provenance.Status
}

// NumSelected - количество выбранных площадок
func (s *Solution) NumSelected() int {
	return len(s.Selected)
}

// NumCovered - количество покрытых точек спроса
func (s *Solution) NumCovered() int {
	return len(s.Covered)
}

// SolveTimeSec - время решения в секундах
func (s *Solution) SolveTimeSec() float64 {
	return s.Provenance.SolveTime.Seconds()
}
