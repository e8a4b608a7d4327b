package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CoverageRelation - для каждой точки спроса список индексов кандидатов,
// достижимых в пределах бюджета времени. Списки отсортированы по возрастанию.
// Пустой список означает, что точка не покрывается никем.
type CoverageRelation struct {
	Covers [][]int32
}

// NewCoverageRelation создаёт отношение для numDemand точек без покрытия
func NewCoverageRelation(numDemand int) *CoverageRelation {
	return &CoverageRelation{Covers: make([][]int32, numDemand)}
}

// NumDemand возвращает количество точек спроса
func (r *CoverageRelation) NumDemand() int {
	return len(r.Covers)
}

// CoveringSites возвращает кандидатов, покрывающих точку спроса i
func (r *CoverageRelation) CoveringSites(i int) []int32 {
	return r.Covers[i]
}

// Links - общее количество пар (спрос, кандидат)
func (r *CoverageRelation) Links() int {
	total := 0
	for _, c := range r.Covers {
		total += len(c)
	}
	return total
}

// SiteCoverage строит обратное отображение: кандидат -> покрываемые точки спроса
func (r *CoverageRelation) SiteCoverage(numSupply int) [][]int32 {
	sites := make([][]int32, numSupply)
	for i, covers := range r.Covers {
		for _, j := range covers {
			sites[j] = append(sites[j], int32(i))
		}
	}
	return sites
}

// Validate проверяет, что все индексы кандидатов лежат в [0, numSupply),
// каждый список строго возрастает (без повторов)
// и что количество точек спроса совпадает с numDemand
func (r *CoverageRelation) Validate(numDemand, numSupply int) error {
	if len(r.Covers) != numDemand {
		return fmt.Errorf("relation has %d demand entries, expected %d", len(r.Covers), numDemand)
	}
	for i, covers := range r.Covers {
		for n, j := range covers {
			if j < 0 || int(j) >= numSupply {
				return fmt.Errorf("demand %d references supply index %d outside [0, %d)", i, j, numSupply)
			}
			if n > 0 && j <= covers[n-1] {
				if j == covers[n-1] {
					return fmt.Errorf("demand %d lists supply index %d twice", i, j)
				}
				return fmt.Errorf("demand %d supply indices are not sorted", i)
			}
		}
	}
	return nil
}

// Contains - покрывает ли кандидат j точку спроса i
func (r *CoverageRelation) Contains(i int, j int32) bool {
	covers := r.Covers[i]
	k := sort.Search(len(covers), func(n int) bool { return covers[n] >= j })
	return k < len(covers) && covers[k] == j
}

// MarshalJSON пишет {"0":[...],"1":[...]} в порядке индексов спроса,
// включая пустые списки, чтобы повторная сериализация была побайтово одинаковой
func (r CoverageRelation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, covers := range r.Covers {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`":[`)
		for n, j := range covers {
			if n > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(int(j)))
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON принимает ключи-строки с индексами спроса
func (r *CoverageRelation) UnmarshalJSON(data []byte) error {
	var raw map[string][]int32
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	maxIdx := -1
	parsed := make(map[int][]int32, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid demand index %q", k)
		}
		parsed[idx] = v
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	r.Covers = make([][]int32, maxIdx+1)
	for idx, v := range parsed {
		sort.Slice(v, func(a, b int) bool { return v[a] < v[b] })
		r.Covers[idx] = v
	}
	return nil
}

// CoverageKey - ключ кэширования отношения покрытия
type CoverageKey struct {
	Region        string     `json:"region"`
	Mode          TravelMode `json:"mode"`
	TimeBudgetMin float64    `json:"time_budget_min"`
}

func (k CoverageKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Region, k.Mode, strconv.FormatFloat(k.TimeBudgetMin, 'f', -1, 64))
}

// DemandMetadata - метаданные точек спроса, параллельные массивы по индексу
type DemandMetadata struct {
	IDs          []string  `json:"geoids"`
	Weights      []float64 `json:"demand_weights"`
	RiskScores   []float64 `json:"risk_scores"`
	NetworkNodes []NodeID  `json:"network_nodes"`
}

// SupplyMetadata - метаданные кандидатов, параллельные массивы по индексу
type SupplyMetadata struct {
	IDs            []string  `json:"site_ids"`
	Categories     []string  `json:"amenity_types"`
	Names          []string  `json:"site_names"`
	FootprintAreas []float64 `json:"footprint_areas"`
	NetworkNodes   []NodeID  `json:"network_nodes"`
}

// WarningKind - тип некритичного замечания при построении покрытия
type WarningKind string

const (
	WarningUnresolvedNode WarningKind = "unresolved_node"
	WarningFarSnap        WarningKind = "far_snap"
)

// Warning - некритичное замечание, сохраняется вместе с артефактом
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Entity  string      `json:"entity"` // demand | supply
	Index   int         `json:"index"`
	ID      string      `json:"id"`
	Message string      `json:"message"`
}

// CoverageArtifact - результат Coverage Builder. Достаточен для повторного
// решения без живой сети.
type CoverageArtifact struct {
	ID        uuid.UUID         `json:"id"`
	Key       CoverageKey       `json:"key"`
	Relation  *CoverageRelation `json:"coverage_matrix"`
	Demand    DemandMetadata    `json:"demand_metadata"`
	Supply    SupplyMetadata    `json:"supply_metadata"`
	Network   NetworkSummary    `json:"network_stats"`
	Warnings  []Warning         `json:"warnings"`
	CreatedAt time.Time         `json:"created_at"`
}

// NumDemand возвращает количество точек спроса
func (a *CoverageArtifact) NumDemand() int {
	return len(a.Demand.IDs)
}

// NumSupply возвращает количество кандидатов
func (a *CoverageArtifact) NumSupply() int {
	return len(a.Supply.IDs)
}

// Validate проверяет согласованность метаданных и отношения
func (a *CoverageArtifact) Validate() error {
	nd, ns := a.NumDemand(), a.NumSupply()
	if len(a.Demand.Weights) != nd || len(a.Demand.NetworkNodes) != nd {
		return fmt.Errorf("demand metadata arrays have inconsistent lengths")
	}
	if len(a.Supply.NetworkNodes) != ns {
		return fmt.Errorf("supply metadata arrays have inconsistent lengths")
	}
	if a.Relation == nil {
		return fmt.Errorf("coverage relation is missing")
	}
	return a.Relation.Validate(nd, ns)
}

// Normalize дополняет отношение пустыми списками до числа точек спроса.
// Нужен для артефактов, где непокрытые точки не записаны.
func (a *CoverageArtifact) Normalize() {
	if a.Relation == nil {
		a.Relation = NewCoverageRelation(0)
	}
	for len(a.Relation.Covers) < a.NumDemand() {
		a.Relation.Covers = append(a.Relation.Covers, nil)
	}
	if len(a.Demand.RiskScores) < a.NumDemand() {
		risk := make([]float64, a.NumDemand())
		copy(risk, a.Demand.RiskScores)
		a.Demand.RiskScores = risk
	}
}
