package network

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/pkg/utils"
)

// nodeLinkDocument - граф OSMnx в формате networkx node-link
type nodeLinkDocument struct {
	Directed bool           `json:"directed"`
	Graph    nodeLinkGraph  `json:"graph"`
	Nodes    []nodeLinkNode `json:"nodes"`
	Links    []nodeLinkEdge `json:"links"`
	Edges    []nodeLinkEdge `json:"edges"` // networkx >= 3.4
}

type nodeLinkGraph struct {
	CRS string `json:"crs"`
}

type nodeLinkNode struct {
	ID json.RawMessage `json:"id"`
	X  float64         `json:"x"`
	Y  float64         `json:"y"`
}

type nodeLinkEdge struct {
	Source     json.RawMessage `json:"source"`
	Target     json.RawMessage `json:"target"`
	TravelTime *float64        `json:"travel_time"`
	Length     *float64        `json:"length"`
	Highway    json.RawMessage `json:"highway"`
	Oneway     *bool           `json:"oneway"`
}

// LoadNetworkFile читает граф из файла
func LoadNetworkFile(path, region string, mode domain.TravelMode) (*domain.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadNetwork(f, region, mode)
}

// LoadNetwork читает граф OSMnx. Если у ребра нет travel_time, оно
// вычисляется из length и таблицы скоростей режима. Для неориентированных
// графов каждое ребро добавляется в обе стороны.
func LoadNetwork(r io.Reader, region string, mode domain.TravelMode) (*domain.Network, error) {
	var doc nodeLinkDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.ErrMalformedInput.Wrap(err).Withf("network document")
	}
	if len(doc.Nodes) == 0 {
		return nil, errors.ErrEmptyNetwork
	}

	links := doc.Links
	if len(links) == 0 {
		links = doc.Edges
	}

	ids := newIDMapper()
	for _, n := range doc.Nodes {
		ids.observe(n.ID)
	}
	for _, e := range links {
		ids.observe(e.Source)
		ids.observe(e.Target)
	}
	ids.seal()

	net := &domain.Network{
		Region: region,
		Mode:   mode,
		Nodes:  make([]domain.Node, 0, len(doc.Nodes)),
		Edges:  make([]domain.Edge, 0, len(links)),
	}

	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, n := range doc.Nodes {
		id, ok := ids.lookup(n.ID)
		if !ok {
			return nil, errors.ErrMalformedInput.Withf("node id %s", string(n.ID))
		}
		p := orb.Point{n.X, n.Y}
		net.Nodes = append(net.Nodes, domain.Node{ID: id, Point: p})
		bound = bound.Extend(p)
	}
	net.Geographic = isGeographic(doc.Graph.CRS, bound)

	for _, e := range links {
		from, ok := ids.lookup(e.Source)
		if !ok {
			return nil, errors.ErrInvalidEdge.Withf("edge source %s", string(e.Source))
		}
		to, ok := ids.lookup(e.Target)
		if !ok {
			return nil, errors.ErrInvalidEdge.Withf("edge target %s", string(e.Target))
		}

		var cost float64
		switch {
		case e.TravelTime != nil:
			cost = *e.TravelTime
		case e.Length != nil:
			cost = mode.TravelTimeSec(*e.Length, highwayTag(e.Highway))
		default:
			return nil, errors.ErrInvalidEdge.Withf("edge %d->%d has neither travel_time nor length", from, to)
		}

		net.Edges = append(net.Edges, domain.Edge{From: from, To: to, TravelTime: cost})
		if !doc.Directed {
			net.Edges = append(net.Edges, domain.Edge{From: to, To: from, TravelTime: cost})
		}
	}

	return net, nil
}

// isGeographic - координаты в градусах: по CRS графа, а без CRS по охвату
func isGeographic(crs string, b orb.Bound) bool {
	crs = strings.ToLower(strings.TrimSpace(crs))
	if crs != "" {
		return strings.HasSuffix(crs, ":4326") || crs == "wgs84"
	}
	return utils.ValidateCoordinates(b.Min[1], b.Min[0]) && utils.ValidateCoordinates(b.Max[1], b.Max[0])
}

// highwayTag - OSMnx хранит highway строкой или списком строк
func highwayTag(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// idMapper приводит идентификаторы узлов к int64. Числа и числовые строки
// берутся как есть; прочие строки сортируются и получают номера после
// максимального числового id.
type idMapper struct {
	numeric  map[string]domain.NodeID
	symbolic map[string]domain.NodeID
	pending  []string
	maxID    domain.NodeID
	sealed   bool
}

func newIDMapper() *idMapper {
	return &idMapper{
		numeric:  make(map[string]domain.NodeID),
		symbolic: make(map[string]domain.NodeID),
	}
}

func (m *idMapper) observe(raw json.RawMessage) {
	key, id, numeric := parseID(raw)
	if key == "" {
		return
	}
	if numeric {
		m.numeric[key] = id
		if id > m.maxID {
			m.maxID = id
		}
		return
	}
	if _, seen := m.symbolic[key]; !seen {
		m.symbolic[key] = 0
		m.pending = append(m.pending, key)
	}
}

func (m *idMapper) seal() {
	sort.Strings(m.pending)
	for i, key := range m.pending {
		m.symbolic[key] = m.maxID + 1 + domain.NodeID(i)
	}
	m.sealed = true
}

func (m *idMapper) lookup(raw json.RawMessage) (domain.NodeID, bool) {
	key, _, numeric := parseID(raw)
	if key == "" {
		return 0, false
	}
	if numeric {
		id, ok := m.numeric[key]
		return id, ok
	}
	id, ok := m.symbolic[key]
	return id, ok && m.sealed
}

func parseID(raw json.RawMessage) (key string, id domain.NodeID, numeric bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// число
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(v, 10), domain.NodeID(v), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), domain.NodeID(f), true
	}
	return s, 0, false
}
