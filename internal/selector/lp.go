package selector

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// model - задача, приведённая к переменным, которые могут влиять на целевую функцию.
// Площадки без покрытия положительного веса и точки спроса с нулевым весом
// или без покрывающих площадок исключены. Точки с одинаковым набором
// покрывающих площадок (и одинаковой принадлежностью к группе риска)
// объединены в одну переменную с суммарным весом.
type model struct {
	sites    []int32   // локальный индекс площадки -> индекс кандидата
	weights  []float64 // вес группы точек
	coverers [][]int   // группа -> локальные площадки
	highRisk []bool    // группа входит в группу высокого риска

	inH []bool // индекс спроса -> группа высокого риска

	k         int
	equity    bool
	equityRHS float64 // theta * суммарный вес группы высокого риска
}

// numVariables - количество бинарных переменных целочисленной задачи
func (m *model) numVariables() int {
	return len(m.sites) + len(m.weights)
}

func newModel(p *Problem) *model {
	m := &model{k: p.K, equity: p.Equity, inH: make([]bool, len(p.Weights))}

	if p.Equity {
		h, total := p.HighRiskSet()
		for _, i := range h {
			m.inH[i] = true
		}
		m.equityRHS = p.Theta * total
	}

	localSite := make(map[int32]int)
	groupOf := make(map[string]int)
	var key strings.Builder
	for i, covers := range p.Relation.Covers {
		if p.Weights[i] <= 0 || len(covers) == 0 {
			continue
		}

		key.Reset()
		key.WriteString(strconv.FormatBool(m.inH[i]))
		for _, j := range covers {
			key.WriteByte(',')
			key.WriteString(strconv.FormatInt(int64(j), 10))
		}
		if g, ok := groupOf[key.String()]; ok {
			m.weights[g] += p.Weights[i]
			continue
		}

		local := make([]int, 0, len(covers))
		for _, j := range covers {
			s, ok := localSite[j]
			if !ok {
				s = len(m.sites)
				localSite[j] = s
				m.sites = append(m.sites, j)
			}
			local = append(local, s)
		}
		groupOf[key.String()] = len(m.weights)
		m.weights = append(m.weights, p.Weights[i])
		m.coverers = append(m.coverers, local)
		m.highRisk = append(m.highRisk, m.inH[i])
	}
	return m
}

// coverableHighRisk - максимальный вес группы высокого риска, достижимый
// при выборе всех площадок
func (m *model) coverableHighRisk() float64 {
	total := 0.0
	for d, w := range m.weights {
		if m.highRisk[d] {
			total += w
		}
	}
	return total
}

// fixing: -1 свободна, 0 запрещена, 1 выбрана
type fixing []int8

const (
	free int8 = -1
)

// relaxation - результат LP-релаксации узла ветвления
type relaxation struct {
	infeasible bool
	bound      float64   // верхняя оценка целевой функции
	y          []float64 // значения всех площадок модели (фиксированные тоже)
}

type relaxResult struct {
	rel *relaxation
	err error
}

// relaxCtx - relax с учётом контекста. lp.Simplex не прерывается,
// поэтому при отмене вызов возвращается сразу, а брошенный расчёт
// дорабатывает в своей горутине и его результат отбрасывается.
func (m *model) relaxCtx(ctx context.Context, fix fixing, tol float64) (*relaxation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan relaxResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- relaxResult{err: fmt.Errorf("lp relaxation panic: %v", r)}
			}
		}()
		rel, err := m.relax(fix, tol)
		done <- relaxResult{rel: rel, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.rel, res.err
	}
}

// relax решает LP-релаксацию с учётом фиксаций.
// Стандартная форма для lp.Simplex: min c'x, Ax = b, x >= 0.
// Выбранные площадки подставляются константами, запрещённые удаляются.
// У каждой строки свой slack (или surplus для ограничения справедливости),
// поэтому A имеет полный строковый ранг.
//
// Ограничения y <= 1 не нужны: z <= 1, и любое решение с y > 1 можно
// опустить до 1 без потери целевой функции. Значения y > 1 обрезаются.
func (m *model) relax(fix fixing, tol float64) (*relaxation, error) {
	y := make([]float64, len(m.sites))
	var freeSites []int
	fixedOnes := 0
	for s, f := range fix {
		switch f {
		case 1:
			y[s] = 1
			fixedOnes++
		case free:
			freeSites = append(freeSites, s)
		}
	}

	budget := m.k - fixedOnes
	if budget < 0 {
		return &relaxation{infeasible: true}, nil
	}

	colOf := make(map[int]int, len(freeSites))
	for c, s := range freeSites {
		colOf[s] = c
	}

	var (
		constW, constH float64
		active         []int // группы с переменной z
	)
	for d, covers := range m.coverers {
		fixedCovered := false
		anyFree := false
		for _, s := range covers {
			if fix[s] == 1 {
				fixedCovered = true
				break
			}
			if fix[s] == free {
				anyFree = true
			}
		}
		switch {
		case fixedCovered:
			constW += m.weights[d]
			if m.highRisk[d] {
				constH += m.weights[d]
			}
		case anyFree:
			active = append(active, d)
		}
	}

	equityRHS := 0.0
	withEquity := false
	if m.equity {
		equityRHS = m.equityRHS - constH
		withEquity = equityRHS > tol
	}

	if len(freeSites) == 0 || len(active) == 0 {
		if withEquity {
			return &relaxation{infeasible: true}, nil
		}
		return &relaxation{bound: constW, y: y}, nil
	}

	if withEquity {
		reachable := 0.0
		for _, d := range active {
			if m.highRisk[d] {
				reachable += m.weights[d]
			}
		}
		if reachable+tol < equityRHS {
			return &relaxation{infeasible: true}, nil
		}
	}

	nY, nZ := len(freeSites), len(active)
	rows := 1 + 2*nZ
	if withEquity {
		rows++
	}
	cols := nY + nZ + rows
	zCol := func(a int) int { return nY + a }
	slackCol := func(r int) int { return nY + nZ + r }

	A := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)

	r := 0
	// sum y <= budget
	for col := 0; col < nY; col++ {
		A.Set(r, col, 1)
	}
	A.Set(r, slackCol(r), 1)
	b[r] = float64(budget)
	r++

	for a, d := range active {
		// z <= 1
		A.Set(r, zCol(a), 1)
		A.Set(r, slackCol(r), 1)
		b[r] = 1
		r++

		// z - sum y(covers) <= 0
		A.Set(r, zCol(a), 1)
		for _, s := range m.coverers[d] {
			if col, ok := colOf[s]; ok {
				A.Set(r, col, -1)
			}
		}
		A.Set(r, slackCol(r), 1)
		r++

		c[zCol(a)] = -m.weights[d]
	}

	if withEquity {
		// sum (w/rhs) z (H) - surplus = 1
		for a, d := range active {
			if m.highRisk[d] {
				A.Set(r, zCol(a), m.weights[d]/equityRHS)
			}
		}
		A.Set(r, slackCol(r), -1)
		b[r] = 1
		r++
	}

	// без ограничения справедливости базис из slack-переменных допустим
	// (b >= 0), и первая фаза симплекс-метода не нужна
	var basic []int
	if !withEquity {
		basic = make([]int, rows)
		for i := range basic {
			basic[i] = slackCol(i)
		}
	}

	optF, x, err := lp.Simplex(c, A, b, 0, basic)
	if err != nil {
		// недопустимой может быть только строка справедливости
		if withEquity && stderrors.Is(err, lp.ErrInfeasible) {
			return &relaxation{infeasible: true}, nil
		}
		return nil, err
	}

	for col, s := range freeSites {
		y[s] = clamp01(x[col])
	}
	return &relaxation{bound: constW - optF, y: y}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
