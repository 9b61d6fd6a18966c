package solver

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"energia/pkg/problem"
)

// colMap expresses an original column through standard-form columns:
// x = offset + x'[pos] - x'[neg]. A negative index means the part is absent.
type colMap struct {
	offset float64
	pos    int
	neg    int
}

// stdRow is one equality row a'x' + slack*s = rhs before densification.
type stdRow struct {
	cols  []int
	vals  []float64
	rhs   float64
	slack float64
}

// standardForm is min c'x' s.t. A x' = b, x' >= 0 with an identity basis
// made of slack and artificial columns. Artificial columns are the last
// ones, starting at width.
type standardForm struct {
	maps  []colMap
	keep  []int // structural std column -> dense column, -1 when dropped
	a     *mat.Dense
	b     []float64
	cost  []float64
	art   []int
	basis []int
	rows  int
	width int
}

type buildStatus int

const (
	buildOK buildStatus = iota
	buildInfeasible
	buildUnbounded
)

// presolve moves singleton rows into column bounds and checks empty rows.
// Integral columns get their bounds rounded inward. The returned mask
// marks consumed rows.
func presolve(m *problem.Matrix, byRow [][]problem.Nonzero, lo, hi []float64, tol float64) (l, u []float64, consumed []bool, ok bool) {
	l, u = slices.Clone(lo), slices.Clone(hi)
	consumed = make([]bool, m.NumRows())

	for i, nzs := range byRow {
		var single problem.Nonzero
		active := 0
		for _, nz := range nzs {
			if nz.Val != 0 {
				single = nz
				active++
			}
		}
		rl, ru := m.RowLower[i], m.RowUpper[i]
		switch active {
		case 0:
			if rl > tol*math.Max(1, math.Abs(rl)) || ru < -tol*math.Max(1, math.Abs(ru)) {
				return nil, nil, nil, false
			}
			consumed[i] = true
		case 1:
			bl, bu := rl/single.Val, ru/single.Val
			if single.Val < 0 {
				bl, bu = bu, bl
			}
			j := single.Col
			l[j] = math.Max(l[j], bl)
			u[j] = math.Min(u[j], bu)
			consumed[i] = true
		}
	}

	for j := range l {
		if m.Integer[j] {
			if !math.IsInf(l[j], 0) {
				l[j] = math.Ceil(l[j] - tol)
			}
			if !math.IsInf(u[j], 0) {
				u[j] = math.Floor(u[j] + tol)
			}
		}
		if l[j] > u[j] {
			if l[j] > u[j]+tol*math.Max(1, math.Abs(u[j])) {
				return nil, nil, nil, false
			}
			l[j] = u[j]
		}
	}
	return l, u, consumed, true
}

// buildStandard converts the matrix under node bounds lo/hi into standard
// form. costs are already in minimization sense. Every row is scaled so
// that its largest structural coefficient is 1.
func buildStandard(m *problem.Matrix, costs, lo, hi []float64, tol float64) (*standardForm, buildStatus) {
	n := m.NumCols()
	sf := &standardForm{maps: make([]colMap, n)}

	// группируем ненулевые элементы по строкам
	byRow := make([][]problem.Nonzero, m.NumRows())
	for _, nz := range m.Nonzeros {
		byRow[nz.Row] = append(byRow[nz.Row], nz)
	}

	l, u, consumed, ok := presolve(m, byRow, lo, hi, tol)
	if !ok {
		return nil, buildInfeasible
	}

	var rows []stdRow
	nStd := 0
	var stdCost []float64

	for j := 0; j < n; j++ {
		lj, uj := l[j], u[j]
		if math.IsInf(lj, 1) || math.IsInf(uj, -1) {
			return nil, buildInfeasible
		}
		cm := colMap{pos: -1, neg: -1}
		switch {
		case !math.IsInf(lj, -1) && !math.IsInf(uj, 1) && uj-lj <= tol:
			cm.offset = lj
		case !math.IsInf(lj, -1):
			cm.offset = lj
			cm.pos = nStd
			stdCost = append(stdCost, costs[j])
			nStd++
			if !math.IsInf(uj, 1) {
				rows = append(rows, stdRow{cols: []int{cm.pos}, vals: []float64{1}, rhs: uj - lj, slack: 1})
			}
		case !math.IsInf(uj, 1):
			cm.offset = uj
			cm.neg = nStd
			stdCost = append(stdCost, -costs[j])
			nStd++
		default:
			cm.pos, cm.neg = nStd, nStd+1
			stdCost = append(stdCost, costs[j], -costs[j])
			nStd += 2
		}
		sf.maps[j] = cm
	}

	for i := 0; i < m.NumRows(); i++ {
		if consumed[i] {
			continue
		}
		var r stdRow
		base := 0.0
		for _, nz := range byRow[i] {
			cm := sf.maps[nz.Col]
			base += nz.Val * cm.offset
			if nz.Val == 0 {
				continue
			}
			if cm.pos >= 0 {
				r.cols = append(r.cols, cm.pos)
				r.vals = append(r.vals, nz.Val)
			}
			if cm.neg >= 0 {
				r.cols = append(r.cols, cm.neg)
				r.vals = append(r.vals, -nz.Val)
			}
		}
		rl, ru := m.RowLower[i]-base, m.RowUpper[i]-base

		// все столбцы строки зафиксированы
		if len(r.cols) == 0 {
			if rl > tol*math.Max(1, math.Abs(rl)) || ru < -tol*math.Max(1, math.Abs(ru)) {
				return nil, buildInfeasible
			}
			continue
		}

		s := 1 / maxAbs(r.vals)
		floats.Scale(s, r.vals)
		rl, ru = rl*s, ru*s

		switch {
		case !math.IsInf(rl, -1) && !math.IsInf(ru, 1) && ru-rl <= tol:
			r.rhs = rl
			rows = append(rows, r)
		default:
			if !math.IsInf(rl, -1) {
				lower := r
				lower.rhs = rl
				lower.slack = -1
				rows = append(rows, lower)
			}
			if !math.IsInf(ru, 1) {
				upper := stdRow{cols: r.cols, vals: slices.Clone(r.vals), rhs: ru, slack: 1}
				rows = append(rows, upper)
			}
		}
	}

	used := make([]bool, nStd)
	for _, r := range rows {
		for _, c := range r.cols {
			used[c] = true
		}
	}

	sf.keep = make([]int, nStd)
	dense := 0
	for k := 0; k < nStd; k++ {
		if !used[k] {
			// столбец без ограничений: выгоден рост - задача неограничена
			if stdCost[k] < 0 {
				return nil, buildUnbounded
			}
			sf.keep[k] = -1
			continue
		}
		sf.keep[k] = dense
		sf.cost = append(sf.cost, stdCost[k])
		dense++
	}

	sf.rows = len(rows)
	if sf.rows == 0 {
		sf.width = dense
		return sf, buildOK
	}

	nSlack := 0
	nArt := 0
	for i := range rows {
		if rows[i].rhs < 0 || (rows[i].rhs == 0 && rows[i].slack == -1) {
			rows[i].rhs = -rows[i].rhs
			rows[i].slack = -rows[i].slack
			rows[i].vals = slices.Clone(rows[i].vals)
			floats.Scale(-1, rows[i].vals)
		}
		if rows[i].slack != 0 {
			nSlack++
		}
		if rows[i].slack != 1 {
			nArt++
		}
	}

	sf.width = dense + nSlack
	total := sf.width + nArt
	sf.a = mat.NewDense(sf.rows, total, nil)
	sf.b = make([]float64, sf.rows)
	sf.basis = make([]int, sf.rows)
	sf.cost = append(sf.cost, make([]float64, nSlack+nArt)...)

	slackCol := dense
	artCol := sf.width
	for i, r := range rows {
		for k, c := range r.cols {
			if d := sf.keep[c]; d >= 0 {
				sf.a.Set(i, d, sf.a.At(i, d)+r.vals[k])
			}
		}
		sf.b[i] = r.rhs
		if r.slack != 0 {
			sf.a.Set(i, slackCol, r.slack)
			if r.slack == 1 {
				sf.basis[i] = slackCol
			}
			slackCol++
		}
		if r.slack != 1 {
			sf.a.Set(i, artCol, 1)
			sf.basis[i] = artCol
			sf.art = append(sf.art, artCol)
			artCol++
		}
	}
	return sf, buildOK
}

// original maps a dense standard-form point back to original columns.
func (sf *standardForm) original(xs []float64) []float64 {
	x := make([]float64, len(sf.maps))
	val := func(k int) float64 {
		if k < 0 {
			return 0
		}
		d := sf.keep[k]
		if d < 0 || d >= len(xs) {
			return 0
		}
		return xs[d]
	}
	for j, cm := range sf.maps {
		x[j] = cm.offset + val(cm.pos) - val(cm.neg)
	}
	return x
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
