package solver

import (
	"context"
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	errInfeasible = errors.New("linear relaxation is infeasible")
	errUnbounded  = errors.New("linear relaxation is unbounded")
	errIterations = errors.New("simplex iteration limit reached")
	errUnstable   = errors.New("simplex lost numerical stability")
)

// после стольких вырожденных шагов подряд выбор столбца переходит на правило Бланда
const blandAfter = 50

// tableau плотная симплекс-таблица стандартной формы. Строки 0..m-1 хранят
// B⁻¹A, строка m - приведённые стоимости, rhs[m] равен -z.
type tableau struct {
	t     *mat.Dense
	rhs   []float64
	basis []int
	m     int
	width int // столбцы правее width (искусственные) больше не участвуют
	tol   float64
	pivot float64
}

func newTableau(sf *standardForm, tol, pivotTol float64) *tableau {
	m, n := sf.a.Dims()
	t := mat.NewDense(m+1, n, nil)
	t.Slice(0, m, 0, n).(*mat.Dense).Copy(sf.a)
	return &tableau{
		t:     t,
		rhs:   append(slices.Clone(sf.b), 0),
		basis: slices.Clone(sf.basis),
		m:     m,
		width: n,
		tol:   tol,
		pivot: pivotTol,
	}
}

func (tb *tableau) row(i int) []float64 {
	return tb.t.RawRowView(i)[:tb.width]
}

// solveStandard решает стандартную форму двухфазным методом. Вторая фаза
// продолжает с базиса первой, искусственные столбцы из неё исключены.
func solveStandard(ctx context.Context, sf *standardForm, tol, pivotTol float64) ([]float64, error) {
	tb := newTableau(sf, tol, pivotTol)

	if len(sf.art) > 0 {
		phase1 := make([]float64, len(sf.cost))
		for _, k := range sf.art {
			phase1[k] = 1
		}
		tb.setCosts(phase1)
		err := tb.optimize(ctx, tol)
		if errors.Is(err, errUnbounded) {
			// сумма искусственных ограничена снизу нулём
			return nil, errUnstable
		}
		if err != nil {
			return nil, err
		}
		if -tb.rhs[tb.m] > tol*math.Max(1, maxAbs(sf.b)) {
			return nil, errInfeasible
		}
		tb.dropArtificials(sf.width)
	}

	tb.setCosts(sf.cost)
	if err := tb.optimize(ctx, tol*math.Max(1, maxAbs(sf.cost))); err != nil {
		return nil, err
	}

	xs := make([]float64, sf.width)
	for i, k := range tb.basis {
		if k < tb.width {
			xs[k] = tb.rhs[i]
		}
	}
	return xs, nil
}

// setCosts записывает приведённые стоимости c для текущего базиса.
func (tb *tableau) setCosts(c []float64) {
	obj := tb.row(tb.m)
	copy(obj, c[:tb.width])
	tb.rhs[tb.m] = 0
	for i, k := range tb.basis {
		if k >= tb.width || c[k] == 0 {
			continue
		}
		floats.AddScaled(obj, -c[k], tb.row(i))
		tb.rhs[tb.m] -= c[k] * tb.rhs[i]
	}
}

func (tb *tableau) optimize(ctx context.Context, costTol float64) error {
	limit := 20*(tb.m+tb.width) + 1000
	degenerate := 0
	for it := 0; it < limit; it++ {
		if it&63 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		bland := degenerate >= blandAfter
		e := tb.entering(costTol, bland)
		if e < 0 {
			return nil
		}
		r := tb.leaving(e, bland)
		if r < 0 {
			return errUnbounded
		}
		if tb.rhs[r] <= tb.tol {
			degenerate++
		} else {
			degenerate = 0
		}
		tb.exchange(r, e)
	}
	return errIterations
}

// entering выбирает столбец с наименьшей приведённой стоимостью, а в режиме
// Бланда - первый с отрицательной.
func (tb *tableau) entering(costTol float64, bland bool) int {
	best, e := -costTol, -1
	for j, d := range tb.row(tb.m) {
		if d < best {
			e, best = j, d
			if bland {
				break
			}
		}
	}
	return e
}

// leaving - тест отношений Харриса: среди строк, чьё отношение не превышает
// ослабленного на tol минимума, берётся строка с наибольшим ведущим элементом.
func (tb *tableau) leaving(e int, bland bool) int {
	bound := math.Inf(1)
	for i := 0; i < tb.m; i++ {
		if a := tb.t.At(i, e); a > tb.pivot {
			bound = math.Min(bound, (tb.rhs[i]+tb.tol)/a)
		}
	}
	if math.IsInf(bound, 1) {
		return -1
	}

	r := -1
	for i := 0; i < tb.m; i++ {
		a := tb.t.At(i, e)
		if a <= tb.pivot || tb.rhs[i]/a > bound {
			continue
		}
		switch {
		case r < 0:
		case bland && tb.basis[i] < tb.basis[r]:
		case !bland && a > tb.t.At(r, e):
		default:
			continue
		}
		r = i
	}
	return r
}

// exchange вводит столбец e в базис вместо базисной переменной строки r.
func (tb *tableau) exchange(r, e int) {
	prow := tb.row(r)
	p := prow[e]
	floats.Scale(1/p, prow)
	prow[e] = 1
	tb.rhs[r] /= p

	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.row(i)
		f := row[e]
		if f == 0 {
			continue
		}
		floats.AddScaled(row, -f, prow)
		row[e] = 0
		tb.rhs[i] -= f * tb.rhs[r]
	}
	for i := 0; i < tb.m; i++ {
		if tb.rhs[i] < 0 {
			tb.rhs[i] = 0
		}
	}
	tb.basis[r] = e
}

// dropArtificials выводит оставшиеся в базисе искусственные переменные и
// сужает таблицу до width столбцов. Строка без ненулевых элементов среди
// остальных столбцов линейно зависима и обнуляется.
func (tb *tableau) dropArtificials(width int) {
	for i, k := range tb.basis {
		if k < width {
			continue
		}
		row := tb.t.RawRowView(i)[:width]
		e, best := -1, tb.pivot
		for j, a := range row {
			if math.Abs(a) > best {
				e, best = j, math.Abs(a)
			}
		}
		if e >= 0 {
			tb.exchange(i, e)
			continue
		}
		clear(row)
		tb.rhs[i] = 0
	}
	tb.width = width
}
