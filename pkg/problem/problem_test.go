package problem

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energia/pkg/apperror"
	"energia/pkg/scale"
)

var t0 = scale.NewIndex(0)

func TestKey_String(t *testing.T) {
	k := K("P", scale.NewIndex(0, 1), "site", "plant")
	assert.Equal(t, "P[site,plant](0,1)", k.String())
	assert.Equal(t, "Capex_network[]", K("Capex_network", scale.Index{}).String())
	assert.Equal(t, 2, k.Entities.Len())
	assert.Equal(t, []string{"site", "plant"}, k.Entities.Slice())

	// ключи сравнимы
	m := map[Key]int{k: 1}
	assert.Equal(t, 1, m[K("P", scale.NewIndex(0, 1), "site", "plant")])
}

func TestKey_Less(t *testing.T) {
	a := K("P", t0, "a")
	b := K("P", t0, "b")
	c := K("S", t0, "a")
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.True(t, K("P", scale.NewIndex(0, 0), "a").Less(K("P", scale.NewIndex(0, 1), "a")))
}

func TestE_TooMany(t *testing.T) {
	assert.Panics(t, func() { E("a", "b", "c", "d", "e") })
}

func TestAddVariable_Duplicate(t *testing.T) {
	p := New("test")
	_, err := p.AddVariable(K("x", t0), NonNegativeReal)
	require.NoError(t, err)

	_, err = p.AddVariable(K("x", t0), Binary)
	assert.True(t, apperror.Is(err, apperror.CodeDuplicateKey))
	assert.Equal(t, 1, p.NumVariables())
}

func TestAddConstraint_UndeclaredReference(t *testing.T) {
	p := New("test")
	_, err := p.AddVariable(K("x", t0), NonNegativeReal)
	require.NoError(t, err)

	expr := NewExpr().Add(K("x", t0), 1).Add(K("y", t0), 2)
	err = p.AddConstraint(K("cap", t0), expr, LE, 10)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeUndeclaredVariableReference))

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, K("y", t0).String(), appErr.Details["key"])
	assert.Equal(t, 0, p.NumConstraints())
}

func TestAddConstraint_MergesTerms(t *testing.T) {
	p := New("test")
	x, _ := p.AddVariable(K("x", t0), NonNegativeReal)
	y, _ := p.AddVariable(K("y", t0), NonNegativeReal)

	expr := NewExpr().
		Add(K("y", t0), 1).
		Add(K("x", t0), 2).
		Add(K("x", t0), 3).
		Add(K("y", t0), -1).
		AddConst(4)
	require.NoError(t, p.AddConstraint(K("row", t0), expr, GE, 10))

	c, ok := p.Constraint(K("row", t0))
	require.True(t, ok)
	assert.Equal(t, []Coef{{Col: x, Val: 5}}, c.Coefs)
	assert.Equal(t, 6.0, c.RHS)
	assert.Equal(t, GE, c.Sense)
	_ = y
}

func TestAddConstraint_Duplicate(t *testing.T) {
	p := New("test")
	_, _ = p.AddVariable(K("x", t0), NonNegativeReal)
	require.NoError(t, p.AddConstraint(K("row", t0), NewExpr().Add(K("x", t0), 1), LE, 1))
	err := p.AddConstraint(K("row", t0), NewExpr().Add(K("x", t0), 1), LE, 2)
	assert.True(t, apperror.Is(err, apperror.CodeDuplicateKey))
}

func TestSeal(t *testing.T) {
	p := New("test")
	p.Seal()
	_, err := p.AddVariable(K("x", t0), NonNegativeReal)
	assert.Error(t, err)
	assert.Error(t, p.SetObjective(NewExpr(), false))
}

func TestMatrix(t *testing.T) {
	p := New("test")
	_, _ = p.AddVariable(K("x", t0), NonNegativeReal)
	_, _ = p.AddVariable(K("b", t0), Binary)
	_, _ = p.AddVariable(K("f", t0), Real)

	require.NoError(t, p.AddConstraint(K("le", t0), NewExpr().Add(K("x", t0), 1).Add(K("b", t0), -5), LE, 0))
	require.NoError(t, p.AddConstraint(K("ge", t0), NewExpr().Add(K("x", t0), 1), GE, 2))
	require.NoError(t, p.AddConstraint(K("eq", t0), NewExpr().Add(K("f", t0), 1).Add(K("x", t0), -1), EQ, 0))
	require.NoError(t, p.SetObjective(NewExpr().Add(K("x", t0), 3).Add(K("b", t0), 1).AddConst(7), true))

	m := p.Matrix()
	assert.Equal(t, 3, m.NumCols())
	assert.Equal(t, 3, m.NumRows())
	assert.True(t, m.Maximize)
	assert.Equal(t, 7.0, m.Offset)
	assert.Equal(t, []float64{3, 1, 0}, m.ColCosts)
	assert.Equal(t, []bool{false, true, false}, m.Integer)
	assert.True(t, m.HasInteger())
	assert.Equal(t, 1.0, m.ColUpper[1])
	assert.True(t, math.IsInf(m.ColLower[2], -1))

	assert.True(t, math.IsInf(m.RowLower[0], -1))
	assert.Equal(t, 0.0, m.RowUpper[0])
	assert.Equal(t, 2.0, m.RowLower[1])
	assert.True(t, math.IsInf(m.RowUpper[1], 1))
	assert.Equal(t, m.RowLower[2], m.RowUpper[2])

	assert.Equal(t, []Nonzero{
		{Row: 0, Col: 0, Val: 1}, {Row: 0, Col: 1, Val: -5},
		{Row: 1, Col: 0, Val: 1},
		{Row: 2, Col: 0, Val: -1}, {Row: 2, Col: 2, Val: 1},
	}, m.Nonzeros)
	assert.Equal(t, "le[](0)", m.RowNames[0])

	st := p.Stats()
	assert.Equal(t, 1, st.Binaries)
	assert.Equal(t, 5, st.Nonzeros)
}

type fakeSolver struct {
	res *RawResult
	err error
}

func (f *fakeSolver) Name() string { return "fake" }

func (f *fakeSolver) Solve(_ context.Context, _ *Matrix) (*RawResult, error) {
	return f.res, f.err
}

func TestSolve(t *testing.T) {
	p := New("test")
	_, _ = p.AddVariable(K("x", t0), NonNegativeReal)
	_, _ = p.AddVariable(K("y", t0), NonNegativeReal)
	require.NoError(t, p.SetObjective(NewExpr().Add(K("x", t0), 1), false))
	p.Seal()

	t.Run("optimal", func(t *testing.T) {
		sol, err := p.Solve(context.Background(), &fakeSolver{res: &RawResult{
			Status: StatusOptimal, Objective: 2, X: []float64{2, 0},
		}})
		require.NoError(t, err)
		assert.Equal(t, StatusOptimal, sol.Status)
		assert.Equal(t, "fake", sol.Solver)
		v, ok := sol.Value(K("x", t0))
		assert.True(t, ok)
		assert.Equal(t, 2.0, v)
		_, ok = sol.Value(K("z", t0))
		assert.False(t, ok)
		assert.Len(t, sol.Values("y"), 1)
		assert.Equal(t, []Assignment{{Key: K("x", t0), Value: 2}}, sol.Assignments(1e-9))
		assert.NoError(t, sol.Err())
	})

	t.Run("infeasible", func(t *testing.T) {
		sol, err := p.Solve(context.Background(), &fakeSolver{res: &RawResult{Status: StatusInfeasible}})
		require.NoError(t, err)
		assert.Equal(t, StatusInfeasible, sol.Status)
		_, ok := sol.Value(K("x", t0))
		assert.False(t, ok)
		assert.True(t, apperror.Is(sol.Err(), apperror.CodeInfeasibleProblem))
	})

	t.Run("adapter failure", func(t *testing.T) {
		sol, err := p.Solve(context.Background(), &fakeSolver{err: errors.New("boom")})
		assert.True(t, apperror.Is(err, apperror.CodeSolverError))
		assert.Equal(t, StatusError, sol.Status)
	})

	t.Run("short vector", func(t *testing.T) {
		_, err := p.Solve(context.Background(), &fakeSolver{res: &RawResult{Status: StatusOptimal, X: []float64{1}}})
		assert.True(t, apperror.Is(err, apperror.CodeSolverError))
	})
}

func TestSolve_NoObjective(t *testing.T) {
	p := New("test")
	_, err := p.Solve(context.Background(), &fakeSolver{})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidObjective))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("unbounded")
	require.NoError(t, err)
	assert.Equal(t, StatusUnbounded, st)
	_, err = ParseStatus("maybe")
	assert.Error(t, err)
}
