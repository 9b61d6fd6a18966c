package solver

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energia/pkg/apperror"
	"energia/pkg/problem"
	"energia/pkg/scale"
)

var idx = scale.NewIndex(0)

func v(name string) problem.Key { return problem.K(name, idx) }

// build собирает задачу из коротких описаний, чтобы тесты оставались читаемыми
func build(t *testing.T, vars map[string]problem.Domain, rows []row, obj map[string]float64, maximize bool) *problem.Problem {
	t.Helper()
	p := problem.New(t.Name())
	for _, name := range []string{"a", "b", "c", "f", "x", "y"} {
		if d, ok := vars[name]; ok {
			_, err := p.AddVariable(v(name), d)
			require.NoError(t, err)
		}
	}
	for i, r := range rows {
		e := problem.NewExpr()
		for name, c := range r.coefs {
			e.Add(v(name), c)
		}
		require.NoError(t, p.AddConstraint(problem.K("row", scale.NewIndex(i)), e, r.sense, r.rhs))
	}
	e := problem.NewExpr()
	for name, c := range obj {
		e.Add(v(name), c)
	}
	require.NoError(t, p.SetObjective(e, maximize))
	p.Seal()
	return p
}

type row struct {
	coefs map[string]float64
	sense problem.Sense
	rhs   float64
}

func value(t *testing.T, sol *problem.Solution, name string) float64 {
	t.Helper()
	x, ok := sol.Value(v(name))
	require.True(t, ok, "no value for %s", name)
	return x
}

var nn = problem.NonNegativeReal

func TestSimplex_Minimize(t *testing.T) {
	p := build(t,
		map[string]problem.Domain{"x": nn, "y": nn},
		[]row{
			{map[string]float64{"x": 1, "y": 1}, problem.GE, 2},
			{map[string]float64{"x": 1}, problem.LE, 1.5},
		},
		map[string]float64{"x": 1, "y": 2}, false)

	sol, err := p.Solve(context.Background(), New(nil))
	require.NoError(t, err)
	assert.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 2.5, sol.Objective, 1e-6)
	assert.InDelta(t, 1.5, value(t, sol, "x"), 1e-6)
	assert.InDelta(t, 0.5, value(t, sol, "y"), 1e-6)
}

func TestSimplex_Maximize(t *testing.T) {
	p := build(t,
		map[string]problem.Domain{"x": nn, "y": nn},
		[]row{
			{map[string]float64{"x": 1, "y": 1}, problem.LE, 4},
			{map[string]float64{"x": 1, "y": 3}, problem.LE, 6},
			{map[string]float64{"x": 1}, problem.LE, 3},
		},
		map[string]float64{"x": 3, "y": 2}, true)

	sol, err := p.Solve(context.Background(), New(nil))
	require.NoError(t, err)
	assert.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 11, sol.Objective, 1e-6)
	assert.InDelta(t, 3, value(t, sol, "x"), 1e-6)
	assert.InDelta(t, 1, value(t, sol, "y"), 1e-6)
}

func TestSimplex_NegativeRHSEquality(t *testing.T) {
	p := build(t,
		map[string]problem.Domain{"x": nn, "y": nn},
		[]row{{map[string]float64{"x": 1, "y": -1}, problem.EQ, -2}},
		map[string]float64{"x": 1, "y": 1}, false)

	sol, err := p.Solve(context.Background(), New(nil))
	require.NoError(t, err)
	assert.InDelta(t, 2, sol.Objective, 1e-6)
	assert.InDelta(t, 2, value(t, sol, "y"), 1e-6)
}

func TestSimplex_FreeColumn(t *testing.T) {
	p := build(t,
		map[string]problem.Domain{"f": problem.Real},
		[]row{{map[string]float64{"f": 1}, problem.GE, -5}},
		map[string]float64{"f": 1}, false)

	sol, err := p.Solve(context.Background(), New(nil))
	require.NoError(t, err)
	assert.InDelta(t, -5, value(t, sol, "f"), 1e-6)
}

func TestSimplex_Infeasible(t *testing.T) {
	p := build(t,
		map[string]problem.Domain{"x": nn},
		[]row{
			{map[string]float64{"x": 1}, problem.GE, 5},
			{map[string]float64{"x": 1}, problem.LE, 3},
		},
		map[string]float64{"x": 1}, false)

	sol, err := p.Solve(context.Background(), New(nil))
	require.NoError(t, err)
	assert.Equal(t, problem.StatusInfeasible, sol.Status)
	assert.True(t, apperror.Is(sol.Err(), apperror.CodeInfeasibleProblem))
}

func TestSimplex_Unbounded(t *testing.T) {
	t.Run("free direction without rows", func(t *testing.T) {
		p := build(t, map[string]problem.Domain{"x": nn}, nil, map[string]float64{"x": -1}, false)
		sol, err := p.Solve(context.Background(), New(nil))
		require.NoError(t, err)
		assert.Equal(t, problem.StatusUnbounded, sol.Status)
	})

	t.Run("ray through a row", func(t *testing.T) {
		p := build(t,
			map[string]problem.Domain{"x": nn, "y": nn},
			[]row{{map[string]float64{"x": 1, "y": -1}, problem.LE, 1}},
			map[string]float64{"x": -1}, false)
		sol, err := p.Solve(context.Background(), New(nil))
		require.NoError(t, err)
		assert.Equal(t, problem.StatusUnbounded, sol.Status)
	})
}

func knapsack(t *testing.T) *problem.Problem {
	bin := problem.Binary
	return build(t,
		map[string]problem.Domain{"a": bin, "b": bin, "c": bin},
		[]row{{map[string]float64{"a": 3, "b": 4, "c": 2}, problem.LE, 6}},
		map[string]float64{"a": 10, "b": 13, "c": 7}, true)
}

func TestSimplex_BranchAndBound(t *testing.T) {
	sol, err := knapsack(t).Solve(context.Background(), New(nil))
	require.NoError(t, err)
	assert.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 20, sol.Objective, 1e-6)
	assert.Equal(t, 0.0, value(t, sol, "a"))
	assert.Equal(t, 1.0, value(t, sol, "b"))
	assert.Equal(t, 1.0, value(t, sol, "c"))
	assert.Greater(t, sol.Nodes, 1)
}

func TestSimplex_Relax(t *testing.T) {
	sol, err := knapsack(t).Solve(context.Background(), New(DefaultOptions().WithRelax(true)))
	require.NoError(t, err)
	assert.InDelta(t, 20.25, sol.Objective, 1e-6)
	assert.Equal(t, 1, sol.Nodes)
}

func TestSimplex_NodeLimit(t *testing.T) {
	_, err := knapsack(t).Solve(context.Background(), New(DefaultOptions().WithMaxNodes(1)))
	assert.True(t, apperror.Is(err, apperror.CodeNodeLimit), "got %v", err)
}

func TestSimplex_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := knapsack(t).Solve(ctx, New(nil))
	assert.True(t, apperror.Is(err, apperror.CodeTimeout), "got %v", err)
}

func TestSimplex_Deterministic(t *testing.T) {
	s := New(nil)
	first, err := knapsack(t).Solve(context.Background(), s)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := knapsack(t).Solve(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, first.Nodes, again.Nodes)
		assert.Equal(t, first.Assignments(0), again.Assignments(0))
	}
}

func TestSimplex_BadMatrix(t *testing.T) {
	_, err := New(nil).Solve(context.Background(), nil)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))

	m := &problem.Matrix{ColCosts: []float64{1}}
	_, err = New(nil).Solve(context.Background(), m)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
}

func TestOptions_Normalize(t *testing.T) {
	s := New(&Options{MaxNodes: -3})
	o := s.Options()
	assert.Equal(t, 1e-7, o.Tolerance)
	assert.Equal(t, 1e-9, o.PivotTolerance)
	assert.Equal(t, 0, o.MaxNodes)
	assert.Equal(t, Name, s.Name())
}

func TestWriteLP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, knapsack(t).Matrix()))
	out := buf.String()

	assert.Contains(t, out, "Maximize\n obj: 10 a(0) + 13 b(0) + 7 c(0)\n")
	assert.Contains(t, out, "Subject To\n row(0): 3 a(0) + 4 b(0) + 2 c(0) <= 6\n")
	assert.Contains(t, out, "Binaries\n a(0)\n b(0)\n c(0)\n")
	assert.Contains(t, out, "End\n")
}

func TestWriteLP_Bounds(t *testing.T) {
	p := build(t,
		map[string]problem.Domain{"f": problem.Real, "x": nn},
		[]row{{map[string]float64{"f": 1, "x": -1}, problem.EQ, -2}},
		map[string]float64{"x": 1}, false)

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p.Matrix()))
	out := buf.String()
	assert.Contains(t, out, "Minimize\n")
	assert.Contains(t, out, " row(0): f(0) - x(0) = -2\n")
	assert.Contains(t, out, " f(0) free\n")
}

func TestLPName(t *testing.T) {
	assert.Equal(t, "P(site,plant)(0,1)", lpName("P[site,plant](0,1)", "x", 0))
	assert.Equal(t, "x3", lpName("", "x", 3))
	assert.Equal(t, "_1a", lpName("1a", "x", 0))
	assert.Equal(t, "a_b", lpName("a b", "x", 0))
}
