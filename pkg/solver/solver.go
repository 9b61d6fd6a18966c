// Package solver provides the reference solver adapter for compiled
// problems: a dense two-phase tableau simplex on gonum matrices with
// depth-first branch and bound for integral columns.
//
// # Numerics
//
// Before every relaxation singleton rows become column bounds, columns
// fixed by their bounds are substituted out and every remaining row is
// scaled to a unit largest coefficient, so big-M rows do not dominate the
// pivots. The leaving row is chosen by the Harris ratio test. Phase two
// continues from the phase-one basis with the artificial columns removed.
//
// # Scope
//
// The adapter is intended for small and medium problems, tests and the
// command-line tool. Matrices are densified, so memory grows with
// rows × columns. Production deployments plug a dedicated MILP solver in
// through the problem.Solver interface and can use WriteLP to hand the
// problem over in CPLEX LP format.
//
// # Determinism
//
// Branching always picks the first fractional integral column in column
// order and explores the nearer rounding first, so repeated solves of the
// same matrix visit the same nodes.
//
// # Context Support
//
// The context is checked between branch-and-bound nodes and before every
// LP. When it expires with an incumbent at hand the incumbent is returned
// with status feasible; otherwise a TIMEOUT error is returned.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"energia/pkg/apperror"
	"energia/pkg/problem"
)

// Name is the adapter name reported in solutions.
const Name = "gonum-simplex"

// =============================================================================
// Options
// =============================================================================

// Options configures the simplex adapter.
//
// Zero values are replaced by DefaultOptions() values.
type Options struct {
	// Tolerance is the feasibility and integrality tolerance.
	// Default: 1e-7
	Tolerance float64

	// PivotTolerance is the smallest pivot element the ratio test accepts.
	// Default: 1e-9
	PivotTolerance float64

	// MaxNodes limits branch-and-bound nodes. Zero means unlimited.
	// Default: 10000
	MaxNodes int

	// Timeout bounds a single Solve call. Zero relies on the context.
	// Default: 60 seconds
	Timeout time.Duration

	// Relax ignores integrality and solves the LP relaxation only.
	Relax bool
}

// DefaultOptions returns options suitable for most compiled problems.
func DefaultOptions() *Options {
	return &Options{
		Tolerance:      1e-7,
		PivotTolerance: 1e-9,
		MaxNodes:       10000,
		Timeout:        60 * time.Second,
	}
}

// WithTimeout sets the timeout and returns the options for chaining.
func (o *Options) WithTimeout(d time.Duration) *Options {
	o.Timeout = d
	return o
}

// WithMaxNodes sets the node limit and returns the options for chaining.
func (o *Options) WithMaxNodes(n int) *Options {
	o.MaxNodes = n
	return o
}

// WithRelax toggles integrality and returns the options for chaining.
func (o *Options) WithRelax(relax bool) *Options {
	o.Relax = relax
	return o
}

func (o *Options) normalize() *Options {
	def := DefaultOptions()
	if o == nil {
		return def
	}
	out := *o
	if out.Tolerance <= 0 {
		out.Tolerance = def.Tolerance
	}
	if out.PivotTolerance <= 0 {
		out.PivotTolerance = def.PivotTolerance
	}
	if out.MaxNodes < 0 {
		out.MaxNodes = 0
	}
	return &out
}

// =============================================================================
// Adapter
// =============================================================================

// Simplex implements problem.Solver.
type Simplex struct {
	opts *Options
}

// New creates the adapter. nil options use DefaultOptions().
func New(opts *Options) *Simplex {
	return &Simplex{opts: opts.normalize()}
}

// Name implements problem.Solver.
func (s *Simplex) Name() string { return Name }

// Options returns a copy of the effective options.
func (s *Simplex) Options() Options { return *s.opts }

// lpResult is the outcome of one relaxation.
type lpResult struct {
	status problem.Status
	obj    float64 // minimization sense, without offset
	x      []float64
}

// Solve implements problem.Solver.
func (s *Simplex) Solve(ctx context.Context, m *problem.Matrix) (*problem.RawResult, error) {
	if m == nil {
		return nil, apperror.New(apperror.CodeNilInput, "matrix is nil")
	}
	if err := checkShape(m); err != nil {
		return nil, err
	}
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	costs := slices.Clone(m.ColCosts)
	if m.Maximize {
		for i := range costs {
			costs[i] = -costs[i]
		}
	}
	integral := m.HasInteger() && !s.opts.Relax

	type node struct{ lo, hi []float64 }
	stack := []node{{lo: slices.Clone(m.ColLower), hi: slices.Clone(m.ColUpper)}}

	var (
		best        []float64
		bestObj     = math.Inf(1)
		nodes       int
		interrupted apperror.ErrorCode
	)

	for len(stack) > 0 {
		if ctx.Err() != nil {
			interrupted = apperror.CodeTimeout
			break
		}
		if s.opts.MaxNodes > 0 && nodes >= s.opts.MaxNodes {
			interrupted = apperror.CodeNodeLimit
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		res, err := s.relax(ctx, m, costs, nd.lo, nd.hi)
		if err != nil && ctx.Err() != nil {
			interrupted = apperror.CodeTimeout
			break
		}
		if err != nil {
			return nil, err
		}
		switch res.status {
		case problem.StatusInfeasible:
			continue
		case problem.StatusUnbounded:
			return &problem.RawResult{Status: problem.StatusUnbounded, Nodes: nodes}, nil
		}
		if best != nil && res.obj >= bestObj-s.opts.Tolerance*math.Max(1, math.Abs(bestObj)) {
			continue
		}

		j := -1
		if integral {
			j = s.branchColumn(m, res.x)
		}
		if j < 0 {
			best, bestObj = res.x, res.obj
			continue
		}

		v := res.x[j]
		down := node{lo: nd.lo, hi: slices.Clone(nd.hi)}
		down.hi[j] = math.Floor(v)
		up := node{lo: slices.Clone(nd.lo), hi: nd.hi}
		up.lo[j] = math.Ceil(v)

		// ближайшее округление исследуется первым
		if v-math.Floor(v) < 0.5 {
			stack = append(stack, up, down)
		} else {
			stack = append(stack, down, up)
		}
	}

	if interrupted != "" {
		if best == nil {
			return nil, apperror.Newf(interrupted, "solver stopped after %d nodes without a feasible point", nodes).
				WithDetails("nodes", nodes)
		}
		return s.result(m, problem.StatusFeasible, best, nodes,
			fmt.Sprintf("stopped after %d nodes: %s", nodes, interrupted)), nil
	}
	if best == nil {
		return &problem.RawResult{Status: problem.StatusInfeasible, Nodes: nodes}, nil
	}
	return s.result(m, problem.StatusOptimal, best, nodes, ""), nil
}

func (s *Simplex) result(m *problem.Matrix, status problem.Status, x []float64, nodes int, msg string) *problem.RawResult {
	if !s.opts.Relax {
		for j, isInt := range m.Integer {
			if isInt {
				x[j] = math.Round(x[j])
			}
		}
	}
	obj := m.Offset
	for j, c := range m.ColCosts {
		obj += c * x[j]
	}
	return &problem.RawResult{Status: status, Objective: obj, X: x, Nodes: nodes, Message: msg}
}

// branchColumn returns the first integral column with a fractional value, or -1.
func (s *Simplex) branchColumn(m *problem.Matrix, x []float64) int {
	for j, isInt := range m.Integer {
		if !isInt {
			continue
		}
		if math.Abs(x[j]-math.Round(x[j])) > s.opts.Tolerance {
			return j
		}
	}
	return -1
}

// relax solves the LP relaxation under the given bounds.
func (s *Simplex) relax(ctx context.Context, m *problem.Matrix, costs, lo, hi []float64) (*lpResult, error) {
	sf, st := buildStandard(m, costs, lo, hi, s.opts.Tolerance)
	switch st {
	case buildInfeasible:
		return &lpResult{status: problem.StatusInfeasible}, nil
	case buildUnbounded:
		return &lpResult{status: problem.StatusUnbounded}, nil
	}

	if sf.rows == 0 {
		return s.finish(sf, costs, nil), nil
	}

	xs, err := solveStandard(ctx, sf, s.opts.Tolerance, s.opts.PivotTolerance)
	switch {
	case errors.Is(err, errInfeasible):
		return &lpResult{status: problem.StatusInfeasible}, nil
	case errors.Is(err, errUnbounded):
		return &lpResult{status: problem.StatusUnbounded}, nil
	case err != nil && ctx.Err() != nil:
		return nil, err
	case err != nil:
		return nil, apperror.Wrap(err, apperror.CodeSolverError, "simplex failed").
			WithDetails("rows", sf.rows)
	}
	return s.finish(sf, costs, xs), nil
}

func (s *Simplex) finish(sf *standardForm, costs, xs []float64) *lpResult {
	x := sf.original(xs)
	obj := 0.0
	for j, c := range costs {
		obj += c * x[j]
	}
	return &lpResult{status: problem.StatusOptimal, obj: obj, x: x}
}

func checkShape(m *problem.Matrix) error {
	n, r := len(m.ColCosts), len(m.RowLower)
	if len(m.ColLower) != n || len(m.ColUpper) != n || len(m.Integer) != n || len(m.RowUpper) != r {
		return apperror.New(apperror.CodeInvalidArgument, "matrix arrays have inconsistent lengths")
	}
	for _, nz := range m.Nonzeros {
		if nz.Row < 0 || nz.Row >= r || nz.Col < 0 || nz.Col >= n {
			return apperror.Newf(apperror.CodeInvalidArgument, "nonzero (%d,%d) out of range", nz.Row, nz.Col)
		}
	}
	return nil
}
