package problem

import (
	"context"
	"fmt"
	"time"

	"energia/pkg/apperror"
)

// Status is the terminal state reported by a solver.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
)

// HasValues reports whether the status carries a primal point.
func (s Status) HasValues() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusOptimal, StatusFeasible, StatusInfeasible, StatusUnbounded, StatusError:
		return st, nil
	}
	return "", apperror.Newf(apperror.CodeInvalidArgument, "unknown status %q", s)
}

// RawResult is what a solver adapter returns for a Matrix. X is indexed by
// column and is only meaningful when Status.HasValues().
type RawResult struct {
	Status    Status
	Objective float64
	X         []float64
	Nodes     int
	Message   string
}

// Solver is the external solver boundary.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Matrix) (*RawResult, error)
}

// Assignment is one variable value of a solution.
type Assignment struct {
	Key   Key
	Value float64
}

// Solution maps variable keys back to solved values.
type Solution struct {
	Status    Status
	Objective float64
	Solver    string
	Duration  time.Duration
	Nodes     int
	Message   string

	problem *Problem
	values  []float64
}

// Solve exports the problem, hands it to s and maps the result back to keys.
// Infeasible and unbounded outcomes are reported through Status, not as an
// error; an adapter failure yields StatusError together with a SOLVER_ERROR.
func (p *Problem) Solve(ctx context.Context, s Solver) (*Solution, error) {
	if p == nil {
		return nil, apperror.ErrNilProblem
	}
	if s == nil {
		return nil, apperror.New(apperror.CodeNilInput, "solver is nil")
	}
	if p.objective == nil {
		return nil, apperror.New(apperror.CodeInvalidObjective, "problem has no objective")
	}

	start := time.Now()
	raw, err := s.Solve(ctx, p.Matrix())
	sol := &Solution{Solver: s.Name(), Duration: time.Since(start), problem: p}
	if err != nil {
		sol.Status = StatusError
		sol.Message = err.Error()
		if apperror.Code(err) != apperror.CodeInternal {
			return sol, err
		}
		return sol, apperror.Wrap(err, apperror.CodeSolverError, "solver failed")
	}

	sol.Status = raw.Status
	sol.Nodes = raw.Nodes
	sol.Message = raw.Message
	if raw.Status.HasValues() {
		if len(raw.X) != len(p.vars) {
			sol.Status = StatusError
			return sol, apperror.Newf(apperror.CodeSolverError,
				"solver returned %d values for %d columns", len(raw.X), len(p.vars))
		}
		sol.values = raw.X
		sol.Objective = raw.Objective
	}
	return sol, nil
}

// Value returns the solved value of key. It reports false when the key is
// unknown or the solution carries no point.
func (s *Solution) Value(key Key) (float64, bool) {
	if s.values == nil {
		return 0, false
	}
	col, ok := s.problem.varIndex[key]
	if !ok {
		return 0, false
	}
	return s.values[col], true
}

// Values returns all values of one category.
func (s *Solution) Values(category string) map[Key]float64 {
	out := make(map[Key]float64)
	if s.values == nil {
		return out
	}
	for _, v := range s.problem.vars {
		if v.Key.Category == category {
			out[v.Key] = s.values[v.Col]
		}
	}
	return out
}

// Assignments returns every value whose magnitude exceeds tol, in column order.
func (s *Solution) Assignments(tol float64) []Assignment {
	if s.values == nil {
		return nil
	}
	var out []Assignment
	for _, v := range s.problem.vars {
		x := s.values[v.Col]
		if x > tol || x < -tol {
			out = append(out, Assignment{Key: v.Key, Value: x})
		}
	}
	return out
}

// Err converts a non-optimal status into an error. Optimal and feasible
// solutions return nil.
func (s *Solution) Err() error {
	switch s.Status {
	case StatusOptimal, StatusFeasible:
		return nil
	case StatusInfeasible:
		return apperror.New(apperror.CodeInfeasibleProblem, "problem is infeasible")
	case StatusUnbounded:
		return apperror.New(apperror.CodeUnboundedProblem, "problem is unbounded")
	default:
		return apperror.New(apperror.CodeSolverError, fmt.Sprintf("solver error: %s", s.Message))
	}
}
