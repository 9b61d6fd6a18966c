package problem

import "math"

// Nonzero is one entry of the sparse constraint matrix.
type Nonzero struct {
	Row int
	Col int
	Val float64
}

// Matrix is the column/row export consumed by solver adapters. Rows are
// ranges RowLower <= a·x <= RowUpper; infinite bounds use math.Inf.
type Matrix struct {
	Maximize bool
	Offset   float64

	ColCosts []float64
	ColLower []float64
	ColUpper []float64
	ColNames []string
	Integer  []bool

	RowLower []float64
	RowUpper []float64
	RowNames []string

	// Nonzeros are ordered by row, then column.
	Nonzeros []Nonzero
}

// NumCols returns the column count.
func (m *Matrix) NumCols() int { return len(m.ColCosts) }

// NumRows returns the row count.
func (m *Matrix) NumRows() int { return len(m.RowLower) }

// HasInteger reports whether any column is integral.
func (m *Matrix) HasInteger() bool {
	for _, b := range m.Integer {
		if b {
			return true
		}
	}
	return false
}

// Matrix exports the problem. The result shares nothing with the Problem.
func (p *Problem) Matrix() *Matrix {
	n, r := len(p.vars), len(p.cons)
	m := &Matrix{
		ColCosts: make([]float64, n),
		ColLower: make([]float64, n),
		ColUpper: make([]float64, n),
		ColNames: make([]string, n),
		Integer:  make([]bool, n),
		RowLower: make([]float64, r),
		RowUpper: make([]float64, r),
		RowNames: make([]string, r),
	}

	for i, v := range p.vars {
		m.ColLower[i], m.ColUpper[i] = v.Domain.Bounds()
		m.ColNames[i] = v.Key.String()
		m.Integer[i] = v.Domain == Binary
	}

	if p.objective != nil {
		m.Maximize = p.objective.Maximize
		m.Offset = p.objective.Constant
		for _, c := range p.objective.Coefs {
			m.ColCosts[c.Col] = c.Val
		}
	}

	nnz := 0
	for _, c := range p.cons {
		nnz += len(c.Coefs)
	}
	m.Nonzeros = make([]Nonzero, 0, nnz)

	for i, c := range p.cons {
		m.RowNames[i] = c.Key.String()
		switch c.Sense {
		case LE:
			m.RowLower[i], m.RowUpper[i] = math.Inf(-1), c.RHS
		case GE:
			m.RowLower[i], m.RowUpper[i] = c.RHS, math.Inf(1)
		default:
			m.RowLower[i], m.RowUpper[i] = c.RHS, c.RHS
		}
		for _, co := range c.Coefs {
			m.Nonzeros = append(m.Nonzeros, Nonzero{Row: i, Col: co.Col, Val: co.Val})
		}
	}
	return m
}
