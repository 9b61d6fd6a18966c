// Package problem holds the compiled optimization problem: typed variables
// and constraints addressed by stable keys, one objective, and the export
// into the column/row arrays a solver consumes.
//
// A Problem is filled by the compiler and then sealed. After Seal it is
// read-only, so concurrent Solve, Matrix and lookup calls are safe.
package problem

import (
	"math"
	"slices"

	"energia/pkg/apperror"
)

// Domain is the value domain of a variable.
type Domain int

const (
	NonNegativeReal Domain = iota
	Binary
	Real
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case NonNegativeReal:
		return "non_negative_real"
	case Binary:
		return "binary"
	case Real:
		return "real"
	default:
		return "unknown"
	}
}

// Bounds returns the column bounds implied by the domain.
func (d Domain) Bounds() (lo, hi float64) {
	switch d {
	case Binary:
		return 0, 1
	case Real:
		return math.Inf(-1), math.Inf(1)
	default:
		return 0, math.Inf(1)
	}
}

// Coef is a resolved coefficient on a column.
type Coef struct {
	Col int
	Val float64
}

// Variable is one declared decision variable.
type Variable struct {
	Col    int
	Key    Key
	Domain Domain
}

// Constraint is one resolved row. Key.Category holds the constraint family.
type Constraint struct {
	Row   int
	Key   Key
	Coefs []Coef
	Sense Sense
	RHS   float64
}

// Objective is the resolved objective row.
type Objective struct {
	Maximize bool
	Coefs    []Coef
	Constant float64
}

// Problem is the problem handle.
type Problem struct {
	name string

	vars     []Variable
	varIndex map[Key]int

	cons     []Constraint
	conIndex map[Key]int

	objective *Objective
	sealed    bool
}

// New creates an empty problem.
func New(name string) *Problem {
	return &Problem{
		name:     name,
		varIndex: make(map[Key]int),
		conIndex: make(map[Key]int),
	}
}

// Name returns the problem name.
func (p *Problem) Name() string { return p.name }

// Seal freezes the problem. Further mutation fails with CodeInternal.
func (p *Problem) Seal() { p.sealed = true }

// Sealed reports whether Seal was called.
func (p *Problem) Sealed() bool { return p.sealed }

func (p *Problem) checkOpen() error {
	if p.sealed {
		return apperror.New(apperror.CodeInternal, "problem is sealed")
	}
	return nil
}

// AddVariable declares a variable and returns its column.
func (p *Problem) AddVariable(key Key, domain Domain) (int, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if _, ok := p.varIndex[key]; ok {
		return 0, apperror.Newf(apperror.CodeDuplicateKey, "variable %s declared twice", key).
			WithDetails("key", key.String())
	}
	col := len(p.vars)
	p.vars = append(p.vars, Variable{Col: col, Key: key, Domain: domain})
	p.varIndex[key] = col
	return col, nil
}

// HasVariable reports whether key is declared.
func (p *Problem) HasVariable(key Key) bool {
	_, ok := p.varIndex[key]
	return ok
}

// Variable looks up a declared variable.
func (p *Problem) Variable(key Key) (Variable, bool) {
	col, ok := p.varIndex[key]
	if !ok {
		return Variable{}, false
	}
	return p.vars[col], true
}

// resolve turns expression terms into merged, column-sorted coefficients.
func (p *Problem) resolve(owner Key, expr *Expr) ([]Coef, error) {
	if expr == nil {
		return nil, nil
	}
	acc := make(map[int]float64, len(expr.terms))
	for _, t := range expr.terms {
		col, ok := p.varIndex[t.Key]
		if !ok {
			return nil, apperror.Newf(apperror.CodeUndeclaredVariableReference,
				"%s references undeclared variable %s", owner, t.Key).
				WithDetails("key", t.Key.String()).
				WithDetails("owner", owner.String())
		}
		acc[col] += t.Coef
	}
	coefs := make([]Coef, 0, len(acc))
	for col, v := range acc {
		if v != 0 {
			coefs = append(coefs, Coef{Col: col, Val: v})
		}
	}
	slices.SortFunc(coefs, func(a, b Coef) int { return a.Col - b.Col })
	return coefs, nil
}

// AddConstraint resolves expr and records the row expr (sense) rhs.
// The expression constant is moved to the right-hand side.
func (p *Problem) AddConstraint(key Key, expr *Expr, sense Sense, rhs float64) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if _, ok := p.conIndex[key]; ok {
		return apperror.Newf(apperror.CodeDuplicateKey, "constraint %s declared twice", key).
			WithDetails("key", key.String())
	}
	coefs, err := p.resolve(key, expr)
	if err != nil {
		return err
	}
	if expr != nil {
		rhs -= expr.constant
	}
	row := len(p.cons)
	p.cons = append(p.cons, Constraint{Row: row, Key: key, Coefs: coefs, Sense: sense, RHS: rhs})
	p.conIndex[key] = row
	return nil
}

// HasConstraint reports whether key names a row.
func (p *Problem) HasConstraint(key Key) bool {
	_, ok := p.conIndex[key]
	return ok
}

// Constraint looks up a row by key.
func (p *Problem) Constraint(key Key) (Constraint, bool) {
	row, ok := p.conIndex[key]
	if !ok {
		return Constraint{}, false
	}
	return p.cons[row], true
}

// SetObjective sets the single objective, replacing any previous one.
func (p *Problem) SetObjective(expr *Expr, maximize bool) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	coefs, err := p.resolve(Key{Category: "objective"}, expr)
	if err != nil {
		return err
	}
	obj := &Objective{Maximize: maximize, Coefs: coefs}
	if expr != nil {
		obj.Constant = expr.constant
	}
	p.objective = obj
	return nil
}

// HasObjective reports whether SetObjective succeeded.
func (p *Problem) HasObjective() bool { return p.objective != nil }

// Objective returns the objective row.
func (p *Problem) Objective() Objective {
	if p.objective == nil {
		return Objective{}
	}
	return *p.objective
}

// NumVariables returns the column count.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NumConstraints returns the row count.
func (p *Problem) NumConstraints() int { return len(p.cons) }

// Variables returns the variables in column order. The slice must not be modified.
func (p *Problem) Variables() []Variable { return p.vars }

// Constraints returns the rows in declaration order. The slice must not be modified.
func (p *Problem) Constraints() []Constraint { return p.cons }

// VariableKeys returns the keys of one category in column order.
func (p *Problem) VariableKeys(category string) []Key {
	var out []Key
	for _, v := range p.vars {
		if v.Key.Category == category {
			out = append(out, v.Key)
		}
	}
	return out
}

// ConstraintKeys returns the keys of one family in row order.
func (p *Problem) ConstraintKeys(family string) []Key {
	var out []Key
	for _, c := range p.cons {
		if c.Key.Category == family {
			out = append(out, c.Key)
		}
	}
	return out
}

// Categories counts variables per category.
func (p *Problem) Categories() map[string]int {
	out := make(map[string]int)
	for _, v := range p.vars {
		out[v.Key.Category]++
	}
	return out
}

// Families counts constraints per family.
func (p *Problem) Families() map[string]int {
	out := make(map[string]int)
	for _, c := range p.cons {
		out[c.Key.Category]++
	}
	return out
}

// Stats is a compact summary of the problem size.
type Stats struct {
	Variables   int            `json:"variables"`
	Binaries    int            `json:"binaries"`
	Constraints int            `json:"constraints"`
	Nonzeros    int            `json:"nonzeros"`
	Categories  map[string]int `json:"categories"`
	Families    map[string]int `json:"families"`
}

// Stats summarizes the problem.
func (p *Problem) Stats() Stats {
	st := Stats{
		Variables:   len(p.vars),
		Constraints: len(p.cons),
		Categories:  p.Categories(),
		Families:    p.Families(),
	}
	for _, v := range p.vars {
		if v.Domain == Binary {
			st.Binaries++
		}
	}
	for _, c := range p.cons {
		st.Nonzeros += len(c.Coefs)
	}
	return st
}
