package problem

// Term is one coefficient-times-variable product of a linear expression.
type Term struct {
	Key  Key
	Coef float64
}

// Expr is a linear expression over variable keys plus a constant. Keys are
// resolved to columns only when the expression is handed to the Problem, so
// building an expression never fails.
type Expr struct {
	terms    []Term
	constant float64
}

// NewExpr returns an empty expression.
func NewExpr() *Expr {
	return &Expr{}
}

// Add appends coef * key. Zero coefficients are dropped.
func (e *Expr) Add(key Key, coef float64) *Expr {
	if coef != 0 {
		e.terms = append(e.terms, Term{Key: key, Coef: coef})
	}
	return e
}

// AddConst adds a constant.
func (e *Expr) AddConst(c float64) *Expr {
	e.constant += c
	return e
}

// AddExpr adds factor * other.
func (e *Expr) AddExpr(other *Expr, factor float64) *Expr {
	if other == nil || factor == 0 {
		return e
	}
	for _, t := range other.terms {
		e.Add(t.Key, t.Coef*factor)
	}
	e.constant += other.constant * factor
	return e
}

// Terms returns the raw terms (not merged).
func (e *Expr) Terms() []Term {
	return e.terms
}

// Constant returns the constant part.
func (e *Expr) Constant() float64 {
	return e.constant
}

// Len returns the number of raw terms.
func (e *Expr) Len() int {
	return len(e.terms)
}

// Sense is the relation of a constraint row.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

// String returns the relation symbol.
func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return "?"
	}
}
