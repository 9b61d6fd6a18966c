package solver

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"energia/pkg/problem"
)

// WriteLP writes the matrix in CPLEX LP format so that an external MILP
// solver can consume it. Names are sanitized; the objective offset is
// written as a comment because not every reader accepts a constant term.
func WriteLP(w io.Writer, m *problem.Matrix) error {
	bw := bufio.NewWriter(w)

	cols := make([]string, m.NumCols())
	for j := range cols {
		name := ""
		if j < len(m.ColNames) {
			name = m.ColNames[j]
		}
		cols[j] = lpName(name, "x", j)
	}

	if m.Offset != 0 {
		fmt.Fprintf(bw, "\\ objective offset: %s\n", num(m.Offset))
	}
	if m.Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	bw.WriteString(" obj:")
	wrote := false
	for j, c := range m.ColCosts {
		if c == 0 {
			continue
		}
		writeTerm(bw, c, cols[j], !wrote)
		wrote = true
	}
	if !wrote {
		bw.WriteString(" 0 ")
		bw.WriteString(cols0(cols))
	}
	bw.WriteString("\n")

	bw.WriteString("Subject To\n")
	byRow := make([][]problem.Nonzero, m.NumRows())
	for _, nz := range m.Nonzeros {
		byRow[nz.Row] = append(byRow[nz.Row], nz)
	}
	for i := 0; i < m.NumRows(); i++ {
		name := ""
		if i < len(m.RowNames) {
			name = m.RowNames[i]
		}
		rn := lpName(name, "r", i)
		lo, hi := m.RowLower[i], m.RowUpper[i]
		switch {
		case lo == hi:
			writeRow(bw, rn, byRow[i], cols, "=", lo)
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			continue
		case math.IsInf(lo, -1):
			writeRow(bw, rn, byRow[i], cols, "<=", hi)
		case math.IsInf(hi, 1):
			writeRow(bw, rn, byRow[i], cols, ">=", lo)
		default:
			writeRow(bw, rn+"_lo", byRow[i], cols, ">=", lo)
			writeRow(bw, rn+"_hi", byRow[i], cols, "<=", hi)
		}
	}

	bw.WriteString("Bounds\n")
	for j := range cols {
		lo, hi := m.ColLower[j], m.ColUpper[j]
		if m.Integer[j] && lo == 0 && hi == 1 {
			continue
		}
		switch {
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			fmt.Fprintf(bw, " %s free\n", cols[j])
		case lo == 0 && math.IsInf(hi, 1):
		case math.IsInf(hi, 1):
			fmt.Fprintf(bw, " %s >= %s\n", cols[j], num(lo))
		case math.IsInf(lo, -1):
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", cols[j], num(hi))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(lo), cols[j], num(hi))
		}
	}

	var bins, gens []string
	for j, isInt := range m.Integer {
		if !isInt {
			continue
		}
		if m.ColLower[j] == 0 && m.ColUpper[j] == 1 {
			bins = append(bins, cols[j])
		} else {
			gens = append(gens, cols[j])
		}
	}
	if len(bins) > 0 {
		bw.WriteString("Binaries\n")
		for _, b := range bins {
			fmt.Fprintf(bw, " %s\n", b)
		}
	}
	if len(gens) > 0 {
		bw.WriteString("General\n")
		for _, g := range gens {
			fmt.Fprintf(bw, " %s\n", g)
		}
	}
	bw.WriteString("End\n")
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, name string, nzs []problem.Nonzero, cols []string, op string, rhs float64) {
	fmt.Fprintf(bw, " %s:", name)
	if len(nzs) == 0 {
		bw.WriteString(" 0 ")
		bw.WriteString(cols0(cols))
	}
	for k, nz := range nzs {
		writeTerm(bw, nz.Val, cols[nz.Col], k == 0)
	}
	fmt.Fprintf(bw, " %s %s\n", op, num(rhs))
}

func writeTerm(bw *bufio.Writer, c float64, name string, first bool) {
	switch {
	case c < 0:
		bw.WriteString(" - ")
		c = -c
	case !first:
		bw.WriteString(" + ")
	default:
		bw.WriteString(" ")
	}
	if c != 1 {
		bw.WriteString(num(c))
		bw.WriteString(" ")
	}
	bw.WriteString(name)
}

// cols0 returns a column to anchor an otherwise empty expression.
func cols0(cols []string) string {
	if len(cols) == 0 {
		return "x_dummy"
	}
	return cols[0]
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// lpName maps a key rendering such as "P[site,plant](0,1)" onto the LP
// name alphabet.
func lpName(name, prefix string, i int) string {
	if name == "" {
		return prefix + strconv.Itoa(i)
	}
	name = strings.ReplaceAll(name, "[]", "")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '[' || r == '(':
			b.WriteByte('(')
		case r == ']' || r == ')':
			b.WriteByte(')')
		case r == ',' || r == '.' || r == '_' || r == '{' || r == '}':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return prefix + strconv.Itoa(i)
	}
	if out[0] >= '0' && out[0] <= '9' || out[0] == '.' {
		out = "_" + out
	}
	if len(out) > 255 {
		out = out[:240] + "_" + strconv.Itoa(i)
	}
	return out
}
