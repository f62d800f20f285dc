package formula

// Expr is one node of a parsed formula.
type Expr interface {
	// Columns appends the column names this subtree references.
	columns(dst []string) []string
}

type numberLit struct{ value float64 }

type stringLit struct{ value string }

type boolLit struct{ value bool }

type columnRef struct{ name string }

type unaryExpr struct {
	op string // "-" or "NOT"
	x  Expr
}

type binaryExpr struct {
	op   string // "+", "-", "*", "/", "%", "=", "!=", "<", "<=", ">", ">=", "AND", "OR"
	l, r Expr
}

type callExpr struct {
	fn   string // canonical upper-case name
	args []Expr
}

func (numberLit) columns(dst []string) []string { return dst }
func (stringLit) columns(dst []string) []string { return dst }
func (boolLit) columns(dst []string) []string   { return dst }

func (c columnRef) columns(dst []string) []string { return append(dst, c.name) }

func (u unaryExpr) columns(dst []string) []string { return u.x.columns(dst) }

func (b binaryExpr) columns(dst []string) []string {
	return b.r.columns(b.l.columns(dst))
}

func (c callExpr) columns(dst []string) []string {
	for _, a := range c.args {
		dst = a.columns(dst)
	}
	return dst
}

// ReferencedColumns returns the distinct column names a parsed formula
// reads, in first-appearance order.
func ReferencedColumns(e Expr) []string {
	all := e.columns(nil)
	seen := make(map[string]bool, len(all))
	var out []string
	for _, c := range all {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
