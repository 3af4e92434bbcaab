// Package predicate implements the boolean filter tree evaluated against
// a row during a scan (§4.7): comparisons, set membership, null checks,
// LIKE pattern matching, BETWEEN, and AND/OR/NOT composition. Column
// references are resolved to indices once against a row.Schema, never by
// name at evaluation time.
package predicate

import (
	"regexp"
	"strings"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

// Op identifies a predicate node's operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
	OpLike
	OpBetween
	OpAnd
	OpOr
	OpNot
	// OpConst is a literal boolean node, built with ConstBool; the
	// optimizer's constant-folding rule produces it as its result.
	OpConst
)

// Expr is a node in the predicate tree. Exactly the fields relevant to Op
// are populated; the zero value of the rest is ignored.
type Expr struct {
	Op       Op
	Column   string // for leaf comparisons, IN, IS NULL, LIKE, BETWEEN
	Literal  value.Value
	Literals []value.Value // IN / NOT IN
	Low      value.Value   // BETWEEN
	High     value.Value   // BETWEEN
	Pattern  string        // LIKE, SQL wildcard syntax (% and _)
	Children []*Expr       // AND / OR operands, NOT's single operand
	Bool     bool          // OpConst payload
}

// Eq, Neq, Lt, Lte, Gt, Gte build single-column comparisons.
func Eq(col string, v value.Value) *Expr  { return &Expr{Op: OpEq, Column: col, Literal: v} }
func Neq(col string, v value.Value) *Expr { return &Expr{Op: OpNeq, Column: col, Literal: v} }
func Lt(col string, v value.Value) *Expr  { return &Expr{Op: OpLt, Column: col, Literal: v} }
func Lte(col string, v value.Value) *Expr { return &Expr{Op: OpLte, Column: col, Literal: v} }
func Gt(col string, v value.Value) *Expr  { return &Expr{Op: OpGt, Column: col, Literal: v} }
func Gte(col string, v value.Value) *Expr { return &Expr{Op: OpGte, Column: col, Literal: v} }

func In(col string, vs []value.Value) *Expr    { return &Expr{Op: OpIn, Column: col, Literals: vs} }
func NotIn(col string, vs []value.Value) *Expr { return &Expr{Op: OpNotIn, Column: col, Literals: vs} }
func IsNull(col string) *Expr                  { return &Expr{Op: OpIsNull, Column: col} }
func IsNotNull(col string) *Expr               { return &Expr{Op: OpIsNotNull, Column: col} }
func Like(col, pattern string) *Expr           { return &Expr{Op: OpLike, Column: col, Pattern: pattern} }
func Between(col string, lo, hi value.Value) *Expr {
	return &Expr{Op: OpBetween, Column: col, Low: lo, High: hi}
}
func And(children ...*Expr) *Expr { return &Expr{Op: OpAnd, Children: children} }
func Or(children ...*Expr) *Expr  { return &Expr{Op: OpOr, Children: children} }
func Not(child *Expr) *Expr       { return &Expr{Op: OpNot, Children: []*Expr{child}} }
func ConstBool(b bool) *Expr      { return &Expr{Op: OpConst, Bool: b} }

// Compiled is a predicate tree with every Column reference resolved to an
// index against a specific schema, plus every LIKE pattern precompiled to
// a regexp. Built once via Compile and reused across every row a scan
// visits.
type Compiled struct {
	root *compiledNode
}

type compiledNode struct {
	op       Op
	colIdx   int
	literal  value.Value
	literals []value.Value
	low, high value.Value
	likeRe   *regexp.Regexp
	children []*compiledNode
	boolConst bool
}

// Compile resolves every column reference in e against schema and compiles
// every LIKE pattern, returning an error naming the first unknown column
// or malformed pattern.
func Compile(e *Expr, schema *row.Schema) (*Compiled, error) {
	if e == nil {
		return &Compiled{}, nil
	}
	root, err := compileNode(e, schema)
	if err != nil {
		return nil, err
	}
	return &Compiled{root: root}, nil
}

func compileNode(e *Expr, schema *row.Schema) (*compiledNode, error) {
	n := &compiledNode{op: e.Op, literal: e.Literal, literals: e.Literals, low: e.Low, high: e.High, boolConst: e.Bool}
	switch e.Op {
	case OpConst:
		return n, nil
	case OpAnd, OpOr, OpNot:
		n.children = make([]*compiledNode, len(e.Children))
		for i, c := range e.Children {
			cn, err := compileNode(c, schema)
			if err != nil {
				return nil, err
			}
			n.children[i] = cn
		}
		return n, nil
	}
	idx := schema.IndexOf(e.Column)
	if idx < 0 {
		return nil, dberrors.InvalidInput("predicate: unknown column %q", e.Column)
	}
	n.colIdx = idx
	if e.Op == OpLike {
		re, err := compileLikePattern(e.Pattern)
		if err != nil {
			return nil, err
		}
		n.likeRe = re
	}
	return n, nil
}

// compileLikePattern translates SQL LIKE syntax (% = any run, _ = any
// single char) into an anchored regexp. Backslash escapes the next
// wildcard character literally.
func compileLikePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(regexp.QuoteMeta(string(runes[i])))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// Eval reports whether r satisfies the compiled predicate. A nil/empty
// Compiled (built from a nil Expr) matches everything. Any comparison
// with no defined ordering, or a LIKE applied to a non-string column,
// collapses to false rather than erroring — mirroring SQL's three-valued
// logic folded to boolean at the scan boundary.
func (c *Compiled) Eval(r row.Row) bool {
	if c == nil || c.root == nil {
		return true
	}
	return evalNode(c.root, r)
}

func evalNode(n *compiledNode, r row.Row) bool {
	switch n.op {
	case OpConst:
		return n.boolConst
	case OpAnd:
		for _, c := range n.children {
			if !evalNode(c, r) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range n.children {
			if evalNode(c, r) {
				return true
			}
		}
		return false
	case OpNot:
		return !evalNode(n.children[0], r)
	}

	if n.colIdx >= len(r.Data) {
		return false
	}
	col := r.Data[n.colIdx]

	switch n.op {
	case OpIsNull:
		return col.IsNull()
	case OpIsNotNull:
		return !col.IsNull()
	case OpEq:
		return !col.IsNull() && value.Equal(col, n.literal)
	case OpNeq:
		return !col.IsNull() && !n.literal.IsNull() && !value.Equal(col, n.literal)
	case OpLt, OpLte, OpGt, OpGte:
		cmp, ok := value.Compare(col, n.literal)
		if !ok {
			return false
		}
		switch n.op {
		case OpLt:
			return cmp < 0
		case OpLte:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case OpIn:
		for _, v := range n.literals {
			if value.Equal(col, v) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, v := range n.literals {
			if value.Equal(col, v) {
				return false
			}
		}
		return true
	case OpBetween:
		lo, ok1 := value.Compare(col, n.low)
		hi, ok2 := value.Compare(col, n.high)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case OpLike:
		s, ok := col.AsString()
		if !ok {
			return false
		}
		return n.likeRe.MatchString(s)
	default:
		return false
	}
}
