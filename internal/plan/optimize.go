// Optimizer rules (§6): constant folding, condition simplification, and
// predicate pushdown, applied to a plan tree in that order. Each rule is a
// pure function over *Node/*predicate.Expr; none touch storage.
package plan

import (
	"fmt"

	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/value"
)

// Optimize runs every rule, in order, over root and returns the rewritten
// tree. Rules that find nothing to do return their input unchanged.
func Optimize(root *Node) (*Node, error) {
	root = foldConstants(root)
	root = simplifyConditions(root)
	root = pushdownPredicates(root)
	return root, nil
}

// ── Rule 1: constant folding ────────────────────────────────────────────

// foldConstants walks every Filter/TableScan predicate in the plan and
// collapses AND/OR/NOT subtrees whose operands are already OpConst
// literals. There is no arithmetic sub-expression in this predicate
// model (§4.7's boolean tree is comparisons and connectives only), so the
// divide-by-zero case the rule must guard against in a general expression
// optimizer never arises here; folding is limited to boolean connectives.
func foldConstants(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindFilter:
		n.Condition = foldExpr(n.Condition)
	case KindTableScan:
		for i, f := range n.Filters {
			n.Filters[i] = foldExpr(f)
		}
	}
	if n.child != nil {
		n.child = foldConstants(n.child)
	}
	if n.left != nil {
		n.left = foldConstants(n.left)
	}
	if n.right != nil {
		n.right = foldConstants(n.right)
	}
	for i, in := range n.Inputs {
		n.Inputs[i] = foldConstants(in)
	}
	return n
}

func foldExpr(e *predicate.Expr) *predicate.Expr {
	if e == nil {
		return nil
	}
	switch e.Op {
	case predicate.OpNot:
		child := foldExpr(e.Children[0])
		if child.Op == predicate.OpConst {
			return predicate.ConstBool(!child.Bool)
		}
		if child.Op == predicate.OpNot {
			return child.Children[0] // double negation
		}
		return predicate.Not(child)
	case predicate.OpAnd:
		var kept []*predicate.Expr
		for _, c := range e.Children {
			fc := foldExpr(c)
			if fc.Op == predicate.OpConst {
				if !fc.Bool {
					return predicate.ConstBool(false)
				}
				continue // drop literal true
			}
			kept = append(kept, fc)
		}
		if len(kept) == 0 {
			return predicate.ConstBool(true)
		}
		if len(kept) == 1 {
			return kept[0]
		}
		return predicate.And(kept...)
	case predicate.OpOr:
		var kept []*predicate.Expr
		for _, c := range e.Children {
			fc := foldExpr(c)
			if fc.Op == predicate.OpConst {
				if fc.Bool {
					return predicate.ConstBool(true)
				}
				continue // drop literal false
			}
			kept = append(kept, fc)
		}
		if len(kept) == 0 {
			return predicate.ConstBool(false)
		}
		if len(kept) == 1 {
			return kept[0]
		}
		return predicate.Or(kept...)
	default:
		return e
	}
}

// ── Rule 2: condition simplification ────────────────────────────────────

// simplifyConditions removes duplicate conjuncts from AND trees, detects
// `a AND NOT a` contradictions and folds them to a literal false, and
// collapses same-direction range bounds on one column (`x > a AND x > b`
// keeps only the tighter bound).
func simplifyConditions(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindFilter:
		n.Condition = simplifyExpr(n.Condition)
	case KindTableScan:
		for i, f := range n.Filters {
			n.Filters[i] = simplifyExpr(f)
		}
	}
	if n.child != nil {
		n.child = simplifyConditions(n.child)
	}
	if n.left != nil {
		n.left = simplifyConditions(n.left)
	}
	if n.right != nil {
		n.right = simplifyConditions(n.right)
	}
	for i, in := range n.Inputs {
		n.Inputs[i] = simplifyConditions(in)
	}
	return n
}

func simplifyExpr(e *predicate.Expr) *predicate.Expr {
	if e == nil || e.Op != predicate.OpAnd {
		if e != nil {
			for i, c := range e.Children {
				e.Children[i] = simplifyExpr(c)
			}
		}
		return e
	}

	flat := flattenAnd(e)
	for i, c := range flat {
		flat[i] = simplifyExpr(c)
	}

	// duplicate conjuncts
	deduped := make([]*predicate.Expr, 0, len(flat))
	seen := make(map[string]bool, len(flat))
	for _, c := range flat {
		key := exprKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, c)
	}

	// a AND NOT a contradiction
	negSeen := make(map[string]bool, len(deduped))
	for _, c := range deduped {
		if c.Op == predicate.OpNot {
			negSeen[exprKey(c.Children[0])] = true
		}
	}
	for _, c := range deduped {
		if negSeen[exprKey(c)] {
			return predicate.ConstBool(false)
		}
	}

	// same-column, same-direction range collapse
	deduped = collapseRanges(deduped)

	if len(deduped) == 0 {
		return predicate.ConstBool(true)
	}
	if len(deduped) == 1 {
		return deduped[0]
	}
	return predicate.And(deduped...)
}

func flattenAnd(e *predicate.Expr) []*predicate.Expr {
	var out []*predicate.Expr
	for _, c := range e.Children {
		if c.Op == predicate.OpAnd {
			out = append(out, flattenAnd(c)...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// collapseRanges keeps only the tighter of two lower (or upper) bounds on
// the same column: `x > a AND x > b` keeps whichever of a, b is larger
// (a stricter lower bound); symmetric for < / <=. When both literals are
// equal, the strict operator (> or <) is the one kept.
func collapseRanges(conjuncts []*predicate.Expr) []*predicate.Expr {
	type bound struct {
		idx   int
		op    predicate.Op
		value value.Value
	}
	lower := make(map[string]bound) // strictly-greater bounds: Gt/Gte
	upper := make(map[string]bound) // strictly-less bounds: Lt/Lte
	drop := make(map[int]bool)

	for i, c := range conjuncts {
		switch c.Op {
		case predicate.OpGt, predicate.OpGte:
			if prev, ok := lower[c.Column]; ok {
				cmp, comparable := value.Compare(c.Literal, prev.value)
				if comparable {
					if cmp > 0 || (cmp == 0 && c.Op == predicate.OpGt) {
						drop[prev.idx] = true
						lower[c.Column] = bound{i, c.Op, c.Literal}
					} else {
						drop[i] = true
					}
				}
			} else {
				lower[c.Column] = bound{i, c.Op, c.Literal}
			}
		case predicate.OpLt, predicate.OpLte:
			if prev, ok := upper[c.Column]; ok {
				cmp, comparable := value.Compare(c.Literal, prev.value)
				if comparable {
					if cmp < 0 || (cmp == 0 && c.Op == predicate.OpLt) {
						drop[prev.idx] = true
						upper[c.Column] = bound{i, c.Op, c.Literal}
					} else {
						drop[i] = true
					}
				}
			} else {
				upper[c.Column] = bound{i, c.Op, c.Literal}
			}
		}
	}

	if len(drop) == 0 {
		return conjuncts
	}
	out := make([]*predicate.Expr, 0, len(conjuncts)-len(drop))
	for i, c := range conjuncts {
		if !drop[i] {
			out = append(out, c)
		}
	}
	return out
}

// exprKey renders a structural fingerprint of e sufficient to detect
// duplicate or negated-duplicate conjuncts; it is not a general expression
// hash and deliberately ignores subtree identity beyond op/column/literal.
func exprKey(e *predicate.Expr) string {
	if e == nil {
		return ""
	}
	switch e.Op {
	case predicate.OpAnd, predicate.OpOr, predicate.OpNot:
		key := ""
		for _, c := range e.Children {
			key += "(" + exprKey(c) + ")"
		}
		return opName(e.Op) + key
	default:
		return opName(e.Op) + ":" + e.Column + ":" + e.Literal.Kind().String() + ":" + reprLiteral(e) +
			fmt.Sprintf(":%v:%v:%v", e.Literals, e.Low, e.High)
	}
}

func reprLiteral(e *predicate.Expr) string {
	b, ok := e.Literal.AsBytes()
	if ok {
		return string(b)
	}
	if s, ok := e.Literal.AsString(); ok {
		return s
	}
	if i, ok := e.Literal.AsInt64(); ok {
		return itoa(i)
	}
	if e.Op == predicate.OpLike {
		return e.Pattern
	}
	return fmt.Sprintf("%v", e.Literal)
}

func itoa(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func opName(op predicate.Op) string {
	names := [...]string{"eq", "neq", "lt", "lte", "gt", "gte", "in", "notin", "isnull", "isnotnull", "like", "between", "and", "or", "not", "const"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// ── Rule 3: predicate pushdown ───────────────────────────────────────────

// pushdownPredicates merges a Filter sitting directly above a TableScan
// into the scan's own Filters list, and pushes a Filter through a
// Projection when every column the filter references survives the
// projection.
func pushdownPredicates(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.child != nil {
		n.child = pushdownPredicates(n.child)
	}
	if n.left != nil {
		n.left = pushdownPredicates(n.left)
	}
	if n.right != nil {
		n.right = pushdownPredicates(n.right)
	}
	for i, in := range n.Inputs {
		n.Inputs[i] = pushdownPredicates(in)
	}

	if n.Kind != KindFilter || n.child == nil {
		return n
	}

	switch n.child.Kind {
	case KindTableScan:
		n.child.Filters = append(n.child.Filters, n.Condition)
		return n.child
	case KindProjection:
		if referencedColumnsSubsetOf(n.Condition, n.child.ProjectCols) {
			// Filter(Projection(x)) -> Projection(Filter(x))
			inner := n.child.child
			newFilter := &Node{Kind: KindFilter, Condition: n.Condition, child: inner}
			newFilter = pushdownPredicates(newFilter)
			n.child.child = newFilter
			return n.child
		}
	}
	return n
}

func referencedColumnsSubsetOf(e *predicate.Expr, cols []string) bool {
	if e == nil {
		return true
	}
	allowed := make(map[string]bool, len(cols))
	for _, c := range cols {
		allowed[c] = true
	}
	return referencedSubset(e, allowed)
}

func referencedSubset(e *predicate.Expr, allowed map[string]bool) bool {
	switch e.Op {
	case predicate.OpAnd, predicate.OpOr, predicate.OpNot:
		for _, c := range e.Children {
			if !referencedSubset(c, allowed) {
				return false
			}
		}
		return true
	case predicate.OpConst:
		return true
	default:
		return allowed[e.Column]
	}
}
