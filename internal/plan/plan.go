// Package plan defines the LogicalPlan tagged union (§4.10/§6) the
// execution driver walks, and the external boundary this engine consumes
// from a SQL front end: a plan arrives pre-built, is optimized by the
// three rules in optimize.go, and is then lowered by a driver (outside
// this package's scope) into Scan/HashJoin calls against the storage
// core. Nothing in this package touches a page manager directly.
package plan

import (
	"github.com/bambang-db/bambang/internal/join"
	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
)

// Kind identifies a LogicalPlan node's variant.
type Kind int

const (
	KindTableScan Kind = iota
	KindProjection
	KindFilter
	KindJoin
	KindAggregate
	KindSort
	KindLimit
	KindInsert
	KindUpdate
	KindDelete
	KindCreateTable
	KindDropTable
	KindUnion
	KindDistinct
	KindValues
	KindSubquery
)

// SortSpec is one ORDER BY key within a Sort node.
type SortSpec struct {
	Column     string
	Descending bool
}

// Statistics is an optional cardinality estimate attached to a node,
// consumed by the (external) cost-aware parts of a plan driver; this
// package only carries the estimate, it never computes one.
type Statistics struct {
	EstimatedRows int64
}

// AggregateExpr is one aggregate function applied over an optional group
// key, e.g. SUM(extended_price) or COUNT(*).
type AggregateExpr struct {
	Function string // SUM, COUNT, AVG, MIN, MAX
	Column   string // empty for COUNT(*)
	Alias    string
}

// Node is one entry in the LogicalPlan tagged union. Only the fields
// relevant to Kind are populated.
type Node struct {
	Kind Kind

	// shared
	schema *row.Schema
	stats  *Statistics
	child  *Node
	left   *Node
	right  *Node

	// TableScan
	Table      string
	Filters    []*predicate.Expr
	Projected  []string

	// Projection
	ProjectCols []string

	// Filter
	Condition *predicate.Expr

	// Join
	JoinType       join.Type
	JoinConditions []join.Condition

	// Aggregate
	GroupBy    []string
	Aggregates []AggregateExpr

	// Sort
	SortKeys []SortSpec

	// Limit
	Limit  int
	Offset int

	// Insert/Update/Delete
	Rows       []row.Row
	Assignment map[string]any
	DeleteWhere *predicate.Expr

	// CreateTable
	NewSchema *row.Schema

	// DropTable
	DropTableName string

	// Union/Distinct
	Inputs []*Node

	// Values
	Literals [][]row.Row

	// Subquery
	Alias string
}

// NewTableScan builds a leaf scan node over table, with the schema it
// produces.
func NewTableScan(table string, schema *row.Schema) *Node {
	return &Node{Kind: KindTableScan, Table: table, schema: schema}
}

// WithSchema attaches an explicit output schema to any node (used by
// nodes whose schema is not simply inherited from their child).
func (n *Node) WithSchema(s *row.Schema) *Node { n.schema = s; return n }

// WithChild sets n's single child (Projection, Filter, Aggregate, Sort,
// Limit, Distinct, Subquery).
func (n *Node) WithChild(c *Node) *Node { n.child = c; return n }

// WithChildren sets n's two children (Join, set operations expressed via
// left/right).
func (n *Node) WithChildren(l, r *Node) *Node { n.left, n.right = l, r; return n }

// WithStatistics attaches a cardinality estimate.
func (n *Node) WithStatistics(s Statistics) *Node { n.stats = &s; return n }

// Schema returns n's declared output schema, inheriting from its single
// child when n does not declare its own (Filter, Sort, Limit, Distinct
// pass the child schema through unchanged).
func (n *Node) Schema() *row.Schema {
	if n.schema != nil {
		return n.schema
	}
	if n.child != nil {
		return n.child.Schema()
	}
	return nil
}

// Children returns n's child nodes in a fixed order: single child first
// (if any), then left, then right, then any Inputs (Union/Distinct).
func (n *Node) Children() []*Node {
	var out []*Node
	if n.child != nil {
		out = append(out, n.child)
	}
	if n.left != nil {
		out = append(out, n.left)
	}
	if n.right != nil {
		out = append(out, n.right)
	}
	out = append(out, n.Inputs...)
	return out
}

// Statistics returns n's attached cardinality estimate, or nil.
func (n *Node) Statistics() *Statistics { return n.stats }

// Validate performs structural sanity checks appropriate to n.Kind:
// required children present, schema non-nil where required.
func (n *Node) Validate() error {
	switch n.Kind {
	case KindTableScan:
		if n.Table == "" {
			return errInvalid("TableScan requires a table name")
		}
	case KindProjection, KindFilter, KindAggregate, KindSort, KindLimit, KindDistinct:
		if n.child == nil {
			return errInvalid("node requires a child")
		}
	case KindJoin:
		if n.left == nil || n.right == nil {
			return errInvalid("Join requires both children")
		}
		if len(n.JoinConditions) == 0 {
			return errInvalid("Join requires at least one condition")
		}
	case KindUnion:
		if len(n.Inputs) < 2 {
			return errInvalid("Union requires at least two inputs")
		}
	}
	for _, c := range n.Children() {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type planError string

func (e planError) Error() string { return string(e) }
func errInvalid(msg string) error { return planError("plan: " + msg) }
