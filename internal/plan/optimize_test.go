package plan

import (
	"testing"

	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

func scanSchema() *row.Schema {
	return row.NewSchema([]row.Column{
		{Name: "id", DataType: row.TypeInteger},
		{Name: "year", DataType: row.TypeInteger},
	})
}

func TestFoldConstantsCollapsesAndOfTrue(t *testing.T) {
	n := &Node{Kind: KindFilter, Condition: predicate.And(
		predicate.ConstBool(true),
		predicate.Eq("id", value.Integer(1)),
	)}
	got := foldExpr(n.Condition)
	if got.Op != predicate.OpEq {
		t.Fatalf("expected AND(true, eq) to fold to just the eq, got op %v", got.Op)
	}
}

func TestFoldConstantsShortCircuitsAndOfFalse(t *testing.T) {
	e := predicate.And(predicate.ConstBool(false), predicate.Eq("id", value.Integer(1)))
	got := foldExpr(e)
	if got.Op != predicate.OpConst || got.Bool != false {
		t.Fatalf("expected AND(false, x) to fold to ConstBool(false), got %+v", got)
	}
}

func TestFoldConstantsOrOfTrueShortCircuits(t *testing.T) {
	e := predicate.Or(predicate.ConstBool(true), predicate.Eq("id", value.Integer(1)))
	got := foldExpr(e)
	if got.Op != predicate.OpConst || got.Bool != true {
		t.Fatalf("expected OR(true, x) to fold to ConstBool(true), got %+v", got)
	}
}

func TestFoldConstantsDoubleNegation(t *testing.T) {
	e := predicate.Not(predicate.Not(predicate.Eq("id", value.Integer(1))))
	got := foldExpr(e)
	if got.Op != predicate.OpEq {
		t.Fatalf("expected NOT(NOT(x)) to fold to x, got op %v", got.Op)
	}
}

func TestSimplifyConditionsDedupsConjuncts(t *testing.T) {
	e := predicate.And(
		predicate.Eq("id", value.Integer(1)),
		predicate.Eq("id", value.Integer(1)),
	)
	got := simplifyExpr(e)
	if got.Op != predicate.OpEq {
		t.Fatalf("expected the duplicate conjunct removed, leaving a single eq, got op %v", got.Op)
	}
}

func TestSimplifyConditionsDetectsContradiction(t *testing.T) {
	e := predicate.And(
		predicate.Eq("id", value.Integer(1)),
		predicate.Not(predicate.Eq("id", value.Integer(1))),
	)
	got := simplifyExpr(e)
	if got.Op != predicate.OpConst || got.Bool != false {
		t.Fatalf("expected a AND NOT a to collapse to ConstBool(false), got %+v", got)
	}
}

func TestSimplifyConditionsCollapsesRanges(t *testing.T) {
	e := predicate.And(
		predicate.Gt("year", value.Integer(1990)),
		predicate.Gt("year", value.Integer(2000)),
	)
	got := simplifyExpr(e)
	if got.Op != predicate.OpGt {
		t.Fatalf("expected the two lower bounds to collapse to the single tighter one, got op %v", got.Op)
	}
	n, _ := got.Literal.AsInt64()
	if n != 2000 {
		t.Fatalf("expected the tighter bound 2000 to survive, got %d", n)
	}
}

func TestPushdownMergesFilterIntoTableScan(t *testing.T) {
	scan := NewTableScan("lineorder", scanSchema())
	filter := (&Node{Kind: KindFilter, Condition: predicate.Eq("year", value.Integer(1993))}).WithChild(scan)

	result := pushdownPredicates(filter)
	if result.Kind != KindTableScan {
		t.Fatalf("expected pushdown to collapse Filter(TableScan) into TableScan, got kind %v", result.Kind)
	}
	if len(result.Filters) != 1 {
		t.Fatalf("expected the filter condition merged into TableScan.Filters, got %d", len(result.Filters))
	}
}

func TestPushdownThroughProjectionWhenColumnsSurvive(t *testing.T) {
	scan := NewTableScan("lineorder", scanSchema())
	proj := (&Node{Kind: KindProjection, ProjectCols: []string{"id", "year"}}).WithChild(scan)
	filter := (&Node{Kind: KindFilter, Condition: predicate.Eq("year", value.Integer(1993))}).WithChild(proj)

	result := pushdownPredicates(filter)
	if result.Kind != KindProjection {
		t.Fatalf("expected Filter(Projection(x)) -> Projection(Filter(x)), got kind %v", result.Kind)
	}
	if result.child.Kind != KindTableScan {
		t.Fatalf("expected the filter pushed all the way to the table scan, got child kind %v", result.child.Kind)
	}
	if len(result.child.Filters) != 1 {
		t.Fatalf("expected the filter merged into the scan after pushing through the projection")
	}
}

func TestPushdownBlockedWhenColumnNotProjected(t *testing.T) {
	scan := NewTableScan("lineorder", scanSchema())
	proj := (&Node{Kind: KindProjection, ProjectCols: []string{"id"}}).WithChild(scan)
	filter := (&Node{Kind: KindFilter, Condition: predicate.Eq("year", value.Integer(1993))}).WithChild(proj)

	result := pushdownPredicates(filter)
	if result.Kind != KindFilter {
		t.Fatalf("expected the filter to stay put since 'year' does not survive the projection, got kind %v", result.Kind)
	}
}

func TestOptimizeRunsAllRulesInOrder(t *testing.T) {
	scan := NewTableScan("lineorder", scanSchema())
	filter := (&Node{Kind: KindFilter, Condition: predicate.And(
		predicate.ConstBool(true),
		predicate.Eq("year", value.Integer(1993)),
	)}).WithChild(scan)

	optimized, err := Optimize(filter)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if optimized.Kind != KindTableScan {
		t.Fatalf("expected folding+pushdown to leave a bare TableScan, got kind %v", optimized.Kind)
	}
	if len(optimized.Filters) != 1 || optimized.Filters[0].Op != predicate.OpEq {
		t.Fatalf("expected the folded eq condition pushed into the scan, got %+v", optimized.Filters)
	}
}
