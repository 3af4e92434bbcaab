package aggregate

import (
	"testing"

	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

func testSchema() *row.Schema {
	return row.NewSchema([]row.Column{
		{Name: "region", DataType: row.TypeString},
		{Name: "amount", DataType: row.TypeInteger},
	})
}

func testRows() []row.Row {
	return []row.Row{
		{ID: 1, Data: []value.Value{value.String("west"), value.Integer(10)}},
		{ID: 2, Data: []value.Value{value.String("west"), value.Integer(20)}},
		{ID: 3, Data: []value.Value{value.String("east"), value.Integer(5)}},
	}
}

func TestCountStarNoGroupBy(t *testing.T) {
	result, err := Run(testSchema(), testRows(), nil, []Expr{{Function: Count}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected a single row with no group-by, got %d", len(result.Rows))
	}
	n, _ := result.Rows[0].Data[0].AsInt64()
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
}

func TestSumGroupedByColumn(t *testing.T) {
	result, err := Run(testSchema(), testRows(), []string{"region"}, []Expr{
		{Function: Sum, Column: "amount", Alias: "total"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(result.Rows))
	}
	totals := map[string]float64{}
	for _, r := range result.Rows {
		region, _ := r.Data[0].AsString()
		sum, _ := r.Data[1].AsFloat()
		totals[region] = sum
	}
	if totals["west"] != 30 {
		t.Fatalf("expected west total 30, got %v", totals["west"])
	}
	if totals["east"] != 5 {
		t.Fatalf("expected east total 5, got %v", totals["east"])
	}
}

func TestAvgMinMax(t *testing.T) {
	result, err := Run(testSchema(), testRows(), nil, []Expr{
		{Function: Avg, Column: "amount", Alias: "avg_amount"},
		{Function: Min, Column: "amount", Alias: "min_amount"},
		{Function: Max, Column: "amount", Alias: "max_amount"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	row0 := result.Rows[0]
	avg, _ := row0.Data[0].AsFloat()
	if avg != 35.0/3.0 {
		t.Fatalf("expected avg %v, got %v", 35.0/3.0, avg)
	}
	min, _ := row0.Data[1].AsInt64()
	max, _ := row0.Data[2].AsInt64()
	if min != 5 || max != 20 {
		t.Fatalf("expected min=5 max=20, got min=%d max=%d", min, max)
	}
}

func TestUnknownColumnRejected(t *testing.T) {
	_, err := Run(testSchema(), testRows(), nil, []Expr{{Function: Sum, Column: "nope"}})
	if err == nil {
		t.Fatalf("expected an error for an unknown aggregate column")
	}
}

func TestNoExprsRejected(t *testing.T) {
	if _, err := Run(testSchema(), testRows(), nil, nil); err == nil {
		t.Fatalf("expected an error when no aggregate expressions are given")
	}
}
