package engine

import (
	"testing"

	"github.com/bambang-db/bambang/internal/config"
	"github.com/bambang-db/bambang/internal/join"
	"github.com/bambang-db/bambang/internal/page"
	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/scan"
	"github.com/bambang-db/bambang/internal/value"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		DataDir:    t.TempDir(),
		PageSize:   page.MinPageSize,
		BufferPool: 64,
		Workers:    4,
		ReadAhead:  4,
		// MaintInterval left zero so Open doesn't start a background sweep loop.
	}
}

func customersSchema() *row.Schema {
	return row.NewSchema([]row.Column{
		{Name: "id", DataType: row.TypeInteger},
		{Name: "region", DataType: row.TypeString},
	})
}

func TestCreateTableInsertAndScanRoundTrip(t *testing.T) {
	e, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	if err := e.CreateTable("customers", customersSchema()); err != nil {
		t.Fatalf("create table: %v", err)
	}

	for i := int64(1); i <= 20; i++ {
		region := "east"
		if i%2 == 0 {
			region = "west"
		}
		r := row.Row{ID: uint64(i), Data: []value.Value{value.Integer(i), value.String(region)}}
		if err := e.Insert("customers", r); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	res, err := e.Scan("customers", scan.Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Rows) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(res.Rows))
	}
}

func TestBatchInsertThenDeleteByPredicate(t *testing.T) {
	e, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	schema := customersSchema()
	if err := e.CreateTable("orders", schema); err != nil {
		t.Fatalf("create table: %v", err)
	}

	rows := make([]row.Row, 0, 30)
	for i := int64(1); i <= 30; i++ {
		region := "east"
		if i%3 == 0 {
			region = "west"
		}
		rows = append(rows, row.Row{ID: uint64(i), Data: []value.Value{value.Integer(i), value.String(region)}})
	}
	n, err := e.BatchInsert("orders", rows)
	if err != nil {
		t.Fatalf("batch insert: %v", err)
	}
	if n != 30 {
		t.Fatalf("expected 30 rows inserted, got %d", n)
	}

	deleted, err := e.DeleteByPredicate("orders", predicate.Eq("region", value.String("west")))
	if err != nil {
		t.Fatalf("delete by predicate: %v", err)
	}
	if deleted != 10 {
		t.Fatalf("expected 10 'west' rows deleted, got %d", deleted)
	}

	res, err := e.Scan("orders", scan.Options{})
	if err != nil {
		t.Fatalf("scan after delete: %v", err)
	}
	if len(res.Rows) != 20 {
		t.Fatalf("expected 20 rows remaining after delete, got %d", len(res.Rows))
	}
}

func TestUpdateByPredicateRewritesMatchingRows(t *testing.T) {
	e, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	schema := customersSchema()
	e.CreateTable("people", schema)
	for i := int64(1); i <= 10; i++ {
		e.Insert("people", row.Row{ID: uint64(i), Data: []value.Value{value.Integer(i), value.String("unknown")}})
	}

	updated, err := e.UpdateByPredicate("people", predicate.Gt("id", value.Integer(5)), func(r row.Row) row.Row {
		r.Data[1] = value.String("known")
		return r
	})
	if err != nil {
		t.Fatalf("update by predicate: %v", err)
	}
	if updated != 5 {
		t.Fatalf("expected 5 rows updated, got %d", updated)
	}

	res, err := e.Scan("people", scan.Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	known := 0
	for _, r := range res.Rows {
		if s, _ := r.Data[1].AsString(); s == "known" {
			known++
		}
	}
	if known != 5 {
		t.Fatalf("expected 5 rows with region 'known', got %d", known)
	}
}

func TestJoinAcrossTwoTables(t *testing.T) {
	e, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	deptSchema := row.NewSchema([]row.Column{
		{Name: "dept_id", DataType: row.TypeInteger},
		{Name: "name", DataType: row.TypeString},
	})
	empSchema := row.NewSchema([]row.Column{
		{Name: "id", DataType: row.TypeInteger},
		{Name: "dept_id", DataType: row.TypeInteger},
	})

	e.CreateTable("departments", deptSchema)
	e.CreateTable("employees", empSchema)

	e.Insert("departments", row.Row{ID: 1, Data: []value.Value{value.Integer(1), value.String("eng")}})
	e.Insert("departments", row.Row{ID: 2, Data: []value.Value{value.Integer(2), value.String("sales")}})

	e.Insert("employees", row.Row{ID: 1, Data: []value.Value{value.Integer(1), value.Integer(1)}})
	e.Insert("employees", row.Row{ID: 2, Data: []value.Value{value.Integer(2), value.Integer(1)}})
	e.Insert("employees", row.Row{ID: 3, Data: []value.Value{value.Integer(3), value.Integer(2)}})

	res, err := e.Join(
		"employees", scan.Options{Schema: empSchema},
		"departments", scan.Options{Schema: deptSchema},
		[]join.Condition{{LeftColumn: "dept_id", RightColumn: "dept_id"}},
		join.Inner,
	)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 joined rows, got %d", len(res.Rows))
	}
}

func TestDropTableRemovesCatalogEntry(t *testing.T) {
	e, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	e.CreateTable("temp", customersSchema())
	if err := e.DropTable("temp"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, err := e.Scan("temp", scan.Options{}); err == nil {
		t.Fatalf("expected scan of a dropped table to fail")
	}
}
