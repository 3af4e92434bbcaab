package predicate

import (
	"testing"

	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

func testSchema() *row.Schema {
	return row.NewSchema([]row.Column{
		{Name: "id", DataType: row.TypeInteger},
		{Name: "name", DataType: row.TypeString},
		{Name: "score", DataType: row.TypeFloat},
	})
}

func testRow(id int64, name string, score float64) row.Row {
	return row.Row{ID: uint64(id), Data: []value.Value{value.Integer(id), value.String(name), value.Float(score)}}
}

func mustCompile(t *testing.T, e *Expr) *Compiled {
	t.Helper()
	c, err := Compile(e, testSchema())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return c
}

func TestComparisonOperators(t *testing.T) {
	r := testRow(5, "bob", 90)
	cases := []struct {
		name string
		expr *Expr
		want bool
	}{
		{"eq true", Eq("id", value.Integer(5)), true},
		{"eq false", Eq("id", value.Integer(6)), false},
		{"neq", Neq("id", value.Integer(6)), true},
		{"lt", Lt("score", value.Float(100)), true},
		{"lte equal", Lte("score", value.Float(90)), true},
		{"gt false", Gt("score", value.Float(90)), false},
		{"gte equal", Gte("score", value.Float(90)), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			compiled := mustCompile(t, c.expr)
			if got := compiled.Eval(r); got != c.want {
				t.Fatalf("%s: got %v want %v", c.name, got, c.want)
			}
		})
	}
}

func TestInAndNotIn(t *testing.T) {
	r := testRow(5, "bob", 90)
	in := mustCompile(t, In("name", []value.Value{value.String("alice"), value.String("bob")}))
	if !in.Eval(r) {
		t.Fatalf("expected IN to match")
	}
	notIn := mustCompile(t, NotIn("name", []value.Value{value.String("alice")}))
	if !notIn.Eval(r) {
		t.Fatalf("expected NOT IN to match when absent")
	}
}

func TestIsNullIsNotNull(t *testing.T) {
	r := row.Row{ID: 1, Data: []value.Value{value.Null(), value.String("x"), value.Float(1)}}
	isNull := mustCompile(t, IsNull("id"))
	if !isNull.Eval(r) {
		t.Fatalf("expected IS NULL to match a null column")
	}
	isNotNull := mustCompile(t, IsNotNull("name"))
	if !isNotNull.Eval(r) {
		t.Fatalf("expected IS NOT NULL to match a non-null column")
	}
}

func TestLikeWildcards(t *testing.T) {
	r := testRow(1, "hello world", 1)
	cases := []struct {
		pattern string
		want    bool
	}{
		{"hello%", true},
		{"%world", true},
		{"h_llo%", true},
		{"goodbye%", false},
		{"hello world", true},
		{"hello", false},
	}
	for _, c := range cases {
		compiled := mustCompile(t, Like("name", c.pattern))
		if got := compiled.Eval(r); got != c.want {
			t.Fatalf("pattern %q: got %v want %v", c.pattern, got, c.want)
		}
	}
}

func TestBetween(t *testing.T) {
	r := testRow(1, "x", 50)
	inRange := mustCompile(t, Between("score", value.Float(0), value.Float(100)))
	if !inRange.Eval(r) {
		t.Fatalf("expected 50 to be BETWEEN 0 AND 100")
	}
	outOfRange := mustCompile(t, Between("score", value.Float(60), value.Float(100)))
	if outOfRange.Eval(r) {
		t.Fatalf("expected 50 to not be BETWEEN 60 AND 100")
	}
}

func TestAndOrNot(t *testing.T) {
	r := testRow(5, "bob", 90)
	and := mustCompile(t, And(Eq("id", value.Integer(5)), Gt("score", value.Float(50))))
	if !and.Eval(r) {
		t.Fatalf("expected AND to match")
	}
	or := mustCompile(t, Or(Eq("id", value.Integer(1)), Eq("id", value.Integer(5))))
	if !or.Eval(r) {
		t.Fatalf("expected OR to match")
	}
	not := mustCompile(t, Not(Eq("id", value.Integer(1))))
	if !not.Eval(r) {
		t.Fatalf("expected NOT to match")
	}
}

func TestConstBool(t *testing.T) {
	r := testRow(1, "x", 1)
	truthy := mustCompile(t, ConstBool(true))
	if !truthy.Eval(r) {
		t.Fatalf("expected ConstBool(true) to always match")
	}
	falsy := mustCompile(t, ConstBool(false))
	if falsy.Eval(r) {
		t.Fatalf("expected ConstBool(false) to never match")
	}
}

func TestTypeMismatchCollapsesToFalse(t *testing.T) {
	r := testRow(5, "bob", 90)
	compiled := mustCompile(t, Gt("name", value.Integer(5)))
	if compiled.Eval(r) {
		t.Fatalf("comparing a string column to an integer literal should collapse to false, not match")
	}
}

func TestCompileUnknownColumnFails(t *testing.T) {
	if _, err := Compile(Eq("nope", value.Integer(1)), testSchema()); err == nil {
		t.Fatalf("expected an error compiling a predicate against an unknown column")
	}
}

func TestNilExprMatchesEverything(t *testing.T) {
	c, err := Compile(nil, testSchema())
	if err != nil {
		t.Fatalf("compile nil: %v", err)
	}
	if !c.Eval(testRow(1, "x", 1)) {
		t.Fatalf("a nil predicate should match every row")
	}
}
