// Package join implements the hash-join operator (§4.8): build a hash
// table over one side keyed by a join column, probe it with the other
// side, and emit combined rows for Inner/Left/Right/Full outer joins.
// Join keys that are NaN floats never match anything, including another
// NaN, following IEEE 754 semantics rather than SQL NULL semantics.
package join

import (
	"fmt"
	"strings"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

// Type identifies which rows of each side are preserved when no match is
// found on the other side.
type Type int

const (
	Inner Type = iota
	LeftOuter
	RightOuter
	FullOuter
)

// Input pairs a row set with the schema describing it.
type Input struct {
	Schema *row.Schema
	Rows   []row.Row
}

// Condition is one equi-join column pair; Run accepts a slice so a join
// key can be a composite of several columns, evaluated in declared order.
type Condition struct {
	LeftColumn  string
	RightColumn string
}

// Stats reports the cardinalities of a completed join, useful for
// optimizer cost estimation and tests.
type Stats struct {
	LeftCount   int
	RightCount  int
	OutputCount int
}

// Result is the outcome of a join: the combined schema (left columns
// followed by right columns, with right-side name collisions prefixed
// `right_`), the combined rows, and execution statistics.
type Result struct {
	Schema *row.Schema
	Rows   []row.Row
	Stats  Stats
}

// Run executes a hash join of left and right on the given equi-join
// conditions (composite key when more than one). Right always builds the
// hash table; left always probes — callers that want the smaller side to
// build pass it as right.
func Run(left, right Input, conditions []Condition, joinType Type) (Result, error) {
	if len(conditions) == 0 {
		return Result{}, dberrors.InvalidInput("join: at least one condition required")
	}
	leftIdx := make([]int, len(conditions))
	rightIdx := make([]int, len(conditions))
	for i, c := range conditions {
		leftIdx[i] = left.Schema.IndexOf(c.LeftColumn)
		if leftIdx[i] < 0 {
			return Result{}, dberrors.InvalidInput("join: unknown left column %q", c.LeftColumn)
		}
		rightIdx[i] = right.Schema.IndexOf(c.RightColumn)
		if rightIdx[i] < 0 {
			return Result{}, dberrors.InvalidInput("join: unknown right column %q", c.RightColumn)
		}
	}

	schema := combineSchemas(left.Schema, right.Schema)

	buckets := buildHashTable(right.Rows, rightIdx)
	rightMatched := make([]bool, len(right.Rows))

	var out []row.Row
	for _, lr := range left.Rows {
		keyVals, comparable := keysOf(lr, leftIdx)
		matchedAny := false
		if comparable {
			candidates := buckets[compositeRepr(keyVals)]
			for _, ri := range candidates {
				if !rowMatches(lr, leftIdx, right.Rows[ri], rightIdx) {
					continue
				}
				matchedAny = true
				rightMatched[ri] = true
				out = append(out, combineRows(lr, right.Rows[ri], len(right.Schema.Columns)))
			}
		}
		if !matchedAny && (joinType == LeftOuter || joinType == FullOuter) {
			out = append(out, combineRows(lr, nullRow(len(right.Schema.Columns)), len(right.Schema.Columns)))
		}
	}

	if joinType == RightOuter || joinType == FullOuter {
		for i, rr := range right.Rows {
			if rightMatched[i] {
				continue
			}
			out = append(out, combineRows(nullRow(len(left.Schema.Columns)), rr, len(right.Schema.Columns)))
		}
	}

	return Result{
		Schema: schema,
		Rows:   out,
		Stats: Stats{
			LeftCount:   len(left.Rows),
			RightCount:  len(right.Rows),
			OutputCount: len(out),
		},
	}, nil
}

func rowMatches(l row.Row, lIdx []int, r row.Row, rIdx []int) bool {
	for i := range lIdx {
		if !value.Equal(l.Data[lIdx[i]], r.Data[rIdx[i]]) {
			return false
		}
	}
	return true
}

// compositeKey is a hashable string derived from the tuple of join-column
// values, used as a Go map key. Built via compositeRepr so both build and
// probe sides derive it identically.
type compositeKey string

func buildHashTable(rows []row.Row, colIdx []int) map[compositeKey][]int {
	table := make(map[compositeKey][]int, len(rows))
	for i, r := range rows {
		keyVals, ok := keysOf(r, colIdx)
		if !ok {
			continue // NaN or null component: never joins
		}
		k := compositeRepr(keyVals)
		table[k] = append(table[k], i)
	}
	return table
}

// keysOf extracts the join-column values from r, reporting false if any
// component can never participate in an equality match: SQL NULL (join
// predicates never match NULL) or a NaN float (NaN != NaN by IEEE 754).
func keysOf(r row.Row, colIdx []int) ([]value.Value, bool) {
	vals := make([]value.Value, len(colIdx))
	for i, idx := range colIdx {
		v := r.Data[idx]
		if v.IsNull() {
			return nil, false
		}
		if f, ok := v.AsFloat(); ok && f != f {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func compositeRepr(vals []value.Value) compositeKey {
	var b strings.Builder
	for _, v := range vals {
		b.WriteByte(byte(v.Kind()))
		b.WriteByte(0)
		b.WriteString(reprOf(v))
		b.WriteByte(0x1f)
	}
	return compositeKey(b.String())
}

// reprOf renders v into a string that is injective within its Kind, so
// distinct values never collide in the hash table even though the bucket
// key is a string.
func reprOf(v value.Value) string {
	switch v.Kind() {
	case value.KindBinary, value.KindUUID:
		b, _ := v.AsBytes()
		return fmt.Sprintf("%x", b)
	case value.KindString, value.KindText, value.KindDecimal, value.KindJSON:
		s, _ := v.AsString()
		return s
	case value.KindChar:
		s, _ := v.AsString()
		return s
	case value.KindFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%g", f)
	default:
		i, _ := v.AsInt64()
		return fmt.Sprintf("%d", i)
	}
}

func combineSchemas(left, right *row.Schema) *row.Schema {
	names := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		names[c.Name] = true
	}
	cols := append([]row.Column(nil), left.Columns...)
	for _, c := range right.Columns {
		if names[c.Name] {
			c.Name = "right_" + c.Name
		}
		cols = append(cols, c)
	}
	return row.NewSchema(cols)
}

func combineRows(l, r row.Row, rightWidth int) row.Row {
	data := make([]value.Value, 0, len(l.Data)+rightWidth)
	data = append(data, l.Data...)
	data = append(data, r.Data...)
	return row.Row{ID: l.ID, Data: data}
}

func nullRow(width int) row.Row {
	data := make([]value.Value, width)
	for i := range data {
		data[i] = value.Null()
	}
	return row.Row{Data: data}
}
