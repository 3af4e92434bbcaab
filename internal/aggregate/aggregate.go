// Package aggregate implements grouped row aggregation sitting above scan
// and join, the operator `plan.KindAggregate` names but spec.md leaves
// undescribed. Grouping follows the hash-join package's composite-key
// approach (build a string-keyed bucket per distinct group tuple); folding
// follows the original engine's operator/aggregate.rs: one running
// accumulator per (group, function) pair, updated row by row.
package aggregate

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

// Function identifies a supported aggregate.
type Function string

const (
	Count Function = "COUNT"
	Sum   Function = "SUM"
	Avg   Function = "AVG"
	Min   Function = "MIN"
	Max   Function = "MAX"
)

// Expr is one aggregate function applied to a column (empty Column means
// COUNT(*)), with the output name it should appear under.
type Expr struct {
	Function Function
	Column   string
	Alias    string
}

// Result is the outcome of a Run: one row per distinct group-by tuple (a
// single row when GroupBy is empty), with GroupBy columns first followed
// by the aggregate outputs in Exprs order. Row order across groups is
// stable but unspecified; callers needing a particular order should sort
// the result themselves (e.g. via the scan operator's order_by pass).
type Result struct {
	Schema *row.Schema
	Rows   []row.Row
}

type accumulator struct {
	count int64
	sum   *big.Rat
	min   value.Value
	max   value.Value
	hasMM bool
}

// Run groups rows by groupBy (resolved against schema) and folds each
// group through every expr in exprs, in declared order.
func Run(schema *row.Schema, rows []row.Row, groupBy []string, exprs []Expr) (Result, error) {
	if len(exprs) == 0 {
		return Result{}, dberrors.InvalidInput("aggregate: at least one aggregate expression is required")
	}
	groupIdx, err := schema.ResolveIndices(groupBy)
	if err != nil {
		return Result{}, err
	}
	colIdx := make([]int, len(exprs))
	for i, e := range exprs {
		if e.Column == "" {
			colIdx[i] = -1
			continue
		}
		idx := schema.IndexOf(e.Column)
		if idx < 0 {
			return Result{}, dberrors.InvalidInput("aggregate: unknown column %q", e.Column)
		}
		colIdx[i] = idx
	}

	type bucket struct {
		keyVals []value.Value
		accs    []*accumulator
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, r := range rows {
		keyVals := make([]value.Value, len(groupIdx))
		for i, idx := range groupIdx {
			keyVals[i] = r.Data[idx]
		}
		key := reprKey(keyVals)
		b, ok := buckets[key]
		if !ok {
			accs := make([]*accumulator, len(exprs))
			for i := range accs {
				accs[i] = &accumulator{sum: new(big.Rat)}
			}
			b = &bucket{keyVals: keyVals, accs: accs}
			buckets[key] = b
			order = append(order, key)
		}
		for i, e := range exprs {
			fold(b.accs[i], e, r, colIdx[i])
		}
	}

	sort.Strings(order)

	cols := make([]row.Column, 0, len(groupBy)+len(exprs))
	for i, name := range groupBy {
		cols = append(cols, row.Column{Name: name, DataType: schema.Columns[groupIdx[i]].DataType, Nullable: true})
	}
	for i, e := range exprs {
		name := e.Alias
		if name == "" {
			name = string(e.Function)
		}
		dt := outputType(e.Function)
		if (e.Function == Min || e.Function == Max) && colIdx[i] >= 0 {
			dt = schema.Columns[colIdx[i]].DataType
		}
		cols = append(cols, row.Column{Name: name, DataType: dt, Nullable: true})
	}
	outSchema := row.NewSchema(cols)

	outRows := make([]row.Row, 0, len(order))
	for i, key := range order {
		b := buckets[key]
		data := make([]value.Value, 0, len(groupBy)+len(exprs))
		data = append(data, b.keyVals...)
		for j, e := range exprs {
			data = append(data, finalize(b.accs[j], e.Function))
		}
		outRows = append(outRows, row.Row{ID: uint64(i + 1), Data: data})
	}

	return Result{Schema: outSchema, Rows: outRows}, nil
}

func fold(acc *accumulator, e Expr, r row.Row, colIdx int) {
	acc.count++
	if e.Function == Count {
		return
	}
	if colIdx < 0 || colIdx >= len(r.Data) {
		return
	}
	v := r.Data[colIdx]
	if v.IsNull() {
		return
	}
	switch e.Function {
	case Sum, Avg:
		if n, ok := v.Numeric(); ok {
			acc.sum.Add(acc.sum, n)
		}
	case Min:
		if !acc.hasMM {
			acc.min, acc.hasMM = v, true
			return
		}
		if cmp, ok := value.Compare(v, acc.min); ok && cmp < 0 {
			acc.min = v
		}
	case Max:
		if !acc.hasMM {
			acc.max, acc.hasMM = v, true
			return
		}
		if cmp, ok := value.Compare(v, acc.max); ok && cmp > 0 {
			acc.max = v
		}
	}
}

func finalize(acc *accumulator, fn Function) value.Value {
	switch fn {
	case Count:
		return value.Integer(acc.count)
	case Sum:
		f, _ := acc.sum.Float64()
		return value.Float(f)
	case Avg:
		if acc.count == 0 {
			return value.Null()
		}
		avg := new(big.Rat).Quo(acc.sum, new(big.Rat).SetInt64(acc.count))
		f, _ := avg.Float64()
		return value.Float(f)
	case Min:
		if !acc.hasMM {
			return value.Null()
		}
		return acc.min
	case Max:
		if !acc.hasMM {
			return value.Null()
		}
		return acc.max
	default:
		return value.Null()
	}
}

func outputType(fn Function) row.DataType {
	if fn == Count {
		return row.TypeInteger
	}
	return row.TypeFloat
}

// reprKey renders a group-by tuple into a string that is injective across
// distinct value tuples, grounded on join.go's compositeRepr.
func reprKey(vals []value.Value) string {
	var b strings.Builder
	for _, v := range vals {
		b.WriteByte(byte(v.Kind()))
		b.WriteByte(0)
		b.WriteString(reprOf(v))
		b.WriteByte(0x1f)
	}
	return b.String()
}

func reprOf(v value.Value) string {
	switch v.Kind() {
	case value.KindBinary, value.KindUUID:
		b, _ := v.AsBytes()
		return fmt.Sprintf("%x", b)
	case value.KindString, value.KindText, value.KindDecimal, value.KindJSON, value.KindChar:
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
