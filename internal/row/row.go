// Package row defines the clustered row representation (§3 Row) and the
// external schema used to interpret it. Rows carry no schema of their own;
// every operator that needs column names or types is handed a Schema.
package row

import (
	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/value"
)

// Row is the unit stored at a leaf: a unique id (also the tree key) plus an
// ordered tuple of column values.
type Row struct {
	ID   uint64
	Data []value.Value
}

// Clone returns a deep-enough copy safe to mutate independently (Value
// itself is immutable, so this only copies the slice header).
func (r Row) Clone() Row {
	data := make([]value.Value, len(r.Data))
	copy(data, r.Data)
	return Row{ID: r.ID, Data: data}
}

// DataType names the declared type of a Column for introspection and the
// SQL front end; the storage core itself only cares about value.Kind at
// runtime, but a Column's DataType constrains which Kind a value may take.
type DataType string

const (
	TypeBoolean   DataType = "BOOLEAN"
	TypeTinyInt   DataType = "TINYINT"
	TypeSmallInt  DataType = "SMALLINT"
	TypeInteger   DataType = "INTEGER"
	TypeBigInt    DataType = "BIGINT"
	TypeFloat     DataType = "FLOAT"
	TypeDecimal   DataType = "DECIMAL"
	TypeString    DataType = "STRING"
	TypeText      DataType = "TEXT"
	TypeChar      DataType = "CHAR"
	TypeBinary    DataType = "BINARY"
	TypeDate      DataType = "DATE"
	TypeTime      DataType = "TIME"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeJSON      DataType = "JSON"
	TypeUUID      DataType = "UUID"
)

// Column describes one column of a Schema.
type Column struct {
	Name       string
	DataType   DataType
	Nullable   bool
	PrimaryKey bool
}

// Schema is the ordered column list governing how a table's rows should be
// interpreted, plus a name→index map resolved once and reused by every
// operator (projection, predicate evaluation, join key extraction).
type Schema struct {
	Columns []Column
	index   map[string]int
}

// NewSchema builds a Schema and its name→index map.
func NewSchema(cols []Column) *Schema {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name] = i
	}
	return &Schema{Columns: cols, index: idx}
}

// IndexOf resolves a column name to its position, or -1 if unknown.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// ResolveIndices resolves a list of column names to indices once, returning
// an InvalidInput error naming the first unresolved column.
func (s *Schema) ResolveIndices(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		idx := s.IndexOf(n)
		if idx < 0 {
			return nil, dberrors.InvalidInput("unknown column %q", n)
		}
		out[i] = idx
	}
	return out, nil
}

// Project returns a new row containing only the given column indices, in
// order. Used by the scan operator after predicate evaluation.
func Project(r Row, indices []int) Row {
	data := make([]value.Value, len(indices))
	for i, idx := range indices {
		if idx >= 0 && idx < len(r.Data) {
			data[i] = r.Data[idx]
		}
	}
	return Row{ID: r.ID, Data: data}
}

// Validate checks that r's column count matches the schema; a full type
// check is the caller's responsibility since Value carries its own Kind.
func Validate(s *Schema, r Row) error {
	if len(r.Data) != len(s.Columns) {
		return dberrors.InvalidData("row %d has %d columns, schema declares %d", r.ID, len(r.Data), len(s.Columns))
	}
	return nil
}
