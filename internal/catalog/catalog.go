// Package catalog provides the system catalog: thread-safe bookkeeping
// mapping table names to their data file, root page id, and row.Schema.
// Adapted from the teacher's in-memory introspection catalog, narrowed to
// what the storage core itself needs to open and address a table's tree.
package catalog

import (
	"sync"
	"time"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/row"
)

// TableEntry is one table's catalog record.
type TableEntry struct {
	Name      string
	DataPath  string // data file path, passed to pager.Open
	RootPage  uint64
	Schema    *row.Schema
	RowCount  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager is a thread-safe registry of table entries, keyed by name.
type Manager struct {
	mu     sync.RWMutex
	tables map[string]*TableEntry
}

// NewManager allocates an empty Manager.
func NewManager() *Manager {
	return &Manager{tables: make(map[string]*TableEntry)}
}

// Register adds a new table entry. Returns KindDuplicateKey-flavored
// InvalidOperation if name is already registered.
func (m *Manager) Register(name, dataPath string, rootPage uint64, schema *row.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[name]; exists {
		return dberrors.InvalidOperation("catalog: table %q already registered", name)
	}
	now := time.Now()
	m.tables[name] = &TableEntry{
		Name:      name,
		DataPath:  dataPath,
		RootPage:  rootPage,
		Schema:    schema,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Get returns the entry for name, or KindNotFound.
func (m *Manager) Get(name string) (*TableEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[name]
	if !ok {
		return nil, dberrors.NotFound("catalog: unknown table %q", name)
	}
	return t, nil
}

// UpdateRoot records a new root page id for name, e.g. after a split
// promotes a new root or a truncate allocates a fresh one.
func (m *Manager) UpdateRoot(name string, newRoot uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return dberrors.NotFound("catalog: unknown table %q", name)
	}
	t.RootPage = newRoot
	t.UpdatedAt = time.Now()
	return nil
}

// SetRowCount updates the cached row count used for introspection and
// optimizer cardinality estimates.
func (m *Manager) SetRowCount(name string, count int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return dberrors.NotFound("catalog: unknown table %q", name)
	}
	t.RowCount = count
	t.UpdatedAt = time.Now()
	return nil
}

// Drop removes a table entry entirely.
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[name]; !ok {
		return dberrors.NotFound("catalog: unknown table %q", name)
	}
	delete(m.tables, name)
	return nil
}

// List returns every registered table entry in no particular order.
func (m *Manager) List() []*TableEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*TableEntry, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	return out
}
