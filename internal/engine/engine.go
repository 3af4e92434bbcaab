// Package engine is the plan driver sketched in §4.10/§6: it owns one
// pager per table, the shared catalog, and the maintenance scheduler, and
// lowers the operations a LogicalPlan names (TableScan, Join, Insert,
// Update, Delete, CreateTable, DropTable) into calls against the storage
// core (pager, btree, scan, join, predicate). Nothing below this package
// is aware that a SQL front end or optimizer exists above it.
package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/bambang-db/bambang/internal/btree"
	"github.com/bambang-db/bambang/internal/catalog"
	"github.com/bambang-db/bambang/internal/config"
	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/join"
	"github.com/bambang-db/bambang/internal/maintenance"
	"github.com/bambang-db/bambang/internal/pager"
	"github.com/bambang-db/bambang/internal/plan"
	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/scan"
)

// Engine wires together one open pager per table, the shared catalog, and
// a background maintenance scheduler.
type Engine struct {
	cfg config.Config
	cat *catalog.Manager

	mu     sync.RWMutex
	pagers map[string]*pager.Pager

	sched *maintenance.Scheduler
}

// Open creates the data directory if needed and returns a ready Engine
// with no tables open; call CreateTable to populate it.
func Open(cfg config.Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, dberrors.IOError(err, "engine: create data dir %s", cfg.DataDir)
	}
	e := &Engine{
		cfg:    cfg,
		cat:    catalog.NewManager(),
		pagers: make(map[string]*pager.Pager),
	}
	e.sched = maintenance.NewScheduler(e.cat, e.lookupPager, 0)
	if cfg.MaintInterval > 0 {
		if err := e.sched.ScheduleRegistryValidation(cfg.MaintInterval); err != nil {
			return nil, err
		}
		e.sched.Start()
	}
	return e, nil
}

func (e *Engine) lookupPager(table string) (maintenance.PagerHandle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pagers[table]
	if !ok {
		return nil, dberrors.NotFound("engine: table %q not open", table)
	}
	return p, nil
}

// Close stops the maintenance scheduler and closes every open table.
func (e *Engine) Close() error {
	e.sched.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, p := range e.pagers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CreateTable opens (creating if necessary) the data file for name and
// registers it in the catalog with the fresh root the pager writes on
// first open.
func (e *Engine) CreateTable(name string, schema *row.Schema) error {
	dataPath := filepath.Join(e.cfg.DataDir, name+".db")
	p, err := pager.Open(pager.Config{
		Path:          dataPath,
		PageSize:      e.cfg.PageSize,
		BufferPoolMax: e.cfg.BufferPool,
	})
	if err != nil {
		return err
	}
	if err := e.cat.Register(name, dataPath, pager.RootCandidate, schema); err != nil {
		p.Close()
		return err
	}
	e.mu.Lock()
	e.pagers[name] = p
	e.mu.Unlock()
	return nil
}

// DropTable closes a table's pager, removes its catalog entry, and deletes
// its data file and leaf registry file from the data directory.
func (e *Engine) DropTable(name string) error {
	e.mu.Lock()
	p, ok := e.pagers[name]
	if ok {
		delete(e.pagers, name)
	}
	e.mu.Unlock()
	if ok {
		p.Close()
	}
	if err := e.cat.Drop(name); err != nil {
		return err
	}
	dataPath := filepath.Join(e.cfg.DataDir, name+".db")
	for _, path := range []string{dataPath, dataPath + ".registry"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return dberrors.IOError(err, "engine: remove %s", path)
		}
	}
	return nil
}

func (e *Engine) tablePager(name string) (*pager.Pager, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pagers[name]
	if !ok {
		return nil, dberrors.NotFound("engine: table %q not open", name)
	}
	return p, nil
}

// Insert adds r to table, updating the catalog's root id if the insert
// caused a split that promoted a new root.
func (e *Engine) Insert(table string, r row.Row) error {
	p, err := e.tablePager(table)
	if err != nil {
		return err
	}
	entry, err := e.cat.Get(table)
	if err != nil {
		return err
	}
	newRoot, err := btree.Insert(p, entry.RootPage, r)
	if err != nil {
		return err
	}
	if newRoot != entry.RootPage {
		if err := e.cat.UpdateRoot(table, newRoot); err != nil {
			return err
		}
	}
	return e.cat.SetRowCount(table, entry.RowCount+1)
}

// BatchInsert inserts every row in rows, threading the root id forward.
func (e *Engine) BatchInsert(table string, rows []row.Row) (int, error) {
	p, err := e.tablePager(table)
	if err != nil {
		return 0, err
	}
	entry, err := e.cat.Get(table)
	if err != nil {
		return 0, err
	}
	newRoot, n, err := btree.BatchInsert(p, entry.RootPage, rows)
	if newRoot != entry.RootPage {
		if uerr := e.cat.UpdateRoot(table, newRoot); uerr != nil && err == nil {
			err = uerr
		}
	}
	if n > 0 {
		e.cat.SetRowCount(table, entry.RowCount+int64(n))
	}
	return n, err
}

// Scan runs scan.Sequential or scan.Parallel (per opts.Parallel) over
// table.
func (e *Engine) Scan(table string, opts scan.Options) (scan.Result, error) {
	p, err := e.tablePager(table)
	if err != nil {
		return scan.Result{}, err
	}
	entry, err := e.cat.Get(table)
	if err != nil {
		return scan.Result{}, err
	}
	if opts.Schema == nil {
		opts.Schema = entry.Schema
	}
	if opts.Parallel {
		return scan.Parallel(p, entry.RootPage, opts)
	}
	return scan.Sequential(p, entry.RootPage, opts)
}

// DeleteByPredicate removes every row in table matching pred.
func (e *Engine) DeleteByPredicate(table string, pred *predicate.Expr) (int, error) {
	p, err := e.tablePager(table)
	if err != nil {
		return 0, err
	}
	entry, err := e.cat.Get(table)
	if err != nil {
		return 0, err
	}
	compiled, err := predicate.Compile(pred, entry.Schema)
	if err != nil {
		return 0, err
	}
	leafIDs, err := p.GetAllLeafPageIDs()
	if err != nil {
		return 0, err
	}
	newRoot, deleted, err := btree.DeletePredicate(p, entry.RootPage, leafIDs, compiled)
	if newRoot != entry.RootPage {
		if uerr := e.cat.UpdateRoot(table, newRoot); uerr != nil && err == nil {
			err = uerr
		}
	}
	if deleted > 0 {
		e.cat.SetRowCount(table, entry.RowCount-int64(deleted))
	}
	return deleted, err
}

// UpdateByPredicate rewrites every row in table matching pred via
// mutateFn.
func (e *Engine) UpdateByPredicate(table string, pred *predicate.Expr, mutateFn func(row.Row) row.Row) (int, error) {
	p, err := e.tablePager(table)
	if err != nil {
		return 0, err
	}
	entry, err := e.cat.Get(table)
	if err != nil {
		return 0, err
	}
	compiled, err := predicate.Compile(pred, entry.Schema)
	if err != nil {
		return 0, err
	}
	leafIDs, err := p.GetAllLeafPageIDs()
	if err != nil {
		return 0, err
	}
	return btree.UpdatePredicate(p, leafIDs, compiled, mutateFn)
}

// Join scans leftTable and rightTable fully (subject to each Options'
// predicate/projection) and runs a hash join over the materialized rows.
func (e *Engine) Join(leftTable string, leftOpts scan.Options, rightTable string, rightOpts scan.Options, conditions []join.Condition, joinType join.Type) (join.Result, error) {
	leftRes, err := e.Scan(leftTable, leftOpts)
	if err != nil {
		return join.Result{}, err
	}
	rightRes, err := e.Scan(rightTable, rightOpts)
	if err != nil {
		return join.Result{}, err
	}
	return join.Run(
		join.Input{Schema: leftOpts.Schema, Rows: leftRes.Rows},
		join.Input{Schema: rightOpts.Schema, Rows: rightRes.Rows},
		conditions, joinType,
	)
}

// Execute lowers a handful of LogicalPlan leaf kinds directly into engine
// calls; it is a minimal driver for demonstration and tests, not a
// general plan interpreter (a full driver belongs to the SQL front end
// layer, outside this package's scope).
func (e *Engine) Execute(n *plan.Node) (scan.Result, error) {
	switch n.Kind {
	case plan.KindTableScan:
		schema := n.Schema()
		compiled, err := predicate.Compile(firstFilter(n.Filters), schema)
		if err != nil {
			return scan.Result{}, err
		}
		opts := scan.Options{Predicate: compiled, Schema: schema}
		return e.Scan(n.Table, opts)
	default:
		return scan.Result{}, dberrors.InvalidOperation("engine: unsupported plan node kind for direct execution")
	}
}

func firstFilter(filters []*predicate.Expr) *predicate.Expr {
	if len(filters) == 0 {
		return nil
	}
	if len(filters) == 1 {
		return filters[0]
	}
	return predicate.And(filters...)
}
