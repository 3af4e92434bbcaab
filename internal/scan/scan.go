// Package scan implements the read operator (§4.7): a sequential scan with
// a bounded read-ahead buffer, and a registry-driven parallel scan that
// partitions leaves across workers with shared early-termination state. A
// scan composes an optional predicate, an optional projection, and
// optional sort/offset/limit post-processing.
package scan

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bambang-db/bambang/internal/page"
	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

// Reader is the capability scan needs from the page manager: leaf lookup,
// header-free page reads, leaf-chain traversal, and registry access.
// *pager.Pager satisfies this structurally.
type Reader interface {
	FindLeftmostLeaf(root uint64) (uint64, error)
	ReadPage(id uint64) (*page.Page, error)
	ReadLeafChain(start uint64, max int) ([]*page.Page, error)
	GetAllLeafPageIDs() ([]uint64, error)
}

// SortKey orders results by a resolved column index.
type SortKey struct {
	ColumnIndex int
	Descending  bool
}

// Options configures a scan. Predicate, Projection and Sort are already
// resolved to column indices, so Sequential and Parallel never read
// Schema; it may be left nil.
type Options struct {
	Schema     *row.Schema
	Predicate  *predicate.Compiled
	Projection []int // column indices to keep, in order; nil keeps all
	Sort       []SortKey
	Offset     int
	Limit      int // 0 means unbounded

	ReadAheadSize int // leaves prefetched per sequential batch, default 4
	Parallel      bool
	Workers       int // default 4 when Parallel is set
}

// Result carries the matched rows plus prefetch/partition statistics
// useful for observability and tests.
type Result struct {
	Rows           []row.Row
	LeavesVisited  int
	RowsVisited    int
	PrefetchBatches int
}

// Sequential walks the leaf chain from root's leftmost leaf, fetching
// ReadAheadSize leaves at a time via ReadLeafChain, applying the predicate
// and projection per row, then sort/offset/limit over the full result.
func Sequential(r Reader, root uint64, opts Options) (Result, error) {
	readAhead := opts.ReadAheadSize
	if readAhead <= 0 {
		readAhead = 4
	}

	start, err := r.FindLeftmostLeaf(root)
	if err != nil {
		return Result{}, err
	}

	var res Result
	cursor := start
	for cursor != page.NoPage {
		batch, err := r.ReadLeafChain(cursor, readAhead)
		if err != nil {
			return Result{}, err
		}
		if len(batch) == 0 {
			break
		}
		res.PrefetchBatches++
		for _, leaf := range batch {
			res.LeavesVisited++
			for _, v := range leaf.Values {
				res.RowsVisited++
				if opts.Predicate != nil && !opts.Predicate.Eval(v) {
					continue
				}
				res.Rows = append(res.Rows, project(v, opts.Projection))
				if earlyTermination(opts, len(res.Rows)) {
					return finalize(res, opts), nil
				}
			}
		}
		last := batch[len(batch)-1]
		cursor = last.NextLeafPageID
	}
	return finalize(res, opts), nil
}

// earlyTermination reports whether enough rows have already matched to
// stop scanning, valid only when there is no sort (a sort needs the full
// candidate set before it can honor limit/offset).
func earlyTermination(opts Options, matched int) bool {
	if len(opts.Sort) != 0 || opts.Limit <= 0 {
		return false
	}
	return matched >= opts.Offset+opts.Limit
}

// Parallel partitions the leaf registry across Workers goroutines, each
// scanning its own disjoint batch, sharing an atomic matched-row counter
// and stop flag so every worker can abandon early once Limit (when sort
// is absent) is satisfied.
func Parallel(r Reader, root uint64, opts Options) (Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	ids, err := r.GetAllLeafPageIDs()
	if err != nil {
		return Result{}, err
	}
	if len(ids) == 0 {
		return Result{}, nil
	}

	batchSize := (len(ids) + workers - 1) / workers
	var (
		mu      sync.Mutex
		matched int64
		stop    int32
		wg      sync.WaitGroup
		results []row.Row
		leaves  int64
		visited int64
	)

	earlyTerminate := len(opts.Sort) == 0 && opts.Limit > 0
	target := int64(opts.Offset + opts.Limit)

	for w := 0; w < workers; w++ {
		lo := w * batchSize
		if lo >= len(ids) {
			break
		}
		hi := lo + batchSize
		if hi > len(ids) {
			hi = len(ids)
		}
		batch := ids[lo:hi]

		wg.Add(1)
		go func(batch []uint64) {
			defer wg.Done()
			var local []row.Row
			for _, id := range batch {
				if earlyTerminate && atomic.LoadInt32(&stop) != 0 {
					break
				}
				pg, err := r.ReadPage(id)
				if err != nil {
					return
				}
				atomic.AddInt64(&leaves, 1)
				for _, v := range pg.Values {
					atomic.AddInt64(&visited, 1)
					if opts.Predicate != nil && !opts.Predicate.Eval(v) {
						continue
					}
					local = append(local, project(v, opts.Projection))
					if earlyTerminate && atomic.AddInt64(&matched, 1) >= target {
						atomic.StoreInt32(&stop, 1)
					}
				}
			}
			if len(local) > 0 {
				mu.Lock()
				results = append(results, local...)
				mu.Unlock()
			}
		}(batch)
	}
	wg.Wait()

	res := Result{
		Rows:          results,
		LeavesVisited: int(leaves),
		RowsVisited:   int(visited),
	}
	return finalize(res, opts), nil
}

func project(v row.Row, indices []int) row.Row {
	if indices == nil {
		return v
	}
	return row.Project(v, indices)
}

// finalize applies sort, then offset, then limit, in that order.
func finalize(res Result, opts Options) Result {
	if len(opts.Sort) > 0 {
		sort.SliceStable(res.Rows, func(i, j int) bool {
			for _, k := range opts.Sort {
				a, b := colOrNull(res.Rows[i], k.ColumnIndex), colOrNull(res.Rows[j], k.ColumnIndex)
				cmp, ok := value.Compare(a, b)
				if !ok || cmp == 0 {
					continue
				}
				if k.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(res.Rows) {
		start = len(res.Rows)
	}
	end := len(res.Rows)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	res.Rows = res.Rows[start:end]
	return res
}

func colOrNull(r row.Row, idx int) value.Value {
	if idx < 0 || idx >= len(r.Data) {
		return value.Null()
	}
	return r.Data[idx]
}
