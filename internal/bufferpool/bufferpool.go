// Package bufferpool implements the bounded in-memory page cache (§4.3): an
// LRU-on-access cache of page_id → *page.Page with a separately-mutexed
// dirty set. Eviction is O(1) via a doubly linked list threaded through the
// cache entries. Lock order is always cache before dirty set, never the
// reverse.
package bufferpool

import (
	"sync"

	"github.com/bambang-db/bambang/internal/page"
)

type entry struct {
	id   uint64
	p    *page.Page
	prev *entry
	next *entry
}

// Pool is a thread-safe, bounded LRU page cache.
type Pool struct {
	cacheMu  sync.Mutex
	maxPages int
	byID     map[uint64]*entry
	head     *entry // most recently used
	tail     *entry // least recently used

	dirtyMu sync.Mutex
	dirty   map[uint64]*page.Page
}

// New creates a Pool bounded to maxPages entries (minimum 1).
func New(maxPages int) *Pool {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Pool{
		maxPages: maxPages,
		byID:     make(map[uint64]*entry, maxPages),
		dirty:    make(map[uint64]*page.Page),
	}
}

// Get returns the cached page for id, promoting it to most-recently-used.
func (pl *Pool) Get(id uint64) (*page.Page, bool) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()
	e, ok := pl.byID[id]
	if !ok {
		return nil, false
	}
	pl.moveToFront(e)
	return e.p, true
}

// Put inserts or updates the cached page for id, promoting it to MRU and
// evicting from the LRU tail if the cache is full. If p.IsDirty, id is
// also recorded in the dirty set.
func (pl *Pool) Put(id uint64, p *page.Page) {
	pl.cacheMu.Lock()
	if e, ok := pl.byID[id]; ok {
		e.p = p
		pl.moveToFront(e)
	} else {
		for len(pl.byID) >= pl.maxPages {
			if !pl.evictOldest() {
				break
			}
		}
		e := &entry{id: id, p: p}
		pl.byID[id] = e
		pl.pushFront(e)
	}
	pl.cacheMu.Unlock()

	if p.IsDirty {
		pl.dirtyMu.Lock()
		pl.dirty[id] = p
		pl.dirtyMu.Unlock()
	}
}

// evictOldest removes the LRU-tail entry. Must be called with cacheMu held.
// Returns false if the cache is empty.
func (pl *Pool) evictOldest() bool {
	if pl.tail == nil {
		return false
	}
	e := pl.tail
	pl.unlink(e)
	delete(pl.byID, e.id)
	return true
}

// MarkDirty records id as dirty, using the current cached page if present.
func (pl *Pool) MarkDirty(id uint64) {
	pl.cacheMu.Lock()
	e, ok := pl.byID[id]
	var p *page.Page
	if ok {
		e.p.IsDirty = true
		p = e.p
	}
	pl.cacheMu.Unlock()
	if !ok {
		return
	}
	pl.dirtyMu.Lock()
	pl.dirty[id] = p
	pl.dirtyMu.Unlock()
}

// ClearDirty removes id from the dirty set (and, if still cached, clears
// its in-memory dirty flag) without affecting cache membership.
func (pl *Pool) ClearDirty(id uint64) {
	pl.cacheMu.Lock()
	if e, ok := pl.byID[id]; ok {
		e.p.IsDirty = false
	}
	pl.cacheMu.Unlock()

	pl.dirtyMu.Lock()
	delete(pl.dirty, id)
	pl.dirtyMu.Unlock()
}

// GetDirtyPages returns a snapshot of every page currently marked dirty.
func (pl *Pool) GetDirtyPages() []*page.Page {
	pl.dirtyMu.Lock()
	defer pl.dirtyMu.Unlock()
	out := make([]*page.Page, 0, len(pl.dirty))
	for _, p := range pl.dirty {
		out = append(out, p)
	}
	return out
}

// IsDirty reports whether id is currently in the dirty set.
func (pl *Pool) IsDirty(id uint64) bool {
	pl.dirtyMu.Lock()
	defer pl.dirtyMu.Unlock()
	_, ok := pl.dirty[id]
	return ok
}

// ContainsPage reports whether id is currently cached.
func (pl *Pool) ContainsPage(id uint64) bool {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()
	_, ok := pl.byID[id]
	return ok
}

// ClearAll empties both the cache and the dirty set, e.g. after truncate.
func (pl *Pool) ClearAll() {
	pl.cacheMu.Lock()
	pl.byID = make(map[uint64]*entry, pl.maxPages)
	pl.head = nil
	pl.tail = nil
	pl.cacheMu.Unlock()

	pl.dirtyMu.Lock()
	pl.dirty = make(map[uint64]*page.Page)
	pl.dirtyMu.Unlock()
}

// Stats reports point-in-time cache occupancy.
type Stats struct {
	Size        int
	DirtyCount  int
	MaxPages    int
	Utilization float64
}

func (pl *Pool) Stats() Stats {
	pl.cacheMu.Lock()
	size := len(pl.byID)
	pl.cacheMu.Unlock()

	pl.dirtyMu.Lock()
	dirty := len(pl.dirty)
	pl.dirtyMu.Unlock()

	util := 0.0
	if pl.maxPages > 0 {
		util = float64(size) / float64(pl.maxPages)
	}
	return Stats{Size: size, DirtyCount: dirty, MaxPages: pl.maxPages, Utilization: util}
}

// ── LRU list helpers (cacheMu must be held) ────────────────────────────

func (pl *Pool) pushFront(e *entry) {
	e.prev = nil
	e.next = pl.head
	if pl.head != nil {
		pl.head.prev = e
	}
	pl.head = e
	if pl.tail == nil {
		pl.tail = e
	}
}

func (pl *Pool) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		pl.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		pl.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (pl *Pool) moveToFront(e *entry) {
	if pl.head == e {
		return
	}
	pl.unlink(e)
	pl.pushFront(e)
}
