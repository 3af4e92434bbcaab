// Package pager implements the page manager (§4.5): it owns the data file
// and the buffer pool, hands out monotonically increasing page ids, and
// exposes header-only, batched, and leaf-chain read paths on top of plain
// paged read/write. It also owns the adjacent leaf registry file and the
// read-only descent helpers (find_leaf_for_key, find_leftmost_leaf) that
// both the tree operations and the scan operator need.
package pager

import (
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bambang-db/bambang/internal/btree"
	"github.com/bambang-db/bambang/internal/bufferpool"
	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/page"
	"github.com/bambang-db/bambang/internal/registry"
)

// errFileLocked is the sentinel lockFile/unlockFile (lock_unix.go,
// lock_windows.go) use to report that another process already holds the
// data file's exclusive lock.
var errFileLocked = errors.New("pager: data file locked by another process")

// Config configures a Pager.
type Config struct {
	Path          string // data file path
	PageSize      int    // defaults to page.DefaultPageSize
	BufferPoolMax int    // max cached pages, defaults to 1024
}

// Pager owns (file, buffer pool, next_page_id, leaf registry). A single
// Pager must not be shared by more than one concurrent writer (§5).
type Pager struct {
	fileMu sync.Mutex // guards seek+read/write on the single file cursor
	file   *os.File
	path   string

	pageSize int
	pool     *bufferpool.Pool
	reg      *registry.Registry

	nextPageID uint64 // atomically incremented by AllocatePage
}

// Open opens or creates the data file at cfg.Path and its adjacent
// `${path}.registry` file. For a brand new file the root leaf takes page
// id 1, the first id AllocatePage hands out;
// for an existing file it resumes from the file's high-water mark so a
// restart never reissues a page id already on disk.
func Open(cfg Config) (*Pager, error) {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = page.DefaultPageSize
	}
	if pageSize < page.MinPageSize || pageSize > page.MaxPageSize {
		return nil, dberrors.InvalidInput("pager: page size %d outside [%d,%d]", pageSize, page.MinPageSize, page.MaxPageSize)
	}
	bufMax := cfg.BufferPoolMax
	if bufMax == 0 {
		bufMax = 1024
	}

	_, statErr := os.Stat(cfg.Path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberrors.IOError(err, "pager: open %s", cfg.Path)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		if err == errFileLocked {
			return nil, dberrors.Locked(cfg.Path)
		}
		return nil, dberrors.IOError(err, "pager: lock %s", cfg.Path)
	}

	reg, err := registry.Open(cfg.Path + ".registry")
	if err != nil {
		f.Close()
		return nil, err
	}

	p := &Pager{
		file:     f,
		path:     cfg.Path,
		pageSize: pageSize,
		pool:     bufferpool.New(bufMax),
		reg:      reg,
	}

	if isNew {
		p.nextPageID = 1
		root := page.NewLeaf(p.AllocatePage())
		if err := p.writeNewPage(root); err != nil {
			f.Close()
			return nil, err
		}
		if err := p.RegisterLeafPage(root.PageID); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, dberrors.IOError(err, "pager: stat")
		}
		highWater := uint64(info.Size() / int64(pageSize))
		if highWater < 1 {
			highWater = 1
		}
		p.nextPageID = highWater + 1
	}

	return p, nil
}

// Close releases the data file's lock and closes it along with the registry
// file.
func (p *Pager) Close() error {
	if err := p.reg.Close(); err != nil {
		unlockFile(p.file)
		p.file.Close()
		return err
	}
	unlockFile(p.file)
	return p.file.Close()
}

// PageSize returns the configured page size in bytes.
func (p *Pager) PageSize() int { return p.pageSize }

// RootCandidate is the page id written as the sole page of a freshly
// created or truncated data file.
const RootCandidate uint64 = 1

// AllocatePage atomically returns the next page id and post-increments the
// counter. The id is not yet backed by any on-disk content.
func (p *Pager) AllocatePage() uint64 {
	return atomic.AddUint64(&p.nextPageID, 1) - 1
}

// ReadPage returns a page by id, consulting the buffer pool first.
func (p *Pager) ReadPage(id uint64) (*page.Page, error) {
	if cached, ok := p.pool.Get(id); ok {
		return cached, nil
	}
	pg, err := p.readPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	p.pool.Put(id, pg)
	return pg, nil
}

func (p *Pager) readPageFromDisk(id uint64) (*page.Page, error) {
	buf := make([]byte, p.pageSize)
	off := int64(id) * int64(p.pageSize)

	p.fileMu.Lock()
	_, err := p.file.ReadAt(buf, off)
	p.fileMu.Unlock()
	if err != nil {
		return nil, dberrors.IOError(err, "pager: read page %d", id)
	}
	return page.Decode(buf)
}

// ReadPageHeader performs a header-only disk read: only the first
// page.HeaderSize bytes are fetched and only (page_id, is_leaf,
// next_leaf_page_id) are decoded. Satisfies registry.HeaderReader.
func (p *Pager) ReadPageHeader(id uint64) (page.Header, error) {
	buf := make([]byte, page.HeaderSize)
	off := int64(id) * int64(p.pageSize)

	p.fileMu.Lock()
	_, err := p.file.ReadAt(buf, off)
	p.fileMu.Unlock()
	if err != nil {
		return page.Header{}, dberrors.IOError(err, "pager: read header %d", id)
	}
	return page.DecodeHeader(buf)
}

// WritePage seeks, writes PAGE_SIZE bytes, and fsyncs before returning;
// the write is durable by the time WritePage returns (§4.5 ordering
// guarantee). The page is then placed in the pool as authoritative and its
// dirty flag is cleared.
func (p *Pager) WritePage(pg *page.Page) error {
	buf, err := page.Encode(pg, p.pageSize)
	if err != nil {
		return err
	}
	off := int64(pg.PageID) * int64(p.pageSize)

	p.fileMu.Lock()
	_, err = p.file.WriteAt(buf, off)
	if err == nil {
		err = p.file.Sync()
	}
	p.fileMu.Unlock()
	if err != nil {
		return dberrors.IOError(err, "pager: write page %d", pg.PageID)
	}

	pg.IsDirty = false
	p.pool.Put(pg.PageID, pg)
	p.pool.ClearDirty(pg.PageID)
	return nil
}

// writeNewPage is WritePage for a page that has never been on disk; it
// grows the file as a side effect of WriteAt past EOF.
func (p *Pager) writeNewPage(pg *page.Page) error { return p.WritePage(pg) }

// ReadPagesBatch partitions ids into cached/uncached, reads the uncached
// ones in ascending page-id order for sequential disk locality, and
// returns results in the caller's original order.
func (p *Pager) ReadPagesBatch(ids []uint64) ([]*page.Page, error) {
	out := make([]*page.Page, len(ids))
	var missIdx []int
	for i, id := range ids {
		if cached, ok := p.pool.Get(id); ok {
			out[i] = cached
		} else {
			missIdx = append(missIdx, i)
		}
	}
	sort.Slice(missIdx, func(a, b int) bool { return ids[missIdx[a]] < ids[missIdx[b]] })
	for _, i := range missIdx {
		pg, err := p.readPageFromDisk(ids[i])
		if err != nil {
			return nil, err
		}
		p.pool.Put(ids[i], pg)
		out[i] = pg
	}
	return out, nil
}

// ReadSequentialPages follows next_leaf_page_id starting at start for up
// to count leaves, reading each through the buffer pool.
func (p *Pager) ReadSequentialPages(start uint64, count int) ([]*page.Page, error) {
	return p.readLeafChain(start, count)
}

// ReadLeafChain follows next_leaf_page_id starting at start for up to max
// leaves (max<=0 means unbounded).
func (p *Pager) ReadLeafChain(start uint64, max int) ([]*page.Page, error) {
	return p.readLeafChain(start, max)
}

func (p *Pager) readLeafChain(start uint64, max int) ([]*page.Page, error) {
	var out []*page.Page
	id := start
	for id != page.NoPage {
		if max > 0 && len(out) >= max {
			break
		}
		pg, err := p.ReadPage(id)
		if err != nil {
			return nil, err
		}
		if !pg.IsLeaf {
			return nil, dberrors.InvalidOperation("pager: expected leaf page %d in chain", id)
		}
		out = append(out, pg)
		id = pg.NextLeafPageID
	}
	return out, nil
}

// Truncate clears the pool and dirty set, resets allocation to page 1,
// truncates the data file, writes a fresh empty-root leaf at the id
// AllocatePage hands out, and rebuilds the leaf registry so it lists only
// that root. Returns the new root page id; since allocation restarts at 1,
// it is RootCandidate.
func (p *Pager) Truncate() (uint64, error) {
	p.pool.ClearAll()

	p.fileMu.Lock()
	err := p.file.Truncate(0)
	p.fileMu.Unlock()
	if err != nil {
		return 0, dberrors.IOError(err, "pager: truncate data file")
	}

	atomic.StoreUint64(&p.nextPageID, 1)
	newRootID := p.AllocatePage()
	root := page.NewLeaf(newRootID)
	if err := p.WritePage(root); err != nil {
		return 0, err
	}
	if err := p.reg.Rebuild(p, newRootID); err != nil {
		return 0, err
	}
	return newRootID, nil
}

// ── Descent helpers (read-only; §4.6) ──────────────────────────────────

// FindLeafForKey descends from root choosing, at each internal node, the
// first child index i with key < keys[i], else the last child. Delegates
// to package btree, which owns the single definition of tree descent.
func (p *Pager) FindLeafForKey(root uint64, key uint64) (uint64, error) {
	return btree.FindLeafForKey(p, root, key)
}

// FindLeftmostLeaf descends from root always taking child 0.
func (p *Pager) FindLeftmostLeaf(root uint64) (uint64, error) {
	return btree.FindLeftmostLeaf(p, root)
}

// ── Leaf registry wrappers ─────────────────────────────────────────────

func (p *Pager) RegisterLeafPage(id uint64) error   { return p.reg.Add(id) }
func (p *Pager) UnregisterLeafPage(id uint64) error { _, err := p.reg.Remove(id); return err }
func (p *Pager) GetAllLeafPageIDs() ([]uint64, error) { return p.reg.GetAll() }
func (p *Pager) GetLeafPageIDBatch(start, size int) ([]uint64, error) {
	return p.reg.GetBatch(start, size)
}

// RebuildLeafRegistry traverses the leaf chain from root's leftmost leaf
// and overwrites the registry with the observed ids.
func (p *Pager) RebuildLeafRegistry(root uint64) error {
	leftmost, err := p.FindLeftmostLeaf(root)
	if err != nil {
		return err
	}
	return p.reg.Rebuild(p, leftmost)
}

// ValidateLeafRegistry reports whether the registry matches the leaf
// chain reachable from root.
func (p *Pager) ValidateLeafRegistry(root uint64) (bool, error) {
	leftmost, err := p.FindLeftmostLeaf(root)
	if err != nil {
		return false, err
	}
	return p.reg.Validate(p, leftmost)
}

// BufferPoolStats exposes the pool's occupancy for observability.
func (p *Pager) BufferPoolStats() bufferpool.Stats { return p.pool.Stats() }
