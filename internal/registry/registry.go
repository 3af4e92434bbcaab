// Package registry implements the leaf registry file (§4.4): a flat file
// listing every leaf page id currently on disk, so a parallel scan can
// partition work in O(1) instead of walking the leaf chain serially.
package registry

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/page"
)

// Magic is the sentinel at the start of a registry file (§6).
const Magic uint32 = 0xDEADBEEF

const headerSize = 4 + 8 // magic + count

// HeaderReader is the minimal capability Rebuild/Validate need: a
// header-only page read. *pager.Pager satisfies this structurally.
type HeaderReader interface {
	ReadPageHeader(id uint64) (page.Header, error)
}

// Registry manages the `${data_file}.registry` file adjacent to the data
// file. All operations are safe for concurrent use by a single writer and
// any number of readers (per the engine's single-writer assumption).
type Registry struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens or creates the registry file at path, writing a fresh empty
// header if the file did not already exist.
func Open(path string) (*Registry, error) {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberrors.IOError(err, "registry: open %s", path)
	}
	r := &Registry{path: path, file: f}
	if isNew {
		if err := r.writeAll(nil); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if _, err := r.GetAll(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return r, nil
}

// Close closes the underlying file.
func (r *Registry) Close() error { return r.file.Close() }

// Add appends id to the registry.
func (r *Registry) Add(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.readAllLocked()
	if err != nil {
		return err
	}
	ids = append(ids, id)
	return r.writeAllLocked(ids)
}

// Remove deletes id from the registry, rewriting the file. Returns whether
// a removal actually occurred.
func (r *Registry) Remove(id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.readAllLocked()
	if err != nil {
		return false, err
	}
	out := ids[:0]
	removed := false
	for _, existing := range ids {
		if existing == id && !removed {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if !removed {
		return false, nil
	}
	if err := r.writeAllLocked(out); err != nil {
		return false, err
	}
	return true, nil
}

// GetAll returns every registered leaf page id, verifying the file's magic.
func (r *Registry) GetAll() ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readAllLocked()
}

// GetBatch returns a random-access window [start, start+size) of the
// registered ids, used by parallel scan workers to fetch disjoint ranges
// without materializing the whole list per worker.
func (r *Registry) GetBatch(start, size int) ([]uint64, error) {
	all, err := r.GetAll()
	if err != nil {
		return nil, err
	}
	if start < 0 || start >= len(all) {
		return nil, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	out := make([]uint64, end-start)
	copy(out, all[start:end])
	return out, nil
}

// Rebuild traverses the leaf chain starting at leftmostLeafID (using
// header-only reads) and overwrites the registry with the observed ids, in
// chain order.
func (r *Registry) Rebuild(reader HeaderReader, leftmostLeafID uint64) error {
	ids, err := traverseLeafChain(reader, leftmostLeafID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAllLocked(ids)
}

// Validate reports whether GetAll() equals the set of ids reachable from
// leftmostLeafID via the leaf chain.
func (r *Registry) Validate(reader HeaderReader, leftmostLeafID uint64) (bool, error) {
	chain, err := traverseLeafChain(reader, leftmostLeafID)
	if err != nil {
		return false, err
	}
	all, err := r.GetAll()
	if err != nil {
		return false, err
	}
	if len(all) != len(chain) {
		return false, nil
	}
	seen := make(map[uint64]int, len(all))
	for _, id := range all {
		seen[id]++
	}
	for _, id := range chain {
		seen[id]--
	}
	for _, count := range seen {
		if count != 0 {
			return false, nil
		}
	}
	return true, nil
}

func traverseLeafChain(reader HeaderReader, leftmostLeafID uint64) ([]uint64, error) {
	var ids []uint64
	seen := make(map[uint64]bool)
	id := leftmostLeafID
	for id != page.NoPage {
		if seen[id] {
			return nil, dberrors.InvalidOperation("registry: leaf chain cycle detected at page %d", id)
		}
		seen[id] = true
		hdr, err := reader.ReadPageHeader(id)
		if err != nil {
			return nil, err
		}
		if !hdr.IsLeaf {
			return nil, dberrors.InvalidOperation("registry: expected leaf page %d, found internal", id)
		}
		ids = append(ids, hdr.PageID)
		id = hdr.NextLeafPageID
	}
	return ids, nil
}

// ── file I/O (mu must be held by caller of the *Locked variants) ──────

func (r *Registry) readAllLocked() ([]uint64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return nil, dberrors.IOError(err, "registry: stat")
	}
	if info.Size() == 0 {
		return nil, nil
	}
	buf := make([]byte, info.Size())
	if _, err := r.file.ReadAt(buf, 0); err != nil {
		return nil, dberrors.IOError(err, "registry: read")
	}
	if len(buf) < headerSize {
		return nil, dberrors.CorruptedData("registry: file shorter than header")
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, dberrors.CorruptedData("registry: bad magic 0x%08x", magic)
	}
	count := binary.LittleEndian.Uint64(buf[4:12])
	need := headerSize + int(count)*8
	if need > len(buf) {
		return nil, dberrors.CorruptedData("registry: declared count %d exceeds file size", count)
	}
	ids := make([]uint64, count)
	cursor := headerSize
	for i := uint64(0); i < count; i++ {
		ids[i] = binary.LittleEndian.Uint64(buf[cursor:])
		cursor += 8
	}
	return ids, nil
}

func (r *Registry) writeAll(ids []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAllLocked(ids)
}

func (r *Registry) writeAllLocked(ids []uint64) error {
	buf := make([]byte, headerSize+len(ids)*8)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(ids)))
	cursor := headerSize
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[cursor:], id)
		cursor += 8
	}
	if _, err := r.file.WriteAt(buf, 0); err != nil {
		return dberrors.IOError(err, "registry: write")
	}
	if err := r.file.Truncate(int64(len(buf))); err != nil {
		return dberrors.IOError(err, "registry: truncate")
	}
	return r.file.Sync()
}
