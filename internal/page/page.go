// Package page implements the fixed-size on-disk page frame (§4.2): a
// magic-prefixed header, a sorted key array, and either row values (leaf)
// or child page ids (internal), zero-padded to a configured PAGE_SIZE.
package page

import (
	"encoding/binary"

	"github.com/bambang-db/bambang/internal/dberrors"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/value"
)

const (
	// Magic is the sentinel written at the start of every page frame.
	Magic uint32 = 0xB7EE5EAF

	// DefaultPageSize is used when a caller does not specify one.
	DefaultPageSize = 4096
	MinPageSize     = 2048
	MaxPageSize     = 16384

	// HeaderSize is the number of bytes occupied by the fixed-width header
	// fields (magic, page id, is_leaf, parent id, next-leaf id), padded so
	// the variable-width body begins on a 4-byte-aligned offset.
	HeaderSize = 32

	// NoPage is the sentinel page id meaning "no page" (page 0 is reserved
	// and never allocated to tree content).
	NoPage uint64 = 0
)

const (
	offMagic    = 0
	offPageID   = 4
	offIsLeaf   = 12
	offParent   = 13
	offNextLeaf = 21
	offKeyCount = 32
	offBody     = 36
)

// Page is the in-memory representation of one B+ tree node.
type Page struct {
	PageID         uint64
	IsLeaf         bool
	ParentPageID   uint64 // NoPage means root (no parent)
	Keys           []uint64
	Values         []row.Row // leaf only; Values[i].ID == Keys[i]
	ChildPageIDs   []uint64  // internal only; len == len(Keys)+1
	NextLeafPageID uint64    // leaf only; NoPage means last leaf

	// IsDirty is transient: never serialized, reset to false on Decode.
	IsDirty bool
}

// NewLeaf constructs an empty leaf page.
func NewLeaf(id uint64) *Page {
	return &Page{PageID: id, IsLeaf: true}
}

// NewInternal constructs an empty internal page.
func NewInternal(id uint64) *Page {
	return &Page{PageID: id, IsLeaf: false}
}

// HasParent reports whether p has a parent (p is not the root).
func (p *Page) HasParent() bool { return p.ParentPageID != NoPage }

// Encode serializes p into a zero-padded frame of exactly pageSize bytes.
// Returns InvalidOperation if the encoded content does not fit.
func Encode(p *Page, pageSize int) ([]byte, error) {
	buf := make([]byte, offBody, pageSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint64(buf[offPageID:], p.PageID)
	if p.IsLeaf {
		buf[offIsLeaf] = 1
	}
	binary.LittleEndian.PutUint64(buf[offParent:], p.ParentPageID)
	binary.LittleEndian.PutUint64(buf[offNextLeaf:], p.NextLeafPageID)
	binary.LittleEndian.PutUint32(buf[offKeyCount:], uint32(len(p.Keys)))

	for _, k := range p.Keys {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], k)
		buf = append(buf, tmp[:]...)
	}

	if p.IsLeaf {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(p.Values)))
		buf = append(buf, tmp[:]...)
		for _, r := range p.Values {
			var idb [8]byte
			binary.LittleEndian.PutUint64(idb[:], r.ID)
			buf = append(buf, idb[:]...)
			var cc [4]byte
			binary.LittleEndian.PutUint32(cc[:], uint32(len(r.Data)))
			buf = append(buf, cc[:]...)
			for _, v := range r.Data {
				buf = append(buf, value.Encode(v)...)
			}
		}
	} else {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(p.ChildPageIDs)))
		buf = append(buf, tmp[:]...)
		for _, c := range p.ChildPageIDs {
			var cb [8]byte
			binary.LittleEndian.PutUint64(cb[:], c)
			buf = append(buf, cb[:]...)
		}
	}

	if len(buf) > pageSize {
		return nil, dberrors.InvalidOperation("page %d: encoded size %d exceeds page size %d", p.PageID, len(buf), pageSize)
	}
	out := make([]byte, pageSize)
	copy(out, buf)
	return out, nil
}

// Decode parses a full pageSize-byte frame into a Page. IsDirty is always
// false on a freshly decoded page.
func Decode(buf []byte) (*Page, error) {
	if len(buf) < offBody {
		return nil, dberrors.CorruptedData("page: buffer shorter than header (%d bytes)", len(buf))
	}
	magic := binary.LittleEndian.Uint32(buf[offMagic:])
	if magic != Magic {
		return nil, dberrors.CorruptedData("page: bad magic 0x%08x", magic)
	}
	p := &Page{
		PageID:         binary.LittleEndian.Uint64(buf[offPageID:]),
		IsLeaf:         buf[offIsLeaf] != 0,
		ParentPageID:   binary.LittleEndian.Uint64(buf[offParent:]),
		NextLeafPageID: binary.LittleEndian.Uint64(buf[offNextLeaf:]),
	}
	keyCount := int(binary.LittleEndian.Uint32(buf[offKeyCount:]))
	if keyCount < 0 {
		return nil, dberrors.CorruptedData("page %d: negative key count", p.PageID)
	}
	cursor := offBody
	need := cursor + keyCount*8
	if need > len(buf) {
		return nil, dberrors.CorruptedData("page %d: key array exceeds buffer", p.PageID)
	}
	p.Keys = make([]uint64, keyCount)
	for i := 0; i < keyCount; i++ {
		p.Keys[i] = binary.LittleEndian.Uint64(buf[cursor:])
		cursor += 8
	}

	if p.IsLeaf {
		if cursor+4 > len(buf) {
			return nil, dberrors.CorruptedData("page %d: truncated value count", p.PageID)
		}
		valCount := int(binary.LittleEndian.Uint32(buf[cursor:]))
		cursor += 4
		p.Values = make([]row.Row, valCount)
		for i := 0; i < valCount; i++ {
			if cursor+8+4 > len(buf) {
				return nil, dberrors.CorruptedData("page %d: truncated row %d header", p.PageID, i)
			}
			id := binary.LittleEndian.Uint64(buf[cursor:])
			cursor += 8
			colCount := int(binary.LittleEndian.Uint32(buf[cursor:]))
			cursor += 4
			if colCount < 0 {
				return nil, dberrors.CorruptedData("page %d: negative column count on row %d", p.PageID, i)
			}
			data := make([]value.Value, colCount)
			for c := 0; c < colCount; c++ {
				v, next, err := value.Decode(buf, cursor)
				if err != nil {
					return nil, err
				}
				data[c] = v
				cursor = next
			}
			p.Values[i] = row.Row{ID: id, Data: data}
		}
	} else {
		if cursor+4 > len(buf) {
			return nil, dberrors.CorruptedData("page %d: truncated child count", p.PageID)
		}
		childCount := int(binary.LittleEndian.Uint32(buf[cursor:]))
		cursor += 4
		need := cursor + childCount*8
		if childCount < 0 || need > len(buf) {
			return nil, dberrors.CorruptedData("page %d: child array exceeds buffer", p.PageID)
		}
		p.ChildPageIDs = make([]uint64, childCount)
		for i := 0; i < childCount; i++ {
			p.ChildPageIDs[i] = binary.LittleEndian.Uint64(buf[cursor:])
			cursor += 8
		}
	}
	return p, nil
}

// Header is the result of a header-only read (§4.2): the three fields
// needed by registry rebuild and leaf-chain traversal, without
// materializing row data.
type Header struct {
	PageID         uint64
	IsLeaf         bool
	NextLeafPageID uint64
}

// DecodeHeader reads only the fixed header fields from the first
// HeaderSize bytes of buf, never touching the variable-length body.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, dberrors.CorruptedData("page: header buffer shorter than %d bytes", HeaderSize)
	}
	magic := binary.LittleEndian.Uint32(buf[offMagic:])
	if magic != Magic {
		return Header{}, dberrors.CorruptedData("page: bad magic 0x%08x", magic)
	}
	return Header{
		PageID:         binary.LittleEndian.Uint64(buf[offPageID:]),
		IsLeaf:         buf[offIsLeaf] != 0,
		NextLeafPageID: binary.LittleEndian.Uint64(buf[offNextLeaf:]),
	}, nil
}
