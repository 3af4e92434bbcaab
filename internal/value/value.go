// Package value implements the tagged primitive Value type shared by every
// row stored in the tree: a 1-byte type tag followed by a type-specific
// payload, little-endian throughout, with a u32 length prefix on every
// variable-length payload except Char, which uses a 1-byte length. The
// wire format is the on-disk representation
// used by the page codec, so its stability is load-bearing.
package value

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/bambang-db/bambang/internal/dberrors"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBoolean
	KindTinyInt
	KindSmallInt
	KindInteger
	KindBigInt
	KindFloat
	KindDecimal
	KindString
	KindText
	KindChar
	KindBinary
	KindDate
	KindTime
	KindTimestamp
	KindJSON
	KindUUID
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindTinyInt:
		return "TinyInt"
	case KindSmallInt:
		return "SmallInt"
	case KindInteger:
		return "Integer"
	case KindBigInt:
		return "BigInt"
	case KindFloat:
		return "Float"
	case KindDecimal:
		return "Decimal"
	case KindString:
		return "String"
	case KindText:
		return "Text"
	case KindChar:
		return "Char"
	case KindBinary:
		return "Binary"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	case KindTimestamp:
		return "Timestamp"
	case KindJSON:
		return "Json"
	case KindUUID:
		return "Uuid"
	default:
		return "Unknown"
	}
}

// Value is an immutable tagged union over the engine's primitive types.
// Zero value is Null.
type Value struct {
	kind Kind
	i    int64    // Boolean(0/1), TinyInt, SmallInt, Integer, Date(i32), Time(u32), Timestamp
	big  *big.Int // BigInt (i128 range)
	f    float64  // Float
	s    string   // String, Text, Decimal (exact source text), Json
	r    rune     // Char
	b    []byte   // Binary, Uuid (16 bytes)
}

func Null() Value                 { return Value{kind: KindNull} }
func Boolean(v bool) Value        { i := int64(0); if v { i = 1 }; return Value{kind: KindBoolean, i: i} }
func TinyInt(v int8) Value        { return Value{kind: KindTinyInt, i: int64(v)} }
func SmallInt(v int16) Value      { return Value{kind: KindSmallInt, i: int64(v)} }
func Integer(v int64) Value       { return Value{kind: KindInteger, i: v} }
func BigInt(v *big.Int) Value     { return Value{kind: KindBigInt, big: new(big.Int).Set(v)} }
func Float(v float64) Value       { return Value{kind: KindFloat, f: v} }
func Decimal(v string) Value      { return Value{kind: KindDecimal, s: v} }
func String(v string) Value       { return Value{kind: KindString, s: v} }
func Text(v string) Value         { return Value{kind: KindText, s: v} }
func Char(v rune) Value           { return Value{kind: KindChar, r: v} }
func Binary(v []byte) Value       { return Value{kind: KindBinary, b: append([]byte(nil), v...)} }
func Date(daysSinceEpoch int32) Value    { return Value{kind: KindDate, i: int64(daysSinceEpoch)} }
func Time(msSinceMidnight uint32) Value  { return Value{kind: KindTime, i: int64(msSinceMidnight)} }
func Timestamp(msSinceEpoch int64) Value { return Value{kind: KindTimestamp, i: msSinceEpoch} }
func JSON(v string) Value         { return Value{kind: KindJSON, s: v} }
func UUID(v [16]byte) Value       { return Value{kind: KindUUID, b: append([]byte(nil), v[:]...)} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt64 returns the integer payload for Boolean/TinyInt/SmallInt/Integer/
// Date/Time/Timestamp kinds.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindBoolean, KindTinyInt, KindSmallInt, KindInteger, KindDate, KindTime, KindTimestamp:
		return v.i, true
	default:
		return 0, false
	}
}

func (v Value) AsBigInt() (*big.Int, bool) {
	if v.kind != KindBigInt {
		return nil, false
	}
	return v.big, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString, KindText, KindDecimal, KindJSON:
		return v.s, true
	case KindChar:
		return string(v.r), true
	default:
		return "", false
	}
}

func (v Value) AsBytes() ([]byte, bool) {
	switch v.kind {
	case KindBinary, KindUUID:
		return v.b, true
	default:
		return nil, false
	}
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.i != 0, true
}

// ── Binary codec ────────────────────────────────────────────────────────

const (
	tagNull      byte = 0
	tagBoolean   byte = 1
	tagTinyInt   byte = 2
	tagSmallInt  byte = 3
	tagInteger   byte = 4
	tagBigInt    byte = 5
	tagFloat     byte = 6
	tagDecimal   byte = 7
	tagString    byte = 8
	tagText      byte = 9
	tagChar      byte = 10
	tagBinary    byte = 11
	tagDate      byte = 12
	tagTime      byte = 13
	tagTimestamp byte = 14
	tagJSON      byte = 15
	tagUUID      byte = 16
)

func kindToTag(k Kind) byte { return byte(k) }

// Encode serializes v as tag+payload. Variable-length payloads carry a u32
// little-endian length prefix, except Char, which carries a 1-byte length.
func Encode(v Value) []byte {
	buf := make([]byte, 0, SerializedSize(v))
	buf = append(buf, kindToTag(v.kind))
	switch v.kind {
	case KindNull:
		// tag only
	case KindBoolean:
		b := byte(0)
		if v.i != 0 {
			b = 1
		}
		buf = append(buf, b)
	case KindTinyInt:
		buf = append(buf, byte(int8(v.i)))
	case KindSmallInt:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(int16(v.i)))
		buf = append(buf, tmp[:]...)
	case KindInteger:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case KindBigInt:
		buf = append(buf, bigIntToLE16(v.big)...)
	case KindFloat:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.f))
		buf = append(buf, tmp[:]...)
	case KindDecimal, KindString, KindText, KindJSON:
		buf = appendLengthPrefixed(buf, []byte(v.s))
	case KindChar:
		enc := make([]byte, 4)
		n := utf8.EncodeRune(enc, v.r)
		buf = append(buf, byte(n))
		buf = append(buf, enc[:n]...)
	case KindBinary:
		buf = appendLengthPrefixed(buf, v.b)
	case KindDate:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(int32(v.i)))
		buf = append(buf, tmp[:]...)
	case KindTime:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.i))
		buf = append(buf, tmp[:]...)
	case KindTimestamp:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case KindUUID:
		buf = append(buf, v.b...)
	}
	return buf
}

func appendLengthPrefixed(buf, payload []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(payload)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, payload...)
	return buf
}

// SerializedSize returns the exact encoded size of v without encoding it,
// used by page-layout estimation to decide whether a row fits in a page.
func SerializedSize(v Value) int {
	switch v.kind {
	case KindNull:
		return 1
	case KindBoolean, KindTinyInt:
		return 2
	case KindSmallInt:
		return 3
	case KindInteger, KindTimestamp:
		return 9
	case KindBigInt:
		return 17
	case KindFloat:
		return 9
	case KindDecimal, KindString, KindText, KindJSON:
		return 1 + 4 + len(v.s)
	case KindChar:
		enc := make([]byte, 4)
		n := utf8.EncodeRune(enc, v.r)
		return 1 + 1 + n
	case KindBinary:
		return 1 + 4 + len(v.b)
	case KindDate, KindTime:
		return 5
	case KindUUID:
		return 1 + 16
	default:
		return 1
	}
}

// Decode reads one Value starting at cursor and returns the value plus the
// cursor position immediately following it.
func Decode(buf []byte, cursor int) (Value, int, error) {
	if cursor < 0 || cursor >= len(buf) {
		return Value{}, cursor, dberrors.CorruptedData("value: short buffer at cursor %d", cursor)
	}
	tag := buf[cursor]
	cursor++
	switch tag {
	case tagNull:
		return Null(), cursor, nil
	case tagBoolean:
		if cursor+1 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated boolean")
		}
		v := buf[cursor] != 0
		return Boolean(v), cursor + 1, nil
	case tagTinyInt:
		if cursor+1 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated tinyint")
		}
		v := int8(buf[cursor])
		return TinyInt(v), cursor + 1, nil
	case tagSmallInt:
		if cursor+2 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated smallint")
		}
		v := int16(binary.LittleEndian.Uint16(buf[cursor : cursor+2]))
		return SmallInt(v), cursor + 2, nil
	case tagInteger:
		if cursor+8 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated integer")
		}
		v := int64(binary.LittleEndian.Uint64(buf[cursor : cursor+8]))
		return Integer(v), cursor + 8, nil
	case tagBigInt:
		if cursor+16 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated bigint")
		}
		v := le16ToBigInt(buf[cursor : cursor+16])
		return BigInt(v), cursor + 16, nil
	case tagFloat:
		if cursor+8 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated float")
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf[cursor : cursor+8]))
		return Float(v), cursor + 8, nil
	case tagDecimal, tagString, tagText, tagJSON:
		s, next, err := decodeLengthPrefixedString(buf, cursor)
		if err != nil {
			return Value{}, cursor, err
		}
		switch tag {
		case tagDecimal:
			return Decimal(s), next, nil
		case tagString:
			return String(s), next, nil
		case tagText:
			return Text(s), next, nil
		default:
			return JSON(s), next, nil
		}
	case tagChar:
		if cursor+1 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated char length")
		}
		n := int(buf[cursor])
		cursor++
		if n < 1 || n > 4 {
			return Value{}, cursor, dberrors.CorruptedData("value: char length %d outside [1,4]", n)
		}
		if cursor+n > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated char payload")
		}
		r, size := utf8.DecodeRune(buf[cursor : cursor+n])
		if r == utf8.RuneError && size <= 1 {
			return Value{}, cursor, dberrors.CorruptedData("value: invalid utf8 char payload")
		}
		return Char(r), cursor + n, nil
	case tagBinary:
		b, next, err := decodeLengthPrefixedBytes(buf, cursor)
		if err != nil {
			return Value{}, cursor, err
		}
		return Binary(b), next, nil
	case tagDate:
		if cursor+4 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated date")
		}
		v := int32(binary.LittleEndian.Uint32(buf[cursor : cursor+4]))
		return Date(v), cursor + 4, nil
	case tagTime:
		if cursor+4 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated time")
		}
		v := binary.LittleEndian.Uint32(buf[cursor : cursor+4])
		return Time(v), cursor + 4, nil
	case tagTimestamp:
		if cursor+8 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated timestamp")
		}
		v := int64(binary.LittleEndian.Uint64(buf[cursor : cursor+8]))
		return Timestamp(v), cursor + 8, nil
	case tagUUID:
		if cursor+16 > len(buf) {
			return Value{}, cursor, dberrors.CorruptedData("value: truncated uuid")
		}
		var u [16]byte
		copy(u[:], buf[cursor:cursor+16])
		return UUID(u), cursor + 16, nil
	default:
		return Value{}, cursor, dberrors.CorruptedData("value: unknown type tag 0x%02x", tag)
	}
}

func decodeLengthPrefixedString(buf []byte, cursor int) (string, int, error) {
	b, next, err := decodeLengthPrefixedBytes(buf, cursor)
	if err != nil {
		return "", cursor, err
	}
	if !utf8.Valid(b) {
		return "", cursor, dberrors.CorruptedData("value: invalid utf8 string payload")
	}
	return string(b), next, nil
}

func decodeLengthPrefixedBytes(buf []byte, cursor int) ([]byte, int, error) {
	if cursor+4 > len(buf) {
		return nil, cursor, dberrors.CorruptedData("value: truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(buf[cursor : cursor+4]))
	cursor += 4
	if n < 0 || cursor+n > len(buf) {
		return nil, cursor, dberrors.CorruptedData("value: length prefix %d exceeds buffer", n)
	}
	out := make([]byte, n)
	copy(out, buf[cursor:cursor+n])
	return out, cursor + n, nil
}

func bigIntToLE16(v *big.Int) []byte {
	out := make([]byte, 16)
	// Two's complement little-endian encoding of a signed 128-bit value.
	mag := new(big.Int).Set(v)
	neg := mag.Sign() < 0
	if neg {
		mag.Neg(mag)
	}
	be := mag.Bytes()
	for i := 0; i < len(be) && i < 16; i++ {
		out[i] = be[len(be)-1-i]
	}
	if neg {
		// out currently holds the magnitude in little-endian; negate via
		// two's complement (invert + add one).
		carry := byte(1)
		for i := 0; i < 16; i++ {
			inv := ^out[i]
			sum := inv + carry
			if sum < inv {
				carry = 1
			} else {
				carry = 0
			}
			out[i] = sum
		}
	}
	return out
}

func le16ToBigInt(b []byte) *big.Int {
	neg := b[15]&0x80 != 0
	work := make([]byte, 16)
	copy(work, b)
	if neg {
		carry := byte(1)
		for i := 0; i < 16; i++ {
			inv := ^work[i]
			sum := inv + carry
			if sum < inv {
				carry = 1
			} else {
				carry = 0
			}
			work[i] = sum
		}
	}
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[15-i] = work[i]
	}
	out := new(big.Int).SetBytes(be)
	if neg {
		out.Neg(out)
	}
	return out
}

// ── Ordering ────────────────────────────────────────────────────────────

// Cross-type ordering covers only the kinds that are comparable as numbers:
// the source engine this was distilled from fell back to debug-formatted
// string ordering for heterogeneous pairs, which is undefined behavior
// (see design note on cross-type ordering). Here cross-type comparisons are
// only defined within a documented numeric family; every other cross-kind
// pair is reported as not comparable.
//
// Numeric returns v's exact rational value for any kind in the numeric
// family (TinyInt/SmallInt/Integer/BigInt/Float/Decimal/Boolean), or false
// for every other kind and for non-finite floats. Used by aggregation and
// cross-type comparison, both of which need numeric values regardless of
// which concrete Kind carried them.
func (v Value) Numeric() (*big.Rat, bool) { return v.numeric() }

func (v Value) numeric() (*big.Rat, bool) {
	switch v.kind {
	case KindTinyInt, KindSmallInt, KindInteger:
		return new(big.Rat).SetInt64(v.i), true
	case KindBoolean:
		return new(big.Rat).SetInt64(v.i), true
	case KindBigInt:
		return new(big.Rat).SetInt(v.big), true
	case KindFloat:
		r := new(big.Rat)
		if r.SetFloat64(v.f) == nil {
			return nil, false // NaN / Inf: not orderable as a rational
		}
		return r, true
	case KindDecimal:
		r := new(big.Rat)
		if _, ok := r.SetString(v.s); ok {
			return r, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// Compare orders a against b. The second return value is false when the
// pair has no defined ordering (incompatible kinds), in which case callers
// evaluating predicates must treat the comparison as false rather than
// panic or guess.
func Compare(a, b Value) (int, bool) {
	if a.kind == KindNull && b.kind == KindNull {
		return 0, true
	}
	if a.kind == KindNull {
		return -1, true
	}
	if b.kind == KindNull {
		return 1, true
	}
	if ra, ok := a.numeric(); ok {
		if rb, ok2 := b.numeric(); ok2 {
			return ra.Cmp(rb), true
		}
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString, KindText, KindJSON:
		return strings.Compare(a.s, b.s), true
	case KindChar:
		return strings.Compare(string(a.r), string(b.r)), true
	case KindBinary, KindUUID:
		return bytes.Compare(a.b, b.b), true
	case KindDate, KindTime, KindTimestamp:
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		default:
			return 0, true
		}
	case KindBoolean:
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Equal reports whether a and b compare equal under Compare, treating
// incomparable pairs (and NaN floats) as unequal, never panicking.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}
