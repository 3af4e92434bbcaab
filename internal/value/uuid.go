package value

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ParseUUID parses a canonical 8-4-4-4-12 hex string into a Value of kind
// Uuid.
func ParseUUID(s string) (Value, error) {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return Value{}, fmt.Errorf("value: invalid uuid %q", s)
	}
	hexPart := s[0:8] + s[9:13] + s[14:18] + s[19:23] + s[24:36]
	var b [16]byte
	if _, err := hex.Decode(b[:], []byte(hexPart)); err != nil {
		return Value{}, fmt.Errorf("value: invalid uuid %q: %w", s, err)
	}
	return UUID(b), nil
}

// NewUUID generates a random (v4) UUID value per RFC 4122.
func NewUUID() Value {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("value: failed to read random bytes for uuid: " + err.Error())
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	return UUID(b)
}

// UUIDString renders a Uuid-kind value in canonical string form. Panics if
// v is not a Uuid; callers should check Kind first.
func UUIDString(v Value) string {
	b, ok := v.AsBytes()
	if !ok || v.kind != KindUUID {
		panic("value: UUIDString called on non-uuid value")
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hex.EncodeToString(b[0:4]),
		hex.EncodeToString(b[4:6]),
		hex.EncodeToString(b[6:8]),
		hex.EncodeToString(b[8:10]),
		hex.EncodeToString(b[10:16]),
	)
}
