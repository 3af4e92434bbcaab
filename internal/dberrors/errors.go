// Package dberrors defines the error taxonomy shared by every layer of the
// storage engine, from the value codec up through the scan and join
// operators. Callers are expected to test an error's category with
// Is(err, kind) rather than matching on message text.
package dberrors

import "fmt"

// Kind classifies an error into one of the categories the engine
// distinguishes at its boundaries.
type Kind uint8

const (
	// KindCorruptedData covers invalid magic numbers, short buffers, bad
	// UTF-8, bad type tags, and any other on-disk decode failure.
	KindCorruptedData Kind = iota
	// KindInvalidData covers runtime schema mismatches (wrong column
	// count, type mismatch between a row and its declared schema).
	KindInvalidData
	// KindIOError wraps an underlying *os.File or filesystem error.
	KindIOError
	// KindDuplicateKey is returned when an insert targets an existing key.
	KindDuplicateKey
	// KindInvalidInput covers a missing required option, such as a
	// predicate-driven delete issued without a schema.
	KindInvalidInput
	// KindInvalidOperation covers structural violations: a leaf expected
	// but an internal page read, a child not found in its parent list, etc.
	KindInvalidOperation
	// KindNotFound is returned when a lookup by key or by name fails.
	KindNotFound
	// KindLocked is returned when a data file is already locked by
	// another process.
	KindLocked
)

func (k Kind) String() string {
	switch k {
	case KindCorruptedData:
		return "CorruptedData"
	case KindInvalidData:
		return "InvalidData"
	case KindIOError:
		return "IoError"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindNotFound:
		return "NotFound"
	case KindLocked:
		return "Locked"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, dberrors.DuplicateKey(0)) style checks work without
// exposing the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CorruptedData constructs a KindCorruptedData error.
func CorruptedData(format string, args ...any) *Error { return newf(KindCorruptedData, format, args...) }

// InvalidData constructs a KindInvalidData error.
func InvalidData(format string, args ...any) *Error { return newf(KindInvalidData, format, args...) }

// IOError wraps an underlying I/O error with context.
func IOError(err error, format string, args ...any) *Error {
	return wrapf(KindIOError, err, format, args...)
}

// DuplicateKey constructs a KindDuplicateKey error for the given row key.
func DuplicateKey(key uint64) *Error {
	return newf(KindDuplicateKey, "key %d already exists", key)
}

// InvalidInput constructs a KindInvalidInput error.
func InvalidInput(format string, args ...any) *Error { return newf(KindInvalidInput, format, args...) }

// InvalidOperation constructs a KindInvalidOperation error.
func InvalidOperation(format string, args ...any) *Error {
	return newf(KindInvalidOperation, format, args...)
}

// NotFound constructs a KindNotFound error.
func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// Locked constructs a KindLocked error for a data file already held by
// another process.
func Locked(path string) *Error {
	return newf(KindLocked, "data file %s is locked by another process", path)
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
