// Package zvecerr defines the discriminated error taxonomy shared by every
// engine-core package (WAL, storage, IVF entity, searcher, quantizer).
package zvecerr

import (
	"errors"
	"fmt"
)

// Code is a stable, switchable error classification. Values intentionally
// mirror the taxonomy callers outside this module are expected to branch on.
type Code int

const (
	// InvalidArgument: caller supplied an out-of-domain value.
	InvalidArgument Code = iota
	// InvalidFormat: on-disk structure fails a size or version invariant.
	InvalidFormat
	// ReadData: short read, I/O failure, or fewer bytes than requested.
	ReadData
	// NoMemory: allocation failure.
	NoMemory
	// NoExist: named plugin (metric / reformer) not registered.
	NoExist
	// Unsupported: type/metric combination cannot be handled.
	Unsupported
	// Runtime: general downstream failure.
	Runtime
	// StatusError: state-machine guard violation.
	StatusError
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidFormat:
		return "InvalidFormat"
	case ReadData:
		return "ReadData"
	case NoMemory:
		return "NoMemory"
	case NoExist:
		return "NoExist"
	case Unsupported:
		return "Unsupported"
	case Runtime:
		return "Runtime"
	case StatusError:
		return "StatusError"
	default:
		return "Unknown"
	}
}

// Error wraps a Code with a message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, zvecerr.New(code, "")) match any *Error with the
// same Code; the target's message and cause are ignored.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New builds a new *Error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a new *Error annotating an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code of err, defaulting to Runtime if err is not
// (or does not wrap) a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Runtime
}
