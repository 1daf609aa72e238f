// Package bufferr defines the typed error kinds surfaced by the buffer
// core: Io, Canceled, Recoverable, Invariant, and OutOfRange.
//
// Sentinel values are used with errors.Is for the kinds that carry no
// payload; the kinds that do (Io, Recoverable) are concrete struct
// types so callers can pull path/offset/cause information back out with
// errors.As.
package bufferr

import (
	"errors"
	"fmt"
)

// Sentinel errors for kinds with no payload. Wrap or compare with errors.Is.
var (
	// ErrCanceled is returned when a save or line-index scan is
	// cancelled before its point of no return.
	ErrCanceled = errors.New("bufferr: operation canceled")

	// ErrInvariant marks an internal invariant violation. Unrecoverable;
	// callers should treat this as a program bug, not a user-facing
	// condition.
	ErrInvariant = errors.New("bufferr: internal invariant violated")

	// ErrOutOfRange is returned when a caller passes a byte offset or
	// line number outside the document.
	ErrOutOfRange = errors.New("bufferr: offset or line out of range")
)

// IoError wraps a failed read or write against a path at a given
// offset. The buffer state is unchanged when this is returned.
type IoError struct {
	Path   string
	Offset int64
	Cause  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("bufferr: io error at %s:%d: %v", e.Path, e.Offset, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// NewIoError constructs an IoError.
func NewIoError(path string, offset int64, cause error) *IoError {
	return &IoError{Path: path, Offset: offset, Cause: cause}
}

// RecoverableInPlaceCrash signals that an in-place save's recovery
// manifest was found on disk: a prior save-in-place crashed mid-stream.
// The caller should run recovery (restore dest from the manifest's temp
// path) and retry.
type RecoverableInPlaceCrash struct {
	ManifestPath string
	DestPath     string
	TempPath     string
}

func (e *RecoverableInPlaceCrash) Error() string {
	return fmt.Sprintf("bufferr: recoverable in-place crash: manifest %s points %s -> %s", e.ManifestPath, e.TempPath, e.DestPath)
}

// Is allows errors.Is(err, ErrRecoverableKind) style checks without
// requiring callers to know the concrete type.
func (e *RecoverableInPlaceCrash) Is(target error) bool {
	return target == ErrRecoverableKind
}

// ErrRecoverableKind is the sentinel used to detect a
// RecoverableInPlaceCrash via errors.Is without an errors.As type
// assertion.
var ErrRecoverableKind = errors.New("bufferr: recoverable in-place crash")

// OutOfRange builds an annotated OutOfRange error.
func OutOfRange(what string, value, limit int64) error {
	return fmt.Errorf("%s %d out of range (limit %d): %w", what, value, limit, ErrOutOfRange)
}

// Invariant builds an annotated Invariant error.
func Invariant(detail string) error {
	return fmt.Errorf("%s: %w", detail, ErrInvariant)
}
