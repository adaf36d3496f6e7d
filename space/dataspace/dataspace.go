// Package dataspace defines the backing memory objects that can be attached
// to an address space.
//
// A dataspace exposes exactly three facts: its byte size, whether mappings of
// it may be written, and the host file descriptor backing it (or -1 when it is
// not file-backed). The region manager consumes nothing else.
//
// Two concrete kinds live here: File wraps an opened host file, and Anon is an
// anonymous RAM object created through memfd (Linux only). A third kind, the
// reservation facet of a nested address space, lives in the space package.
package dataspace

import "errors"

// ErrUnsupported is returned by operations that require host facilities not
// available on this platform.
var ErrUnsupported = errors.New("dataspace: not supported on this platform")

// Dataspace is a memory object that can be mapped into an address space.
type Dataspace interface {
	// Size returns the object's size in bytes.
	Size() uintptr

	// Writable reports whether mappings of the object may be written.
	Writable() bool

	// Fd returns the host file descriptor backing the object, or -1 when
	// the object is not file-backed.
	Fd() int
}
