package space

import "github.com/substrateos/spacekit/space/dataspace"

// MapFlags selects how a host mapping is established.
type MapFlags struct {
	// Fixed demands the exact address instead of treating it as a hint.
	Fixed bool

	// Replace allows a fixed mapping to replace whatever occupies the
	// range. Only mappings inside a space's own reservation replace;
	// everywhere else an occupied range must surface as an error.
	Replace bool

	Writable   bool
	Executable bool
}

// Mapper is the host mapping primitive behind a root space: populate a byte
// range at a chosen or fixed address, reserve a range without populating it,
// and reverse either. internal/hostmem provides the Linux implementation;
// tests substitute their own.
type Mapper interface {
	// Map establishes a mapping of size bytes of ds starting at offset.
	// With f.Fixed the mapping lands exactly at `at` or fails; otherwise
	// the host picks a free address and `at` is ignored. Returns the
	// mapped address.
	Map(ds dataspace.Dataspace, size uintptr, offset int64, at Addr, f MapFlags) (Addr, error)

	// Unmap removes size bytes of mappings starting at `at`. Unmapping an
	// already-unmapped range is not an error.
	Unmap(at Addr, size uintptr) error

	// Reserve claims size bytes of address space without populating them.
	// A reserved range faults on access and blocks host-chosen placement
	// until unmapped or replaced. Fixed and Replace in f behave as in Map;
	// Writable and Executable are ignored.
	Reserve(at Addr, size uintptr, f MapFlags) (Addr, error)
}
