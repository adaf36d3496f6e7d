//go:build !linux

// Package hostmem binds the host's memory-mapping primitives to the
// space.Mapper interface. Only Linux is supported; this stub keeps the module
// buildable elsewhere.
package hostmem

import (
	"errors"

	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/dataspace"
)

// ErrUnsupported is returned by every operation on non-Linux hosts.
var ErrUnsupported = errors.New("hostmem: not supported on this platform")

// Mapper is the host mapping binding. On this platform every operation
// returns ErrUnsupported.
type Mapper struct{}

var _ space.Mapper = (*Mapper)(nil)

// New returns the platform mapper.
func New() *Mapper { return &Mapper{} }

// Map returns ErrUnsupported.
func (m *Mapper) Map(ds dataspace.Dataspace, size uintptr, offset int64, at space.Addr, f space.MapFlags) (space.Addr, error) {
	return 0, ErrUnsupported
}

// Unmap returns ErrUnsupported.
func (m *Mapper) Unmap(at space.Addr, size uintptr) error { return ErrUnsupported }

// Reserve returns ErrUnsupported.
func (m *Mapper) Reserve(at space.Addr, size uintptr, f space.MapFlags) (space.Addr, error) {
	return 0, ErrUnsupported
}
