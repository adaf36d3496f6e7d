package space

import (
	"fmt"

	"github.com/substrateos/spacekit/space/dataspace"
)

// Addr is an address within an address space. For a root space this is a host
// virtual address; for a nested space it is the offset from the reservation
// start.
type Addr uintptr

// Region describes one occupied sub-range of an address space: where it
// starts, how large it is, and which part of which backing object populates
// it. The zero value (Size == 0) is an empty slot; its other fields carry no
// meaning.
type Region struct {
	Start   Addr
	Offset  int64
	Backing dataspace.Dataspace
	Size    uintptr
}

// Used reports whether the region occupies address space.
func (r Region) Used() bool { return r.Size > 0 }

// End returns the first address past the region.
func (r Region) End() Addr { return r.Start + Addr(r.Size) }

// Intersects reports whether two used regions share any address. Empty
// regions intersect nothing.
func (r Region) Intersects(o Region) bool {
	if !r.Used() || !o.Used() {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

// String formats the region for diagnostics.
func (r Region) String() string {
	if !r.Used() {
		return "region(empty)"
	}
	return fmt.Sprintf("region([%#x,%#x) offset=%#x)", uintptr(r.Start), uintptr(r.End()), r.Offset)
}
