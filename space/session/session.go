// Package session provides the local capability type: an unforgeable value
// naming one session object inside this process.
//
// A capability pairs an unexported object reference with a process-unique id,
// so capabilities can be compared, handed around, and dereferenced back to
// the object they were minted for, but never conjured from raw data. The zero
// Capability is invalid and dereferences to nothing.
package session

import "sync/atomic"

var nextID atomic.Uint64

// Capability is an unforgeable reference to a session object. Capabilities
// are comparable; two capabilities are equal only when minted by the same
// NewCapability call.
type Capability struct {
	id  uint64
	obj any
}

// NewCapability mints a capability for obj.
func NewCapability(obj any) Capability {
	return Capability{id: nextID.Add(1), obj: obj}
}

// Valid reports whether the capability references an object.
func (c Capability) Valid() bool { return c.id != 0 }

// ID returns the process-unique id of the capability, 0 when invalid.
func (c Capability) ID() uint64 { return c.id }

// Deref returns the object the capability was minted for, if it is a T.
// Invalid capabilities and type mismatches report false.
func Deref[T any](c Capability) (T, bool) {
	v, ok := c.obj.(T)
	return v, ok
}
