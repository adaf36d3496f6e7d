//go:build !linux

package dataspace

// Anon is an anonymous RAM dataspace. It requires memfd support and is only
// available on Linux.
type Anon struct{}

var _ Dataspace = (*Anon)(nil)

// NewAnon returns ErrUnsupported on this platform.
func NewAnon(name string, size uintptr) (*Anon, error) {
	return nil, ErrUnsupported
}

// Size returns 0.
func (d *Anon) Size() uintptr { return 0 }

// Writable reports false.
func (d *Anon) Writable() bool { return false }

// Fd returns -1.
func (d *Anon) Fd() int { return -1 }

// Name returns the empty string.
func (d *Anon) Name() string { return "" }

// Close is a no-op.
func (d *Anon) Close() error { return nil }
