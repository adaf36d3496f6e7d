//go:build linux

package dataspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Anon is an anonymous RAM dataspace backed by a memfd. It is what the
// in-process RAM allocator hands out.
type Anon struct {
	fd   int
	name string
	size uintptr
}

var _ Dataspace = (*Anon)(nil)

// NewAnon creates an anonymous dataspace of the given size. The name appears
// in /proc/self/fd for debugging only and carries no semantics.
func NewAnon(name string, size uintptr) (*Anon, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("dataspace: memfd_create %s: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("dataspace: size %s to %d bytes: %w", name, size, err)
	}
	return &Anon{fd: fd, name: name, size: size}, nil
}

// Size returns the size the dataspace was created with.
func (d *Anon) Size() uintptr { return d.size }

// Writable reports true; anonymous dataspaces are always writable.
func (d *Anon) Writable() bool { return true }

// Fd returns the memfd descriptor, or -1 after Close.
func (d *Anon) Fd() int { return d.fd }

// Name returns the debugging name the dataspace was created with.
func (d *Anon) Name() string { return d.name }

// Close releases the memfd. Closing twice is a no-op. Mappings already
// established stay valid until unmapped.
func (d *Anon) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("dataspace: close %s: %w", d.name, err)
	}
	return nil
}
