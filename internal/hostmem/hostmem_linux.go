//go:build linux

// Package hostmem binds the host's memory-mapping primitives to the
// space.Mapper interface: raw mmap/munmap plus PROT_NONE reservations.
package hostmem

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/dataspace"
)

var debugLog = os.Getenv("SPACEKIT_DEBUG") != ""

// Mapper realizes address-space operations through Linux mmap syscalls.
type Mapper struct {
	page uintptr
}

var _ space.Mapper = (*Mapper)(nil)

// New returns the platform mapper.
func New() *Mapper {
	return &Mapper{page: uintptr(os.Getpagesize())}
}

// Map establishes a MAP_SHARED mapping of the dataspace's descriptor. Fixed
// without Replace uses MAP_FIXED_NOREPLACE, so an occupied range surfaces as
// EEXIST instead of silently replacing whatever the host put there; Replace
// is for ranges the caller owns (the inside of a reservation) and uses plain
// MAP_FIXED.
func (m *Mapper) Map(ds dataspace.Dataspace, size uintptr, offset int64, at space.Addr, f space.MapFlags) (space.Addr, error) {
	fd := ds.Fd()
	if fd < 0 {
		return 0, fmt.Errorf("hostmem: dataspace has no host descriptor")
	}
	if size == 0 {
		return 0, fmt.Errorf("hostmem: zero-size mapping")
	}
	if uintptr(at)%m.page != 0 || offset%int64(m.page) != 0 {
		return 0, space.ErrMisaligned
	}

	prot := uintptr(unix.PROT_READ)
	if f.Writable {
		prot |= unix.PROT_WRITE
	}
	if f.Executable {
		prot |= unix.PROT_EXEC
	}
	flags := uintptr(unix.MAP_SHARED)
	flags |= m.fixedFlags(f)

	addr, _, errno := unix.Syscall6(unix.SYS_MMAP,
		uintptr(at), size, prot, flags, uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, fmt.Errorf("hostmem: mmap %d bytes at %#x: %w", size, uintptr(at), errno)
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "hostmem: map fd=%d [%#x,%#x) flags=%+v\n", fd, addr, addr+size, f)
	}
	return space.Addr(addr), nil
}

// Unmap removes the mappings in [at, at+size). EINVAL is treated as
// already-unmapped.
func (m *Mapper) Unmap(at space.Addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, uintptr(at), size, 0)
	if errno != 0 && errno != unix.EINVAL {
		return fmt.Errorf("hostmem: munmap [%#x,%#x): %w", uintptr(at), uintptr(at)+size, errno)
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "hostmem: unmap [%#x,%#x)\n", uintptr(at), uintptr(at)+size)
	}
	return nil
}

// Reserve claims size bytes of address space without populating them: an
// anonymous PROT_NONE mapping with MAP_NORESERVE. Accessing the range faults;
// the host will not place other mappings inside it.
func (m *Mapper) Reserve(at space.Addr, size uintptr, f space.MapFlags) (space.Addr, error) {
	if size == 0 {
		return 0, fmt.Errorf("hostmem: zero-size reservation")
	}
	if uintptr(at)%m.page != 0 {
		return 0, space.ErrMisaligned
	}

	flags := uintptr(unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_NORESERVE)
	flags |= m.fixedFlags(f)

	addr, _, errno := unix.Syscall6(unix.SYS_MMAP,
		uintptr(at), size, unix.PROT_NONE, flags, ^uintptr(0), 0)
	if errno != 0 {
		return 0, fmt.Errorf("hostmem: reserve %d bytes at %#x: %w", size, uintptr(at), errno)
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "hostmem: reserve [%#x,%#x)\n", addr, addr+size)
	}
	return space.Addr(addr), nil
}

func (m *Mapper) fixedFlags(f space.MapFlags) uintptr {
	switch {
	case f.Fixed && f.Replace:
		return unix.MAP_FIXED
	case f.Fixed:
		return unix.MAP_FIXED_NOREPLACE
	default:
		return 0
	}
}
