// Package space implements the process-local region manager: conflict-free
// bookkeeping of address-space regions realized through host memory mappings.
//
// # Overview
//
// A Space is the mapping authority for one address range. The root space of a
// process manages the whole host address space; attaching a backing object to
// it establishes a host mapping and records a Region in the space's table,
// detaching reverses both. A nested space manages a contiguous reservation
// carved out of a root: the reserved range is off-limits to the root's own
// placement, and attaches inside the nested space land at
// reservation-base + local-offset.
//
// # Key Types
//
// The main types provided by this package are:
//
//   - Space: the region-manager session (root or nested)
//   - Region: one occupied sub-range (start, size, backing object, offset)
//   - Table: bounded collection of non-overlapping Regions
//   - Mapper: the host mapping primitive a root space drives
//   - AttachOpts, Options: per-call and per-space configuration
//
// # Attaching Memory
//
// Backing objects implement dataspace.Dataspace. The common case maps a whole
// object at a host-chosen address:
//
//	root := space.NewRoot(hostmem.New(), space.Options{})
//	addr, err := root.Attach(ds, space.AttachOpts{})
//	if err != nil {
//	    var aerr *space.AttachError
//	    errors.As(err, &aerr) // conflict, capacity, host failure, ...
//	}
//	defer root.Detach(addr)
//
// Fixed placement sets At and Fixed; execute permission is opt-in with
// Executable.
//
// # Reservations
//
// A nested space is created detached. It is itself a dataspace, so a root can
// attach it, which reserves the range without populating it:
//
//	sub := space.NewNested(root, 1<<20, space.Options{})
//	base, err := root.Attach(sub, space.AttachOpts{})
//
// Afterwards every attach inside sub maps at base + offset and returns that
// host-visible address. A nested space constructed with a non-nil root
// attaches itself automatically on its first Attach. Each nested space can be
// attached at most once in its lifetime.
//
// # Thread Safety
//
// All Space methods are safe for concurrent use. The per-space lock covers
// only bookkeeping; host calls run unlocked, so attach/detach on different
// spaces (a nested instance and its root, say) are not mutually ordered.
// Callers must not detach a reservation from its root while attaches inside
// it are in flight.
//
// # Related Packages
//
//   - github.com/substrateos/spacekit/space/dataspace: backing memory objects
//   - github.com/substrateos/spacekit/space/ram: quota-retrying allocation client
//   - github.com/substrateos/spacekit/space/parent: session routing to a parent
//   - github.com/substrateos/spacekit/internal/hostmem: Linux Mapper implementation
package space
