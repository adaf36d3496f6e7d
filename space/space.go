package space

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/substrateos/spacekit/space/dataspace"
)

// ServiceName is the session service name a request router resolves to a
// locally constructed nested space.
const ServiceName = "RM"

// WholeSpace is the Size reported by a root space: the whole usable address
// range of the process.
const WholeSpace = ^uintptr(0)

var debugLog = os.Getenv("SPACEKIT_DEBUG") != ""

// AttachOpts controls one Attach call. The zero value maps the whole backing
// object at a host-chosen address, writable per the backing object, not
// executable.
type AttachOpts struct {
	// Size is the number of bytes to map. Zero derives the size from the
	// backing object minus Offset. A nonzero size must fit between Offset
	// and the end of the backing object.
	Size uintptr

	// Offset is the byte offset into the backing object. Must be
	// page-aligned.
	Offset int64

	// At is the requested address, honored only when Fixed is set. Inside
	// a nested space At is the offset from the reservation start and is
	// mandatory.
	At Addr

	// Fixed demands that the mapping land exactly at At.
	Fixed bool

	// Executable grants execute permission on the mapping.
	Executable bool
}

// Space is a region-manager session: the bookkeeping and mapping authority
// for one address range. A root space manages the whole process address
// space through a Mapper. A nested space manages a reservation carved out of
// a root and is itself a dataspace, so a root can attach it.
//
// All methods are safe for concurrent use.
type Space struct {
	nested bool
	size   uintptr // reservation capacity; meaningful only when nested
	opts   Options
	mapper Mapper // root only

	// attachMu serializes attachment of this (nested) space into a root.
	// It is only ever acquired with no other space lock held.
	attachMu sync.Mutex

	mu     sync.Mutex
	tab    *Table
	root   *Space // nested: auto-attach target, then the root attached into
	base   Addr   // nested: root-assigned base; 0 while detached
	ever   bool   // nested: lifetime attachment spent
	closed bool
}

// A nested space doubles as a backing object for its own reservation.
var _ dataspace.Dataspace = (*Space)(nil)

// NewRoot returns the region manager for the whole process address space,
// realized through m.
func NewRoot(m Mapper, opts Options) *Space {
	opts = opts.withDefaults()
	return &Space{opts: opts, mapper: m, tab: NewTable(opts.TableCapacity)}
}

// NewNested returns a region manager for a size-byte reservation. The
// reservation occupies no address space until it is attached into a root,
// either explicitly (root.Attach(sub, ...)) or, when root is non-nil, by the
// first Attach performed on the nested instance itself. A nil root leaves
// the instance free-standing: it records attaches and the root that attaches
// it later replays them.
func NewNested(root *Space, size uintptr, opts Options) *Space {
	opts = opts.withDefaults()
	return &Space{
		nested: true,
		size:   size,
		opts:   opts,
		root:   root,
		tab:    NewTable(opts.TableCapacity),
	}
}

// Size returns the reservation capacity of a nested space, or WholeSpace for
// a root.
func (s *Space) Size() uintptr {
	if s.nested {
		return s.size
	}
	return WholeSpace
}

// Writable reports true; reservations accept writable mappings.
func (s *Space) Writable() bool { return true }

// Fd returns -1; a reservation has no backing descriptor.
func (s *Space) Fd() int { return -1 }

// Nested reports whether the space manages a reservation rather than the
// whole address space.
func (s *Space) Nested() bool { return s.nested }

// Base returns the root-assigned base address of an attached nested space,
// 0 while detached and for roots.
func (s *Space) Base() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Regions returns a snapshot of the occupied regions in slot order.
func (s *Space) Regions() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, 0, s.tab.Len())
	s.tab.Walk(func(_ SlotID, r Region) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Attach maps backing into this space and records the resulting region. The
// returned address is the address code can dereference: a host virtual
// address for roots and for attached nested spaces, or the local offset for
// a free-standing reservation that is not attached anywhere yet.
func (s *Space) Attach(backing dataspace.Dataspace, o AttachOpts) (Addr, error) {
	if backing == nil {
		return 0, &AttachError{At: o.At, Size: o.Size, Err: errors.New("nil backing object")}
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, &AttachError{At: o.At, Size: o.Size, Err: ErrClosed}
	}

	if sub, ok := backing.(*Space); ok {
		if s.nested {
			return 0, &AttachError{At: o.At, Size: o.Size, Err: ErrNestedReservation}
		}
		if !sub.nested {
			return 0, &AttachError{At: o.At, Size: o.Size, Err: errors.New("root space cannot back a region")}
		}
		return s.attachReservation(sub, o)
	}

	size, err := s.mappingSize(backing, o)
	if err != nil {
		return 0, &AttachError{At: o.At, Size: o.Size, Err: err}
	}
	if s.nested {
		return s.attachNested(backing, size, o)
	}
	return s.attachRoot(backing, size, o)
}

// mappingSize derives and validates the byte count a request maps, rounded
// up to the page size.
func (s *Space) mappingSize(backing dataspace.Dataspace, o AttachOpts) (uintptr, error) {
	page := uintptr(s.opts.PageSize)
	if o.Offset < 0 || o.Offset%int64(page) != 0 {
		return 0, ErrMisaligned
	}
	if o.Fixed && uintptr(o.At)%page != 0 {
		return 0, ErrMisaligned
	}
	backingSize := backing.Size()
	size := o.Size
	if size == 0 {
		if uintptr(o.Offset) >= backingSize {
			return 0, ErrSizeExceedsBacking
		}
		size = backingSize - uintptr(o.Offset)
	} else if size > backingSize || uintptr(o.Offset) > backingSize-size {
		return 0, ErrSizeExceedsBacking
	}
	return roundUp(size, page), nil
}

func (s *Space) attachRoot(backing dataspace.Dataspace, size uintptr, o AttachOpts) (Addr, error) {
	f := MapFlags{Fixed: o.Fixed, Writable: backing.Writable(), Executable: o.Executable}
	if o.Fixed {
		// Record first so concurrent fixed attaches linearize on the
		// table, then map; roll the record back if the host refuses.
		if err := s.insert(Region{Start: o.At, Offset: o.Offset, Backing: backing, Size: size}); err != nil {
			return 0, &AttachError{At: o.At, Size: size, Err: err}
		}
		if _, err := s.mapper.Map(backing, size, o.Offset, o.At, f); err != nil {
			s.remove(o.At)
			return 0, &AttachError{At: o.At, Size: size, Err: err}
		}
		if debugLog {
			fmt.Fprintf(os.Stderr, "space: attach fixed [%#x,%#x)\n", uintptr(o.At), uintptr(o.At)+size)
		}
		return o.At, nil
	}

	// Host-chosen: map first, then record the address the host picked.
	addr, err := s.mapper.Map(backing, size, o.Offset, 0, f)
	if err != nil {
		return 0, &AttachError{Size: size, Err: err}
	}
	if err := s.insert(Region{Start: addr, Offset: o.Offset, Backing: backing, Size: size}); err != nil {
		s.mapper.Unmap(addr, size)
		return 0, &AttachError{Size: size, Err: err}
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "space: attach [%#x,%#x)\n", uintptr(addr), uintptr(addr)+size)
	}
	return addr, nil
}

// attachNested handles an attach performed on a nested space itself.
// Addresses are local offsets within the reservation; the return value is
// root-visible once the reservation is attached.
func (s *Space) attachNested(backing dataspace.Dataspace, size uintptr, o AttachOpts) (Addr, error) {
	if !o.Fixed {
		return 0, &AttachError{Size: size, Err: ErrFixedAddrRequired}
	}
	// Subtraction keeps the bound check exact when o.At+size would wrap.
	if size > s.size || uintptr(o.At) > s.size-size {
		return 0, &AttachError{At: o.At, Size: size, Err: ErrOutOfRange}
	}

	s.mu.Lock()
	attached := s.base != 0
	root := s.root
	ever := s.ever
	s.mu.Unlock()

	if !attached {
		if ever {
			// Attached once and detached since; the lifetime attachment
			// is spent.
			return 0, &AttachError{At: o.At, Size: size, Err: ErrAlreadyAttached}
		}
		if root != nil {
			// First operation on a parented reservation attaches the
			// reservation itself before the inner region is recorded.
			if _, err := root.Attach(s, AttachOpts{}); err != nil {
				// A concurrent attach may have won the race; if the
				// reservation is attached now, this request proceeds.
				s.mu.Lock()
				attached = s.base != 0
				s.mu.Unlock()
				if !attached {
					return 0, err
				}
			} else {
				attached = true
			}
		}
	}

	if err := s.insert(Region{Start: o.At, Offset: o.Offset, Backing: backing, Size: size}); err != nil {
		return 0, &AttachError{At: o.At, Size: size, Err: err}
	}

	if !attached {
		// Free-standing reservation: recorded now, mapped when a root
		// attaches this space and replays its regions.
		return o.At, nil
	}

	s.mu.Lock()
	base := s.base
	root = s.root
	s.mu.Unlock()

	f := MapFlags{Fixed: true, Replace: true, Writable: backing.Writable(), Executable: o.Executable}
	if _, err := root.mapper.Map(backing, size, o.Offset, base+o.At, f); err != nil {
		s.remove(o.At)
		return 0, &AttachError{At: o.At, Size: size, Err: err}
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "space: attach nested +%#x -> [%#x,%#x)\n",
			uintptr(o.At), uintptr(base+o.At), uintptr(base+o.At)+size)
	}
	return base + o.At, nil
}

// attachReservation attaches the nested space sub into the root s: claims
// sub's lifetime attachment, reserves the range, records it as one region,
// and replays any regions sub recorded while free-standing.
func (s *Space) attachReservation(sub *Space, o AttachOpts) (Addr, error) {
	page := uintptr(s.opts.PageSize)
	if o.Offset != 0 {
		return 0, &AttachError{At: o.At, Err: errors.New("reservation offset must be 0")}
	}
	if o.Size != 0 && o.Size != sub.size {
		return 0, &AttachError{At: o.At, Size: o.Size, Err: errors.New("reservation must be attached whole")}
	}
	if o.Fixed && uintptr(o.At)%page != 0 {
		return 0, &AttachError{At: o.At, Err: ErrMisaligned}
	}
	size := roundUp(sub.size, page)
	if size == 0 {
		return 0, &AttachError{At: o.At, Err: ErrEmptyRegion}
	}

	sub.attachMu.Lock()
	defer sub.attachMu.Unlock()

	sub.mu.Lock()
	closed, ever := sub.closed, sub.ever
	sub.mu.Unlock()
	if closed {
		return 0, &AttachError{At: o.At, Size: size, Err: ErrClosed}
	}
	if ever {
		return 0, &AttachError{At: o.At, Size: size, Err: ErrAlreadyAttached}
	}

	var base Addr
	if o.Fixed {
		if err := s.insert(Region{Start: o.At, Backing: sub, Size: size}); err != nil {
			return 0, &AttachError{At: o.At, Size: size, Err: err}
		}
		if _, err := s.mapper.Reserve(o.At, size, MapFlags{Fixed: true}); err != nil {
			s.remove(o.At)
			return 0, &AttachError{At: o.At, Size: size, Err: err}
		}
		base = o.At
	} else {
		addr, err := s.mapper.Reserve(0, size, MapFlags{})
		if err != nil {
			return 0, &AttachError{Size: size, Err: err}
		}
		if err := s.insert(Region{Start: addr, Backing: sub, Size: size}); err != nil {
			s.mapper.Unmap(addr, size)
			return 0, &AttachError{Size: size, Err: err}
		}
		base = addr
	}

	// Publish the attachment, then replay regions recorded while detached.
	sub.mu.Lock()
	prevRoot := sub.root
	sub.ever = true
	sub.base = base
	sub.root = s
	recorded := make([]Region, 0, sub.tab.Len())
	sub.tab.Walk(func(_ SlotID, r Region) bool {
		recorded = append(recorded, r)
		return true
	})
	sub.mu.Unlock()

	for _, r := range recorded {
		f := MapFlags{Fixed: true, Replace: true, Writable: r.Backing.Writable()}
		if _, err := s.mapper.Map(r.Backing, r.Size, r.Offset, base+r.Start, f); err != nil {
			// A half-replayed window is worse than a failed attach: take
			// the whole reservation back out.
			s.mapper.Unmap(base, size)
			s.remove(base)
			sub.mu.Lock()
			sub.ever = false
			sub.base = 0
			sub.root = prevRoot
			sub.mu.Unlock()
			return 0, &AttachError{At: base, Size: size,
				Err: fmt.Errorf("replay recorded region [%#x,%#x): %w", uintptr(r.Start), uintptr(r.End()), err)}
		}
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "space: attach reservation [%#x,%#x) replayed=%d\n",
			uintptr(base), uintptr(base)+size, len(recorded))
	}
	return base, nil
}

// Detach removes the region starting at a and takes its host mapping down.
// Detaching an address with no occupying region is a no-op. For an attached
// nested space, a is the address Attach returned (base-relative forms are
// normalized); the hole left inside the reservation is re-reserved so the
// range stays off-limits to host placement.
func (s *Space) Detach(a Addr) error {
	if s.nested {
		return s.detachNested(a)
	}

	s.mu.Lock()
	r, ok := s.tab.Lookup(a)
	if ok {
		s.tab.Remove(a)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if sub, isSub := r.Backing.(*Space); isSub {
		// Taking a reservation out unmaps the whole window. The nested
		// space keeps its records but can never be attached again.
		sub.mu.Lock()
		sub.base = 0
		sub.mu.Unlock()
		if err := s.mapper.Unmap(a, r.Size); err != nil {
			return fmt.Errorf("space: detach reservation at %#x: %w", uintptr(a), err)
		}
		if debugLog {
			fmt.Fprintf(os.Stderr, "space: detach reservation [%#x,%#x)\n", uintptr(a), uintptr(r.End()))
		}
		return nil
	}

	if err := s.mapper.Unmap(a, r.Size); err != nil {
		return fmt.Errorf("space: detach %#x: %w", uintptr(a), err)
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "space: detach [%#x,%#x)\n", uintptr(a), uintptr(r.End()))
	}
	return nil
}

func (s *Space) detachNested(a Addr) error {
	s.mu.Lock()
	base := s.base
	local := a
	if base != 0 && a >= base && a < base+Addr(s.size) {
		local = a - base
	}
	r, ok := s.tab.Lookup(local)
	if ok {
		s.tab.Remove(local)
	}
	root := s.root
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if base == 0 {
		// Recorded only; nothing is mapped.
		return nil
	}

	// Swap the populated window back to a bare reservation in one step.
	if _, err := root.mapper.Reserve(base+local, r.Size, MapFlags{Fixed: true, Replace: true}); err != nil {
		return fmt.Errorf("space: detach %#x: re-reserve: %w", uintptr(a), err)
	}
	if debugLog {
		fmt.Fprintf(os.Stderr, "space: detach nested +%#x [%#x,%#x)\n",
			uintptr(local), uintptr(base+local), uintptr(base+local)+r.Size)
	}
	return nil
}

// Close tears the space down; it is idempotent. A nested space detaches
// itself from its root first. A root unmaps every remaining region,
// reservations included.
func (s *Space) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	base := s.base
	root := s.root
	s.mu.Unlock()

	if s.nested {
		if base != 0 && root != nil {
			if err := root.Detach(base); err != nil {
				return fmt.Errorf("space: close: %w", err)
			}
		}
		return nil
	}

	s.mu.Lock()
	regions := make([]Region, 0, s.tab.Len())
	s.tab.Walk(func(_ SlotID, r Region) bool {
		regions = append(regions, r)
		return true
	})
	for _, r := range regions {
		s.tab.Remove(r.Start)
	}
	s.mu.Unlock()

	var firstErr error
	for _, r := range regions {
		if sub, ok := r.Backing.(*Space); ok {
			sub.mu.Lock()
			sub.base = 0
			sub.mu.Unlock()
		}
		if err := s.mapper.Unmap(r.Start, r.Size); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("space: close: unmap [%#x,%#x): %w", uintptr(r.Start), uintptr(r.End()), err)
		}
	}
	return firstErr
}

func (s *Space) insert(r Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.tab.Insert(r)
	return err
}

func (s *Space) remove(start Addr) {
	s.mu.Lock()
	s.tab.Remove(start)
	s.mu.Unlock()
}

func roundUp(n, page uintptr) uintptr {
	if r := n % page; r != 0 {
		n += page - r
	}
	return n
}
