package space

// SlotID identifies one slot of a Table. A slot id returned by Insert refers
// to the same region until Remove clears it.
type SlotID int

// DefaultTableCapacity is the region table slot count used when Options
// leaves it unset. The bound is a sizing parameter; attach-heavy setups can
// raise it through Options.
const DefaultTableCapacity = 4096

// Table is a bounded collection of non-overlapping regions. It does no
// locking of its own; the owning Space serializes access.
type Table struct {
	slots []Region
	used  int
}

// NewTable returns a table with the given slot capacity. Non-positive
// capacities select DefaultTableCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultTableCapacity
	}
	return &Table{slots: make([]Region, capacity)}
}

// Insert stores a used region and returns its slot id. It fails with
// ErrRegionConflict when the region overlaps an occupied slot and with
// ErrTableExhausted when every slot is taken. The table is unchanged on
// failure.
func (t *Table) Insert(r Region) (SlotID, error) {
	if !r.Used() {
		return 0, ErrEmptyRegion
	}
	// A region whose end wraps past the top of the address space would make
	// End() lie and defeat the conflict scan.
	if r.Start > Addr(^uintptr(0)-r.Size) {
		return 0, ErrAddressOverflow
	}
	free := -1
	for i := range t.slots {
		if !t.slots[i].Used() {
			if free < 0 {
				free = i
			}
			continue
		}
		if t.slots[i].Intersects(r) {
			return 0, ErrRegionConflict
		}
	}
	if free < 0 {
		return 0, ErrTableExhausted
	}
	t.slots[free] = r
	t.used++
	return SlotID(free), nil
}

// Lookup returns the occupied region starting exactly at start.
func (t *Table) Lookup(start Addr) (Region, bool) {
	for i := range t.slots {
		if t.slots[i].Used() && t.slots[i].Start == start {
			return t.slots[i], true
		}
	}
	return Region{}, false
}

// Remove clears the occupied region starting exactly at start. Removing an
// absent start is a no-op.
func (t *Table) Remove(start Addr) {
	for i := range t.slots {
		if t.slots[i].Used() && t.slots[i].Start == start {
			t.slots[i] = Region{}
			t.used--
			return
		}
	}
}

// Get returns the region in the given slot. Out-of-range ids yield an empty
// region rather than an error.
func (t *Table) Get(id SlotID) Region {
	if id < 0 || int(id) >= len(t.slots) {
		return Region{}
	}
	return t.slots[id]
}

// Len returns the number of occupied slots.
func (t *Table) Len() int { return t.used }

// Cap returns the slot capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Walk calls fn for every occupied slot in slot order until fn returns
// false.
func (t *Table) Walk(fn func(SlotID, Region) bool) {
	for i := range t.slots {
		if t.slots[i].Used() {
			if !fn(SlotID(i), t.slots[i]) {
				return
			}
		}
	}
}
