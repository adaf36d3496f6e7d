package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertLookupRemove(t *testing.T) {
	tab := NewTable(16)

	r := Region{Start: 0x1000, Size: 0x1000}
	id, err := tab.Insert(r)
	require.NoError(t, err)
	assert.Equal(t, 1, tab.Len())

	got, ok := tab.Lookup(0x1000)
	require.True(t, ok)
	assert.Equal(t, r, got)
	assert.Equal(t, r, tab.Get(id))

	_, ok = tab.Lookup(0x1001)
	assert.False(t, ok, "lookup matches the exact start only")

	tab.Remove(0x1000)
	assert.Equal(t, 0, tab.Len())
	_, ok = tab.Lookup(0x1000)
	assert.False(t, ok)
}

func TestTableRemoveAbsentIsNoop(t *testing.T) {
	tab := NewTable(4)
	_, err := tab.Insert(Region{Start: 0x1000, Size: 0x1000})
	require.NoError(t, err)

	tab.Remove(0x9000)
	assert.Equal(t, 1, tab.Len())
}

func TestTableInsertConflict(t *testing.T) {
	tab := NewTable(16)
	first := Region{Start: 0x1000, Size: 0x2000}
	_, err := tab.Insert(first)
	require.NoError(t, err)

	_, err = tab.Insert(Region{Start: 0x2000, Size: 0x2000})
	require.ErrorIs(t, err, ErrRegionConflict)

	// The failed insert must leave the table untouched.
	assert.Equal(t, 1, tab.Len())
	got, ok := tab.Lookup(0x1000)
	require.True(t, ok)
	assert.Equal(t, first, got)
}

func TestTableInsertEmpty(t *testing.T) {
	tab := NewTable(4)
	_, err := tab.Insert(Region{Start: 0x1000})
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestTableInsertRejectsWrappingRegion(t *testing.T) {
	tab := NewTable(16)
	top := Addr(^uintptr(0))

	// A region reaching past the top of the address space has no valid end,
	// so End() would wrap and the conflict scan would miss it.
	_, err := tab.Insert(Region{Start: top - 2*testPage + 1, Size: 3 * testPage})
	require.ErrorIs(t, err, ErrAddressOverflow)
	assert.Equal(t, 0, tab.Len())

	// The highest region that still fits inserts and conflicts normally.
	last := Region{Start: top - testPage, Size: testPage}
	_, err = tab.Insert(last)
	require.NoError(t, err)
	_, err = tab.Insert(last)
	assert.ErrorIs(t, err, ErrRegionConflict)
	assert.Equal(t, 1, tab.Len())
}

func TestTableCapacityBoundary(t *testing.T) {
	const capacity = 8
	tab := NewTable(capacity)

	for i := 0; i < capacity; i++ {
		_, err := tab.Insert(Region{Start: Addr(0x1000 * (i + 1)), Size: 0x1000})
		require.NoError(t, err, "insert %d of %d must fit", i+1, capacity)
	}
	assert.Equal(t, capacity, tab.Len())

	_, err := tab.Insert(Region{Start: 0x100000, Size: 0x1000})
	require.ErrorIs(t, err, ErrTableExhausted)

	// Freeing one slot makes room again.
	tab.Remove(0x1000)
	_, err = tab.Insert(Region{Start: 0x100000, Size: 0x1000})
	assert.NoError(t, err)
}

func TestTableSlotIDStable(t *testing.T) {
	tab := NewTable(8)
	a := Region{Start: 0x1000, Size: 0x1000}
	b := Region{Start: 0x3000, Size: 0x1000}

	idA, err := tab.Insert(a)
	require.NoError(t, err)
	idB, err := tab.Insert(b)
	require.NoError(t, err)

	tab.Remove(a.Start)
	assert.Equal(t, b, tab.Get(idB), "slot ids stay valid across unrelated removes")
	assert.False(t, tab.Get(idA).Used(), "removed slot reads back empty")
}

func TestTableGetOutOfRange(t *testing.T) {
	tab := NewTable(4)
	assert.False(t, tab.Get(-1).Used())
	assert.False(t, tab.Get(4).Used())
	assert.False(t, tab.Get(1000).Used())
}

func TestTableWalk(t *testing.T) {
	tab := NewTable(8)
	starts := []Addr{0x1000, 0x3000, 0x5000}
	for _, s := range starts {
		_, err := tab.Insert(Region{Start: s, Size: 0x1000})
		require.NoError(t, err)
	}

	var seen []Addr
	tab.Walk(func(_ SlotID, r Region) bool {
		seen = append(seen, r.Start)
		return true
	})
	assert.Equal(t, starts, seen)

	calls := 0
	tab.Walk(func(_ SlotID, _ Region) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls, "walk stops when fn returns false")
}

func TestTableDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultTableCapacity, NewTable(0).Cap())
	assert.Equal(t, DefaultTableCapacity, NewTable(-5).Cap())
	assert.Equal(t, 32, NewTable(32).Cap())
}
