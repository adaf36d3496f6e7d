package space

import (
	"testing"

	"github.com/substrateos/spacekit/space/dataspace"
)

type benchBacking struct{ size uintptr }

func (b *benchBacking) Size() uintptr  { return b.size }
func (b *benchBacking) Writable() bool { return true }
func (b *benchBacking) Fd() int        { return -1 }

var _ dataspace.Dataspace = (*benchBacking)(nil)

func BenchmarkAttachDetach(b *testing.B) {
	root := NewRoot(newFakeMapper(), Options{PageSize: testPage})
	ds := &benchBacking{size: testPage}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		addr, err := root.Attach(ds, AttachOpts{})
		if err != nil {
			b.Fatal(err)
		}
		if err := root.Detach(addr); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAttachFixedConflictScan(b *testing.B) {
	// The conflict scan is O(table occupancy); populate half the table so
	// the number tracks the realistic cost.
	root := NewRoot(newFakeMapper(), Options{TableCapacity: 1024, PageSize: testPage})
	ds := &benchBacking{size: testPage}
	for i := 0; i < 512; i++ {
		if _, err := root.Attach(ds, AttachOpts{At: Addr((i + 1) * 0x10000), Fixed: true}); err != nil {
			b.Fatal(err)
		}
	}
	at := Addr(1024 * 0x10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr, err := root.Attach(ds, AttachOpts{At: at, Fixed: true})
		if err != nil {
			b.Fatal(err)
		}
		if err := root.Detach(addr); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTableInsertRemove(b *testing.B) {
	tab := NewTable(DefaultTableCapacity)
	r := Region{Start: 0x1000, Size: testPage, Backing: &benchBacking{size: testPage}}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := tab.Insert(r); err != nil {
			b.Fatal(err)
		}
		tab.Remove(r.Start)
	}
}
