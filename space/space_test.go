package space

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrateos/spacekit/space/dataspace"
)

const testPage = 4096

// fakeMapper hands out deterministic addresses and records every call. The
// scripted failure fields make one class of host failure at a time.
type fakeMapper struct {
	mu   sync.Mutex
	next Addr

	mapCalls     int
	unmapCalls   int
	reserveCalls int
	lastFlags    MapFlags

	failMap     error
	failReserve error
}

func newFakeMapper() *fakeMapper {
	return &fakeMapper{next: 0x7f0000000000}
}

func (m *fakeMapper) Map(ds dataspace.Dataspace, size uintptr, offset int64, at Addr, f MapFlags) (Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapCalls++
	m.lastFlags = f
	if m.failMap != nil {
		return 0, m.failMap
	}
	if f.Fixed {
		return at, nil
	}
	return m.take(size), nil
}

func (m *fakeMapper) Unmap(at Addr, size uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapCalls++
	return nil
}

func (m *fakeMapper) Reserve(at Addr, size uintptr, f MapFlags) (Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveCalls++
	m.lastFlags = f
	if m.failReserve != nil {
		return 0, m.failReserve
	}
	if f.Fixed {
		return at, nil
	}
	return m.take(size), nil
}

func (m *fakeMapper) take(size uintptr) Addr {
	addr := m.next
	m.next += Addr(roundUp(size, testPage))
	return addr
}

type fakeDataspace struct {
	size     uintptr
	writable bool
}

func (d *fakeDataspace) Size() uintptr  { return d.size }
func (d *fakeDataspace) Writable() bool { return d.writable }
func (d *fakeDataspace) Fd() int        { return -1 }

func newTestRoot(t *testing.T) (*Space, *fakeMapper) {
	t.Helper()
	m := newFakeMapper()
	return NewRoot(m, Options{TableCapacity: 64, PageSize: testPage}), m
}

func TestAttachHostChosen(t *testing.T) {
	root, m := newTestRoot(t)
	ds := &fakeDataspace{size: 2 * testPage, writable: true}

	addr, err := root.Attach(ds, AttachOpts{})
	require.NoError(t, err)
	require.NotZero(t, addr)

	regions := root.Regions()
	require.Len(t, regions, 1)
	assert.Equal(t, addr, regions[0].Start)
	assert.Equal(t, uintptr(2*testPage), regions[0].Size)
	assert.True(t, m.lastFlags.Writable, "writability follows the backing object")
	assert.False(t, m.lastFlags.Executable)
}

func TestAttachFixed(t *testing.T) {
	root, _ := newTestRoot(t)
	ds := &fakeDataspace{size: testPage, writable: true}

	const at = Addr(0x500000000000)
	addr, err := root.Attach(ds, AttachOpts{At: at, Fixed: true})
	require.NoError(t, err)
	assert.Equal(t, at, addr)

	regions := root.Regions()
	require.Len(t, regions, 1)
	assert.Equal(t, at, regions[0].Start)
}

func TestAttachFixedConflictLeavesTableUnchanged(t *testing.T) {
	root, _ := newTestRoot(t)
	a := &fakeDataspace{size: testPage, writable: true}
	b := &fakeDataspace{size: testPage, writable: true}

	const at = Addr(0x500000000000)
	_, err := root.Attach(a, AttachOpts{At: at, Fixed: true})
	require.NoError(t, err)

	_, err = root.Attach(b, AttachOpts{At: at, Fixed: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegionConflict)

	var aerr *AttachError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, at, aerr.At)

	regions := root.Regions()
	require.Len(t, regions, 1, "failed attach must not disturb the table")
	assert.Same(t, a, regions[0].Backing.(*fakeDataspace))
}

func TestAttachFixedTopOfSpaceRejected(t *testing.T) {
	root, m := newTestRoot(t)
	ds := &fakeDataspace{size: 2 * testPage, writable: true}

	// The region would wrap past the top of the address space.
	top := Addr(^uintptr(0)) - Addr(testPage) + 1
	_, err := root.Attach(ds, AttachOpts{At: top, Fixed: true})
	assert.ErrorIs(t, err, ErrAddressOverflow)
	assert.Empty(t, root.Regions())
	assert.Zero(t, m.mapCalls, "the record step must fail before the host is asked")
}

func TestAttachDetachReattach(t *testing.T) {
	root, _ := newTestRoot(t)
	a := &fakeDataspace{size: testPage, writable: true}
	b := &fakeDataspace{size: testPage, writable: true}

	x, err := root.Attach(a, AttachOpts{})
	require.NoError(t, err)

	_, err = root.Attach(b, AttachOpts{At: x, Fixed: true})
	require.ErrorIs(t, err, ErrRegionConflict)
	require.Len(t, root.Regions(), 1)

	require.NoError(t, root.Detach(x))
	require.Empty(t, root.Regions())

	got, err := root.Attach(b, AttachOpts{At: x, Fixed: true})
	require.NoError(t, err)
	assert.Equal(t, x, got)
}

func TestAttachSizeDerivation(t *testing.T) {
	root, _ := newTestRoot(t)
	ds := &fakeDataspace{size: 4 * testPage, writable: true}

	addr, err := root.Attach(ds, AttachOpts{})
	require.NoError(t, err)
	r, _ := findRegion(root, addr)
	assert.Equal(t, uintptr(4*testPage), r.Size)
	require.NoError(t, root.Detach(addr))

	addr, err = root.Attach(ds, AttachOpts{Offset: 3 * testPage})
	require.NoError(t, err)
	r, _ = findRegion(root, addr)
	assert.Equal(t, uintptr(testPage), r.Size, "zero size maps the rest past the offset")
	assert.Equal(t, int64(3*testPage), r.Offset)
	require.NoError(t, root.Detach(addr))

	addr, err = root.Attach(ds, AttachOpts{Size: testPage, Offset: testPage})
	require.NoError(t, err)
	r, _ = findRegion(root, addr)
	assert.Equal(t, uintptr(testPage), r.Size)
	require.NoError(t, root.Detach(addr))
}

func TestAttachSizeExceedsBacking(t *testing.T) {
	root, _ := newTestRoot(t)
	ds := &fakeDataspace{size: 2 * testPage, writable: true}

	_, err := root.Attach(ds, AttachOpts{Size: 3 * testPage})
	assert.ErrorIs(t, err, ErrSizeExceedsBacking)

	_, err = root.Attach(ds, AttachOpts{Size: testPage, Offset: 2 * testPage})
	assert.ErrorIs(t, err, ErrSizeExceedsBacking, "offset plus size past the end must fail")

	_, err = root.Attach(ds, AttachOpts{Offset: 2 * testPage})
	assert.ErrorIs(t, err, ErrSizeExceedsBacking, "offset at the end leaves nothing to map")

	_, err = root.Attach(&fakeDataspace{size: 0}, AttachOpts{})
	assert.ErrorIs(t, err, ErrSizeExceedsBacking)

	_, err = root.Attach(ds, AttachOpts{Size: ^uintptr(0), Offset: testPage})
	assert.ErrorIs(t, err, ErrSizeExceedsBacking, "offset plus size wrapping around must fail")

	assert.Empty(t, root.Regions())
}

func TestAttachSizeRoundsUpToPage(t *testing.T) {
	root, _ := newTestRoot(t)
	ds := &fakeDataspace{size: 100, writable: true}

	addr, err := root.Attach(ds, AttachOpts{})
	require.NoError(t, err)
	r, _ := findRegion(root, addr)
	assert.Equal(t, uintptr(testPage), r.Size)
}

func TestAttachMisaligned(t *testing.T) {
	root, _ := newTestRoot(t)
	ds := &fakeDataspace{size: testPage, writable: true}

	_, err := root.Attach(ds, AttachOpts{At: 0x500000000123, Fixed: true})
	assert.ErrorIs(t, err, ErrMisaligned)

	_, err = root.Attach(ds, AttachOpts{Offset: 123})
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestAttachHostFailureRollsBack(t *testing.T) {
	root, m := newTestRoot(t)
	hostErr := errors.New("mmap: cannot allocate memory")
	m.failMap = hostErr
	ds := &fakeDataspace{size: testPage, writable: true}

	_, err := root.Attach(ds, AttachOpts{At: 0x500000000000, Fixed: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, hostErr)
	assert.Empty(t, root.Regions(), "failed host mapping must not leave a record behind")
}

func TestAttachHostChosenInsertFailureUnmaps(t *testing.T) {
	m := newFakeMapper()
	root := NewRoot(m, Options{TableCapacity: 1, PageSize: testPage})
	ds := &fakeDataspace{size: testPage, writable: true}

	_, err := root.Attach(ds, AttachOpts{})
	require.NoError(t, err)

	_, err = root.Attach(ds, AttachOpts{})
	require.ErrorIs(t, err, ErrTableExhausted)
	assert.Equal(t, 1, m.unmapCalls, "the host mapping of the failed attach must be taken back down")
}

func TestDetachIdempotent(t *testing.T) {
	root, m := newTestRoot(t)

	require.NoError(t, root.Detach(0x500000000000))
	assert.Zero(t, m.unmapCalls)
}

func TestDetachUnmaps(t *testing.T) {
	root, m := newTestRoot(t)
	ds := &fakeDataspace{size: testPage, writable: true}

	addr, err := root.Attach(ds, AttachOpts{})
	require.NoError(t, err)

	require.NoError(t, root.Detach(addr))
	assert.Empty(t, root.Regions())
	assert.Equal(t, 1, m.unmapCalls)

	require.NoError(t, root.Detach(addr), "second detach of the same address is a no-op")
	assert.Equal(t, 1, m.unmapCalls)
}

func TestNonOverlapInvariant(t *testing.T) {
	root, _ := newTestRoot(t)
	ds := &fakeDataspace{size: 16 * testPage, writable: true}

	check := func() {
		regions := root.Regions()
		for i := range regions {
			for j := i + 1; j < len(regions); j++ {
				assert.False(t, regions[i].Intersects(regions[j]),
					"%v and %v overlap", regions[i], regions[j])
			}
		}
	}

	base := Addr(0x500000000000)
	for round := 0; round < 4; round++ {
		for i := 0; i < 8; i++ {
			size := uintptr(testPage * (1 + (i+round)%3))
			_, err := root.Attach(ds, AttachOpts{
				At:    base + Addr(i*8*testPage),
				Fixed: true,
				Size:  size,
			})
			require.NoError(t, err)
			check()
		}
		for i := round % 2; i < 8; i += 2 {
			require.NoError(t, root.Detach(base+Addr(i*8*testPage)))
			check()
		}
		for i := round % 2; i < 8; i += 2 {
			_, err := root.Attach(ds, AttachOpts{
				At:    base + Addr(i*8*testPage),
				Fixed: true,
				Size:  testPage,
			})
			require.NoError(t, err)
			check()
		}
		for i := 0; i < 8; i++ {
			require.NoError(t, root.Detach(base+Addr(i*8*testPage)))
		}
		check()
	}
}

func TestAttachNilBacking(t *testing.T) {
	root, _ := newTestRoot(t)
	_, err := root.Attach(nil, AttachOpts{})
	require.Error(t, err)
	var aerr *AttachError
	assert.ErrorAs(t, err, &aerr)
}

func TestRootSizeIsWholeSpace(t *testing.T) {
	root, _ := newTestRoot(t)
	assert.Equal(t, WholeSpace, root.Size())
	assert.True(t, root.Writable())
	assert.Equal(t, -1, root.Fd())
	assert.False(t, root.Nested())
	assert.Zero(t, root.Base())
}

func TestCloseSweepsRegions(t *testing.T) {
	root, m := newTestRoot(t)
	ds := &fakeDataspace{size: testPage, writable: true}

	_, err := root.Attach(ds, AttachOpts{})
	require.NoError(t, err)
	_, err = root.Attach(ds, AttachOpts{})
	require.NoError(t, err)

	require.NoError(t, root.Close())
	assert.Empty(t, root.Regions())
	assert.Equal(t, 2, m.unmapCalls)

	require.NoError(t, root.Close(), "close is idempotent")
	assert.Equal(t, 2, m.unmapCalls)
}

func TestAttachOnClosedSpace(t *testing.T) {
	root, _ := newTestRoot(t)
	require.NoError(t, root.Close())

	_, err := root.Attach(&fakeDataspace{size: testPage}, AttachOpts{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, root.Detach(0x1000), "detach stays a no-op after close")
}

func findRegion(s *Space, start Addr) (Region, bool) {
	for _, r := range s.Regions() {
		if r.Start == start {
			return r, true
		}
	}
	return Region{}, false
}
