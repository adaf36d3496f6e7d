//go:build linux

package space_test

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrateos/spacekit/internal/hostmem"
	"github.com/substrateos/spacekit/internal/testutil"
	"github.com/substrateos/spacekit/space"
	"github.com/substrateos/spacekit/space/dataspace"
)

// These tests run the region manager against the live kernel instead of a
// fake mapper.

func view(at space.Addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(at))), size)
}

func TestAttachFileShowsItsContents(t *testing.T) {
	page := int(testutil.PageSize())
	path := testutil.WritePatternFile(t, 2*page, 1)

	ds, err := dataspace.OpenFile(path, false)
	require.NoError(t, err)
	defer ds.Close()

	root := space.NewRoot(hostmem.New(), space.Options{})
	defer root.Close()

	addr, err := root.Attach(ds, space.AttachOpts{})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(testutil.Pattern(2*page, 1), view(addr, uintptr(2*page))),
		"the mapping shows the file's bytes")

	require.NoError(t, root.Detach(addr))
}

func TestAttachFileAtOffset(t *testing.T) {
	page := int(testutil.PageSize())
	path := testutil.WritePatternFile(t, 3*page, 2)

	ds, err := dataspace.OpenFile(path, false)
	require.NoError(t, err)
	defer ds.Close()

	root := space.NewRoot(hostmem.New(), space.Options{})
	defer root.Close()

	addr, err := root.Attach(ds, space.AttachOpts{Offset: int64(page)})
	require.NoError(t, err)
	defer root.Detach(addr)

	want := testutil.Pattern(3*page, 2)[page:]
	assert.True(t, bytes.Equal(want, view(addr, uintptr(2*page))),
		"an offset attach starts mid-file")
}

func TestWritableMappingReachesTheFile(t *testing.T) {
	page := int(testutil.PageSize())
	path := testutil.WritePatternFile(t, page, 3)

	ds, err := dataspace.OpenFile(path, true)
	require.NoError(t, err)
	defer ds.Close()

	root := space.NewRoot(hostmem.New(), space.Options{})
	defer root.Close()

	addr, err := root.Attach(ds, space.AttachOpts{})
	require.NoError(t, err)

	view(addr, uintptr(page))[0] = 0xEE
	require.NoError(t, root.Detach(addr))

	ds2, err := dataspace.OpenFile(path, false)
	require.NoError(t, err)
	defer ds2.Close()
	addr2, err := root.Attach(ds2, space.AttachOpts{})
	require.NoError(t, err)
	defer root.Detach(addr2)
	assert.Equal(t, byte(0xEE), view(addr2, uintptr(page))[0],
		"MAP_SHARED writes land in the file")
}

func TestReservationKeepsHostPlacementOut(t *testing.T) {
	page := testutil.PageSize()

	root := space.NewRoot(hostmem.New(), space.Options{})
	defer root.Close()

	sub := space.NewNested(root, 16*page, space.Options{})
	base, err := root.Attach(sub, space.AttachOpts{})
	require.NoError(t, err)
	require.NotZero(t, base)

	// Populate, detach, and populate again: the hole left by a detach must
	// still belong to the reservation.
	ds, err := dataspace.NewAnon("resv", page)
	require.NoError(t, err)
	defer ds.Close()

	local := space.Addr(2 * page)
	addr, err := sub.Attach(ds, space.AttachOpts{At: local, Fixed: true})
	require.NoError(t, err)
	assert.Equal(t, base+local, addr)

	view(addr, page)[0] = 0x11
	require.NoError(t, sub.Detach(addr))

	ds2, err := dataspace.NewAnon("resv2", page)
	require.NoError(t, err)
	defer ds2.Close()
	addr2, err := sub.Attach(ds2, space.AttachOpts{At: local + space.Addr(page), Fixed: true})
	require.NoError(t, err)
	assert.Equal(t, base+local+space.Addr(page), addr2)
}
