package dataspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backing")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestOpenFile(t *testing.T) {
	path := writeTempFile(t, 8192)

	d, err := OpenFile(path, false)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, uintptr(8192), d.Size())
	assert.False(t, d.Writable())
	assert.GreaterOrEqual(t, d.Fd(), 0, "an open file must have a descriptor")
	assert.Equal(t, path, d.Name())
}

func TestOpenFileWritable(t *testing.T) {
	path := writeTempFile(t, 4096)

	d, err := OpenFile(path, true)
	require.NoError(t, err)
	defer d.Close()

	assert.True(t, d.Writable())
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenFileEmpty(t *testing.T) {
	path := writeTempFile(t, 0)

	d, err := OpenFile(path, false)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, uintptr(0), d.Size())
}
