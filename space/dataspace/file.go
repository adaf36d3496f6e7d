package dataspace

import (
	"fmt"
	"os"
)

// File is a dataspace backed by an opened host file.
type File struct {
	f        *os.File
	size     uintptr
	writable bool
}

var _ Dataspace = (*File)(nil)

// OpenFile opens the file at path as a dataspace. When writable is set the
// file is opened read-write and mappings of it may be written.
func OpenFile(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("dataspace: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dataspace: stat %s: %w", path, err)
	}
	return &File{f: f, size: uintptr(st.Size()), writable: writable}, nil
}

// Size returns the file size observed when the dataspace was opened.
func (d *File) Size() uintptr { return d.size }

// Writable reports whether the file was opened for writing.
func (d *File) Writable() bool { return d.writable }

// Fd returns the file's descriptor.
func (d *File) Fd() int { return int(d.f.Fd()) }

// Name returns the path the file was opened with.
func (d *File) Name() string { return d.f.Name() }

// Close closes the underlying file. Mappings already established stay valid;
// the host keeps the backing alive until they are unmapped.
func (d *File) Close() error { return d.f.Close() }
