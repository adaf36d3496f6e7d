// Package testutil provides shared test helpers. It imports no spacekit
// packages so every package in the module can use it.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// PageSize returns the host page size as a uintptr.
func PageSize() uintptr { return uintptr(os.Getpagesize()) }

// Pattern returns size bytes of a deterministic, position-dependent pattern.
// Seed distinguishes multiple patterns in one test.
func Pattern(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i)*31 + seed
	}
	return b
}

// WritePatternFile creates a temp file of size pattern bytes and returns its
// path. The file lives in t.TempDir and is cleaned up with the test.
func WritePatternFile(t *testing.T, size int, seed byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pattern")
	if err := os.WriteFile(path, Pattern(size, seed), 0o644); err != nil {
		t.Fatalf("write pattern file: %v", err)
	}
	return path
}
