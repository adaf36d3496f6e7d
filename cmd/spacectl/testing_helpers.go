package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

// captureOutput runs fn with stdout redirected into a pipe and returns
// whatever it printed alongside fn's error.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w

	fnErr := fn()

	os.Stdout = orig
	w.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	return string(out), fnErr
}

// assertJSON fails the test unless output is one well-formed JSON document.
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains fails the test for every expected string missing from
// output.
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
