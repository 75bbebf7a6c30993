package testutil

import (
	"io"
	"os"
	"testing"
)

// various utility functions for testing

// GetReadSeekerPosition gets the current seeker position, and fails the test if there is an error.
// Because the ReadSeeker is moved only to the current position, this should never fail.
func GetReadSeekerPosition(r io.ReadSeeker, t *testing.T) int64 {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("error getting current ReadSeeker position; this should never happen: %v", err)
	}
	return pos
}

// ReadFile reads the whole file at path, and fails the test if it cannot.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("prep step: reading %s failed: %v", path, err)
	}
	return data
}

// WriteFile replaces the file at path with data, creating it if needed, and
// fails the test if it cannot. A nil data creates an empty file.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("prep step: writing %s failed: %v", path, err)
	}
}
