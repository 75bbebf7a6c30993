package persist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const defaultFilePerm = 0600

type fileDocument struct {
	f      *os.File
	closed bool
	mode   DocumentMode
	path   string

	writeBuf *bufio.Writer
}

// OpenFile opens the Document at path. See the package documentation for how
// missing files and non-regular files are handled.
func OpenFile(path string, mode DocumentMode) (Document, error) {
	if !mode.AllowedOperations.Valid() {
		return nil, fmt.Errorf("open %s: invalid access mode %v", path, mode.AllowedOperations)
	}

	info, err := os.Stat(path)
	if err == nil {
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotAFile)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if mode.AllowedOperations == ReadOnly {
			return nil, fmt.Errorf("open %s: %w; open it read-write to create it", path, ErrNotFound)
		}
		if mode.CreateDirs {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("create parent directories of %s: %w", path, err)
			}
		}
	} else {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	perm := os.FileMode(defaultFilePerm)
	if mode.Perm != 0 {
		perm = os.FileMode(mode.Perm).Perm()
	}

	f, err := os.OpenFile(path, fileFlagsFromDocumentMode(mode), perm)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// it may have been swapped for something else between the stat and the
	// open.
	info, err = f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, ErrNotAFile)
	}

	fDoc := &fileDocument{
		f:    f,
		mode: mode,
		path: path,
	}
	if mode.AllowedOperations != ReadOnly {
		fDoc.writeBuf = bufio.NewWriter(f)
	}
	return fDoc, nil
}

func fileFlagsFromDocumentMode(mode DocumentMode) int {
	switch mode.AllowedOperations {
	case ReadOnly:
		return os.O_RDONLY
	case ReadAndWrite:
		return os.O_RDWR | os.O_CREATE
	default:
		panic(fmt.Sprintf("unrecognized AllowedOperations code: %v", mode.AllowedOperations))
	}
}

// Read reads bytes from the file at the current cursor.
func (fDoc *fileDocument) Read(b []byte) (n int, err error) {
	if fDoc.closed {
		return 0, ErrClosed
	}
	if err := fDoc.Flush(); err != nil {
		return 0, err
	}
	return fDoc.f.Read(b)
}

// Write buffers bytes for writing at the current cursor.
func (fDoc *fileDocument) Write(b []byte) (n int, err error) {
	if fDoc.closed {
		return 0, ErrClosed
	}
	if fDoc.mode.AllowedOperations == ReadOnly {
		return 0, ErrReadOnly
	}
	return fDoc.writeBuf.Write(b)
}

// SeekStart flushes pending writes and moves the cursor to offset 0.
func (fDoc *fileDocument) SeekStart() error {
	if fDoc.closed {
		return ErrClosed
	}
	if err := fDoc.Flush(); err != nil {
		return err
	}
	_, err := fDoc.f.Seek(0, io.SeekStart)
	return err
}

// ReadAll reads the whole file.
func (fDoc *fileDocument) ReadAll() ([]byte, error) {
	if err := fDoc.SeekStart(); err != nil {
		return nil, err
	}
	return io.ReadAll(fDoc.f)
}

// Flush pushes all pending writes to the OS.
func (fDoc *fileDocument) Flush() error {
	if fDoc.closed {
		return ErrClosed
	}

	// read-only documents never have anything in the buffer.
	if fDoc.writeBuf == nil || fDoc.writeBuf.Buffered() < 1 {
		return nil
	}
	n := fDoc.writeBuf.Buffered()
	if err := fDoc.writeBuf.Flush(); err != nil {
		return fmt.Errorf("after buffering %d bytes, got: %w", n, err)
	}
	return nil
}

// Sync commits the file to stable storage.
func (fDoc *fileDocument) Sync() error {
	if fDoc.closed {
		return ErrClosed
	}
	if fDoc.mode.AllowedOperations == ReadOnly {
		return nil
	}
	return fDoc.f.Sync()
}

// TruncateAtCursor cuts the file at the current cursor.
func (fDoc *fileDocument) TruncateAtCursor() error {
	if fDoc.closed {
		return ErrClosed
	}
	if fDoc.mode.AllowedOperations == ReadOnly {
		return ErrReadOnly
	}
	if err := fDoc.Flush(); err != nil {
		return err
	}
	pos, err := fDoc.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	return fDoc.f.Truncate(pos)
}

// WriteDurable replaces the contents of the file with data.
func (fDoc *fileDocument) WriteDurable(data []byte) error {
	if fDoc.mode.AllowedOperations == ReadOnly {
		return ErrReadOnly
	}
	if err := fDoc.SeekStart(); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	if _, err := fDoc.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := fDoc.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := fDoc.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := fDoc.TruncateAtCursor(); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	// the truncation itself changes the file size; it must be durable too or
	// a crash could leave stale trailing bytes behind.
	if err := fDoc.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// Close flushes all pending writes and closes the file. It will not be able
// to be used after Close has been called, regardless of whether error is
// non-nil.
//
// Every call to Close() after the first will have no effect and will return
// a nil error.
func (fDoc *fileDocument) Close() (err error) {
	if fDoc.closed {
		return nil // already closed, don't need to do it again
	}

	flushErr := fDoc.Flush()
	closeErr := fDoc.f.Close()

	fDoc.closed = true
	if closeErr != nil && flushErr != nil {
		return fmt.Errorf("%v; additionally, while flushing remaining write buffer: %v", closeErr, flushErr)
	}
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Mode gets the DocumentMode that the fileDocument was opened with.
func (fDoc *fileDocument) Mode() DocumentMode {
	return fDoc.mode
}

// Path gets the path the file was opened from.
func (fDoc *fileDocument) Path() string {
	return fDoc.path
}

// Identity returns the path identity of path: its absolute, cleaned form with
// symlinks resolved. The file itself does not need to exist; symlinks are
// resolved on the deepest ancestor that does, so two spellings of the same
// not-yet-created file still get the same identity.
func Identity(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	existing := abs
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			// nothing along the path exists; fall back to the cleaned path.
			return abs, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}
