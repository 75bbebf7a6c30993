// Package persist owns the files behind open stores. Each store file is
// represented as a Document, a handle that knows the single durable write
// sequence (seek to start, write, flush, sync, truncate) and how to read the
// whole file back.
//
// Documents are opened with OpenFile and a DocumentMode. A missing file is
// created only when the mode allows writes; a read-only open of a missing
// file gives ErrNotFound, and anything that is not a regular file gives
// ErrNotAFile.
//
// The Registry type is an ownership table of path identities (see Identity).
// It is how callers make sure no two live handles write to the same file.
//
// A Document is not safe for concurrent use; callers serialize access to it.
package persist

import "errors"

var (
	// ErrNotFound is returned when a read-only open targets a missing file.
	ErrNotFound = errors.New("file not found")

	// ErrNotAFile is returned when the path exists but is not a regular file.
	ErrNotAFile = errors.New("path is not a regular file")

	// ErrAlreadyOpen is returned by Registry.Acquire when the identity is
	// already held.
	ErrAlreadyOpen = errors.New("path is already open")

	// ErrClosed is returned by operations on a closed Document.
	ErrClosed = errors.New("document has been closed")

	// ErrReadOnly is returned by write operations on a read-only Document.
	ErrReadOnly = errors.New("document opened in read-only mode")
)
