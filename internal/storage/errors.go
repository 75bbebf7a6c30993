package storage

import (
	"errors"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/persist"
)

// Errors returned by this package. All are checked with errors.Is; the
// lower-level sentinels are re-exported here so callers need only one import.
var (
	// ErrConfig is returned by Open for an invalid access mode or when
	// encryption is requested without a key.
	ErrConfig = errors.New("invalid storage configuration")

	// ErrReadOnly is returned by Write and ChangeEncryptionKey on an Engine
	// opened read-only.
	ErrReadOnly = errors.New("storage is opened as read only")

	// ErrIO wraps failures of the underlying file, including failures of
	// background flushes.
	ErrIO = errors.New("storage i/o failure")

	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = errors.New("storage is closed")

	ErrNotFound       = persist.ErrNotFound
	ErrNotAFile       = persist.ErrNotAFile
	ErrAlreadyOpen    = persist.ErrAlreadyOpen
	ErrIntegrity      = codec.ErrIntegrity
	ErrCorrupt        = codec.ErrCorrupt
	ErrFormatMismatch = codec.ErrFormatMismatch
)
