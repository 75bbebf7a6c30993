package codec

import "errors"

var (
	// ErrIntegrity is returned when sealed data fails authentication. It means
	// the file was modified after it was written, or the wrong key was given.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrCorrupt is returned when data cannot be interpreted as an encoded
	// document at all: bad magic, unknown version, truncated header, or a
	// payload that does not decompress or deserialize.
	ErrCorrupt = errors.New("corrupt document data")

	// ErrFormatMismatch is returned when the header of the data says it was
	// encoded with a different compression/encryption combination than the
	// Pipeline decoding it.
	ErrFormatMismatch = errors.New("document format does not match configuration")

	// ErrNoKey is returned when a Sealer is requested with empty key material.
	ErrNoKey = errors.New("no encryption key given")
)
