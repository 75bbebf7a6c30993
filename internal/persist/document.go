package persist

import (
	"fmt"
	"io"
)

// Document is an open store file.
type Document interface {
	io.Reader
	io.Writer
	io.Closer

	// SeekStart moves the cursor to the beginning of the file.
	SeekStart() error

	// ReadAll reads the entire file from the beginning, regardless of the
	// current cursor, and leaves the cursor at the end.
	ReadAll() ([]byte, error)

	// Flush pushes buffered writes to the OS.
	Flush() error

	// Sync asks the OS to commit the file to stable storage.
	Sync() error

	// TruncateAtCursor cuts the file off at the current cursor position,
	// dropping any bytes left over from a previous, longer write.
	TruncateAtCursor() error

	// WriteDurable replaces the full contents of the file with data. It is
	// the only sequence that makes a write durable: seek to start, write,
	// flush, sync, and truncate at the cursor.
	WriteDurable(data []byte) error

	// Mode gives the DocumentMode that this Document was opened with.
	Mode() DocumentMode

	// Path gives the filesystem path the Document was opened from.
	Path() string
}

// AllowedOperations is a number that specifies which operations
// are allowed on a Document.
type AllowedOperations int

const (
	// ReadAndWrite indicates that both writing and reading is allowed on the
	// Document. It is the zero value.
	ReadAndWrite AllowedOperations = iota

	// ReadOnly indicates that only reading is allowed on the Document.
	ReadOnly
)

func (ao AllowedOperations) String() string {
	switch ao {
	case ReadOnly:
		return "ReadOnly"
	case ReadAndWrite:
		return "ReadAndWrite"
	default:
		return fmt.Sprintf("UnknownOperation(%d)", int(ao))
	}
}

// Valid returns whether ao is one of the defined AllowedOperations.
func (ao AllowedOperations) Valid() bool {
	return ao == ReadOnly || ao == ReadAndWrite
}

// ParseAllowedOperations parses the names used in config files and flags:
// "r"/"ro"/"read-only" and "r+"/"rw"/"read-write".
func ParseAllowedOperations(s string) (AllowedOperations, error) {
	switch s {
	case "r", "ro", "read-only", "readonly", "ReadOnly":
		return ReadOnly, nil
	case "r+", "rw", "read-write", "readwrite", "ReadAndWrite":
		return ReadAndWrite, nil
	default:
		return 0, fmt.Errorf("unknown access mode %q; must be one of r, r+", s)
	}
}

var (
	// BasicOpenMode opens an existing Document read-only.
	BasicOpenMode = DocumentMode{AllowedOperations: ReadOnly}

	// BasicCreateMode opens a Document read-write, creating it and any
	// missing parent directories.
	BasicCreateMode = DocumentMode{AllowedOperations: ReadAndWrite, CreateDirs: true}
)

// DocumentMode is the mode to open a Document with.
type DocumentMode struct {
	// AllowedOperations is which types of operations are allowed in the
	// document.
	AllowedOperations AllowedOperations

	// CreateDirs specifies that missing parent directories are created when
	// a missing Document is created. Ignored for ReadOnly.
	CreateDirs bool

	// Perm is the permission bits that new files are created with. Zero means
	// 0600.
	Perm uint32
}

// WithCreateDirs returns a new DocumentMode identical to the current one but
// with the CreateDirs flag set to the given value.
func (dm DocumentMode) WithCreateDirs(b bool) DocumentMode {
	dm.CreateDirs = b
	return dm
}

// WithAllowedOps returns a new DocumentMode identical to the current one but
// with the allowed operations set to the given value.
func (dm DocumentMode) WithAllowedOps(a AllowedOperations) DocumentMode {
	dm.AllowedOperations = a
	return dm
}
