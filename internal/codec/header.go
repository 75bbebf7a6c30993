package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"dekarrin/sealdoc/internal/misc"
)

// Magic starts every non-empty encoded document.
const Magic = "SDOC"

// FormatVersion is the only header version this package reads and writes.
const FormatVersion byte = 1

const (
	flagCompressed byte = 1 << iota
	flagSealed

	knownFlags = flagCompressed | flagSealed
)

// baseHeaderLen is magic + version + flags.
const baseHeaderLen = len(Magic) + 2

// Header is the fixed prefix of an encoded document. It records which stages
// were used to produce the payload so a mismatched configuration is detected
// before anything is decoded.
type Header struct {
	Version    byte
	Compressed bool
	Sealed     bool

	// Nonce is set only when Sealed is true.
	Nonce []byte
}

// Len returns the encoded size of the header.
func (h Header) Len() int {
	if h.Sealed {
		return baseHeaderLen + NonceSize
	}
	return baseHeaderLen
}

// String describes the header for display.
func (h Header) String() string {
	var stages []string
	stages = append(stages, "json")
	if h.Compressed {
		stages = append(stages, "zstd")
	}
	if h.Sealed {
		stages = append(stages, "xchacha20-poly1305")
	}
	return fmt.Sprintf("%s v%d [%s]", Magic, h.Version, strings.Join(stages, " -> "))
}

func (h Header) flags() byte {
	var f byte
	if h.Compressed {
		f |= flagCompressed
	}
	if h.Sealed {
		f |= flagSealed
	}
	return f
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	if h.Sealed && len(h.Nonce) != NonceSize {
		return nil, fmt.Errorf("sealed header needs a %d-byte nonce, have %d", NonceSize, len(h.Nonce))
	}
	buf := make([]byte, 0, h.Len())
	buf = append(buf, Magic...)
	buf = append(buf, h.Version, h.flags())
	if h.Sealed {
		buf = append(buf, h.Nonce...)
	}
	return buf, nil
}

// parseHeader splits data into its header and the payload following it.
func parseHeader(data []byte) (Header, []byte, error) {
	h, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		return Header{}, nil, err
	}
	return h, data[h.Len():], nil
}

// ReadHeader reads only the header from r. It needs no key and can be used to
// find out how a file was written before opening it.
func ReadHeader(r io.Reader) (Header, error) {
	base, err := misc.ReadNBytes(r, baseHeaderLen)
	if err != nil {
		return Header{}, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if string(base[:len(Magic)]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, base[:len(Magic)])
	}

	h := Header{Version: base[len(Magic)]}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, h.Version)
	}

	flags := base[len(Magic)+1]
	if flags&^knownFlags != 0 {
		return Header{}, fmt.Errorf("%w: unknown header flags 0x%02x", ErrCorrupt, flags)
	}
	h.Compressed = flags&flagCompressed != 0
	h.Sealed = flags&flagSealed != 0

	if h.Sealed {
		h.Nonce, err = misc.ReadNBytes(r, NonceSize)
		if err != nil {
			return Header{}, fmt.Errorf("%w: short nonce: %v", ErrCorrupt, err)
		}
	}
	return h, nil
}
