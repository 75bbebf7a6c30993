package codec

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Pipeline converts Documents to bytes and back. Encoding always runs
// serialize, then compress (if Compression is set), then seal (if Sealer is
// non-nil); decoding runs the exact inverse.
//
// A Pipeline holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	Serializer  JSONSerializer
	Compression bool

	// Sealer enables encryption when non-nil.
	Sealer *Sealer
}

var compressor Codec = ZstdCodec{}

// Encrypted returns whether the Pipeline seals its output.
func (p Pipeline) Encrypted() bool {
	return p.Sealer != nil
}

// Header returns a header describing the Pipeline's configuration. The nonce
// is left empty.
func (p Pipeline) Header() Header {
	return Header{Version: FormatVersion, Compressed: p.Compression, Sealed: p.Encrypted()}
}

// Encode encodes doc. A nil doc encodes to zero bytes.
func (p Pipeline) Encode(doc Document) ([]byte, error) {
	if doc == nil {
		return []byte{}, nil
	}

	payload, err := p.Serializer.Serialize(doc)
	if err != nil {
		return nil, err
	}

	if p.Compression {
		payload, err = compressor.Encode(payload)
		if err != nil {
			return nil, err
		}
	}

	h := p.Header()
	if h.Sealed {
		h.Nonce = make([]byte, NonceSize)
		if _, err := io.ReadFull(rand.Reader, h.Nonce); err != nil {
			return nil, fmt.Errorf("generate nonce: %w", err)
		}
	}
	out, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if !h.Sealed {
		return append(out, payload...), nil
	}
	// the whole header is the associated data so the flags and version cannot
	// be altered without detection.
	ad := append([]byte(nil), out...)
	return p.Sealer.Seal(out, h.Nonce, payload, ad), nil
}

// Decode decodes data produced by a Pipeline with the same configuration.
// Zero bytes decode to a nil Document and a nil error.
func (p Pipeline) Decode(data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, nil
	}

	h, payload, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Compressed != p.Compression || h.Sealed != p.Encrypted() {
		return nil, fmt.Errorf("%w: data is %s but configuration expects %s", ErrFormatMismatch, h, p.Header())
	}

	if h.Sealed {
		payload, err = p.Sealer.Open(h.Nonce, payload, data[:h.Len()])
		if err != nil {
			return nil, err
		}
	}

	if h.Compressed {
		payload, err = compressor.Decode(payload)
		if err != nil {
			return nil, err
		}
	}

	return p.Serializer.Deserialize(payload)
}
