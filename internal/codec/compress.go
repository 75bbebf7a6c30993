package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec is a single reversible byte-level stage of the Pipeline.
//
// The zero value of all Codecs is assumed to be usable, and all Codecs must
// be safe for concurrent use.
type Codec interface {
	// Format returns the human-readable name of the format that the Codec
	// produces.
	Format() string

	// Encode transforms data into the Codec's format. The input is not
	// modified.
	Encode(data []byte) ([]byte, error)

	// Decode reverses Encode. Input that is not in the Codec's format gives
	// an error wrapping ErrCorrupt.
	Decode(data []byte) ([]byte, error)
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEnc, zstdDec, zstdErr
}

// ZstdCodec compresses with Zstandard. The zero value is ready to use.
type ZstdCodec struct{}

// Format returns "zstd".
func (ZstdCodec) Format() string {
	return "zstd"
}

// Encode compresses data.
func (ZstdCodec) Encode(data []byte) ([]byte, error) {
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decode decompresses data.
func (ZstdCodec) Decode(data []byte) ([]byte, error) {
	_, dec, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
	}
	return out, nil
}
