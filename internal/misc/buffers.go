package misc

import (
	"fmt"
	"io"
)

// ReadNBytes reads exactly n bytes from the reader. An error is returned if
// fewer than n bytes could be read before EOF.
func ReadNBytes(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("number of bytes to read is negative: %v", n)
	}
	buf := make([]byte, n)
	numRead, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || (err == io.EOF && n > 0) {
		return nil, fmt.Errorf("incorrect number of bytes read; wanted %d but got %d", n, numRead)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
