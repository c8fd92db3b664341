package file

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// DecompressPool manages reusable zlib readers to reduce allocation overhead.
//
// Zero-byte compressed blocks never occur in valid archives, so every Get
// is handed a non-empty stream.
type DecompressPool struct {
	pool sync.Pool
}

// NewDecompressPool creates a new pool for zlib readers.
func NewDecompressPool() *DecompressPool {
	return &DecompressPool{}
}

// Get returns a zlib reader positioned at the start of r's stream.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *DecompressPool) Get(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil //nolint:errcheck // reader close never fails mid-pool
	}

	if value := p.pool.Get(); value != nil {
		zr, ok := value.(io.ReadCloser)
		if ok {
			resetter, ok := zr.(zlib.Resetter)
			if ok {
				// Reset consumes the stream header, so a failure cannot
				// fall through to a fresh reader on the same stream.
				if err := resetter.Reset(r, nil); err != nil {
					_ = zr.Close() //nolint:errcheck // discarding unusable reader
					return nil, nil, err
				}
				return zr, func() { p.pool.Put(zr) }, nil
			}
			_ = zr.Close() //nolint:errcheck // discarding unusable reader
		}
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { p.pool.Put(zr) }, nil
}
