package file

import (
	"bytes"
	"fmt"
	"io"

	"github.com/meigma/vbf/internal/sizing"
	"github.com/meigma/vbf/internal/vbftype"
)

// DefaultMaxFileSize is the default maximum decompressed file size (1GB).
const DefaultMaxFileSize = 1 << 30

// ByteSource provides random access to the archive data.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Reader decodes file content from a ByteSource block by block.
//
// Each block is stored either raw or as a zlib stream; a block is raw when
// its on-disk length equals the full block size, or when it is the final
// block and its on-disk length equals the file's trailing remainder. The
// format records no per-block flag, so the size test is the only signal.
type Reader struct {
	source      ByteSource
	maxFileSize uint64
	pool        *DecompressPool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxFileSize sets the maximum decompressed file size limit.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxFileSize = limit
	}
}

// WithPool sets a shared decompression pool.
func WithPool(pool *DecompressPool) Option {
	return func(r *Reader) {
		r.pool = pool
	}
}

// NewReader creates a Reader for reading files from the given source.
func NewReader(source ByteSource, opts ...Option) *Reader {
	r := &Reader{
		source:      source,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool == nil {
		r.pool = NewDecompressPool()
	}
	return r
}

// Source returns the underlying ByteSource.
func (r *Reader) Source() ByteSource {
	return r.source
}

// MaxFileSize returns the configured maximum file size.
func (r *Reader) MaxFileSize() uint64 {
	return r.maxFileSize
}

// Pool returns the decompression pool for reuse.
func (r *Reader) Pool() *DecompressPool {
	return r.pool
}

// ReadAll reads and decodes the entire content of an entry.
//
// Blocks are read one at a time through a single reusable buffer, so peak
// memory is the decompressed size plus one block.
func (r *Reader) ReadAll(entry *Entry) ([]byte, error) {
	if err := ValidateForRead(entry, r.source.Size(), r.maxFileSize); err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}

	contentSize, err := sizing.ToInt(entry.OriginalSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	out := make([]byte, contentSize)

	dec := decoder{pool: r.pool, entry: entry, out: out}
	blockBuf := make([]byte, BlockSize)
	offset := int64(entry.DataOffset) //nolint:gosec // bounded by ValidateForRead
	for i, declared := range entry.BlockSizes {
		onDisk := int(OnDiskLen(declared)) //nolint:gosec // at most BlockSize
		block := blockBuf[:onDisk]
		n, err := r.source.ReadAt(block, offset)
		if n < onDisk {
			// ValidateForRead bounds the span, so a short read here means
			// the source shrank underneath us.
			if err == nil || err == io.EOF {
				err = ErrTruncated
			}
			return nil, fmt.Errorf("read %s block %d: %w", entry.Path, i, err)
		}
		offset += int64(onDisk)
		if err := dec.writeBlock(i, block); err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Path, err)
		}
	}

	if err := dec.finish(); err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	return out, nil
}

// DecodeBlocks decodes an entry from its complete on-disk block span.
//
// span must hold exactly OnDiskSize(entry) bytes. This is the in-memory
// path used by batch extraction after a grouped range read.
func DecodeBlocks(pool *DecompressPool, entry *Entry, span []byte) ([]byte, error) {
	if want := vbftype.BlockCount(entry.OriginalSize); uint64(len(entry.BlockSizes)) != want {
		return nil, fmt.Errorf("%w: %d blocks recorded for %d bytes (want %d)",
			ErrCorrupt, len(entry.BlockSizes), entry.OriginalSize, want)
	}
	if uint64(len(span)) != OnDiskSize(entry) {
		return nil, fmt.Errorf("%w: %d span bytes for %d on disk",
			ErrCorrupt, len(span), OnDiskSize(entry))
	}

	contentSize, err := sizing.ToInt(entry.OriginalSize, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	out := make([]byte, contentSize)

	dec := decoder{pool: pool, entry: entry, out: out}
	for i, declared := range entry.BlockSizes {
		onDisk := int(OnDiskLen(declared)) //nolint:gosec // at most BlockSize
		if err := dec.writeBlock(i, span[:onDisk]); err != nil {
			return nil, err
		}
		span = span[onDisk:]
	}

	if err := dec.finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// decoder tracks the output write cursor across an entry's blocks.
type decoder struct {
	pool   *DecompressPool
	entry  *Entry
	out    []byte
	cursor int
}

// writeBlock decodes block i into the output at the current cursor.
func (d *decoder) writeBlock(i int, block []byte) error {
	last := i == len(d.entry.BlockSizes)-1
	remainder := d.entry.OriginalSize % BlockSize

	if uint64(len(block)) == BlockSize || (last && uint64(len(block)) == remainder) {
		if d.cursor+len(block) > len(d.out) {
			return fmt.Errorf("%w: raw block %d overflows output", ErrCorrupt, i)
		}
		copy(d.out[d.cursor:], block)
		d.cursor += len(block)
		return nil
	}

	expected := uint64(BlockSize)
	if last && remainder != 0 {
		expected = remainder
	}
	if uint64(d.cursor)+expected > uint64(len(d.out)) {
		return fmt.Errorf("%w: block %d overflows output", ErrCorrupt, i)
	}

	zr, release, err := d.pool.Get(bytes.NewReader(block))
	if err != nil {
		return fmt.Errorf("%w: block %d: %v", ErrDecompression, i, err)
	}
	defer release()

	n := int(expected) //nolint:gosec // at most BlockSize
	if _, err := io.ReadFull(zr, d.out[d.cursor:d.cursor+n]); err != nil {
		return fmt.Errorf("%w: block %d: %v", ErrDecompression, i, err)
	}
	if err := ensureNoExtra(zr, i); err != nil {
		return err
	}
	d.cursor += n
	return nil
}

// finish checks the closing invariant: the cursor landed exactly at the
// entry's decompressed size.
func (d *decoder) finish() error {
	if uint64(d.cursor) != d.entry.OriginalSize {
		return fmt.Errorf("%w: decoded %d of %d bytes", ErrCorrupt, d.cursor, d.entry.OriginalSize)
	}
	return nil
}

// ensureNoExtra probes one byte past the expected end of a stream.
func ensureNoExtra(r io.Reader, block int) error {
	var probe [1]byte
	if n, _ := r.Read(probe[:]); n > 0 {
		return fmt.Errorf("%w: block %d inflates past its expected size", ErrCorrupt, block)
	}
	return nil
}
