package file

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vbf/internal/testutil"
	"github.com/meigma/vbf/internal/vbftype"
)

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// entryOver builds an entry whose block data occupies the whole source.
func entryOver(path string, originalSize uint64, blockSizes []uint16) *Entry {
	return &Entry{
		Path:         path,
		OriginalSize: originalSize,
		DataOffset:   0,
		BlockSizes:   blockSizes,
	}
}

func TestReadAll_RawSingleFullBlock(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte{0xA5}, BlockSize)
	entry := entryOver("full.bin", BlockSize, []uint16{0})
	r := NewReader(testutil.NewBytesSource(content))

	got, err := r.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReadAll_TrailingRawBlock(t *testing.T) {
	t.Parallel()

	// 70000 bytes: one full raw block plus a 4464-byte trailing block
	// whose on-disk size equals the remainder, so it is stored raw.
	content := bytes.Repeat([]byte{0x5A}, 70000)
	entry := entryOver("tail.bin", 70000, []uint16{0, 70000 - BlockSize})
	r := NewReader(testutil.NewBytesSource(content))

	got, err := r.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReadAll_TrailingCompressedBlock(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("trailing"), 70000/8)
	tail := deflate(t, content[BlockSize:])
	require.Less(t, len(tail), 70000-BlockSize)

	span := append(append([]byte{}, content[:BlockSize]...), tail...)
	entry := entryOver("tail.bin", 70000, []uint16{0, uint16(len(tail))})
	r := NewReader(testutil.NewBytesSource(span))

	got, err := r.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReadAll_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("roundtrip plaintext "), BlockSize/10)
	var span []byte
	var sizes []uint16
	for off := 0; off < len(content); off += BlockSize {
		end := min(off+BlockSize, len(content))
		comp := deflate(t, content[off:end])
		require.Less(t, len(comp), end-off)
		span = append(span, comp...)
		sizes = append(sizes, uint16(len(comp)))
	}

	entry := entryOver("text.txt", uint64(len(content)), sizes)
	r := NewReader(testutil.NewBytesSource(span))

	got, err := r.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReadAll_EmptyFile(t *testing.T) {
	t.Parallel()

	entry := entryOver("empty.bin", 0, nil)
	r := NewReader(testutil.NewBytesSource(nil))

	got, err := r.ReadAll(entry)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadAll_SpanOutsideSource(t *testing.T) {
	t.Parallel()

	entry := entryOver("short.bin", BlockSize, []uint16{0})
	r := NewReader(testutil.NewBytesSource(make([]byte, BlockSize-1)))

	_, err := r.ReadAll(entry)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadAll_CorruptCompressedBlock(t *testing.T) {
	t.Parallel()

	// Declared smaller than both the full block size and the remainder,
	// so the decoder must inflate, and the bytes are not a zlib stream.
	span := bytes.Repeat([]byte{0xFF}, 100)
	entry := entryOver("bad.bin", 500, []uint16{100})
	r := NewReader(testutil.NewBytesSource(span))

	_, err := r.ReadAll(entry)
	require.ErrorIs(t, err, ErrDecompression)
}

func TestReadAll_BlockInflatesShort(t *testing.T) {
	t.Parallel()

	// Stream inflates to 10 bytes where the entry claims 500.
	comp := deflate(t, bytes.Repeat([]byte{1}, 10))
	entry := entryOver("short.bin", 500, []uint16{uint16(len(comp))})
	r := NewReader(testutil.NewBytesSource(comp))

	_, err := r.ReadAll(entry)
	require.ErrorIs(t, err, ErrDecompression)
}

func TestReadAll_BlockInflatesLong(t *testing.T) {
	t.Parallel()

	// Stream inflates to 600 bytes where the entry claims 500.
	comp := deflate(t, bytes.Repeat([]byte{1}, 600))
	entry := entryOver("long.bin", 500, []uint16{uint16(len(comp))})
	r := NewReader(testutil.NewBytesSource(comp))

	_, err := r.ReadAll(entry)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestReadAll_BlockCountMismatch(t *testing.T) {
	t.Parallel()

	// Two blocks recorded for a one-block file.
	entry := entryOver("count.bin", 100, []uint16{50, 50})
	r := NewReader(testutil.NewBytesSource(make([]byte, 100)))

	_, err := r.ReadAll(entry)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestReadAll_MaxFileSize(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte{1}, 1000)
	entry := entryOver("big.bin", 1000, []uint16{1000})
	r := NewReader(testutil.NewBytesSource(content), WithMaxFileSize(100))

	_, err := r.ReadAll(entry)
	require.ErrorIs(t, err, ErrSizeOverflow)

	unlimited := NewReader(testutil.NewBytesSource(content), WithMaxFileSize(0))
	got, err := unlimited.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDecodeBlocks_MatchesReadAll(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("block data "), 9000)
	comp0 := deflate(t, content[:BlockSize])
	comp1 := deflate(t, content[BlockSize:])
	span := append(append([]byte{}, comp0...), comp1...)
	entry := entryOver("two.bin", uint64(len(content)), []uint16{uint16(len(comp0)), uint16(len(comp1))})

	r := NewReader(testutil.NewBytesSource(span))
	fromSource, err := r.ReadAll(entry)
	require.NoError(t, err)

	fromSpan, err := DecodeBlocks(NewDecompressPool(), entry, span)
	require.NoError(t, err)
	assert.Equal(t, fromSource, fromSpan)
}

func TestDecodeBlocks_SpanLengthMismatch(t *testing.T) {
	t.Parallel()

	entry := entryOver("a.bin", 100, []uint16{50})
	_, err := DecodeBlocks(NewDecompressPool(), entry, make([]byte, 49))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOnDiskLen(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(BlockSize), OnDiskLen(0))
	assert.Equal(t, uint64(1), OnDiskLen(1))
	assert.Equal(t, uint64(65535), OnDiskLen(65535))
}

func TestValidateForRead_BlockCounts(t *testing.T) {
	t.Parallel()

	good := entryOver("a.bin", vbftype.BlockSize+1, []uint16{0, 1})
	require.NoError(t, ValidateForRead(good, int64(BlockSize+1), 0))

	bad := entryOver("a.bin", vbftype.BlockSize+1, []uint16{0})
	require.ErrorIs(t, ValidateForRead(bad, int64(BlockSize+1), 0), ErrCorrupt)
}
