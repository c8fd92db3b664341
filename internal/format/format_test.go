package format

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vbf/internal/testutil"
	"github.com/meigma/vbf/internal/vbftype"
)

func parse(data []byte) (Header, []vbftype.Entry, error) {
	return Parse(bytes.NewReader(data), int64(len(data)))
}

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	b := testutil.NewArchiveBuilder().
		Add("DATA/Music/Theme.WIN", bytes.Repeat([]byte("abc"), 100)).
		AddRaw("raw.bin", bytes.Repeat([]byte{0xAB}, vbftype.BlockSize)).
		AddRaw("multi.bin", make([]byte, 70000)).
		Add("empty.txt", nil)
	data := b.Build()

	hdr, entries, err := parse(data)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), hdr.FileCount)
	require.Len(t, entries, 4)

	assert.Equal(t, "data/music/theme.win", entries[0].Path)
	assert.Equal(t, uint64(300), entries[0].OriginalSize)
	require.Len(t, entries[0].BlockSizes, 1)
	assert.Less(t, entries[0].BlockSizes[0], uint16(300))

	assert.Equal(t, "raw.bin", entries[1].Path)
	assert.Equal(t, []uint16{0}, entries[1].BlockSizes)

	assert.Equal(t, "multi.bin", entries[2].Path)
	assert.Equal(t, []uint16{0, 70000 - vbftype.BlockSize}, entries[2].BlockSizes)

	assert.Equal(t, "empty.txt", entries[3].Path)
	assert.Zero(t, entries[3].OriginalSize)
	assert.Empty(t, entries[3].BlockSizes)

	assert.Equal(t, uint64(b.Offsets().Payload), entries[0].DataOffset)
}

func TestParse_LowercasesAndReplacesInvalidUTF8(t *testing.T) {
	t.Parallel()

	data := testutil.NewArchiveBuilder().
		Add("Dir/MIXED_Case.TXT", []byte("x")).
		Add("bad\xffpath.txt", []byte("y")).
		Build()

	_, entries, err := parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dir/mixed_case.txt", entries[0].Path)
	assert.Equal(t, "bad�path.txt", entries[1].Path)
}

func TestParse_DuplicatePathsPreserved(t *testing.T) {
	t.Parallel()

	data := testutil.NewArchiveBuilder().
		Add("dup.txt", []byte("first")).
		Add("dup.txt", []byte("second")).
		Build()

	_, entries, err := parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dup.txt", entries[0].Path)
	assert.Equal(t, "dup.txt", entries[1].Path)
	assert.NotEqual(t, entries[0].DataOffset, entries[1].DataOffset)
}

func TestParse_InvalidMagic(t *testing.T) {
	t.Parallel()

	data := testutil.NewArchiveBuilder().
		Add("a.txt", []byte("a")).
		SetMagic(0x12345678).
		Build()

	_, entries, err := parse(data)
	require.ErrorIs(t, err, vbftype.ErrInvalidMagic)
	assert.Nil(t, entries)
}

func TestParse_Truncated(t *testing.T) {
	t.Parallel()

	b := testutil.NewArchiveBuilder().
		Add("dir/first.txt", bytes.Repeat([]byte("first"), 50)).
		Add("dir/second.txt", bytes.Repeat([]byte("second"), 50))
	data := b.Build()
	off := b.Offsets()

	tests := []struct {
		name string
		cut  int
	}{
		{"mid header", 10},
		{"mid checksums", off.Checksums + 8},
		{"mid records", off.Records + recordLen/2},
		{"mid path blob size", off.PathBlob + 2},
		{"mid path blob", off.BlockTable - 2},
		{"mid block table", off.Payload - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, entries, err := parse(data[:tt.cut])
			require.ErrorIs(t, err, vbftype.ErrTruncated)
			assert.Nil(t, entries)
		})
	}
}

func TestParse_FileCountExceedsArchive(t *testing.T) {
	t.Parallel()

	data := testutil.NewArchiveBuilder().
		Add("a.txt", []byte("a")).
		SetFileCount(1 << 40).
		Build()

	_, _, err := parse(data)
	require.ErrorIs(t, err, vbftype.ErrTruncated)
}

func TestParse_BlockStartOutsideTable(t *testing.T) {
	t.Parallel()

	data := testutil.NewArchiveBuilder().
		Add("a.bin", bytes.Repeat([]byte("a"), 100)).
		SetBlockStart("a.bin", 1000).
		Build()

	_, _, err := parse(data)
	require.ErrorIs(t, err, vbftype.ErrTruncated)
}

func TestParse_PathOffsetOutsideBlob(t *testing.T) {
	t.Parallel()

	data := testutil.NewArchiveBuilder().
		Add("a.bin", []byte("a")).
		SetPathOffset("a.bin", 1<<20).
		Build()

	_, _, err := parse(data)
	require.ErrorIs(t, err, vbftype.ErrTruncated)
}

func TestParse_PathOffsetMidBlobTerminatesAtNul(t *testing.T) {
	t.Parallel()

	// Offset 4 lands inside "dir/name.txt", yielding the suffix string.
	data := testutil.NewArchiveBuilder().
		Add("dir/name.txt", []byte("x")).
		SetPathOffset("dir/name.txt", 4).
		Build()

	_, entries, err := parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "name.txt", entries[0].Path)
}

func TestParse_BlockCounts(t *testing.T) {
	t.Parallel()

	sizes := []struct {
		size   int
		blocks int
	}{
		{0, 0},
		{1, 1},
		{vbftype.BlockSize - 1, 1},
		{vbftype.BlockSize, 1},
		{vbftype.BlockSize + 1, 2},
		{70000, 2},
		{2 * vbftype.BlockSize, 2},
		{2*vbftype.BlockSize + 1, 3},
	}

	b := testutil.NewArchiveBuilder()
	for i, s := range sizes {
		b.Add(fmt.Sprintf("file%02d.bin", i), make([]byte, s.size))
	}

	_, entries, err := parse(b.Build())
	require.NoError(t, err)
	require.Len(t, entries, len(sizes))
	for i, s := range sizes {
		assert.Len(t, entries[i].BlockSizes, s.blocks, "size %d", s.size)
	}
}
