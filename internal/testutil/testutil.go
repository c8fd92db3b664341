// Package testutil provides an in-memory byte source and a synthetic
// archive builder for tests.
package testutil

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vbf/internal/vbftype"
)

// Layout constants, written independently of the parser so that fixtures
// exercise it rather than echo it.
const (
	magic       = 0x4B595253
	headerLen   = 16
	checksumLen = 16
	recordLen   = 32
)

// Offsets reports where each metadata region begins in a built archive.
type Offsets struct {
	Checksums  int
	Records    int
	PathBlob   int
	BlockTable int
	Payload    int
}

// ArchiveBuilder assembles a synthetic archive in memory.
//
// Files are laid out in Add order. Each 65536-byte block of content is
// zlib-compressed and the compressed form kept only when smaller,
// mirroring the encoder rule the decoder's raw-vs-compressed test
// assumes. Mutating the builder after Build is not supported.
type ArchiveBuilder struct {
	files        []builderFile
	magic        uint32
	fileCount    uint64
	fileCountSet bool
	gap          int

	blockStartOverride map[string]uint32
	pathOffsetOverride map[string]uint64
	declaredOverride   map[string]map[int]uint16

	built   []byte
	offsets Offsets
	done    bool
}

type builderFile struct {
	path string
	data []byte
	raw  bool
}

// NewArchiveBuilder returns a builder producing a well-formed archive
// until corrupted through its Set methods.
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{
		magic:              magic,
		blockStartOverride: make(map[string]uint32),
		pathOffsetOverride: make(map[string]uint64),
		declaredOverride:   make(map[string]map[int]uint16),
	}
}

// Add appends a file. Paths are written to the blob verbatim, so raw
// bytes (mixed case, invalid UTF-8) reach the parser unmodified.
// Duplicate paths are allowed.
func (b *ArchiveBuilder) Add(path string, data []byte) *ArchiveBuilder {
	b.files = append(b.files, builderFile{path: path, data: data})
	return b
}

// AddRaw appends a file whose blocks are stored uncompressed regardless
// of whether compression would shrink them.
func (b *ArchiveBuilder) AddRaw(path string, data []byte) *ArchiveBuilder {
	b.files = append(b.files, builderFile{path: path, data: data, raw: true})
	return b
}

// SetMagic overrides the header magic.
func (b *ArchiveBuilder) SetMagic(v uint32) *ArchiveBuilder {
	b.magic = v
	return b
}

// SetFileCount overrides the header file count without changing the
// records actually written.
func (b *ArchiveBuilder) SetFileCount(v uint64) *ArchiveBuilder {
	b.fileCount = v
	b.fileCountSet = true
	return b
}

// SetBlockStart overrides the block-table start index recorded for path.
func (b *ArchiveBuilder) SetBlockStart(path string, v uint32) *ArchiveBuilder {
	b.blockStartOverride[path] = v
	return b
}

// SetPathOffset overrides the path-blob offset recorded for path.
func (b *ArchiveBuilder) SetPathOffset(path string, v uint64) *ArchiveBuilder {
	b.pathOffsetOverride[path] = v
	return b
}

// SetDeclared overrides the declared on-disk size of one block of path.
// The payload bytes are left as originally encoded.
func (b *ArchiveBuilder) SetDeclared(path string, block int, v uint16) *ArchiveBuilder {
	m := b.declaredOverride[path]
	if m == nil {
		m = make(map[int]uint16)
		b.declaredOverride[path] = m
	}
	m[block] = v
	return b
}

// WithGap inserts n zero bytes after every file's block data, so entries
// are not adjacent on disk.
func (b *ArchiveBuilder) WithGap(n int) *ArchiveBuilder {
	b.gap = n
	return b
}

// Build returns the serialized archive.
func (b *ArchiveBuilder) Build() []byte {
	b.build()
	return b.built
}

// Offsets returns the region offsets of the built archive.
func (b *ArchiveBuilder) Offsets() Offsets {
	b.build()
	return b.offsets
}

// WriteFile writes the archive into a fresh temp dir and returns its path.
func (b *ArchiveBuilder) WriteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vbf")
	require.NoError(t, os.WriteFile(path, b.Build(), 0o644))
	return path
}

type encodedFile struct {
	sizes   []uint16
	payload []byte
}

func (b *ArchiveBuilder) build() {
	if b.done {
		return
	}
	b.done = true

	encs := make([]encodedFile, len(b.files))
	for i, f := range b.files {
		encs[i] = encodeBlocks(f.data, f.raw)
		for bi, v := range b.declaredOverride[f.path] {
			if bi < len(encs[i].sizes) {
				encs[i].sizes[bi] = v
			}
		}
	}

	var blob bytes.Buffer
	pathOff := make([]uint64, len(b.files))
	for i, f := range b.files {
		pathOff[i] = uint64(blob.Len())
		blob.WriteString(f.path)
		blob.WriteByte(0)
	}

	n := len(b.files)
	totalBlocks := 0
	for _, e := range encs {
		totalBlocks += len(e.sizes)
	}
	o := Offsets{Checksums: headerLen}
	o.Records = o.Checksums + n*checksumLen
	o.PathBlob = o.Records + n*recordLen
	o.BlockTable = o.PathBlob + 4 + blob.Len()
	o.Payload = o.BlockTable + 2*totalBlocks

	dataOff := make([]uint64, n)
	off := o.Payload
	for i, e := range encs {
		dataOff[i] = uint64(off)
		off += len(e.payload) + b.gap
	}

	var out bytes.Buffer
	hdr := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(hdr[0:4], b.magic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(o.Payload))
	count := uint64(n)
	if b.fileCountSet {
		count = b.fileCount
	}
	binary.LittleEndian.PutUint64(hdr[8:16], count)
	out.Write(hdr)

	for _, f := range b.files {
		sum := md5.Sum([]byte(f.path))
		out.Write(sum[:])
	}

	rec := make([]byte, recordLen)
	blockStart := uint32(0)
	for i, f := range b.files {
		start := blockStart
		if v, ok := b.blockStartOverride[f.path]; ok {
			start = v
		}
		po := pathOff[i]
		if v, ok := b.pathOffsetOverride[f.path]; ok {
			po = v
		}
		binary.LittleEndian.PutUint32(rec[0:4], start)
		binary.LittleEndian.PutUint32(rec[4:8], 0)
		binary.LittleEndian.PutUint64(rec[8:16], uint64(len(f.data)))
		binary.LittleEndian.PutUint64(rec[16:24], dataOff[i])
		binary.LittleEndian.PutUint64(rec[24:32], po)
		out.Write(rec)
		blockStart += uint32(len(encs[i].sizes))
	}

	var blobSize [4]byte
	binary.LittleEndian.PutUint32(blobSize[:], uint32(4+blob.Len()))
	out.Write(blobSize[:])
	out.Write(blob.Bytes())

	var u16 [2]byte
	for _, e := range encs {
		for _, s := range e.sizes {
			binary.LittleEndian.PutUint16(u16[:], s)
			out.Write(u16[:])
		}
	}

	for _, e := range encs {
		out.Write(e.payload)
		if b.gap > 0 {
			out.Write(make([]byte, b.gap))
		}
	}

	b.built = out.Bytes()
	b.offsets = o
}

func encodeBlocks(data []byte, forceRaw bool) encodedFile {
	var enc encodedFile
	for off := 0; off < len(data); off += vbftype.BlockSize {
		end := off + vbftype.BlockSize
		if end > len(data) {
			end = len(data)
		}
		stored, declared := encodeBlock(data[off:end], forceRaw)
		enc.sizes = append(enc.sizes, declared)
		enc.payload = append(enc.payload, stored...)
	}
	return enc
}

func encodeBlock(chunk []byte, forceRaw bool) ([]byte, uint16) {
	if !forceRaw {
		comp := deflate(chunk)
		if len(comp) < len(chunk) {
			return comp, uint16(len(comp))
		}
	}
	if len(chunk) == vbftype.BlockSize {
		return chunk, 0
	}
	return chunk, uint16(len(chunk))
}

func deflate(chunk []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write(chunk) //nolint:errcheck // buffer writes never fail
	_ = zw.Close()         //nolint:errcheck // buffer writes never fail
	return buf.Bytes()
}

// CompressibleData returns n bytes of repetitive content that deflates
// well, so every block is stored compressed.
func CompressibleData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i / 256)
	}
	return data
}

// RandomData returns n bytes of incompressible content, so every full
// block is stored raw.
func RandomData(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

// BytesSource adapts an in-memory byte slice to the reader's ByteSource.
type BytesSource struct {
	data     []byte
	sourceID string
}

// NewBytesSource returns a byte source backed by the provided data.
func NewBytesSource(data []byte) *BytesSource {
	sum := sha256.Sum256(data)
	return &BytesSource{
		data:     data,
		sourceID: "mem:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if off+int64(n) >= int64(len(s.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (s *BytesSource) Size() int64 {
	return int64(len(s.data))
}

// SourceID returns a stable identifier for the source data.
func (s *BytesSource) SourceID() string {
	return s.sourceID
}

// Bytes returns the backing slice for tests that need to mutate data.
func (s *BytesSource) Bytes() []byte {
	return s.data
}
