// Package format parses the on-disk VBF archive layout.
//
// All integers are little-endian. The metadata region is, in order: a
// 16-byte header, one 16-byte checksum per file (skipped), one 32-byte
// record per file, a length-prefixed blob of NUL-terminated path strings,
// and a flat table of uint16 per-block on-disk sizes shared by all files.
// Block data follows, addressed by each record's absolute data offset.
package format

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/meigma/vbf/internal/sizing"
	"github.com/meigma/vbf/internal/vbftype"
)

const (
	// Magic identifies a VBF archive ("SRYK" on disk).
	Magic = 0x4B595253

	headerLen   = 16 // magic + declared header size + file count
	checksumLen = 16 // per-file checksum, skipped
	recordLen   = 32 // per-file metadata record
	blobSizeLen = 4  // u32 prefix of the path blob
)

// Header holds the fixed archive header. It is returned for inspection and
// not retained by any parsed structure.
type Header struct {
	// HeaderSize is the declared metadata size. Read but not enforced;
	// known archives are addressed entirely through record offsets.
	HeaderSize uint32

	// FileCount is the number of file records in the archive.
	FileCount uint64
}

// record is the transient per-file metadata, consumed by buildEntries.
// The 4 reserved bytes following blockStart are discarded.
type record struct {
	blockStart   uint32
	originalSize uint64
	dataOffset   uint64
	pathOffset   uint64
}

// Parse reads the archive metadata in a single pass and returns the file
// entries in record order. Paths come back decoded (invalid UTF-8 replaced
// with U+FFFD) and lowercased; duplicate paths are preserved and left to
// the caller to resolve.
//
// size is the total length of the archive file and bounds every
// metadata region before it is allocated or read. Parsing is
// all-or-nothing: any failure returns a nil entry slice.
func Parse(r io.Reader, size int64) (Header, []vbftype.Entry, error) {
	if size < 0 {
		return Header{}, nil, fmt.Errorf("archive size %d: %w", size, vbftype.ErrCorrupt)
	}
	br := bufio.NewReader(r)

	hdr, err := parseHeader(br)
	if err != nil {
		return Header{}, nil, err
	}
	if err := checkMetadataBounds(hdr.FileCount, uint64(size)); err != nil {
		return Header{}, nil, err
	}

	// checkMetadataBounds caps FileCount*48 by the archive size, so the
	// region arithmetic below cannot overflow.
	checksums := hdr.FileCount * checksumLen
	if err := discard(br, checksums); err != nil {
		return Header{}, nil, fmt.Errorf("skip checksums: %w", err)
	}

	records, err := parseRecords(br, hdr.FileCount)
	if err != nil {
		return Header{}, nil, err
	}

	pos := headerLen + checksums + hdr.FileCount*recordLen
	blob, err := parsePathBlob(br, uint64(size)-pos)
	if err != nil {
		return Header{}, nil, err
	}

	pos += blobSizeLen + uint64(len(blob))
	table, err := parseBlockTable(br, records, uint64(size)-pos)
	if err != nil {
		return Header{}, nil, err
	}

	entries, err := buildEntries(records, blob, table)
	if err != nil {
		return Header{}, nil, err
	}
	return hdr, entries, nil
}

func parseHeader(br *bufio.Reader) (Header, error) {
	var buf [headerLen]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", truncated(err))
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != Magic {
		return Header{}, fmt.Errorf("magic 0x%08x: %w", magic, vbftype.ErrInvalidMagic)
	}
	return Header{
		HeaderSize: binary.LittleEndian.Uint32(buf[4:8]),
		FileCount:  binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// checkMetadataBounds rejects file counts whose fixed-size metadata could
// not fit in the archive, before any count-proportional allocation.
func checkMetadataBounds(fileCount, size uint64) error {
	metaLen, ok := sizing.MulUint64(fileCount, checksumLen+recordLen)
	if ok {
		metaLen, ok = sizing.AddUint64(metaLen, headerLen+blobSizeLen)
	}
	if !ok || metaLen > size {
		return fmt.Errorf("metadata for %d files exceeds archive size %d: %w",
			fileCount, size, vbftype.ErrTruncated)
	}
	return nil
}

func parseRecords(br *bufio.Reader, count uint64) ([]record, error) {
	n, err := sizing.ToInt(count, vbftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	records := make([]record, 0, n)
	var buf [recordLen]byte
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, fmt.Errorf("read file record %d: %w", i, truncated(err))
		}
		records = append(records, record{
			blockStart:   binary.LittleEndian.Uint32(buf[0:4]),
			originalSize: binary.LittleEndian.Uint64(buf[8:16]),
			dataOffset:   binary.LittleEndian.Uint64(buf[16:24]),
			pathOffset:   binary.LittleEndian.Uint64(buf[24:32]),
		})
	}
	return records, nil
}

// parsePathBlob reads the length-prefixed path blob. The u32 prefix counts
// its own 4 bytes.
func parsePathBlob(br *bufio.Reader, remaining uint64) ([]byte, error) {
	var buf [blobSizeLen]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return nil, fmt.Errorf("read path blob size: %w", truncated(err))
	}
	total := uint64(binary.LittleEndian.Uint32(buf[:]))
	if total < blobSizeLen {
		return nil, fmt.Errorf("path blob size %d: %w", total, vbftype.ErrCorrupt)
	}
	if total > remaining {
		return nil, fmt.Errorf("path blob of %d bytes exceeds remaining %d: %w",
			total, remaining, vbftype.ErrTruncated)
	}
	blob := make([]byte, total-blobSizeLen)
	if _, err := io.ReadFull(br, blob); err != nil {
		return nil, fmt.Errorf("read path blob: %w", truncated(err))
	}
	return blob, nil
}

// parseBlockTable reads the global block-size table. Its length is not
// stored; it is the sum of every file's block count.
func parseBlockTable(br *bufio.Reader, records []record, remaining uint64) ([]uint16, error) {
	var total uint64
	for _, rec := range records {
		var ok bool
		total, ok = sizing.AddUint64(total, vbftype.BlockCount(rec.originalSize))
		if !ok {
			return nil, fmt.Errorf("block table length: %w", vbftype.ErrSizeOverflow)
		}
	}
	tableBytes, ok := sizing.MulUint64(total, 2)
	if !ok || tableBytes > remaining {
		return nil, fmt.Errorf("block table of %d entries exceeds remaining %d bytes: %w",
			total, remaining, vbftype.ErrTruncated)
	}

	n, err := sizing.ToInt(total, vbftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	table := make([]uint16, n)
	if err := binary.Read(br, binary.LittleEndian, table); err != nil {
		return nil, fmt.Errorf("read block table: %w", truncated(err))
	}
	return table, nil
}

// buildEntries resolves each record's path and block-size slice. Slices
// into the global table are validated rather than clamped: a record that
// points past the table means the metadata regions disagree.
func buildEntries(records []record, blob []byte, table []uint16) ([]vbftype.Entry, error) {
	dec := unicode.UTF8.NewDecoder()
	entries := make([]vbftype.Entry, 0, len(records))
	tableLen := uint64(len(table))
	for i, rec := range records {
		path, err := pathAt(dec, blob, rec.pathOffset)
		if err != nil {
			return nil, fmt.Errorf("file record %d: %w", i, err)
		}
		start := uint64(rec.blockStart)
		end, ok := sizing.AddUint64(start, vbftype.BlockCount(rec.originalSize))
		if !ok || end > tableLen {
			return nil, fmt.Errorf("file record %d (%s): block sizes [%d:%d) outside table of %d: %w",
				i, path, start, end, tableLen, vbftype.ErrTruncated)
		}
		entries = append(entries, vbftype.Entry{
			Path:         path,
			OriginalSize: rec.originalSize,
			DataOffset:   rec.dataOffset,
			BlockSizes:   table[start:end],
		})
	}
	return entries, nil
}

// pathAt resolves the NUL-terminated string at off within the path blob,
// decoding permissively and lowercasing.
func pathAt(dec *encoding.Decoder, blob []byte, off uint64) (string, error) {
	if off > uint64(len(blob)) {
		return "", fmt.Errorf("path offset %d outside blob of %d bytes: %w",
			off, len(blob), vbftype.ErrTruncated)
	}
	raw := blob[off:]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	decoded, err := dec.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode path at %d: %w", off, err)
	}
	return strings.ToLower(string(decoded)), nil
}

func discard(br *bufio.Reader, n uint64) error {
	count, err := sizing.ToInt(n, vbftype.ErrSizeOverflow)
	if err != nil {
		return err
	}
	if _, err := br.Discard(count); err != nil {
		return truncated(err)
	}
	return nil
}

// truncated maps the io.ReadFull EOF variants onto ErrTruncated and passes
// other errors through.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return vbftype.ErrTruncated
	}
	return err
}
