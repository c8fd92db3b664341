package file

import (
	"fmt"

	"github.com/meigma/vbf/internal/sizing"
	"github.com/meigma/vbf/internal/vbftype"
)

// OnDiskLen returns the stored length of a block from its declared size.
// A declared size of 0 is the sentinel for a full uncompressed block.
func OnDiskLen(declared uint16) uint64 {
	if declared == 0 {
		return BlockSize
	}
	return uint64(declared)
}

// OnDiskSize returns the total stored length of an entry's block data.
func OnDiskSize(entry *Entry) uint64 {
	var total uint64
	for _, declared := range entry.BlockSizes {
		total += OnDiskLen(declared)
	}
	return total
}

// ValidateForRead checks that an entry is safe to read from a source of the
// given size. It validates:
//   - Block count matches the entry's decompressed size
//   - Decompressed size is within the maxFileSize limit (if limit > 0)
//   - Data offset + on-disk span doesn't overflow
//   - The on-disk span is within source bounds
func ValidateForRead(entry *Entry, sourceSize int64, maxFileSize uint64) error {
	if sourceSize < 0 {
		return ErrSizeOverflow
	}

	if want := vbftype.BlockCount(entry.OriginalSize); uint64(len(entry.BlockSizes)) != want {
		return fmt.Errorf("%w: %d blocks recorded for %d bytes (want %d)",
			ErrCorrupt, len(entry.BlockSizes), entry.OriginalSize, want)
	}

	if maxFileSize > 0 && entry.OriginalSize > maxFileSize {
		return ErrSizeOverflow
	}

	end, ok := sizing.AddUint64(entry.DataOffset, OnDiskSize(entry))
	if !ok {
		return ErrSizeOverflow
	}
	if end > uint64(sourceSize) {
		return fmt.Errorf("%w: block data [%d:%d) outside archive of %d bytes",
			ErrTruncated, entry.DataOffset, end, sourceSize)
	}

	return nil
}
