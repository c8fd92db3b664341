package file

import "github.com/meigma/vbf/internal/vbftype"

// Entry is re-exported from vbftype to avoid import changes throughout file.
type Entry = vbftype.Entry

// BlockSize is the fixed decompressed block length.
const BlockSize = vbftype.BlockSize

// Re-export sentinel errors.
var (
	ErrTruncated     = vbftype.ErrTruncated
	ErrCorrupt       = vbftype.ErrCorrupt
	ErrDecompression = vbftype.ErrDecompression
	ErrSizeOverflow  = vbftype.ErrSizeOverflow
)
