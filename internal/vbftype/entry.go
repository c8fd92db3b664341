package vbftype

// BlockSize is the fixed decompressed block length. Every file in the
// archive is segmented into BlockSize units; only a file's final block
// may hold fewer bytes.
const BlockSize = 64 * 1024

// Entry represents a file in the archive.
type Entry struct {
	// Path is the normalized file path: lowercased, forward-slash
	// separated, relative to the archive root.
	Path string

	// OriginalSize is the decompressed size in bytes.
	OriginalSize uint64

	// DataOffset is the absolute byte offset in the archive file where
	// this file's block data begins.
	DataOffset uint64

	// BlockSizes holds the declared on-disk length of each block in
	// order. A stored value of 0 means the block occupies the full
	// BlockSize bytes on disk. Must be treated as read-only.
	BlockSizes []uint16
}

// BlockCount returns the number of blocks a file of the given
// decompressed size occupies.
func BlockCount(originalSize uint64) uint64 {
	n := originalSize / BlockSize
	if originalSize%BlockSize != 0 {
		n++
	}
	return n
}
