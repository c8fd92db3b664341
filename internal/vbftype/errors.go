package vbftype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrInvalidMagic is returned when the archive header magic does not match.
	ErrInvalidMagic = errors.New("vbf: invalid archive magic")

	// ErrTruncated is returned when the archive ends before a read completes.
	ErrTruncated = errors.New("vbf: truncated archive")

	// ErrCorrupt is returned when sizes recorded in the metadata disagree
	// with the data they describe.
	ErrCorrupt = errors.New("vbf: corrupt archive")

	// ErrEntryNotFound is returned when the requested path is not in the catalog.
	ErrEntryNotFound = errors.New("vbf: entry not found")

	// ErrHandleNotOpen is returned when extraction is attempted while the
	// archive data handle is closed.
	ErrHandleNotOpen = errors.New("vbf: archive not open for reading")

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = errors.New("vbf: decompression failed")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("vbf: size overflow")
)
