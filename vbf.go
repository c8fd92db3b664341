package vbf

import (
	"bytes"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/vbf/cache"
	"github.com/meigma/vbf/internal/file"
	"github.com/meigma/vbf/internal/format"
	"github.com/meigma/vbf/internal/index"
	"github.com/meigma/vbf/internal/vbftype"
)

// Re-export types from internal/vbftype for public API.
type (
	// Entry represents a file in the archive.
	Entry = vbftype.Entry

	// ProgressEvent represents a progress update during batch extraction.
	ProgressEvent = vbftype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = vbftype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = vbftype.ProgressFunc
)

// BlockSize is the fixed decompressed block length of the format.
const BlockSize = vbftype.BlockSize

// Re-export progress stage constants.
const (
	StageEnumerating = vbftype.StageEnumerating
	StageExtracting  = vbftype.StageExtracting
)

// Sentinel errors re-exported from internal/vbftype.
var (
	// ErrInvalidMagic is returned when the archive header magic does not match.
	ErrInvalidMagic = vbftype.ErrInvalidMagic

	// ErrTruncated is returned when the archive ends before a read completes.
	ErrTruncated = vbftype.ErrTruncated

	// ErrCorrupt is returned when sizes recorded in the metadata disagree
	// with the data they describe.
	ErrCorrupt = vbftype.ErrCorrupt

	// ErrEntryNotFound is returned when the requested path is not in the catalog.
	ErrEntryNotFound = vbftype.ErrEntryNotFound

	// ErrHandleNotOpen is returned when extraction is attempted while the
	// archive data handle is closed.
	ErrHandleNotOpen = vbftype.ErrHandleNotOpen

	// ErrDecompression is returned when decompression of a block fails.
	ErrDecompression = vbftype.ErrDecompression

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = vbftype.ErrSizeOverflow
)

// Archive provides random access to files in a VBF archive.
//
// The catalog is built once by Open and is immutable afterwards; lookups
// and iteration are safe for concurrent use. The data handle is a separate
// resource with an explicit lifecycle: OpenData before extracting, Close
// when done. Extraction itself uses positionless reads, so concurrent
// Extract calls against one open handle do not interleave.
type Archive struct {
	path        string
	catalog     *index.Catalog
	maxFileSize uint64
	cache       cache.Cache        // nil = no caching
	readGroup   singleflight.Group // zero value is valid
	logger      *slog.Logger

	mu     sync.Mutex // guards source and reader lifecycle
	source *fileSource
	reader *file.Reader
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open parses the metadata of the archive at path and returns a
// ready-to-query Archive.
//
// Loading is all-or-nothing: any magic mismatch, short read, or
// inconsistent metadata fails the open and no catalog is retained. The
// returned Archive's data handle starts closed; call OpenData before
// extracting.
func Open(path string, opts ...Option) (*Archive, error) {
	a := &Archive{
		path:        path,
		maxFileSize: file.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(a)
	}

	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	hdr, entries, err := format.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	a.catalog = index.New(entries)
	a.log().Debug("archive loaded",
		"path", path,
		"entries", a.catalog.Len(),
		"records", hdr.FileCount,
		"declared_header_size", hdr.HeaderSize)
	return a, nil
}

// Path returns the archive's file path.
func (a *Archive) Path() string {
	return a.path
}

// OpenData opens the underlying archive file for extraction.
//
// Calling OpenData on an already-open archive is a no-op.
func (a *Archive) OpenData() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		return nil
	}

	f, err := os.Open(a.path) //nolint:gosec // path validated at Open
	if err != nil {
		return fmt.Errorf("open archive data: %w", err)
	}
	source, err := newFileSource(f)
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	a.source = source
	a.reader = file.NewReader(source, file.WithMaxFileSize(a.maxFileSize))
	return nil
}

// Close releases the data handle. It is safe to call on a never-opened or
// already-closed archive.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		return nil
	}
	err := a.source.Close()
	a.source = nil
	a.reader = nil
	return err
}

// dataReader returns the block reader for the open data handle.
func (a *Archive) dataReader() (*file.Reader, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reader == nil {
		return nil, ErrHandleNotOpen
	}
	return a.reader, nil
}

// Extract returns the decompressed content of the named file.
//
// path must be in the catalog's normalized form; use NormalizePath for
// user input. An unknown path fails with ErrEntryNotFound before any data
// I/O; a closed handle fails with ErrHandleNotOpen. Block-level problems
// surface as ErrTruncated, ErrDecompression, or ErrCorrupt for this call
// only. No retries are attempted.
//
// When caching is enabled (via WithCache), concurrent calls for the same
// path are deduplicated and hits are served without touching the handle.
func (a *Archive) Extract(path string) ([]byte, error) {
	entry, ok := a.catalog.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("extract %s: %w", path, ErrEntryNotFound)
	}

	if a.cache == nil {
		reader, err := a.dataReader()
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		return reader.ReadAll(entry)
	}

	if content, ok := a.cache.Get(path); ok {
		a.log().Debug("extract cache hit", "path", path)
		return content, nil
	}
	a.log().Debug("extract cache miss", "path", path)

	result, err, shared := a.readGroup.Do(path, func() (any, error) {
		// Double-check: another flight may have populated the cache
		// between our miss and acquiring the flight.
		if content, ok := a.cache.Get(path); ok {
			return content, nil
		}
		reader, err := a.dataReader()
		if err != nil {
			return nil, err
		}
		content, err := reader.ReadAll(entry)
		if err != nil {
			return nil, err
		}
		a.cache.Add(path, content)
		return content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	content := result.([]byte) //nolint:forcetypeassert // the flight only returns []byte
	if shared {
		// Waiters each get their own copy so no two callers alias one slice.
		content = bytes.Clone(content)
	}
	return content, nil
}

// Entry returns the catalog entry for the given normalized path.
//
// The entry's BlockSizes slice aliases catalog data and must be treated
// as read-only.
func (a *Archive) Entry(path string) (Entry, bool) {
	e, ok := a.catalog.Lookup(path)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns an iterator over all entries in ascending path order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return a.catalog.Entries()
}

// EntriesWithPrefix returns an iterator over entries whose path begins
// with prefix, in ascending path order.
func (a *Archive) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return a.catalog.EntriesWithPrefix(prefix)
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return a.catalog.Len()
}
