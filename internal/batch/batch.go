package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/vbf/internal/file"
	"github.com/meigma/vbf/internal/sizing"
	"github.com/meigma/vbf/internal/vbftype"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

// OpenSource opens an independent byte source over the archive.
//
// Each batch worker calls it once, so concurrent workers never share read
// state. The returned closer releases the source when the worker finishes.
type OpenSource func() (file.ByteSource, io.Closer, error)

// Processor handles batch extraction of entries from an archive.
//
// Entries are sorted by data offset and grouped into contiguous on-disk
// ranges so each group is fetched with a single read. Extraction errors
// are per-entry: the batch continues past a failed file and reports it in
// the returned Stats.
type Processor struct {
	open        OpenSource
	pool        *file.DecompressPool
	maxFileSize uint64
	workers     int
	progress    vbftype.ProgressFunc
	logger      *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of extraction workers.
// Values < 1 use the default.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n >= 1 {
			p.workers = n
		}
	}
}

// WithProgress sets the progress callback for extraction events.
func WithProgress(fn vbftype.ProgressFunc) ProcessorOption {
	return func(p *Processor) {
		p.progress = fn
	}
}

// WithProcessorLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a new batch processor.
//
// open provides per-worker byte sources, pool provides reusable zlib
// readers, and maxFileSize limits individual entries (0 for no limit).
func NewProcessor(open OpenSource, pool *file.DecompressPool, maxFileSize uint64, opts ...ProcessorOption) *Processor {
	p := &Processor{
		open:        open,
		pool:        pool,
		maxFileSize: maxFileSize,
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts entries and writes their content to the sink.
//
// Entries are filtered through sink.ShouldProcess, sorted by offset, and
// grouped into contiguous ranges distributed across workers. Cancellation
// takes effect between files, never mid-file. Setup failures (opening a
// source, cancellation) abort with an error; per-entry failures land in
// Stats.Failures and the batch continues.
func (p *Processor) Process(ctx context.Context, entries []*Entry, sink Sink) (*Stats, error) {
	stats := &Stats{}
	if len(entries) == 0 {
		return stats, nil
	}

	toProcess := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if sink.ShouldProcess(entry) {
			toProcess = append(toProcess, entry)
		} else {
			stats.Skipped++
		}
	}
	if len(toProcess) == 0 {
		return stats, nil
	}
	filesTotal := len(toProcess)

	slices.SortFunc(toProcess, func(a, b *Entry) int {
		if a.DataOffset < b.DataOffset {
			return -1
		}
		if a.DataOffset > b.DataOffset {
			return 1
		}
		return 0
	})

	groups := groupAdjacentEntries(toProcess)
	p.log().Debug("batch extracting", "entries", len(toProcess), "groups", len(groups), "workers", p.workers)

	workers := min(p.workers, len(groups))
	groupCh := make(chan rangeGroup)
	g, ctx := errgroup.WithContext(ctx)

	for range workers {
		g.Go(func() error {
			source, closer, err := p.open()
			if err != nil {
				return fmt.Errorf("batch: open source: %w", err)
			}
			defer closer.Close() //nolint:errcheck // read-only source
			for group := range groupCh {
				if err := p.processGroup(ctx, source, group, sink, stats, filesTotal); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(groupCh)
		for _, group := range groups {
			select {
			case groupCh <- group:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// processGroup reads a contiguous range and extracts each entry in it.
//
// When the grouped read itself fails, each entry is retried with its own
// block-wise read so one bad disk region only fails the files it covers.
func (p *Processor) processGroup(ctx context.Context, source file.ByteSource, group rangeGroup, sink Sink, stats *Stats, filesTotal int) error {
	data, readErr := p.readGroupData(source, group)
	for _, entry := range group.entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		var content []byte
		var err error
		if readErr != nil {
			content, err = p.readEntry(source, entry)
		} else {
			content, err = p.decodeFromGroup(source, entry, data, group.start)
		}
		if err == nil {
			err = p.writeEntry(entry, content, sink)
		}

		if err != nil {
			p.log().Debug("entry failed", "path", entry.Path, "error", err)
			stats.recordFailure(entry.Path, err)
		} else {
			stats.recordSuccess(entry.OriginalSize)
		}
		p.emitProgress(entry, stats, filesTotal)
	}
	return nil
}

// readGroupData reads the contiguous byte range for a group.
func (p *Processor) readGroupData(source file.ByteSource, group rangeGroup) ([]byte, error) {
	size := group.end - group.start
	sizeInt, err := sizing.ToInt(size, vbftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	data := make([]byte, sizeInt)
	offset, err := sizing.ToInt64(group.start, vbftype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	n, err := source.ReadAt(data, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n != sizeInt {
		return nil, fmt.Errorf("short read (%d of %d bytes): %w", n, size, vbftype.ErrTruncated)
	}
	return data, nil
}

// decodeFromGroup decodes an entry from pre-fetched group data.
func (p *Processor) decodeFromGroup(source file.ByteSource, entry *Entry, data []byte, groupStart uint64) ([]byte, error) {
	if err := file.ValidateForRead(entry, source.Size(), p.maxFileSize); err != nil {
		return nil, err
	}
	localStart := entry.DataOffset - groupStart
	localEnd := localStart + file.OnDiskSize(entry)
	if localEnd < localStart || localEnd > uint64(len(data)) {
		return nil, vbftype.ErrSizeOverflow
	}
	return file.DecodeBlocks(p.pool, entry, data[localStart:localEnd])
}

// readEntry extracts an entry with its own block-wise read.
func (p *Processor) readEntry(source file.ByteSource, entry *Entry) ([]byte, error) {
	reader := file.NewReader(source, file.WithMaxFileSize(p.maxFileSize), file.WithPool(p.pool))
	return reader.ReadAll(entry)
}

// writeEntry commits decoded content to the sink.
func (p *Processor) writeEntry(entry *Entry, content []byte, sink Sink) error {
	w, err := sink.Writer(entry)
	if err != nil {
		return err
	}
	if err := writeAll(w, content); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// emitProgress reports one completed (or failed) entry.
func (p *Processor) emitProgress(entry *Entry, stats *Stats, filesTotal int) {
	if p.progress == nil {
		return
	}
	done, bytes := stats.counts()
	p.progress(vbftype.ProgressEvent{
		Stage:      vbftype.StageExtracting,
		Path:       entry.Path,
		BytesDone:  bytes,
		FilesDone:  done,
		FilesTotal: filesTotal,
	})
}

// writeAll writes all data to w, handling partial writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
