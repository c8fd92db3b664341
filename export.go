package vbf

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meigma/vbf/internal/batch"
	"github.com/meigma/vbf/internal/file"
)

// ExportOption configures a batch extraction.
type ExportOption func(*exportConfig)

type exportConfig struct {
	workers   int
	overwrite bool
	progress  ProgressFunc
}

// ExportWithWorkers sets the number of extraction workers.
// Values < 1 use the default.
func ExportWithWorkers(n int) ExportOption {
	return func(c *exportConfig) {
		c.workers = n
	}
}

// ExportWithOverwrite allows overwriting existing files in the destination.
// By default, files that already exist are skipped.
func ExportWithOverwrite(overwrite bool) ExportOption {
	return func(c *exportConfig) {
		c.overwrite = overwrite
	}
}

// ExportWithProgress sets a progress callback invoked after each file.
func ExportWithProgress(fn ProgressFunc) ExportOption {
	return func(c *exportConfig) {
		c.progress = fn
	}
}

// ExportFailure records one file that could not be extracted.
type ExportFailure struct {
	// Path is the archive path of the failed file.
	Path string

	// Err is the extraction error for this file.
	Err error
}

// ExportReport summarizes a batch extraction.
//
// Failures are per-file: a bad block fails its own file and the batch
// continues, so a report can carry both extracted files and failures.
type ExportReport struct {
	// Extracted is the number of files successfully written.
	Extracted int

	// Skipped is the number of files skipped because they already existed.
	Skipped int

	// TotalBytes is the sum of decompressed sizes of extracted files.
	TotalBytes uint64

	// Failures lists the files that could not be extracted.
	Failures []ExportFailure
}

// Failed reports whether any file in the batch failed.
func (r *ExportReport) Failed() bool {
	return len(r.Failures) > 0
}

// WriteLog writes one line per failure to w, in "path (error)" form.
func (r *ExportReport) WriteLog(w io.Writer) error {
	for _, f := range r.Failures {
		if _, err := fmt.Fprintf(w, "%s (%v)\n", f.Path, f.Err); err != nil {
			return err
		}
	}
	return nil
}

// ExtractTo extracts the named files into destDir, preserving their
// archive paths as relative paths under destDir.
//
// paths must be in the catalog's normalized form. Unknown paths are
// reported as failures with ErrEntryNotFound; they do not abort the
// batch. The data handle must be open.
//
// Workers read through their own file handles, so ExtractTo does not
// interfere with concurrent Extract calls. Cancellation takes effect
// between files; files already committed stay on disk.
func (a *Archive) ExtractTo(ctx context.Context, destDir string, paths []string, opts ...ExportOption) (*ExportReport, error) {
	var notFound []ExportFailure
	entries := make([]*batch.Entry, 0, len(paths))
	for _, path := range paths {
		entry, ok := a.catalog.Lookup(path)
		if !ok {
			notFound = append(notFound, ExportFailure{Path: path, Err: ErrEntryNotFound})
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 && len(notFound) > 0 {
		return nil, fmt.Errorf("extract to %s: no requested path is in the archive: %w",
			destDir, ErrEntryNotFound)
	}

	report, err := a.extractEntries(ctx, destDir, entries, opts)
	if err != nil {
		return report, err
	}
	report.Failures = append(report.Failures, notFound...)
	return report, nil
}

// ExtractDir extracts every file under dir into destDir.
//
// dir must be in the catalog's normalized form; "." extracts the whole
// archive. A dir with no entries under it fails with ErrEntryNotFound.
func (a *Archive) ExtractDir(ctx context.Context, destDir, dir string, opts ...ExportOption) (*ExportReport, error) {
	prefix := ""
	if dir != "" && dir != "." {
		prefix = dir + "/"
	}

	var entries []*batch.Entry
	for entry := range a.catalog.EntriesWithPrefix(prefix) {
		e, _ := a.catalog.Lookup(entry.Path)
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("extract dir %s: %w", dir, ErrEntryNotFound)
	}

	return a.extractEntries(ctx, destDir, entries, opts)
}

// extractEntries runs the shared batch pipeline for ExtractTo and ExtractDir.
func (a *Archive) extractEntries(ctx context.Context, destDir string, entries []*batch.Entry, opts []ExportOption) (*ExportReport, error) {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// The batch opens its own handles, but requiring the shared handle up
	// front keeps the lifecycle contract uniform across extraction APIs.
	reader, err := a.dataReader()
	if err != nil {
		return nil, fmt.Errorf("extract to %s: %w", destDir, err)
	}

	if cfg.progress != nil {
		cfg.progress(ProgressEvent{
			Stage:      StageEnumerating,
			FilesTotal: len(entries),
		})
	}

	popts := []batch.ProcessorOption{
		batch.WithProcessorLogger(a.logger),
	}
	if cfg.workers >= 1 {
		popts = append(popts, batch.WithWorkers(cfg.workers))
	}
	if cfg.progress != nil {
		popts = append(popts, batch.WithProgress(cfg.progress))
	}

	processor := batch.NewProcessor(a.openBatchSource, reader.Pool(), a.maxFileSize, popts...)
	sink := batch.NewFileSink(destDir, batch.WithOverwrite(cfg.overwrite))

	stats, err := processor.Process(ctx, entries, sink)
	report := reportFromStats(stats)
	if err != nil {
		return report, fmt.Errorf("extract to %s: %w", destDir, err)
	}
	return report, nil
}

// openBatchSource opens an independent read handle on the archive for one
// batch worker.
func (a *Archive) openBatchSource() (file.ByteSource, io.Closer, error) {
	f, err := os.Open(a.path) //nolint:gosec // path validated at Open
	if err != nil {
		return nil, nil, err
	}
	source, err := newFileSource(f)
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, nil, err
	}
	return source, source, nil
}

func reportFromStats(stats *batch.Stats) *ExportReport {
	report := &ExportReport{
		Extracted:  stats.Processed,
		Skipped:    stats.Skipped,
		TotalBytes: stats.TotalBytes,
	}
	for _, f := range stats.Failures {
		report.Failures = append(report.Failures, ExportFailure{Path: f.Path, Err: f.Err})
	}
	return report
}
