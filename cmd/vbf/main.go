// Command vbf lists and extracts files from VBF game archives.
//
// Usage:
//
//	vbf -l archive.vbf                     list entries
//	vbf -x data/file.bin -o out archive.vbf  extract named files
//	vbf -d data -o out archive.vbf         extract a subtree
//	vbf -scan dir                          list archives in a directory
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/meigma/vbf"
)

type config struct {
	list      bool
	extract   string
	dir       string
	outDir    string
	workers   int
	overwrite bool
	logPath   string
	verbose   bool
	scan      bool
	target    string
}

// errPartialExport signals that some files failed to extract; the batch
// itself completed.
var errPartialExport = errors.New("some files failed to extract")

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		if errors.Is(err, errPartialExport) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "vbf:", err)
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config
	flag.BoolVar(&cfg.list, "l", false, "list archive entries")
	flag.StringVar(&cfg.extract, "x", "", "comma-separated archive paths to extract")
	flag.StringVar(&cfg.dir, "d", "", "archive directory to extract (\".\" for everything)")
	flag.StringVar(&cfg.outDir, "o", ".", "output directory for extraction")
	flag.IntVar(&cfg.workers, "w", 0, "extraction workers (0 = default)")
	flag.BoolVar(&cfg.overwrite, "f", false, "overwrite existing files")
	flag.StringVar(&cfg.logPath, "log", "", "write failed extractions to this file")
	flag.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	flag.BoolVar(&cfg.scan, "scan", false, "treat the argument as a directory and list archives in it")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	cfg.target = flag.Arg(0)
	return cfg
}

func run(cfg config) error {
	if cfg.scan {
		return runScan(cfg.target)
	}

	var opts []vbf.Option
	if cfg.verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, vbf.WithLogger(logger))
	}

	archive, err := vbf.Open(cfg.target, opts...)
	if err != nil {
		return err
	}
	defer archive.Close() //nolint:errcheck // read-only handle

	switch {
	case cfg.list:
		return runList(archive)
	case cfg.extract != "" || cfg.dir != "":
		return runExtract(archive, cfg)
	default:
		fmt.Printf("%s: %d entries\n", archive.Path(), archive.Len())
		return nil
	}
}

func runScan(dir string) error {
	archives, err := vbf.FindArchives(dir)
	if err != nil {
		return err
	}
	for _, path := range archives {
		fmt.Println(path)
	}
	return nil
}

func runList(archive *vbf.Archive) error {
	for entry := range archive.Entries() {
		fmt.Printf("%12d  %s\n", entry.OriginalSize, entry.Path)
	}
	return nil
}

func runExtract(archive *vbf.Archive, cfg config) error {
	if err := archive.OpenData(); err != nil {
		return err
	}

	exportOpts := []vbf.ExportOption{
		vbf.ExportWithOverwrite(cfg.overwrite),
	}
	if cfg.workers > 0 {
		exportOpts = append(exportOpts, vbf.ExportWithWorkers(cfg.workers))
	}

	ctx := context.Background()
	var report *vbf.ExportReport
	var err error
	if cfg.dir != "" {
		report, err = archive.ExtractDir(ctx, cfg.outDir, vbf.NormalizePath(cfg.dir), exportOpts...)
	} else {
		paths := strings.Split(cfg.extract, ",")
		for i, p := range paths {
			paths[i] = vbf.NormalizePath(p)
		}
		report, err = archive.ExtractTo(ctx, cfg.outDir, paths, exportOpts...)
	}
	if err != nil {
		return err
	}

	fmt.Printf("extracted %d, skipped %d, failed %d (%d bytes)\n",
		report.Extracted, report.Skipped, len(report.Failures), report.TotalBytes)

	if report.Failed() {
		if cfg.logPath != "" {
			if err := writeFailureLog(cfg.logPath, report); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "failures written to", cfg.logPath)
		} else {
			_ = report.WriteLog(os.Stderr) //nolint:errcheck // best-effort diagnostics
		}
		return errPartialExport
	}
	return nil
}

func writeFailureLog(path string, report *vbf.ExportReport) error {
	f, err := os.Create(path) //nolint:gosec // user-provided log path is intentional
	if err != nil {
		return fmt.Errorf("create failure log: %w", err)
	}
	if err := report.WriteLog(f); err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write failure log: %w", err)
	}
	return f.Close()
}
