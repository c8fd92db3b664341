package vbf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vbf/internal/testutil"
)

func TestExtractTo_WritesFiles(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"data/a.bin":  testutil.CompressibleData(100_000),
		"data/b.bin":  testutil.RandomData(t, 70_000),
		"sound/c.bin": []byte("small"),
	}
	a := openTestArchive(t, files)

	destDir := t.TempDir()
	report, err := a.ExtractTo(context.Background(), destDir,
		[]string{"data/a.bin", "data/b.bin", "sound/c.bin"})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Extracted)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, uint64(100_000+70_000+5), report.TotalBytes)
	assert.False(t, report.Failed())

	for path, want := range files {
		got, err := os.ReadFile(filepath.Join(destDir, filepath.FromSlash(path)))
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestExtractTo_UnknownPathsAreFailures(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"a.bin": []byte("data")})

	destDir := t.TempDir()
	report, err := a.ExtractTo(context.Background(), destDir,
		[]string{"a.bin", "missing.bin"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Extracted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "missing.bin", report.Failures[0].Path)
	assert.ErrorIs(t, report.Failures[0].Err, ErrEntryNotFound)
	assert.True(t, report.Failed())
}

func TestExtractTo_AllPathsUnknown(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"a.bin": []byte("data")})

	_, err := a.ExtractTo(context.Background(), t.TempDir(),
		[]string{"missing1.bin", "missing2.bin"})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestExtractTo_SkipsExisting(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"a.bin": []byte("new content")})

	destDir := t.TempDir()
	existing := filepath.Join(destDir, "a.bin")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	report, err := a.ExtractTo(context.Background(), destDir, []string{"a.bin"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Extracted)
	assert.Equal(t, 1, report.Skipped)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)
}

func TestExtractTo_Overwrite(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"a.bin": []byte("new content")})

	destDir := t.TempDir()
	existing := filepath.Join(destDir, "a.bin")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	report, err := a.ExtractTo(context.Background(), destDir, []string{"a.bin"},
		ExportWithOverwrite(true))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Extracted)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("new content"), got)
}

func TestExtractTo_HandleNotOpen(t *testing.T) {
	t.Parallel()

	path := testutil.NewArchiveBuilder().
		Add("a.bin", []byte("data")).
		WriteFile(t)
	a, err := Open(path)
	require.NoError(t, err)

	_, err = a.ExtractTo(context.Background(), t.TempDir(), []string{"a.bin"})
	require.ErrorIs(t, err, ErrHandleNotOpen)
}

func TestExtractTo_ContinuesPastBadEntry(t *testing.T) {
	t.Parallel()

	// Corrupt one file's declared block size so it fails to inflate while
	// its neighbors stay readable.
	good1 := testutil.CompressibleData(10_000)
	good2 := testutil.CompressibleData(20_000)
	path := testutil.NewArchiveBuilder().
		Add("good1.bin", good1).
		Add("bad.bin", testutil.CompressibleData(5_000)).
		Add("good2.bin", good2).
		SetDeclared("bad.bin", 0, 3).
		WriteFile(t)

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.OpenData())
	defer a.Close() //nolint:errcheck // test cleanup

	destDir := t.TempDir()
	report, err := a.ExtractTo(context.Background(), destDir,
		[]string{"good1.bin", "bad.bin", "good2.bin"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Extracted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bad.bin", report.Failures[0].Path)

	got, err := os.ReadFile(filepath.Join(destDir, "good1.bin"))
	require.NoError(t, err)
	assert.Equal(t, good1, got)
	got, err = os.ReadFile(filepath.Join(destDir, "good2.bin"))
	require.NoError(t, err)
	assert.Equal(t, good2, got)

	_, err = os.Stat(filepath.Join(destDir, "bad.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractTo_EmptyPaths(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"a.bin": []byte("data")})

	report, err := a.ExtractTo(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Extracted)
	assert.False(t, report.Failed())
}

func TestExtractTo_Progress(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{
		"a.bin": []byte("aaa"),
		"b.bin": []byte("bbb"),
	})

	var events []ProgressEvent
	var mu sync.Mutex
	_, err := a.ExtractTo(context.Background(), t.TempDir(),
		[]string{"a.bin", "b.bin"},
		ExportWithWorkers(1),
		ExportWithProgress(func(ev ProgressEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}))
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, StageEnumerating, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, StageExtracting, last.Stage)
	assert.Equal(t, 2, last.FilesDone)
	assert.Equal(t, uint64(6), last.BytesDone)
}

func TestExtractDir_Subtree(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{
		"data/a.bin":     []byte("a"),
		"data/sub/b.bin": []byte("b"),
		"sound/c.bin":    []byte("c"),
	})

	destDir := t.TempDir()
	report, err := a.ExtractDir(context.Background(), destDir, "data")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Extracted)

	_, err = os.Stat(filepath.Join(destDir, "data", "a.bin"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "data", "sub", "b.bin"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "sound", "c.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractDir_WholeArchive(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{
		"data/a.bin": []byte("a"),
		"b.bin":      []byte("b"),
	})

	destDir := t.TempDir()
	report, err := a.ExtractDir(context.Background(), destDir, ".")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Extracted)
}

func TestExtractDir_UnknownDir(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"data/a.bin": []byte("a")})

	_, err := a.ExtractDir(context.Background(), t.TempDir(), "missing")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestExtractTo_Cancelled(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, map[string][]byte{"a.bin": testutil.RandomData(t, 10_000)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.ExtractTo(ctx, t.TempDir(), []string{"a.bin"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExportReport_WriteLog(t *testing.T) {
	t.Parallel()

	report := &ExportReport{
		Failures: []ExportFailure{
			{Path: "data/a.bin", Err: ErrDecompression},
			{Path: "data/b.bin", Err: ErrEntryNotFound},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteLog(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "data/a.bin")
	assert.Contains(t, lines[0], ErrDecompression.Error())
	assert.Contains(t, lines[1], "data/b.bin")
}
