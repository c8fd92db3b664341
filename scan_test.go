package vbf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.vbf", "a.VBF", "notes.txt", "partial.vbf.bak"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.vbf"), 0o755))

	archives, err := FindArchives(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.VBF"),
		filepath.Join(dir, "b.vbf"),
	}, archives)
}

func TestFindArchives_MissingDir(t *testing.T) {
	t.Parallel()

	archives, err := FindArchives(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestFindArchives_NotADir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "file.vbf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	archives, err := FindArchives(path)
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestFindArchives_EmptyDir(t *testing.T) {
	t.Parallel()

	archives, err := FindArchives(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, archives)
}
