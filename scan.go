package vbf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindArchives lists the VBF archives directly inside dir, sorted by name.
//
// A missing dir, or a dir path that is not a directory, yields an empty
// result rather than an error: callers probe well-known install locations
// that may simply not exist. Matching is by extension, case-insensitive,
// and does not recurse.
func FindArchives(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var archives []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(de.Name()), DefaultExtension) {
			continue
		}
		archives = append(archives, filepath.Join(dir, de.Name()))
	}
	return archives, nil
}
