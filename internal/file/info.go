package file

import (
	"io/fs"
	"strings"
	"time"

	"github.com/meigma/vbf/internal/sizing"
)

// Info implements fs.FileInfo for archive entries.
//
// The archive records no modes, owners, or times: files report read-only
// permissions and the zero time.
type Info struct {
	name string
	size int64
	mode fs.FileMode
}

// NewInfo creates file info for an entry with the given display name.
func NewInfo(entry *Entry, name string) (*Info, error) {
	size, err := sizing.ToInt64(entry.OriginalSize, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	return &Info{name: name, size: size, mode: 0o444}, nil
}

// NewDirInfo creates synthetic directory info with the given display name.
func NewDirInfo(name string) *Info {
	return &Info{name: name, mode: fs.ModeDir | 0o555}
}

// Name implements fs.FileInfo.
func (i *Info) Name() string { return i.name }

// Size implements fs.FileInfo.
func (i *Info) Size() int64 { return i.size }

// Mode implements fs.FileInfo.
func (i *Info) Mode() fs.FileMode { return i.mode }

// ModTime implements fs.FileInfo. The archive stores no times.
func (i *Info) ModTime() time.Time { return time.Time{} }

// IsDir implements fs.FileInfo.
func (i *Info) IsDir() bool { return i.mode.IsDir() }

// Sys implements fs.FileInfo.
func (i *Info) Sys() any { return nil }

// DirEntry implements fs.DirEntry over an Info.
type DirEntry struct {
	info *Info
	err  error
}

// NewDirEntry creates a directory entry from file info.
// A non-nil err is returned from Info calls.
func NewDirEntry(info *Info, err error) *DirEntry {
	return &DirEntry{info: info, err: err}
}

// Name implements fs.DirEntry.
func (d *DirEntry) Name() string { return d.info.Name() }

// IsDir implements fs.DirEntry.
func (d *DirEntry) IsDir() bool { return d.info.IsDir() }

// Type implements fs.DirEntry.
func (d *DirEntry) Type() fs.FileMode { return d.info.Mode().Type() }

// Info implements fs.DirEntry.
func (d *DirEntry) Info() (fs.FileInfo, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.info, nil
}

// Base returns the final element of a slash-separated path.
func Base(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// DirPrefix converts an fs.ValidPath directory name to a catalog prefix.
// The root "." maps to the empty prefix matching every entry.
func DirPrefix(name string) string {
	if name == "." {
		return ""
	}
	return name + "/"
}

// Child returns the immediate child name of path under prefix, and whether
// that child is a subdirectory (path continues past the child component).
func Child(path, prefix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], true
	}
	return rest, false
}

// Interface compliance.
var (
	_ fs.FileInfo = (*Info)(nil)
	_ fs.DirEntry = (*DirEntry)(nil)
)
