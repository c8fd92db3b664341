package vbf

import (
	"bytes"
	"io"
	"io/fs"
	"iter"

	"github.com/meigma/vbf/internal/file"
	"github.com/meigma/vbf/internal/index"
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)

// Open implements fs.FS.
//
// For files, the content is extracted eagerly and served from memory, so
// the data handle must be open (OpenData). Stat-only access to files and
// directories does not need the handle; use Stat or ReadDir for that.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if entry, ok := a.catalog.Lookup(name); ok {
		content, err := a.Extract(name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		info, err := file.NewInfo(entry, file.Base(name))
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &openFile{Reader: bytes.NewReader(content), info: info}, nil
	}

	if a.isDir(name) {
		return &openDir{a: a, name: name}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
//
// Stat returns file info from the catalog without reading any content.
// For directories (paths that are prefixes of other entries), Stat
// returns synthetic directory info.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	if entry, ok := a.catalog.Lookup(name); ok {
		info, err := file.NewInfo(entry, file.Base(name))
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
		}
		return info, nil
	}

	if a.isDir(name) {
		dirName := file.Base(name)
		if name == "." {
			dirName = "."
		}
		return file.NewDirInfo(dirName), nil
	}

	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile reads and returns the entire decompressed content of the named
// file. The data handle must be open.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	if _, ok := a.catalog.Lookup(name); !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}

	content, err := a.Extract(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return content, nil
}

// ReadDir implements fs.ReadDirFS.
//
// ReadDir returns directory entries for the named directory, sorted by
// name. Directory entries are synthesized from file paths; the archive
// does not store directories explicitly.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	prefix := file.DirPrefix(name)
	di := newDirIter(a.catalog, prefix)
	defer di.Close()

	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := di.Next()
		if !ok {
			break
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	return entries, nil
}

// isDir checks if name is a directory (has entries under it).
func (a *Archive) isDir(name string) bool {
	if name == "." {
		return a.catalog.Len() > 0
	}
	prefix := name + "/"
	for range a.catalog.EntriesWithPrefix(prefix) {
		return true
	}
	return false
}

// openFile serves an extracted file's content from memory.
// bytes.Reader provides Read, ReadAt, and Seek.
type openFile struct {
	*bytes.Reader
	info *file.Info
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

func (f *openFile) Close() error {
	return nil
}

// openDir implements fs.File and fs.ReadDirFile for synthetic directories.
type openDir struct {
	a    *Archive
	name string
	iter *dirIter
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	name := d.name
	if name != "." {
		name = file.Base(d.name)
	}
	return file.NewDirInfo(name), nil
}

func (d *openDir) Close() error {
	if d.iter != nil {
		d.iter.Close()
		d.iter = nil
	}
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.iter == nil {
		d.iter = newDirIter(d.a.catalog, file.DirPrefix(d.name))
	}

	if n <= 0 {
		return d.readAll()
	}

	entries := make([]fs.DirEntry, 0, n)
	for len(entries) < n {
		entry, ok := d.iter.Next()
		if !ok {
			if len(entries) == 0 {
				return nil, io.EOF
			}
			return entries, nil
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (d *openDir) readAll() ([]fs.DirEntry, error) {
	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := d.iter.Next()
		if !ok {
			return entries, nil
		}
		entries = append(entries, entry)
	}
}

// dirIter iterates over directory entries, synthesizing subdirectories.
// It deduplicates entries that share a common directory component and
// yields synthetic directory entries for nested paths.
type dirIter struct {
	next     func() (Entry, bool)
	stop     func()
	prefix   string
	lastName string
	done     bool
}

// newDirIter creates a directory iterator for entries under prefix.
func newDirIter(catalog *index.Catalog, prefix string) *dirIter {
	next, stop := iter.Pull(catalog.EntriesWithPrefix(prefix))
	return &dirIter{
		next:   next,
		stop:   stop,
		prefix: prefix,
	}
}

// Next returns the next directory entry, synthesizing subdirectory
// entries when files exist in nested paths.
func (it *dirIter) Next() (fs.DirEntry, bool) {
	if it.done {
		return nil, false
	}
	for {
		entry, ok := it.next()
		if !ok {
			it.Close()
			return nil, false
		}

		childName, isSubDir := file.Child(entry.Path, it.prefix)
		if childName == it.lastName {
			continue
		}
		it.lastName = childName

		if isSubDir {
			return file.NewDirEntry(file.NewDirInfo(childName), nil), true
		}
		info, err := file.NewInfo(&entry, childName)
		if err != nil {
			// Return a fallback info with size 0
			info = &file.Info{}
		}
		return file.NewDirEntry(info, err), true
	}
}

// Close releases resources held by the iterator.
func (it *dirIter) Close() {
	if it.done {
		return
	}
	it.done = true
	if it.stop != nil {
		it.stop()
		it.stop = nil
	}
}
