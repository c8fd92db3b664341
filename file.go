package vbf

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultExtension is the file extension of VBF archives.
const DefaultExtension = ".vbf"

// fileSource wraps *os.File to implement the reader's ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
// ReadAt is positionless, so one source supports concurrent readers.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	return &fileSource{
		file:     f,
		size:     info.Size(),
		sourceID: fileSourceID(f.Name(), info),
	}, nil
}

// ReadAt implements io.ReaderAt.
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (s *fileSource) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the file content.
func (s *fileSource) SourceID() string {
	return s.sourceID
}

// Close closes the underlying file.
func (s *fileSource) Close() error {
	return s.file.Close()
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}
