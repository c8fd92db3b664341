package batch

import "sync"

// Failure records one entry that could not be extracted.
type Failure struct {
	// Path is the archive path of the failed entry.
	Path string

	// Err is the extraction error for this entry.
	Err error
}

// Stats contains the outcome of a batch extraction.
//
// Failures are per-entry: the batch continues past a failed file and
// collects the error here rather than aborting.
type Stats struct {
	// Processed is the number of entries successfully written to the sink.
	Processed int

	// Skipped is the number of entries skipped (ShouldProcess returned false).
	Skipped int

	// TotalBytes is the sum of decompressed sizes for all processed entries.
	TotalBytes uint64

	// Failures lists the entries that could not be extracted, in no
	// particular order.
	Failures []Failure

	mu sync.Mutex
}

// recordSuccess accounts one extracted entry.
func (s *Stats) recordSuccess(bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.TotalBytes += bytes
}

// recordFailure accounts one failed entry.
func (s *Stats) recordFailure(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures = append(s.Failures, Failure{Path: path, Err: err})
}

// counts returns the progress counters under the lock.
func (s *Stats) counts() (done int, bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Processed + len(s.Failures), s.TotalBytes
}
