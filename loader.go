package vbf

// OpenResult carries the outcome of an asynchronous open.
type OpenResult struct {
	// Archive is the loaded archive, nil if Err is set.
	Archive *Archive

	// Err is the load error, nil on success.
	Err error
}

// OpenAsync loads an archive's metadata in the background.
//
// The returned channel is buffered and receives exactly one OpenResult.
// Useful when several archives are opened at startup and the caller
// wants to keep working while catalogs load.
func OpenAsync(path string, opts ...Option) <-chan OpenResult {
	ch := make(chan OpenResult, 1)
	go func() {
		a, err := Open(path, opts...)
		ch <- OpenResult{Archive: a, Err: err}
	}()
	return ch
}
