// Package cache provides caches for extracted archive content.
//
// Extraction is deterministic per (archive, path), so content can be
// cached by catalog path for the lifetime of an Archive. Callers that
// repeatedly re-read the same files (tree-view UIs, asset pipelines)
// avoid re-reading and re-inflating their blocks.
package cache

// Cache stores extracted file content keyed by normalized catalog path.
//
// Implementations must be safe for concurrent use and must not retain or
// return slices that alias caller-owned memory.
type Cache interface {
	// Get returns the cached content for key.
	// Returns nil, false if the key is not cached.
	Get(key string) ([]byte, bool)

	// Add stores content under key, evicting older entries if needed.
	Add(key string, content []byte)

	// Remove drops the cached content for key, if any.
	Remove(key string)

	// Len returns the number of cached entries.
	Len() int

	// Purge drops all cached entries.
	Purge()
}
