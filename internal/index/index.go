package index

import (
	"iter"
	"sort"
	"strings"

	"github.com/meigma/vbf/internal/vbftype"
)

// Catalog holds the parsed archive entries keyed by normalized path.
//
// A Catalog is immutable after construction and safe for concurrent
// readers without synchronization.
type Catalog struct {
	entries []vbftype.Entry
	byPath  map[string]int
}

// New builds a Catalog from entries in archive record order. When several
// records resolve to the same normalized path, the last record wins and
// earlier ones are dropped.
func New(entries []vbftype.Entry) *Catalog {
	byPath := make(map[string]int, len(entries))
	deduped := make([]vbftype.Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := byPath[e.Path]; ok {
			deduped[i] = e
			continue
		}
		byPath[e.Path] = len(deduped)
		deduped = append(deduped, e)
	}

	sort.Slice(deduped, func(i, j int) bool { return deduped[i].Path < deduped[j].Path })
	for i := range deduped {
		byPath[deduped[i].Path] = i
	}

	return &Catalog{entries: deduped, byPath: byPath}
}

// Len returns the number of entries in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the entry for the given normalized path.
//
// The returned pointer and its BlockSizes are read-only and remain valid
// for the catalog's lifetime.
func (c *Catalog) Lookup(path string) (*vbftype.Entry, bool) {
	i, ok := c.byPath[path]
	if !ok {
		return nil, false
	}
	return &c.entries[i], true
}

// Entries returns an iterator over all entries in ascending path order.
func (c *Catalog) Entries() iter.Seq[vbftype.Entry] {
	return func(yield func(vbftype.Entry) bool) {
		for _, e := range c.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// EntriesWithPrefix returns an iterator over entries whose path begins
// with prefix, in ascending path order.
func (c *Catalog) EntriesWithPrefix(prefix string) iter.Seq[vbftype.Entry] {
	return func(yield func(vbftype.Entry) bool) {
		start := sort.Search(len(c.entries), func(i int) bool {
			return c.entries[i].Path >= prefix
		})
		for i := start; i < len(c.entries); i++ {
			if !strings.HasPrefix(c.entries[i].Path, prefix) {
				return
			}
			if !yield(c.entries[i]) {
				return
			}
		}
	}
}
