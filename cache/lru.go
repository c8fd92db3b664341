package cache

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded in-memory cache of extracted file contents.
//
// Content is copied on the way in and on the way out, so callers may
// freely mutate slices they pass to Add or receive from Get.
type LRU struct {
	c *lru.Cache[string, []byte]
}

// NewLRU creates an LRU cache holding at most maxEntries files.
func NewLRU(maxEntries int) (*LRU, error) {
	c, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

// Get implements Cache.
func (l *LRU) Get(key string) ([]byte, bool) {
	content, ok := l.c.Get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(content), true
}

// Add implements Cache.
func (l *LRU) Add(key string, content []byte) {
	l.c.Add(key, bytes.Clone(content))
}

// Remove implements Cache.
func (l *LRU) Remove(key string) {
	l.c.Remove(key)
}

// Len implements Cache.
func (l *LRU) Len() int {
	return l.c.Len()
}

// Purge implements Cache.
func (l *LRU) Purge() {
	l.c.Purge()
}

// Interface compliance.
var _ Cache = (*LRU)(nil)
