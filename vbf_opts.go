package vbf

import (
	"log/slog"

	"github.com/meigma/vbf/cache"
)

// Option configures an Archive.
type Option func(*Archive)

// WithMaxFileSize limits the maximum decompressed per-file size.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxFileSize = limit
	}
}

// WithCache enables caching of extracted file content.
//
// When enabled, content is cached after first extraction and served from
// cache on subsequent reads. Concurrent requests for the same path are
// deduplicated.
func WithCache(c cache.Cache) Option {
	return func(a *Archive) {
		a.cache = c
	}
}

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}
