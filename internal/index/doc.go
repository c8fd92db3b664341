// Package index provides catalog construction and lookup for archive entries.
//
// The catalog keys entries by normalized path and keeps them sorted,
// enabling O(1) exact lookups and efficient prefix scanning for
// directory operations.
package index
