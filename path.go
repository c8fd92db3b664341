package vbf

import "strings"

// NormalizePath converts a user-provided path to the catalog's key format.
//
// It performs the following transformations:
//   - Converts backslashes to forward slashes: `data\music` → "data/music"
//   - Strips leading and trailing slashes: "/data/music/" → "data/music"
//   - Collapses consecutive slashes: "data//music" → "data/music"
//   - Lowercases: "DATA/Music" → "data/music" (the format is case-insensitive
//     and catalog keys are lowercased at load time)
//   - Converts empty string to root: "" → "."
//
// The returned path is suitable for use with Archive methods (Extract,
// Entry, Open, Stat, etc.).
//
// Note: This function does not resolve or validate path elements. Paths
// containing "." or ".." elements are preserved and will be rejected by
// fs-facing methods via fs.ValidPath.
func NormalizePath(p string) string {
	p = strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}

	// Collapse consecutive slashes by splitting and rejoining.
	// This removes empty segments but preserves "." and ".." elements.
	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}
