// Package vbf provides random access to VBF game archives.
//
// A VBF archive is a flat table of named files whose content is split into
// fixed 64KiB blocks, each stored raw or zlib-compressed. The metadata is
// parsed once when the archive is opened; extraction then reads and
// decompresses only the blocks of the requested file.
//
// The package implements fs.FS and related interfaces for stdlib
// compatibility. Directory structure is synthesized from the archive's
// flat, forward-slash-separated namespace.
package vbf
