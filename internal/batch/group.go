package batch

import "github.com/meigma/vbf/internal/file"

// rangeGroup represents a contiguous range of block data in the archive.
// All entries in a group can be fetched with a single read.
type rangeGroup struct {
	start   uint64   // Start byte offset in the archive
	end     uint64   // End byte offset (exclusive) in the archive
	entries []*Entry // Entries within this range
}

// groupAdjacentEntries groups entries whose block data is adjacent on disk.
//
// Entries must be sorted by DataOffset before calling this function.
// Adjacent entries (where one's block span ends exactly where the next
// begins) are combined into a single group to enable batched reads.
//
// The entries slice must be non-empty.
func groupAdjacentEntries(entries []*Entry) []rangeGroup {
	groups := make([]rangeGroup, 0, len(entries))
	current := rangeGroup{
		start:   entries[0].DataOffset,
		end:     entries[0].DataOffset + file.OnDiskSize(entries[0]),
		entries: []*Entry{entries[0]},
	}

	for i := 1; i < len(entries); i++ {
		entry := entries[i]
		entryEnd := entry.DataOffset + file.OnDiskSize(entry)

		if entry.DataOffset == current.end {
			current.end = entryEnd
			current.entries = append(current.entries, entry)
		} else {
			groups = append(groups, current)
			current = rangeGroup{
				start:   entry.DataOffset,
				end:     entryEnd,
				entries: []*Entry{entry},
			}
		}
	}
	return append(groups, current)
}
