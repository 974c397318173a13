// Package bucketizer indexes inode records by file size, drops singleton
// sizes (a file with a unique size cannot have a duplicate), and produces
// the ascending-size hash worklist together with the total byte volume to
// be hashed.
package bucketizer

import (
	"sort"

	"github.com/castfs/dedupe/internal/types"
)

// BuildWorklist groups table's records by size, discards groups of fewer
// than two members, and returns the survivors as a single worklist ordered
// ascending by size. totalBytes is the sum of Size across the worklist,
// used for hasher progress reporting.
func BuildWorklist(table *types.InodeTable) (worklist []*types.InodeRecord, totalBytes int64) {
	bySize := make(map[int64][]*types.InodeRecord)
	for _, rec := range table.Records() {
		bySize[rec.Size] = append(bySize[rec.Size], rec)
	}

	for size, recs := range bySize {
		if len(recs) < 2 {
			continue
		}
		worklist = append(worklist, recs...)
		totalBytes += size * int64(len(recs))
	}

	// Ties in size otherwise retain arbitrary order; break ties by inode
	// number purely so test fixtures and --verbose output are reproducible
	// across runs.
	sort.Slice(worklist, func(i, j int) bool {
		a, b := worklist[i], worklist[j]
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.Ino < b.Ino
	})

	return worklist, totalBytes
}
