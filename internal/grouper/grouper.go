// Package grouper indexes the (now-digested) hash worklist by digest,
// drops singleton digests, and returns the surviving groups in
// deterministic ascending-digest order.
package grouper

import (
	"bytes"
	"sort"

	"github.com/castfs/dedupe/internal/types"
)

// Group partitions worklist by Digest, keeping only groups with two or
// more members, and returns them sorted ascending lexicographically by the
// 32-byte digest. Records that were never successfully hashed
// (HasDigest == false) are ignored.
func Group(worklist []*types.InodeRecord) []*types.DigestGroup {
	byDigest := make(map[[32]byte][]*types.InodeRecord)
	for _, rec := range worklist {
		if !rec.HasDigest {
			continue
		}
		byDigest[rec.Digest] = append(byDigest[rec.Digest], rec)
	}

	groups := make([]*types.DigestGroup, 0, len(byDigest))
	for digest, members := range byDigest {
		if len(members) < 2 {
			continue
		}
		groups = append(groups, &types.DigestGroup{Digest: digest, Members: members})
	}

	sort.Slice(groups, func(i, j int) bool {
		return bytes.Compare(groups[i].Digest[:], groups[j].Digest[:]) < 0
	})

	return groups
}
