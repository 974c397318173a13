package grouper

import (
	"testing"

	"github.com/castfs/dedupe/internal/types"
)

func digested(path string, digest byte) *types.InodeRecord {
	rec := &types.InodeRecord{HasDigest: true}
	rec.Digest[0] = digest
	rec.AddPath(path)
	return rec
}

func TestGroupDropsSingletons(t *testing.T) {
	worklist := []*types.InodeRecord{
		digested("a", 1),
		digested("b", 2),
		digested("c", 2),
	}

	groups := Group(worklist)
	if len(groups) != 1 {
		t.Fatalf("expected one surviving group, got %d", len(groups))
	}
	if len(groups[0].Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(groups[0].Members))
	}
}

func TestGroupIgnoresUndigestedRecords(t *testing.T) {
	undigested := &types.InodeRecord{}
	undigested.AddPath("never-hashed")

	worklist := []*types.InodeRecord{digested("a", 5), digested("b", 5), undigested}

	groups := Group(worklist)
	if len(groups) != 1 || len(groups[0].Members) != 2 {
		t.Fatalf("undigested record should never join a group: %+v", groups)
	}
}

func TestGroupOrdersAscendingByDigest(t *testing.T) {
	worklist := []*types.InodeRecord{
		digested("a", 9), digested("b", 9),
		digested("c", 1), digested("d", 1),
	}

	groups := Group(worklist)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Digest[0] != 1 || groups[1].Digest[0] != 9 {
		t.Fatalf("groups not sorted ascending by digest: %+v", groups)
	}
}
