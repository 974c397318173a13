//go:build unix

package relinker

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/castfs/dedupe/internal/types"
)

func writeRecord(t *testing.T, dir, name string, content []byte, mtime time.Time) *types.InodeRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat %s: %v", path, err)
	}
	stat := info.Sys().(*syscall.Stat_t)
	rec := &types.InodeRecord{Size: info.Size(), Mtime: mtime, Ino: stat.Ino}
	rec.AddPath(path)
	return rec
}

func inodeOf(t *testing.T, path string) uint64 {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat %s: %v", path, err)
	}
	return info.Sys().(*syscall.Stat_t).Ino
}

func TestSelectKeeperPicksOldestMtime(t *testing.T) {
	base := time.Unix(1700000000, 0)
	members := []*types.InodeRecord{
		{Ino: 3, Mtime: base.Add(2 * time.Second)},
		{Ino: 1, Mtime: base},
		{Ino: 2, Mtime: base.Add(time.Second)},
	}

	keeper, rest := selectKeeper(members)
	if keeper.Ino != 1 {
		t.Fatalf("expected oldest-mtime member (ino 1) as keeper, got ino %d", keeper.Ino)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining members, got %d", len(rest))
	}
}

func TestSelectKeeperBreaksTiesByInode(t *testing.T) {
	same := time.Unix(1700000000, 0)
	members := []*types.InodeRecord{
		{Ino: 9, Mtime: same},
		{Ino: 2, Mtime: same},
		{Ino: 5, Mtime: same},
	}

	keeper, _ := selectKeeper(members)
	if keeper.Ino != 2 {
		t.Fatalf("expected lowest inode number to win the tie, got ino %d", keeper.Ino)
	}
}

func TestRunRelinksNonKeeperPaths(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)

	keeper := writeRecord(t, dir, "a.txt", []byte("hello"), base)
	dup := writeRecord(t, dir, "b.txt", []byte("hello"), base.Add(time.Minute))

	group := &types.DigestGroup{Members: []*types.InodeRecord{keeper, dup}}

	r := New(false, false, false, false, strings.NewReader(""), new(strings.Builder), nil, false)
	stats := r.Run([]*types.DigestGroup{group})

	if stats.RelinkedCount != 1 {
		t.Fatalf("expected 1 relink, got %d", stats.RelinkedCount)
	}
	if stats.RelinkedSize != keeper.Size {
		t.Fatalf("expected reclaimed size %d, got %d", keeper.Size, stats.RelinkedSize)
	}

	keeperPath := filepath.Join(dir, "a.txt")
	dupPath := filepath.Join(dir, "b.txt")
	if inodeOf(t, keeperPath) != inodeOf(t, dupPath) {
		t.Fatal("expected both paths to share an inode after relinking")
	}
}

func TestRunDryRunMutatesNothing(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)

	keeper := writeRecord(t, dir, "a.txt", []byte("hello"), base)
	dup := writeRecord(t, dir, "b.txt", []byte("hello"), base.Add(time.Minute))
	beforeInode := inodeOf(t, filepath.Join(dir, "b.txt"))

	group := &types.DigestGroup{Members: []*types.InodeRecord{keeper, dup}}

	r := New(true, false, false, false, strings.NewReader(""), new(strings.Builder), nil, false)
	stats := r.Run([]*types.DigestGroup{group})

	if stats.RelinkedCount != 1 {
		t.Fatalf("dry run should still report the relink that would happen, got %d", stats.RelinkedCount)
	}
	if inodeOf(t, filepath.Join(dir, "b.txt")) != beforeInode {
		t.Fatal("dry run must not change any inode")
	}
}

func TestRunInteractiveDeclineSkipsGroup(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)

	keeper := writeRecord(t, dir, "a.txt", []byte("hello"), base)
	dup := writeRecord(t, dir, "b.txt", []byte("hello"), base.Add(time.Minute))
	beforeInode := inodeOf(t, filepath.Join(dir, "b.txt"))

	group := &types.DigestGroup{Members: []*types.InodeRecord{keeper, dup}}

	r := New(false, true, false, false, strings.NewReader("no\n"), new(strings.Builder), nil, false)
	stats := r.Run([]*types.DigestGroup{group})

	if stats.RelinkedCount != 0 {
		t.Fatalf("declining the prompt should skip the group, got %d relinks", stats.RelinkedCount)
	}
	if inodeOf(t, filepath.Join(dir, "b.txt")) != beforeInode {
		t.Fatal("declined group must not be mutated")
	}
}

func TestRunInteractiveReprompts(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)

	keeper := writeRecord(t, dir, "a.txt", []byte("hello"), base)
	dup := writeRecord(t, dir, "b.txt", []byte("hello"), base.Add(time.Minute))

	group := &types.DigestGroup{Members: []*types.InodeRecord{keeper, dup}}

	r := New(false, true, false, false, strings.NewReader("maybe\nY\n"), new(strings.Builder), nil, false)
	stats := r.Run([]*types.DigestGroup{group})

	if stats.RelinkedCount != 1 {
		t.Fatalf("an eventual 'y' after garbage input should confirm the relink, got %d", stats.RelinkedCount)
	}
}

func TestRunVerboseBoringOmitsAnsiEscape(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)

	keeper := writeRecord(t, dir, "a.txt", []byte("hello"), base)
	dup := writeRecord(t, dir, "b.txt", []byte("hello"), base.Add(time.Minute))

	group := &types.DigestGroup{Members: []*types.InodeRecord{keeper, dup}}

	var out strings.Builder
	r := New(false, false, true, true, strings.NewReader(""), &out, nil, false)
	r.Run([]*types.DigestGroup{group})

	if strings.Contains(out.String(), "\033[K") {
		t.Fatalf("--boring verbose output must not contain ANSI escapes, got %q", out.String())
	}
	if !strings.Contains(out.String(), "linked ") {
		t.Fatalf("expected a plain linked line, got %q", out.String())
	}
}

func TestRunVerboseNonBoringEmitsAnsiEscape(t *testing.T) {
	dir := t.TempDir()
	base := time.Unix(1700000000, 0)

	keeper := writeRecord(t, dir, "a.txt", []byte("hello"), base)
	dup := writeRecord(t, dir, "b.txt", []byte("hello"), base.Add(time.Minute))

	group := &types.DigestGroup{Members: []*types.InodeRecord{keeper, dup}}

	var out strings.Builder
	r := New(false, false, true, false, strings.NewReader(""), &out, nil, false)
	r.Run([]*types.DigestGroup{group})

	if !strings.Contains(out.String(), "\033[K") {
		t.Fatalf("expected the clear-line escape when --boring is not set, got %q", out.String())
	}
}
