//go:build e2e

package internal

import (
	"strings"
	"testing"

	"github.com/castfs/dedupe/internal/testfs"
)

// TestE2EBasicCLIInvocation exercises the binary end to end.
func TestE2EBasicCLIInvocation(t *testing.T) {
	spec := testfs.FileTree{
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files: []testfs.File{
					{Path: []string{"a.txt"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1KiB"}}},
					{Path: []string{"b.txt"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1KiB"}}},
				},
			},
		},
	}

	h := testfs.New(t, spec)
	h.RunDupedog("/data")

	h.Assert(testfs.FileTree{
		ExitCode: 0,
		Volumes: []testfs.Volume{
			{MountPoint: "/data", Files: []testfs.File{{Path: []string{"a.txt", "b.txt"}}}},
		},
	})
}

// TestE2EDryRun exercises --dry-run over a real binary invocation.
func TestE2EDryRun(t *testing.T) {
	spec := testfs.FileTree{
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files: []testfs.File{
					{Path: []string{"a.txt"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1KiB"}}},
					{Path: []string{"b.txt"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1KiB"}}},
				},
			},
		},
	}

	h := testfs.New(t, spec)
	h.RunDupedog("--dry-run", "/data")

	h.Assert(testfs.FileTree{
		ExitCode: 0,
		Volumes: []testfs.Volume{
			{MountPoint: "/data", Files: []testfs.File{{Path: []string{"a.txt"}}, {Path: []string{"b.txt"}}}},
		},
	})
}

// TestE2ECrossMountBoundaryIsNeverDescended is scenario 4 / property P7: a
// nested tmpfs mount is a distinct device, so the walk must stop at its
// boundary and leave its contents untouched even when their bytes are
// identical to a file on the root device. A plain t.TempDir() cannot
// reproduce this (everything shares one st_dev), which is why this
// assertion lives only in the Docker-backed harness.
func TestE2ECrossMountBoundaryIsNeverDescended(t *testing.T) {
	spec := testfs.FileTree{
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files: []testfs.File{
					{Path: []string{"root.txt"}, Chunks: []testfs.Chunk{{Pattern: 'R', Size: "1KiB"}}},
				},
			},
			{
				MountPoint: "/data/mnt",
				Files: []testfs.File{
					{Path: []string{"nested.txt"}, Chunks: []testfs.Chunk{{Pattern: 'R', Size: "1KiB"}}},
				},
			},
		},
	}

	h := testfs.New(t, spec)
	h.RunDupedog("/data")

	h.Assert(testfs.FileTree{
		ExitCode: 0,
		Volumes: []testfs.Volume{
			{MountPoint: "/data", Files: []testfs.File{{Path: []string{"root.txt"}}}},
			{MountPoint: "/data/mnt", Files: []testfs.File{{Path: []string{"nested.txt"}}}},
		},
	})
}

// TestE2EExcludePattern exercises --exclude over a real binary invocation.
func TestE2EExcludePattern(t *testing.T) {
	spec := testfs.FileTree{
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files: []testfs.File{
					{Path: []string{"keep_a.txt"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "1KiB"}}},
					{Path: []string{"keep_b.txt"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "1KiB"}}},
					{Path: []string{"skip_a.bak"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "1KiB"}}},
					{Path: []string{"skip_b.bak"}, Chunks: []testfs.Chunk{{Pattern: 'K', Size: "1KiB"}}},
				},
			},
		},
	}

	h := testfs.New(t, spec)
	h.RunDupedog("--exclude", "*.bak", "/data")

	h.Assert(testfs.FileTree{
		ExitCode: 0,
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files: []testfs.File{
					{Path: []string{"keep_a.txt", "keep_b.txt"}},
					{Path: []string{"skip_a.bak"}},
					{Path: []string{"skip_b.bak"}},
				},
			},
		},
	})
}

// TestE2EUseXattrsCacheReuse is scenario 6 at the binary level. The first
// --use-xattrs run must dedupe a.txt/b.txt and leave a digest cached on the
// survivor; the second run must then find nothing left to do and leave that
// cached digest in place. Once a.txt/b.txt share one inode, the second run
// has a single record of that size, so it hashes nothing: this test does
// not observe whether the cache is read.
func TestE2EUseXattrsCacheReuse(t *testing.T) {
	spec := testfs.FileTree{
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files: []testfs.File{
					{Path: []string{"a.txt"}, Chunks: []testfs.Chunk{{Pattern: 'X', Size: "1KiB"}}},
					{Path: []string{"b.txt"}, Chunks: []testfs.Chunk{{Pattern: 'X', Size: "1KiB"}}},
				},
			},
		},
	}

	h := testfs.New(t, spec)

	first := h.RunDupedog("--use-xattrs", "/data")
	if !strings.Contains(first.Stdout, "found 1 duplicate set") {
		t.Fatalf("expected the first run to find 1 duplicate set, got stdout: %q", first.Stdout)
	}

	h.Assert(testfs.FileTree{
		ExitCode: 0,
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files:      []testfs.File{{Path: []string{"a.txt", "b.txt"}, ExpectXattrCache: testfs.BoolPtr(true)}},
			},
		},
	})

	second := h.RunDupedog("--use-xattrs", "/data")
	if !strings.Contains(second.Stdout, "found 0 duplicate set") {
		t.Fatalf("expected the second run over an already-deduplicated tree to find 0 duplicate sets, got stdout: %q", second.Stdout)
	}

	h.Assert(testfs.FileTree{
		ExitCode: 0,
		Volumes: []testfs.Volume{
			{
				MountPoint: "/data",
				Files:      []testfs.File{{Path: []string{"a.txt", "b.txt"}, ExpectXattrCache: testfs.BoolPtr(true)}},
			},
		},
	})
}
