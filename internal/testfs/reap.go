//go:build unix

package testfs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/castfs/dedupe/internal/hashcache"
	"github.com/castfs/dedupe/internal/types"
)

// -----------------------------------------------------------------------------
// Reap Operations - Capture filesystem state
// -----------------------------------------------------------------------------

// ReapPaths captures the filesystem state for the given paths.
//
// Each path becomes a ReapVolume with files grouped by inode (hardlinks)
// and symlinks captured with their targets.
//
// The root parameter specifies the base directory to subtract from paths.
// For E2E tests, root is "" or "/" so paths are used as-is.
// For integration tests, root is t.TempDir() so logical paths are computed.
func ReapPaths(root string, paths []string) (*ReapResult, error) {
	result := &ReapResult{}

	for _, path := range paths {
		// Determine actual path to scan
		actualPath := path
		if root != "" && root != "/" {
			actualPath = filepath.Join(root, path)
		}

		vol, err := reapPath(actualPath, path)
		if err != nil {
			return nil, fmt.Errorf("reap %s: %w", path, err)
		}
		result.Volumes = append(result.Volumes, vol)
	}

	return result, nil
}

// ReapToWriter captures filesystem state and writes JSON to the writer.
// Used by testfs-helper CLI tool to write to stdout.
func ReapToWriter(w io.Writer, paths []string) error {
	result, err := ReapPaths("", paths)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// reapPath scans a directory and returns its state. Regular files are
// coalesced by inode using the same types.InodeTable the pipeline itself
// builds during a walk, rather than a bespoke map, so "what counts as a
// hardlink group" is defined in exactly one place in this repo.
// rootPath is the actual filesystem path to scan.
// logicalPath is the path to report in the result (for volume name).
func reapPath(rootPath, logicalPath string) (ReapVolume, error) {
	vol := ReapVolume{
		Name: logicalPath, // Use logical path for volume name
	}

	table := types.NewInodeTable()
	// nlink and cache-presence aren't carried on InodeRecord (the pipeline
	// has no use for them), so they're tracked alongside it, keyed the
	// same way.
	nlinkOf := make(map[types.InodeKey]uint64)
	cachedOf := make(map[types.InodeKey]bool)

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil // Skip root
		}

		relPath, _ := filepath.Rel(rootPath, path)

		// Handle symlinks - must check before IsDir since Lstat is used
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			vol.Symlinks = append(vol.Symlinks, ReapSymlink{
				Path:   relPath,
				Target: target,
			})
			return nil
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		stat, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			return fmt.Errorf("cannot get stat for %s", path)
		}
		key := types.InodeKey{Dev: uint64(stat.Dev), Ino: stat.Ino} //nolint:unconvert // platform-dependent type

		rec, created := table.GetOrCreate(key, info.Size(), info.ModTime())
		rec.AddPath(relPath)
		if created {
			nlinkOf[key] = uint64(stat.Nlink) //nolint:unconvert // platform-dependent type
			cachedOf[key] = hashcache.HasCached(path)
		}

		return nil
	})
	if err != nil {
		return vol, err
	}

	for _, rec := range table.Records() {
		key := types.InodeKey{Dev: rec.Dev, Ino: rec.Ino}
		vol.Files = append(vol.Files, ReapFile{
			Path:           rec.Paths,
			Inode:          rec.Ino,
			Nlink:          nlinkOf[key],
			Size:           rec.Size,
			HasXattrDigest: cachedOf[key],
		})
	}

	return vol, nil
}
