// Package walker recursively enumerates the directory trees rooted at the
// caller's paths and coalesces every discovered regular file into one
// InodeRecord per distinct inode.
//
// # Why a single pass does both
//
// The "on first sight, create a record; on subsequent sight, append a
// path" rule already performs inode coalescing as a side effect of the
// walk — there is no intermediate representation worth materializing
// between "discover a file" and "file's record now has one more path."
// Splitting it into two passes would mean re-walking or buffering every
// (path, stat) tuple for no benefit, so this package both walks and
// coalesces in one pass.
//
// # Directory-relative traversal
//
// Every directory is entered via (*os.Root).OpenRoot, which resolves each
// path component relative to the parent directory's already-open
// descriptor (the stdlib implements this with the openat(2) family on
// Unix). Directory entries are resolved against their parent's open
// directory handle, not the root, so a path component changed or replaced
// between listing a directory and descending into one of its children
// cannot walk the traversal outside the subtree it started in.
//
// # Single-threaded
//
// The walk is synchronous and single-threaded: one goroutine, one
// directory at a time, depth-first. No result is observable before the
// directory producing it has been fully listed.
package walker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/castfs/dedupe/internal/types"
)

// Run walks roots, emitting one InodeRecord per distinct regular-file inode
// discovered on the same device as roots[0]. Non-fatal errors (permission
// denied, EXDEV descents, broken entries) are sent to errCh if non-nil and
// the walk continues. The only error Run itself returns is a fatal one: the
// initial stat of the first root.
func Run(roots []string, excludes []string, errCh chan<- error) (*types.InodeTable, error) {
	if len(roots) == 0 {
		roots = []string{"."}
	}

	rootDev, err := deviceOf(roots[0])
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", roots[0], err)
	}

	w := &walker{
		excludes: excludes,
		errCh:    errCh,
		rootDev:  rootDev,
		table:    types.NewInodeTable(),
	}

	for _, root := range roots {
		w.walkRoot(trimTrailingSlashes(root))
	}

	return w.table, nil
}

// trimTrailingSlashes strips trailing "/" characters from a root argument,
// leaving "/" itself as "/" rather than "".
func trimTrailingSlashes(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

type walker struct {
	excludes []string
	errCh    chan<- error
	rootDev  uint64
	table    *types.InodeTable
}

// walkRoot opens one user-supplied root and recurses into it.
func (w *walker) walkRoot(root string) {
	r, err := os.OpenRoot(root)
	if err != nil {
		w.sendErr(fmt.Errorf("open %s: %w", root, err))
		return
	}
	defer func() { _ = r.Close() }()

	dev, err := deviceOf(root)
	if err != nil {
		w.sendErr(fmt.Errorf("stat %s: %w", root, err))
		return
	}
	if dev != w.rootDev {
		w.sendErr(fmt.Errorf("%s: different filesystem than first root, skipped (EXDEV)", root))
		return
	}

	w.walkDir(r, root, "")
}

// walkDir lists one already-open directory and recurses into its
// subdirectories. parentPath is the caller-visible path of this directory
// (used to build child paths by literal concatenation); relPrefix is the
// root-relative path used only for exclusion matching.
func (w *walker) walkDir(root *os.Root, parentPath, relPrefix string) {
	dir, err := root.Open(".")
	if err != nil {
		w.sendErr(fmt.Errorf("open %s: %w", parentPath, err))
		return
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	for {
		entries, err := dir.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				w.sendErr(fmt.Errorf("readdir %s: %w", parentPath, err))
			}
			break
		}

		for _, entry := range entries {
			w.visit(root, parentPath, relPrefix, entry)
		}

		if err != nil {
			break
		}
	}
}

// visit classifies and dispatches a single directory entry.
func (w *walker) visit(root *os.Root, parentPath, relPrefix string, entry os.DirEntry) {
	name := entry.Name()
	if name == "." || name == ".." {
		return
	}

	relPath := joinRel(relPrefix, name)
	if w.shouldExclude(name, relPath) {
		return
	}

	childPath := parentPath + "/" + name

	// Never follow symlinks, whether they point at a file or a directory:
	// an entry classified as a symlink by the directory entry itself (not
	// resolved) is always ignored.
	if entry.Type()&os.ModeSymlink != 0 {
		return
	}

	if entry.Type().IsDir() {
		info, err := root.Lstat(name)
		if err != nil {
			w.sendErr(fmt.Errorf("stat %s: %w", childPath, err))
			return
		}
		dev := deviceOfInfo(info)
		if dev != w.rootDev {
			w.sendErr(fmt.Errorf("%s: different filesystem, skipped (EXDEV)", childPath))
			return
		}
		child, err := root.OpenRoot(name)
		if err != nil {
			w.sendErr(fmt.Errorf("open %s: %w", childPath, err))
			return
		}
		w.walkDir(child, childPath, relPath)
		_ = child.Close()
		return
	}

	if !entry.Type().IsRegular() {
		return // sockets, devices, fifos: ignored
	}

	info, err := root.Lstat(name)
	if err != nil {
		w.sendErr(fmt.Errorf("stat %s: %w", childPath, err))
		return
	}

	w.addFile(childPath, info)
}

// addFile coalesces a discovered regular file into its InodeRecord.
func (w *walker) addFile(childPath string, info os.FileInfo) {
	dev, ino, _ := statFields(info)
	key := types.InodeKey{Dev: dev, Ino: ino}
	rec, _ := w.table.GetOrCreate(key, info.Size(), info.ModTime())
	rec.AddPath(childPath)
}

// shouldExclude reports whether name or relPath matches any exclusion
// pattern. Matching both lets a pattern without "/" exclude by filename
// anywhere, and a pattern with "/" constrain descent into one subtree;
// path.Match already treats "/" in the pattern as matching "/" in the
// name literally (never a wildcard), which is enough for path-aware
// matching without pulling in a third-party glob library.
func (w *walker) shouldExclude(name, relPath string) bool {
	for _, pattern := range w.excludes {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		if ok, _ := path.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

func (w *walker) sendErr(err error) {
	if w.errCh != nil {
		w.errCh <- err
	}
}

func joinRel(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
