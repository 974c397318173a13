//go:build unix

package hasher

import (
	"os"
	"syscall"
)

// openNoFollow opens path read-only, refusing to follow a symlink at the
// final path component. The walker never emits a path whose final
// component is a symlink, but the file could have been replaced by one
// between discovery and hashing; O_NOFOLLOW turns that race into an
// ELOOP error instead of silently hashing something else.
func openNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
}
