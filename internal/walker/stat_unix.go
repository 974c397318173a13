//go:build unix

package walker

import (
	"os"
	"syscall"
)

// deviceOf stats path (following symlinks, since this is only ever called
// on a user-supplied root argument, not a discovered entry) and returns its
// st_dev.
func deviceOf(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return deviceOfInfo(info), nil
}

// deviceOfInfo extracts st_dev from a FileInfo obtained via Stat or Lstat.
func deviceOfInfo(info os.FileInfo) uint64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Dev) //nolint:unconvert // platform-dependent type
}

// statFields extracts (dev, ino, nlink) from a FileInfo obtained via Lstat.
func statFields(info os.FileInfo) (dev, ino uint64, nlink uint32) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, 0
	}
	return uint64(stat.Dev), stat.Ino, uint32(stat.Nlink) //nolint:unconvert // platform-dependent type
}
