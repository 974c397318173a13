// Package hashcache implements an optional extended-attribute digest cache:
// a file's last computed hash and the mtime it was computed against are
// stored directly on the file, so an unchanged file never needs rehashing
// across runs.
package hashcache

import (
	"encoding/binary"
	"time"

	"github.com/pkg/xattr"
)

const (
	hashAttr      = "user.dedupe.hash"
	hashMtimeAttr = "user.dedupe.hash_mtime"

	digestSize = 32
	mtimeSize  = 16 // 8 bytes seconds + 8 bytes nanoseconds, big-endian
)

// Lookup returns the cached digest for path if present and still valid for
// mtime. A digest with no mtime companion attribute is accepted
// unconditionally (compatibility exception for older cache writers);
// otherwise the companion must encode exactly mtime.
func Lookup(path string, mtime time.Time) (digest [32]byte, ok bool) {
	data, err := xattr.Get(path, hashAttr)
	if err != nil || len(data) != digestSize {
		return digest, false
	}

	mtimeData, err := xattr.Get(path, hashMtimeAttr)
	if err != nil {
		// Companion missing: accept the cached digest unconditionally.
		copy(digest[:], data)
		return digest, true
	}
	if len(mtimeData) != mtimeSize {
		return digest, false
	}

	sec := int64(binary.BigEndian.Uint64(mtimeData[0:8]))
	nsec := int64(binary.BigEndian.Uint64(mtimeData[8:16]))
	if sec != mtime.Unix() || nsec != int64(mtime.Nanosecond()) {
		return digest, false
	}

	copy(digest[:], data)
	return digest, true
}

// HasCached reports whether path carries a digest attribute at all,
// regardless of whether it is still valid for the file's current mtime.
// Test fixtures use this to assert that a run populated the cache.
func HasCached(path string) bool {
	data, err := xattr.Get(path, hashAttr)
	return err == nil && len(data) == digestSize
}

// Store writes digest and mtime to path's extended attributes. Write
// failures are non-fatal (the cache is advisory): Store reports them to
// the caller so they can be logged at low severity, but the hash that was
// just computed remains valid and usable regardless.
func Store(path string, mtime time.Time, digest [32]byte) error {
	if err := xattr.Set(path, hashAttr, digest[:]); err != nil {
		return err
	}

	var buf [mtimeSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(mtime.Unix()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(mtime.Nanosecond()))
	return xattr.Set(path, hashMtimeAttr, buf[:])
}
