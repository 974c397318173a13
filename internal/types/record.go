// Package types provides the shared data model used across the dedupe
// pipeline: inode records, the inode table they live in, and the digest
// groups the relinker consumes.
package types

import "time"

// InodeKey identifies an inode by the (device, inode-number) pair it was
// discovered under. Two paths share an InodeKey iff they are hard links to
// the same file at the moment of discovery.
type InodeKey struct {
	Dev uint64
	Ino uint64
}

// InodeRecord is the per-inode accumulator for everything discovered about
// one inode over the course of a run. It is
// created on first sighting of its inode during the walk, mutated only by
// appending paths (during the walk) and filling the digest (during
// hashing), and never mutated after the relinker runs.
type InodeRecord struct {
	Dev   uint64
	Ino   uint64
	Size  int64
	Mtime time.Time

	Digest    [32]byte
	HasDigest bool

	// Paths holds every path discovered for this inode, in insertion
	// (readdir) order. A plain append-only slice is enough; no intrusive
	// linkage is needed.
	Paths []string
}

// AddPath appends a newly discovered path for this inode.
func (r *InodeRecord) AddPath(path string) {
	r.Paths = append(r.Paths, path)
}

// FirstPath returns the first discovered path, or "" if the record has none
// (a record reachable through InodeTable always has at least one).
func (r *InodeRecord) FirstPath() string {
	if len(r.Paths) == 0 {
		return ""
	}
	return r.Paths[0]
}

// InodeTable owns every InodeRecord discovered during a walk, keyed by
// InodeKey. It is populated by the walker and read by every later stage;
// the pipeline runs sequentially end to end, so nothing touches it
// concurrently and it carries no locking.
type InodeTable struct {
	records map[InodeKey]*InodeRecord
}

// NewInodeTable creates an empty table.
func NewInodeTable() *InodeTable {
	return &InodeTable{records: make(map[InodeKey]*InodeRecord)}
}

// GetOrCreate returns the existing record for key, or creates and stores a
// new one using size/mtime if this is the first sighting. The second return
// value reports whether a new record was created.
func (t *InodeTable) GetOrCreate(key InodeKey, size int64, mtime time.Time) (*InodeRecord, bool) {
	if rec, ok := t.records[key]; ok {
		return rec, false
	}
	rec := &InodeRecord{Dev: key.Dev, Ino: key.Ino, Size: size, Mtime: mtime}
	t.records[key] = rec
	return rec, true
}

// Records returns every record in the table, in unspecified order. Callers
// that need a deterministic order sort the result themselves (size
// bucketizer, digest grouper).
func (t *InodeTable) Records() []*InodeRecord {
	out := make([]*InodeRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}

// Len reports the number of distinct inodes discovered.
func (t *InodeTable) Len() int {
	return len(t.records)
}

// DigestGroup is a set of inode records confirmed to share identical
// content. Members is in whatever order the grouper encountered them; the
// relinker selects the keeper from Members itself rather than relying on
// any ordering here.
type DigestGroup struct {
	Digest  [32]byte
	Members []*InodeRecord
}
