// Package hasher produces, for every candidate inode record, a
// deterministic 32-byte SHA-256 digest over the inode's full content,
// optionally consulting and refreshing the extended-attribute cache in
// internal/hashcache.
package hasher

import (
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	mmap "github.com/edsrzf/mmap-go"

	"github.com/castfs/dedupe/internal/hashcache"
	"github.com/castfs/dedupe/internal/progress"
	"github.com/castfs/dedupe/internal/types"
)

// chunkSize is the size fed to the streaming hasher per Write call. It
// exists solely to give progress reporting something to update between
// reads of a large file; the digest produced is bit-identical to hashing
// the whole mapping in one call.
const chunkSize = 32 << 20 // 32 MiB

// emptyDigest is the SHA-256 of zero bytes, used directly for zero-length
// files without creating a mapping.
var emptyDigest = sha256.Sum256(nil)

// Hasher computes content digests for a hash worklist.
type Hasher struct {
	useCache bool
	errCh    chan<- error
	bar      *progress.Bar

	// mapFile is overridden in tests to observe whether a given inode was
	// ever memory-mapped (scenario 6: no mmap on a cache hit).
	mapFile func(f *os.File, size int64) ([]byte, func() error, error)
}

// New creates a Hasher. useCache enables the xattr digest cache; errCh
// receives non-fatal diagnostics; showProgress controls whether a
// progress bar is rendered.
func New(useCache bool, errCh chan<- error, showProgress bool) *Hasher {
	h := &Hasher{
		useCache: useCache,
		errCh:    errCh,
		bar:      progress.New(showProgress, -1),
	}
	h.mapFile = h.defaultMapFile
	return h
}

// stats tracks hashing progress, following the Stats.String() convention
// used by the other pipeline stages.
type stats struct {
	totalBytes   int64
	hashedBytes  int64
	cachedBytes  int64
	hashedFiles  int
	startTime    time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Hashed %s + cached %s of %s (%d files) in %.1fs",
		humanize.IBytes(uint64(s.hashedBytes)), humanize.IBytes(uint64(s.cachedBytes)),
		humanize.IBytes(uint64(s.totalBytes)), s.hashedFiles, time.Since(s.startTime).Seconds())
}

// HashAll computes digests for every record in worklist, in order. Records
// whose content could not be read (no openable path, mmap failure) are
// left with HasDigest=false and are reported via errCh; they will be
// dropped by the digest grouper since they cannot be matched on digest.
func (h *Hasher) HashAll(worklist []*types.InodeRecord, totalBytes int64) {
	st := &stats{totalBytes: totalBytes, startTime: time.Now()}
	h.bar.Describe(st)

	for _, rec := range worklist {
		h.hashOne(rec, st)
		h.bar.Describe(st)
	}

	h.bar.Finish(st)
}

// hashOne tries rec's paths in insertion order until one can be hashed.
func (h *Hasher) hashOne(rec *types.InodeRecord, st *stats) {
	if rec.Size == 0 {
		rec.Digest = emptyDigest
		rec.HasDigest = true
		st.hashedFiles++
		return
	}

	for _, p := range rec.Paths {
		if h.useCache {
			if digest, ok := hashcache.Lookup(p, rec.Mtime); ok {
				rec.Digest = digest
				rec.HasDigest = true
				st.cachedBytes += rec.Size
				st.hashedFiles++
				return
			}
		}

		digest, err := h.hashPath(p, rec.Size)
		if err != nil {
			h.sendErr(fmt.Errorf("%s: %w", p, err))
			continue
		}

		rec.Digest = digest
		rec.HasDigest = true
		st.hashedBytes += rec.Size
		st.hashedFiles++

		if h.useCache {
			if err := hashcache.Store(p, rec.Mtime, digest); err != nil {
				h.sendErr(fmt.Errorf("cache store %s: %w", p, err))
			}
		}
		return
	}

	h.sendErr(fmt.Errorf("inode %d: no path could be opened for hashing", rec.Ino))
}

// hashPath opens path read-only without following symlinks, memory-maps
// its content, and feeds the mapping to a streaming SHA-256 in chunkSize
// slices.
func (h *Hasher) hashPath(path string, size int64) (digest [32]byte, err error) {
	f, err := openNoFollow(path)
	if err != nil {
		return digest, err
	}
	defer func() { _ = f.Close() }()

	data, unmap, err := h.mapFile(f, size)
	if err != nil {
		return digest, fmt.Errorf("mmap: %w", err)
	}
	defer func() { _ = unmap() }()

	hasher := sha256.New()
	for off := int64(0); off < int64(len(data)); off += chunkSize {
		end := off + chunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		hasher.Write(data[off:end])
	}

	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// defaultMapFile memory-maps f read-only for exactly size bytes.
func (h *Hasher) defaultMapFile(f *os.File, size int64) ([]byte, func() error, error) {
	m, err := mmap.MapRegion(f, int(size), mmap.RDONLY, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	return []byte(m), m.Unmap, nil
}

func (h *Hasher) sendErr(err error) {
	if h.errCh != nil {
		h.errCh <- err
	}
}
