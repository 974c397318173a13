//go:build unix

package hashcache

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/xattr"
)

func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func skipIfNoXattrSupport(t *testing.T, path string) {
	t.Helper()
	if err := xattr.Set(path, "user.dedupe.probe", []byte("1")); err != nil {
		t.Skipf("filesystem does not support extended attributes: %v", err)
	}
}

func TestStoreThenLookupRoundTrips(t *testing.T) {
	path := tempFile(t)
	skipIfNoXattrSupport(t, path)

	mtime := time.Unix(1700000000, 123456789)
	digest := sha256.Sum256([]byte("hello"))

	if err := Store(path, mtime, digest); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok := Lookup(path, mtime)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != digest {
		t.Fatalf("digest mismatch: got %x, want %x", got, digest)
	}
}

func TestLookupMissesOnMtimeChange(t *testing.T) {
	path := tempFile(t)
	skipIfNoXattrSupport(t, path)

	original := time.Unix(1700000000, 0)
	digest := sha256.Sum256([]byte("hello"))
	if err := Store(path, original, digest); err != nil {
		t.Fatalf("Store: %v", err)
	}

	changed := original.Add(time.Second)
	if _, ok := Lookup(path, changed); ok {
		t.Fatal("expected cache miss after mtime changed")
	}
}

func TestLookupMissingAttributeIsNotAnError(t *testing.T) {
	path := tempFile(t)
	skipIfNoXattrSupport(t, path)

	if _, ok := Lookup(path, time.Now()); ok {
		t.Fatal("expected cache miss for a file with no cached digest")
	}
}

func TestHasCachedReflectsPresenceRegardlessOfMtime(t *testing.T) {
	path := tempFile(t)
	skipIfNoXattrSupport(t, path)

	if HasCached(path) {
		t.Fatal("expected no cached digest before Store")
	}

	digest := sha256.Sum256([]byte("hello"))
	if err := Store(path, time.Unix(1700000000, 0), digest); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !HasCached(path) {
		t.Fatal("expected HasCached to report true after Store")
	}

	// HasCached only checks presence, not validity against the current mtime.
	if !HasCached(path) {
		t.Fatal("HasCached must not depend on mtime, only on attribute presence")
	}
}

func TestLookupAcceptsDigestWithMissingMtimeCompanion(t *testing.T) {
	path := tempFile(t)
	skipIfNoXattrSupport(t, path)

	digest := sha256.Sum256([]byte("hello"))
	if err := xattr.Set(path, hashAttr, digest[:]); err != nil {
		t.Fatalf("xattr.Set: %v", err)
	}

	got, ok := Lookup(path, time.Now())
	if !ok {
		t.Fatal("expected unconditional acceptance when the mtime companion is absent")
	}
	if got != digest {
		t.Fatalf("digest mismatch: got %x, want %x", got, digest)
	}
}
