//go:build unix

package relinker

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"

	"github.com/castfs/dedupe/internal/types"
)

// replace implements the crash-safe link-then-rename protocol of spec
// §4.5 for a single destination path. It tries each of keeper's paths in
// turn: a random-named temp hard link is created alongside dest, then
// atomically renamed over dest. EEXIST on the temp name is retried with a
// freshly generated suffix; any other link failure moves on to the
// keeper's next path. A rename failure unlinks the temp and aborts dest
// entirely (the keeper path is never left without at least one surviving
// reference).
func (r *Relinker) replace(dest string, keeper *types.InodeRecord) error {
	if r.dryRun {
		return nil
	}

	dir := parentDir(dest)

	var lastErr error
	for _, keeperPath := range keeper.Paths {
		if keeperPath == dest {
			// dest is itself the keeper's canonical path; nothing to do.
			return nil
		}

		tmp, err := linkWithFreshName(dir, keeperPath)
		if err != nil {
			lastErr = err
			continue
		}

		if err := os.Rename(tmp, dest); err != nil {
			_ = os.Remove(tmp)
			return err
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("no keeper path could be linked")
	}
	return lastErr
}

// linkWithFreshName creates a hard link to target under dir using a random
// temp name, regenerating the name on EEXIST until one succeeds or a
// non-collision error occurs.
func linkWithFreshName(dir, target string) (tmpPath string, err error) {
	for {
		tmpPath = dir + "/.tmp" + randomSuffix() + "~"
		if err = os.Link(target, tmpPath); err == nil {
			return tmpPath, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return "", err
	}
}

func randomSuffix() string {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err) // crypto/rand failing indicates a broken system entropy source
	}
	return hex.EncodeToString(buf[:])
}

// parentDir returns the directory portion of path by splitting on the
// last '/'. path is always produced by internal/walker, which never
// yields a bare filename without at least one '/', so this never
// returns an empty string.
func parentDir(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
