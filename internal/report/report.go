// Package report turns the counters produced by the earlier pipeline
// stages into the human-readable summary printed at the end of a run.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/castfs/dedupe/internal/relinker"
	"github.com/castfs/dedupe/internal/types"
)

// Summary is the final, run-wide tally handed to Print.
type Summary struct {
	FilesScanned   int
	CandidateFiles int
	CandidateBytes int64
	DuplicateSets  int
	Relink         *relinker.Stats
	DryRun         bool
	Elapsed        time.Duration
}

// BuildSummary assembles a Summary from the outputs of each pipeline
// stage. totalFiles is the number of distinct inodes the walker
// discovered; worklist/totalBytes are the bucketizer's outputs; groups is
// the grouper's output; relink is the relinker's accumulated stats (nil if
// the relinker never ran, e.g. zero groups).
func BuildSummary(totalFiles int, worklist []*types.InodeRecord, totalBytes int64, groups []*types.DigestGroup, relink *relinker.Stats, dryRun bool, elapsed time.Duration) Summary {
	return Summary{
		FilesScanned:   totalFiles,
		CandidateFiles: len(worklist),
		CandidateBytes: totalBytes,
		DuplicateSets:  len(groups),
		Relink:         relink,
		DryRun:         dryRun,
		Elapsed:        elapsed,
	}
}

// Print writes a multi-line human-readable summary to w.
func Print(w io.Writer, s Summary) {
	fmt.Fprintf(w, "scanned %d files, %d were candidates for comparison (%s)\n",
		s.FilesScanned, s.CandidateFiles, humanize.IBytes(uint64(s.CandidateBytes)))
	fmt.Fprintf(w, "found %d duplicate set(s)\n", s.DuplicateSets)

	if s.Relink != nil {
		verb := "relinked"
		if s.DryRun {
			verb = "would relink"
		}
		fmt.Fprintf(w, "%s %d path(s), reclaiming %s\n",
			verb, s.Relink.RelinkedCount, humanize.IBytes(uint64(s.Relink.RelinkedSize)))
	}

	fmt.Fprintf(w, "done in %.1fs\n", s.Elapsed.Seconds())
}
