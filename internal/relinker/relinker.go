// Package relinker replaces duplicate files with hard links: for each
// digest group it selects a keeper (oldest mtime, inode-number tiebreak)
// and atomically replaces every other member's paths with hard links to
// the keeper's content, using a crash-safe link-then-rename protocol.
package relinker

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/castfs/dedupe/internal/progress"
	"github.com/castfs/dedupe/internal/types"
)

// Stats accumulates the counters the run summary reports.
type Stats struct {
	RelinkedCount int64
	RelinkedSize  int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("Relinked %d paths, reclaimed %s",
		s.RelinkedCount, humanize.IBytes(uint64(s.RelinkedSize)))
}

// Relinker replaces duplicate paths with hard links to a chosen keeper.
type Relinker struct {
	dryRun      bool
	interactive bool
	verbose     bool
	boring      bool

	in  io.Reader
	out io.Writer
	errCh chan<- error
	bar   *progress.Bar
}

// New creates a Relinker. in/out drive interactive confirmation and
// --verbose per-replacement reporting; they default to os.Stdin/os.Stdout
// in production and are swapped for buffers in tests. boring disables the
// ANSI clear-line escape on --verbose output, matching drainErrors' own
// --boring gating.
func New(dryRun, interactive, verbose, boring bool, in io.Reader, out io.Writer, errCh chan<- error, showProgress bool) *Relinker {
	return &Relinker{
		dryRun:      dryRun,
		interactive: interactive,
		verbose:     verbose,
		boring:      boring,
		in:          in,
		out:         out,
		errCh:       errCh,
		bar:         progress.New(showProgress, -1),
	}
}

// Run processes every digest group, replacing all but the keeper's paths.
// It returns cumulative statistics across all groups.
func (r *Relinker) Run(groups []*types.DigestGroup) *Stats {
	st := &Stats{}
	r.bar.Describe(st)

	for _, g := range groups {
		if len(g.Members) < 2 {
			continue
		}

		if r.interactive && !r.confirm(g) {
			continue
		}

		keeper, rest := selectKeeper(g.Members)
		keeperPath := keeper.FirstPath()

		for _, member := range rest {
			for _, dest := range member.Paths {
				if err := r.replace(dest, keeper); err != nil {
					r.sendErr(fmt.Errorf("%s: %w", dest, err))
					continue
				}
				st.RelinkedCount++
				st.RelinkedSize += keeper.Size
				if r.verbose {
					if r.boring {
						fmt.Fprintf(r.out, "linked %s -> %s\n", dest, keeperPath)
					} else {
						fmt.Fprintf(r.out, "\r\033[Klinked %s -> %s\n", dest, keeperPath)
					}
				}
				r.bar.Describe(st)
			}
		}
	}

	r.bar.Finish(st)
	return st
}

// selectKeeper sorts group members ascending by (mtime.seconds,
// mtime.nanoseconds, inode-number) and returns the first as the keeper and
// the remainder as the members to be relinked.
func selectKeeper(members []*types.InodeRecord) (keeper *types.InodeRecord, rest []*types.InodeRecord) {
	sorted := make([]*types.InodeRecord, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Mtime.Equal(b.Mtime) {
			return a.Mtime.Before(b.Mtime)
		}
		return a.Ino < b.Ino
	})
	return sorted[0], sorted[1:]
}

// confirm prints a digest group and reads a line-oriented y/n answer from
// r.in. Only "y"/"yes" (case-insensitive) confirm; only "n"/"no" decline;
// anything else re-prompts. Returns false (skip) if input is exhausted.
func (r *Relinker) confirm(g *types.DigestGroup) bool {
	fmt.Fprintf(r.out, "duplicate set (%d members, %s each):\n", len(g.Members), humanize.IBytes(uint64(g.Members[0].Size)))
	for _, m := range g.Members {
		for _, p := range m.Paths {
			fmt.Fprintf(r.out, "  %s\n", p)
		}
	}

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "relink this set? [y/n] ")
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

func (r *Relinker) sendErr(err error) {
	if r.errCh != nil {
		r.errCh <- err
	}
}
