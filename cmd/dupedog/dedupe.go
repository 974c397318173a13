package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/castfs/dedupe/internal/bucketizer"
	"github.com/castfs/dedupe/internal/grouper"
	"github.com/castfs/dedupe/internal/hasher"
	"github.com/castfs/dedupe/internal/relinker"
	"github.com/castfs/dedupe/internal/report"
	"github.com/castfs/dedupe/internal/walker"
)

// dedupeOptions holds the CLI flags from the command-line surface.
type dedupeOptions struct {
	boring      bool
	verbose     bool
	dryRun      bool
	interactive bool
	excludes    []string
	useXattrs   bool
}

func newDedupeOptions() *dedupeOptions {
	return &dedupeOptions{}
}

func bindFlags(cmd *cobra.Command, opts *dedupeOptions) {
	cmd.Flags().BoolVarP(&opts.boring, "boring", "b", false, "Disable color/ANSI output")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Emit progress and duplicate-group reports")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Skip all filesystem mutations")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt per duplicate group")
	cmd.Flags().StringArrayVarP(&opts.excludes, "exclude", "e", nil, "Add an exclusion glob pattern (repeatable)")
	cmd.Flags().BoolVarP(&opts.useXattrs, "use-xattrs", "x", false, "Read/write digest cache in extended attributes")
}

// drainErrors consumes diagnostics from errCh and writes them to stderr,
// clearing the progress bar's line first so the two don't visually collide.
func drainErrors(errCh <-chan error, boring bool) {
	for err := range errCh {
		if boring {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

// runDedupe wires the sequential pipeline: walk -> bucketize -> hash ->
// group -> relink -> report.
func runDedupe(paths []string, opts *dedupeOptions) error {
	if err := validateGlobPatterns(opts.excludes); err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	roots := normalizeRoots(paths)
	showProgress := opts.verbose && !opts.boring

	errCh := make(chan error, 100)
	go drainErrors(errCh, opts.boring)
	defer close(errCh)

	start := time.Now()

	table, err := walker.Run(roots, opts.excludes, errCh)
	if err != nil {
		return fmt.Errorf("walk: %w", err)
	}

	worklist, totalBytes := bucketizer.BuildWorklist(table)

	h := hasher.New(opts.useXattrs, errCh, showProgress)
	h.HashAll(worklist, totalBytes)

	groups := grouper.Group(worklist)

	var relinkStats *relinker.Stats
	if len(groups) > 0 {
		r := relinker.New(opts.dryRun, opts.interactive, opts.verbose, opts.boring, os.Stdin, os.Stdout, errCh, showProgress)
		relinkStats = r.Run(groups)
	}

	summary := report.BuildSummary(table.Len(), worklist, totalBytes, groups, relinkStats, opts.dryRun, time.Since(start))
	report.Print(os.Stdout, summary)

	return nil
}

// normalizeRoots strips trailing slashes from each path and defaults to
// the current directory when none are given, scanning "." rather than
// erroring out.
func normalizeRoots(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.TrimRight(p, "/")
		if out[i] == "" {
			out[i] = "/"
		}
	}
	return out
}
