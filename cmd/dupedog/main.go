package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	// "-?" is a shorthand pflag cannot parse on its own (a lone "-?" looks
	// like a short-flag cluster); rewrite it to --help before cobra ever
	// sees argv, matching the -h/-?/--help contract below.
	for i, arg := range os.Args[1:] {
		if arg == "-?" {
			os.Args[i+1] = "--help"
		}
	}

	helpRequested := false
	root := newRootCmd()
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpRequested = true
		defaultHelp(cmd, args)
	})

	if err := root.Execute(); err != nil {
		return 1
	}
	if helpRequested {
		// Unlike most cobra programs, -h/-?/--help here exits 1 rather
		// than 0, per the command-line surface this tool presents.
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := newDedupeOptions()

	cmd := &cobra.Command{
		Use:     "dupedog [paths...]",
		Short:   "Find duplicate files and replace them with hard links",
		Version: version + " (" + commit + ")",
		Long: `dupedog scans one or more directory trees, finds files whose content is
byte-for-byte identical, and replaces all but one copy of each duplicate
set with a hard link to the survivor.

The scan never crosses a mount-point boundary and never follows symlinks.
Use --dry-run to preview what would happen without touching the filesystem.`,
		RunE: func(_ *cobra.Command, args []string) error {
			return runDedupe(args, opts)
		},
	}

	bindFlags(cmd, opts)
	return cmd
}
