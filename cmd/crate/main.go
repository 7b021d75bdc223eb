package main

import (
	"fmt"
	"os"

	"github.com/halvard/crate/internal/xerr"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	cfgFile         string
	sourceOverride  string
	destOverride    string
	dryRunValue     bool
	verbose         bool
	quiet           bool
	noColor         bool
	machineReadable bool

	rootCmd = &cobra.Command{
		Use:   "crate",
		Short: "Deterministic, resumable music library organizer",
		Long: `crate scans a messy archive of audio files and produces a clean,
deduplicated, normalized destination library with audit logs and
atomic move operations.

It is safe to interrupt and resume: incremental mode skips album
directories already processed, and every move is verified before the
source is removed.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&sourceOverride, "source", "", "source directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&destOverride, "dest", "", "destination directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&dryRunValue, "dry-run", true, "preview without writing to the destination (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "warning-level logging only")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVar(&machineReadable, "machine-readable", false, `emit "PROGRESS {...}" lines to stdout`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crate: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the process exit code spec §6
// assigns to its error kind. A nil or unrecognized error is a generic
// failure.
func exitCodeFor(err error) int {
	switch {
	case xerr.Is(err, xerr.ConfigInvalid):
		return 2
	case xerr.Is(err, xerr.LockHeld):
		return 3
	case xerr.Is(err, xerr.Interrupted):
		return 4
	case xerr.Is(err, xerr.DbInaccessible):
		return 5
	default:
		return 1
	}
}
