package main

import (
	"fmt"

	"github.com/halvard/crate/internal/pipeline"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove directories left empty by completed moves",
}

var cleanupEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Prune empty directories under source_dir",
	Long: `process already prunes empty directories after each run; this
command exists to run that same pass on its own, e.g. after a manual
cleanup or a run that was interrupted before it got to this step.`,
	RunE: runCleanupEmpty,
}

func init() {
	cleanupCmd.AddCommand(cleanupEmptyCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanupEmpty(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()

	lock, err := acquireLock(rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer lock.Release(false)

	removed := pipeline.CleanupEmptySources(rt.cfg.SourceDir)
	rt.log.Info("-", "cleanup empty: removed %d directories under %s", removed, rt.cfg.SourceDir)
	fmt.Printf("removed %d empty directories\n", removed)
	return nil
}
