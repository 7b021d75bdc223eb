package main

import (
	"fmt"

	"github.com/halvard/crate/internal/applock"
	"github.com/spf13/cobra"
)

var forceUnlockCmd = &cobra.Command{
	Use:   "force-unlock",
	Short: "Remove the instance lock without checking whether it is stale",
	Long: `process refuses to start a second instance while the lock file
is held by a live, non-stale process (spec §5). Use force-unlock to
remove it manually, e.g. after a crash left a lock behind pointing at
a PID that no longer exists under a different meaning.`,
	RunE: runForceUnlock,
}

func init() {
	rootCmd.AddCommand(forceUnlockCmd)
}

func runForceUnlock(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()

	path := lockPath(rt.cfg)
	if err := applock.ForceUnlock(path); err != nil {
		return fmt.Errorf("force-unlock %s: %w", path, err)
	}
	rt.log.Info("-", "force-unlocked %s", path)
	fmt.Printf("removed lock %s\n", path)
	return nil
}
