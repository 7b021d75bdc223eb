package main

import (
	"crypto/sha1"
	"fmt"

	"github.com/halvard/crate/internal/dup"
	"github.com/halvard/crate/internal/store"
	"github.com/spf13/cobra"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Scan for, report on, and quarantine duplicate albums",
}

var duplicatesScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Group fingerprinted albums and record duplicate groups",
	Long: `Read every fingerprint recorded in duplicates.db, group them by
pairwise similarity (spec §4.7), elect a keeper per group, and persist
the groups and members. process records fingerprints as it moves
albums; scan is the step that turns those fingerprints into groups.`,
	RunE: runDuplicatesScan,
}

var duplicatesReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a human-readable summary of recorded duplicate groups",
	RunE:  runDuplicatesReport,
}

var duplicatesCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Quarantine non-keeper members of every recorded duplicate group",
	Long: `Move every group member that isn't the elected keeper into
DUPLICATES_DIR, bucketed by why it lost (lower_quality,
scene_releases, format_preference, other), alongside an explanatory
sidecar file. Quarantine only relocates; it never deletes (spec
glossary: "Quarantine").`,
	RunE: runDuplicatesCleanup,
}

func init() {
	duplicatesCmd.AddCommand(duplicatesScanCmd, duplicatesReportCmd, duplicatesCleanupCmd)
	rootCmd.AddCommand(duplicatesCmd)
}

func runDuplicatesScan(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()
	cfg := rt.cfg

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	lock, err := acquireLock(cfg, rt.log)
	if err != nil {
		return err
	}
	defer lock.Release(false)

	groups, err := groupDuplicates(st.Dup, cfg.DuplicateThreshold, cfg.DurationToleranceSeconds)
	if err != nil {
		return err
	}

	recorded := 0
	for _, g := range groups {
		if len(g.Members) < 2 {
			continue
		}
		row, members := dup.BuildGroupRow(g, groupHash(g))
		if _, err := st.Dup.InsertGroup(row, members); err != nil {
			rt.log.Warn("-", "insert duplicate group for keeper %s: %v", g.Keeper.AlbumPath, err)
			continue
		}
		recorded++
	}

	rt.log.Info("-", "scan complete: %d duplicate groups found, %d recorded", len(groups), recorded)
	fmt.Printf("scanned groups, %d contain duplicates (recorded)\n", recorded)
	return nil
}

func runDuplicatesReport(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()

	st, err := openStores(rt.cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	groups, err := groupDuplicates(st.Dup, rt.cfg.DuplicateThreshold, rt.cfg.DurationToleranceSeconds)
	if err != nil {
		return err
	}

	dupCount := 0
	for _, g := range groups {
		if len(g.Members) < 2 {
			continue
		}
		dupCount++
		fmt.Printf("group %d: keeper %s (%d members)\n", dupCount, g.Keeper.AlbumPath, len(g.Members))
		for _, m := range g.Members {
			if m.ID == g.Keeper.ID {
				continue
			}
			bucket, reason := dup.ClassifyReason(g.Keeper, m)
			fmt.Printf("    %-18s %s (%s)\n", bucket, m.AlbumPath, reason)
		}
	}
	if dupCount == 0 {
		fmt.Println("no duplicate groups found")
	}
	return nil
}

func runDuplicatesCleanup(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()
	cfg := rt.cfg

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	lock, err := acquireLock(cfg, rt.log)
	if err != nil {
		return err
	}
	defer lock.Release(false)

	groups, err := groupDuplicates(st.Dup, cfg.DuplicateThreshold, cfg.DurationToleranceSeconds)
	if err != nil {
		return err
	}

	resolver := dup.NewResolver(rt.log, cfg.DryRun)
	quarantined, failed := 0, 0
	for _, g := range groups {
		if len(g.Members) < 2 {
			continue
		}
		for _, move := range dup.Plan(g, cfg.DuplicatesDir) {
			if err := resolver.Resolve(move); err != nil {
				rt.log.Error("-", "quarantine %s: %v", move.Member.AlbumPath, err)
				failed++
				continue
			}
			quarantined++
		}
	}

	rt.log.Info("-", "cleanup complete: %d quarantined, %d failed", quarantined, failed)
	fmt.Printf("quarantined %d albums (%d failed)\n", quarantined, failed)
	if failed > 0 {
		return fmt.Errorf("%d quarantine moves failed", failed)
	}
	return nil
}

// groupDuplicates loads every recorded fingerprint and runs the
// grouping pass shared by scan, report, and cleanup.
func groupDuplicates(dupStore *store.DuplicatesStore, threshold float64, durationToleranceSeconds int) ([]dup.Group, error) {
	rows, err := dupStore.AllFingerprints()
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	return dup.GroupFingerprints(rows, threshold, durationToleranceSeconds), nil
}

// groupHash derives an identifier for a group from its keeper's
// fingerprint and its member count. Re-running scan over an unchanged
// group yields the same hash, which InsertGroup rejects on the unique
// group_hash column (scan logs a warning and records nothing new); a
// group whose member count changed gets a new hash and a new row, and
// its earlier row is kept.
func groupHash(g dup.Group) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s:%d", g.Keeper.Fingerprint, len(g.Members))))
	return fmt.Sprintf("%x", h)
}
