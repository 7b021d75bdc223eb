package main

import (
	"database/sql"
	"fmt"

	"github.com/halvard/crate/internal/xerr"
	"github.com/spf13/cobra"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Reclaim space in the state, metadata, and duplicates databases",
	Long: `Run SQLite's VACUUM against all three databases. Useful after a
large run; it does not change any recorded data.`,
	RunE: runVacuum,
}

func init() {
	rootCmd.AddCommand(vacuumCmd)
}

func runVacuum(cmd *cobra.Command, args []string) error {
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

	lock, err := acquireLock(rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer lock.Release(false)

	targets := []struct {
		name string
		path string
		db   *sql.DB
	}{
		{"state", rt.cfg.StateDbPath, st.State.DB()},
		{"metadata", rt.cfg.MetadataDbPath, st.Meta.DB()},
		{"duplicates", rt.cfg.DuplicatesDbPath, st.Dup.DB()},
	}

	failed := 0
	for _, t := range targets {
		if _, err := t.db.Exec("VACUUM"); err != nil {
			rt.log.Error("-", "vacuum %s (%s): %v", t.name, t.path, err)
			failed++
			continue
		}
		rt.log.Info("-", "vacuumed %s db (%s)", t.name, t.path)
		fmt.Printf("vacuumed %s\n", t.path)
	}

	if failed > 0 {
		return fmt.Errorf("%d database(s) failed to vacuum: %w", failed, xerr.DbInaccessible)
	}
	return nil
}
