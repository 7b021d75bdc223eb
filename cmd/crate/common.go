package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/halvard/crate/internal/applock"
	"github.com/halvard/crate/internal/config"
	"github.com/halvard/crate/internal/store"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/xerr"
	"github.com/spf13/cobra"
)

// runtime bundles the configuration and logger every subcommand needs,
// assembled once from the persistent flags plus the optional config
// file (spec §6 precedence: flag > env (CRATE_*) > file > default).
type runtime struct {
	cfg *config.Config
	log *util.Logger
}

func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, _, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %v: %w", err, xerr.ConfigInvalid)
	}

	if sourceOverride != "" {
		cfg.SourceDir = sourceOverride
	}
	if destOverride != "" {
		cfg.DestinationDir = destOverride
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRunValue
	}
	if machineReadable {
		cfg.MachineReadable = true
	}
	if noColor || os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, xerr.ConfigInvalid)
	}

	level := util.Level(cfg.Verbosity)
	if verbose {
		level = util.LevelDebug
	} else if quiet {
		level = util.LevelWarn
	}

	log, err := util.NewLogger(cfg.LogFile, level, !cfg.NoColor)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &runtime{cfg: cfg, log: log}, nil
}

// stores bundles the three databases every operation reads or writes,
// opened together so a partial-open failure closes what did open.
type stores struct {
	State *store.StateStore
	Meta  *store.MetadataStore
	Dup   *store.DuplicatesStore
}

func openStores(cfg *config.Config) (*stores, error) {
	state, err := store.OpenState(cfg.StateDbPath)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %v: %w", cfg.StateDbPath, err, xerr.DbInaccessible)
	}
	meta, err := store.OpenMetadata(cfg.MetadataDbPath)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("open metadata db %s: %v: %w", cfg.MetadataDbPath, err, xerr.DbInaccessible)
	}
	dup, err := store.OpenDuplicates(cfg.DuplicatesDbPath)
	if err != nil {
		state.Close()
		meta.Close()
		return nil, fmt.Errorf("open duplicates db %s: %v: %w", cfg.DuplicatesDbPath, err, xerr.DbInaccessible)
	}
	return &stores{State: state, Meta: meta, Dup: dup}, nil
}

func (s *stores) Close() {
	if s == nil {
		return
	}
	s.State.Close()
	s.Meta.Close()
	s.Dup.Close()
}

// lockPath returns the instance lock's location: a sibling of the state
// database, since every operation that touches the databases needs the
// lock and the state db path is always configured.
func lockPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.StateDbPath), ".crate.lock")
}

// acquireLock takes the single-holder instance lock (spec §5/§6),
// forcing past any existing holder first when force_cleanup_locks is
// set.
func acquireLock(cfg *config.Config, log *util.Logger) (*applock.Lock, error) {
	path := lockPath(cfg)
	if cfg.ForceCleanupLocks {
		if err := applock.ForceUnlock(path); err != nil && log != nil {
			log.Warn("-", "force-unlock existing lock: %v", err)
		}
	}
	return applock.Acquire(path, log)
}
