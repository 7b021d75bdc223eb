package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/halvard/crate/internal/config"
	"github.com/halvard/crate/internal/enrich"
	"github.com/halvard/crate/internal/move"
	"github.com/halvard/crate/internal/pipeline"
	"github.com/halvard/crate/internal/report"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/worker"
	"github.com/halvard/crate/internal/xerr"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Discover, extract, enrich, organize, and move albums",
	Long: `Run the full pipeline over source_dir: discover album directories,
skip the ones incremental mode already knows are unchanged, then for
each remaining album extract tags, look up enrichment metadata,
compute its destination path, and atomically move it there.

Use --dry-run (the default) to preview without writing. A final
summary prints ok/skipped/needs_review/failed counts plus the paths to
the event log and the generated report.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	log := rt.log
	defer log.Close()
	cfg := rt.cfg

	lock, err := acquireLock(cfg, log)
	if err != nil {
		return err
	}
	defer lock.Release(false)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logLevel := report.LevelInfo
	if quiet {
		logLevel = report.LevelWarning
	} else if verbose {
		logLevel = report.LevelDebug
	}
	events, err := report.NewEventLogger(filepath.Dir(cfg.LogFile), logLevel)
	if err != nil {
		log.Warn("-", "failed to create event logger: %v", err)
		events = report.NullLogger()
	}
	defer events.Close()
	if events.Path() != "" {
		log.Info("-", "event log: %s", events.Path())
	}

	var progress *report.ProgressEmitter
	switch {
	case cfg.MachineReadable:
		progress = report.NewProgressEmitter(os.Stdout)
	case !quiet && util.IsTerminal(os.Stdout.Fd()):
		progress = report.NewTerminalProgress()
	}

	mover := move.New(move.Config{
		Meta:        st.Meta,
		Log:         log,
		DryRun:      cfg.DryRun,
		RenameFiles: cfg.RenameAudioFilesOnMove,
	})

	deps := pipeline.Deps{
		Cfg:      cfg,
		State:    st.State,
		Meta:     st.Meta,
		Dup:      st.Dup,
		Log:      log,
		Enrich:   buildEnrichManager(cfg, log),
		Mover:    mover,
		Locks:    &worker.Locks{},
		Events:   events,
		Progress: progress,
	}

	driver, err := pipeline.New(deps)
	if err != nil {
		return fmt.Errorf("%v: %w", err, xerr.ConfigInvalid)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("-", "processing %s -> %s (mode=%s, dry_run=%v)", cfg.SourceDir, cfg.DestinationDir, cfg.Mode, cfg.DryRun)

	summary, runErr := driver.Run(ctx)
	if summary == nil {
		return runErr
	}

	log.Info("-", "run complete in %s: ok=%d skipped=%d needs_review=%d failed=%d",
		summary.Duration.Round(time.Millisecond), summary.OK, summary.Skipped, summary.NeedsReview, summary.Failed)

	if rerr := writeSummaryReport(st, events, summary, log); rerr != nil {
		log.Warn("-", "generate summary report: %v", rerr)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%v: %w", runErr, xerr.Interrupted)
		}
		return runErr
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", xerr.Interrupted)
	}
	return nil
}

// buildEnrichManager wires the primary and secondary providers
// configured under cfg, skipping any that are disabled or fail to
// construct (enrichment is never fatal to a run, spec §4.6).
func buildEnrichManager(cfg *config.Config, log *util.Logger) *enrich.Manager {
	var providers []enrich.ConfiguredProvider

	ordered := []struct {
		name string
		pc   config.ProviderConfig
	}{
		{"primary", cfg.Primary},
		{"secondary", cfg.Secondary},
	}
	for _, o := range ordered {
		name, pc := o.name, o.pc
		if !pc.Enabled {
			continue
		}
		statePath := pc.CacheDir
		if statePath == "" {
			statePath = filepath.Join(filepath.Dir(cfg.StateDbPath), "enrich-"+name)
		}
		provider, err := enrich.NewHTTPProvider(name, "crate/"+Version, pc, statePath)
		if err != nil {
			log.Warn("-", "enrichment provider %s unavailable: %v", name, err)
			continue
		}
		providers = append(providers, enrich.ConfiguredProvider{Provider: provider, Config: pc})
	}

	if len(providers) == 0 {
		return nil
	}
	return enrich.NewManager(log, providers...)
}

func writeSummaryReport(st *stores, events *report.EventLogger, summary *pipeline.Summary, log *util.Logger) error {
	r, err := report.GenerateSummaryReport(st.State, st.Meta, st.Dup, events.Path())
	if err != nil {
		return err
	}
	r.Duration = summary.Duration

	timestamp := time.Now().UTC().Format("20060102-150405")
	outPath := filepath.Join(filepath.Dir(events.Path()), "reports", timestamp, "summary.md")
	if events.Path() == "" {
		outPath = filepath.Join("reports", timestamp, "summary.md")
	}
	if err := report.WriteMarkdownReport(r, outPath); err != nil {
		return err
	}
	log.Info("-", "summary report: %s", outPath)
	return nil
}
