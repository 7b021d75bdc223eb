package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/halvard/crate/internal/applock"
	"github.com/halvard/crate/internal/config"
	"github.com/halvard/crate/internal/store"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `doctor checks that the configured directories are accessible, the
three SQLite databases are reachable and pass their integrity check,
there is enough free disk space at source and destination, and reports
the pid and acquisition time recorded in the instance lock file, if one
exists.

Use this before a long process run on an unfamiliar machine.`,
	RunE: runDoctorCmd,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctorCmd(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()
	cfg := rt.cfg

	var results []checkResult
	results = append(results, checkSQLite())
	results = append(results, checkDatabase("state", cfg.StateDbPath, store.OpenState))
	results = append(results, checkDatabaseMeta(cfg.MetadataDbPath))
	results = append(results, checkDatabaseDup(cfg.DuplicatesDbPath))
	results = append(results, checkSourceDirectory(cfg.SourceDir))
	results = append(results, checkDestinationDirectory(cfg.DestinationDir))
	results = append(results, checkDiskSpace(cfg.SourceDir, "source"))
	if cfg.DestinationDir != cfg.SourceDir {
		results = append(results, checkDiskSpace(cfg.DestinationDir, "destination"))
	}
	results = append(results, checkLock(cfg))

	fmt.Println("=== crate doctor ===")
	fmt.Println()

	hasErrors, hasWarnings := false, false
	for _, r := range results {
		symbol := "[OK]"
		if r.error {
			symbol = "[FAIL]"
			hasErrors = true
		} else if r.warning {
			symbol = "[WARN]"
			hasWarnings = true
		}
		line := fmt.Sprintf("%s %s", symbol, r.name)
		if r.message != "" {
			line += ": " + r.message
		}
		fmt.Println(line)
	}

	fmt.Println()
	switch {
	case hasErrors:
		fmt.Println("some checks failed, resolve them before running process")
		return fmt.Errorf("doctor checks failed")
	case hasWarnings:
		fmt.Println("all checks passed with warnings")
	default:
		fmt.Println("all checks passed")
	}
	return nil
}

func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "sqlite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "sqlite", message: fmt.Sprintf("version %s (built in, no external binary required)", version)}
}

func checkDatabase(label, path string, open func(string) (*store.StateStore, error)) checkResult {
	if path == "" {
		return checkResult{name: label + " db", warning: true, message: "no path configured"}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{name: label + " db", message: fmt.Sprintf("%s (will be created on first run)", path)}
	}
	db, err := open(path)
	if err != nil {
		return checkResult{name: label + " db", error: true, message: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer db.Close()
	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: label + " db", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}
	return checkResult{name: label + " db", message: fmt.Sprintf("%s (integrity ok)", path)}
}

func checkDatabaseMeta(path string) checkResult {
	if path == "" {
		return checkResult{name: "metadata db", warning: true, message: "no path configured"}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{name: "metadata db", message: fmt.Sprintf("%s (will be created on first run)", path)}
	}
	db, err := store.OpenMetadata(path)
	if err != nil {
		return checkResult{name: "metadata db", error: true, message: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer db.Close()
	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: "metadata db", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}
	return checkResult{name: "metadata db", message: fmt.Sprintf("%s (integrity ok)", path)}
}

func checkDatabaseDup(path string) checkResult {
	if path == "" {
		return checkResult{name: "duplicates db", warning: true, message: "no path configured"}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{name: "duplicates db", message: fmt.Sprintf("%s (will be created on first run)", path)}
	}
	db, err := store.OpenDuplicates(path)
	if err != nil {
		return checkResult{name: "duplicates db", error: true, message: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer db.Close()
	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: "duplicates db", error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}
	return checkResult{name: "duplicates db", message: fmt.Sprintf("%s (integrity ok)", path)}
}

func checkSourceDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{name: "source directory", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "source directory", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{name: "source directory", error: true, message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	return checkResult{name: "source directory", message: fmt.Sprintf("%s (%d entries)", path, len(entries))}
}

func checkDestinationDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return checkResult{name: "destination directory", warning: true, message: fmt.Sprintf("%s does not exist yet (created on first move)", path)}
	}
	if err != nil {
		return checkResult{name: "destination directory", error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	}
	if !info.IsDir() {
		return checkResult{name: "destination directory", error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}
	testFile := filepath.Join(path, ".crate_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{name: "destination directory", error: true, message: fmt.Sprintf("cannot write to %s: %v", path, err)}
	}
	f.Close()
	os.Remove(testFile)
	return checkResult{name: "destination directory", message: fmt.Sprintf("%s (writable)", path)}
}

func checkDiskSpace(path, label string) checkResult {
	name := fmt.Sprintf("disk space (%s)", label)
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{name: name, warning: true, message: fmt.Sprintf("cannot determine disk space: %v", err)}
	}
	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - stat.Bfree*uint64(stat.Bsize)
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	warning := false
	note := ""
	if availBytes < 10*humanize.GByte {
		warning = true
		note = " (low space)"
	} else if usedPercent > 90 {
		warning = true
		note = " (>90% used)"
	}
	return checkResult{name: name, warning: warning, message: humanize.Bytes(availBytes) + " available" + note}
}

func checkLock(cfg *config.Config) checkResult {
	path := lockPath(cfg)
	info, held, err := applock.Read(path)
	if err != nil {
		return checkResult{name: "instance lock", warning: true, message: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	if !held {
		return checkResult{name: "instance lock", message: "not held"}
	}
	return checkResult{name: "instance lock", warning: true, message: fmt.Sprintf("held by pid %d since %s", info.PID, info.Timestamp.Format("2006-01-02 15:04:05"))}
}
