// Package store implements the three embedded SQLite stores — state,
// metadata, and duplicates — sharing write-ahead journaling, a
// busy-timeout, and the exponential-backoff retry ladder for lock
// contention (spec §3, §5).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/halvard/crate/internal/util"
)

// busyTimeoutMS satisfies the "busy-timeout (>= 10s)" requirement of
// spec §5; SQLite's own busy handler sleeps internally up to this bound
// before returning SQLITE_BUSY, which our retry ladder then classifies.
const busyTimeoutMS = 10_000

// openDB opens path in WAL mode with a busy-timeout, a single open
// connection (this process is the sole writer; readers from external
// tools use read-only snapshots per spec §6), and runs migrate against
// schemaStatements tracked in a schema_version table.
func openDB(path string, schemaStatements []string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db, schemaStatements); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

func migrate(db *sql.DB, statements []string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	if err := row.Scan(&current); err != nil {
		current = 0
	}

	if current >= len(statements) {
		return nil
	}

	for i := current; i < len(statements); i++ {
		if _, err := db.Exec(statements[i]); err != nil {
			return fmt.Errorf("schema step %d: %w", i, err)
		}
	}

	if current == 0 {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, len(statements)); err != nil {
			return err
		}
	} else if _, err := db.Exec(`UPDATE schema_version SET version = ?`, len(statements)); err != nil {
		return err
	}
	return nil
}

// CheckIntegrity runs SQLite's built-in integrity check, used by the
// `doctor` command.
func CheckIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// withRetry runs fn, retrying per util.DbRetryConfig on "database locked"
// errors (up to 3 attempts, 100ms then 200ms apart), failing immediately
// on any other error.
func withRetry(ctx context.Context, log *util.Logger, fn func() error) error {
	cfg := util.DbRetryConfig()
	cfg.Logger = log
	var nonLockErr error
	err := util.Retry(cfg, func() error {
		err := fn()
		if err != nil {
			msg := strings.ToLower(err.Error())
			if !strings.Contains(msg, "database is locked") && !strings.Contains(msg, "database locked") {
				nonLockErr = err
				return nil
			}
		}
		return err
	}, "db operation")
	if nonLockErr != nil {
		return nonLockErr
	}
	return err
}

// Transaction runs fn inside a single transaction, retried per the DB
// lock ladder, committing on success and rolling back on any error or
// panic.
func Transaction(ctx context.Context, db *sql.DB, log *util.Logger, fn func(tx *sql.Tx) error) error {
	return withRetry(ctx, log, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
		}()
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// nowUTC is the single place "now" is produced for persisted rows, so
// tests can reason about monotonic ordering without relying on wall
// clock granularity.
func nowUTC() time.Time { return time.Now().UTC() }
