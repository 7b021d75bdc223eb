package store

import (
	"crypto/sha1"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	StatusOK          = "ok"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
	StatusNeedsReview = "needs_review"
)

// DirEntry is one row of processed_directories.
type DirEntry struct {
	Path        string
	LastMtime   int64
	ContentHash string
	ProcessedAt time.Time
	Status      string
}

// ContentHash computes H(sorted list of (name, size, mtime)) for the
// immediate children of dir, exactly as spec §3 defines it for the
// incremental-scan decision.
func ContentHash(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}

	type child struct {
		name  string
		size  int64
		mtime int64
	}
	children := make([]child, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		children = append(children, child{name: e.Name(), size: info.Size(), mtime: info.ModTime().Unix()})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })

	h := sha1.New()
	for _, c := range children {
		fmt.Fprintf(h, "%s:%d:%d\n", c.name, c.size, c.mtime)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// GetDirEntry returns the processed_directories row for path, or nil if
// never recorded.
func (s *StateStore) GetDirEntry(path string) (*DirEntry, error) {
	e := &DirEntry{Path: path}
	err := s.db.QueryRow(`
		SELECT COALESCE(last_mtime, 0), content_hash, processed_at, status
		FROM processed_directories WHERE path = ?
	`, path).Scan(&e.LastMtime, &e.ContentHash, &e.ProcessedAt, &e.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dir entry %s: %w", path, err)
	}
	return e, nil
}

// UpsertDirEntry records the processing outcome for a directory, creating
// or overwriting exactly one row per path (spec §3).
func (s *StateStore) UpsertDirEntry(e DirEntry) error {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = nowUTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO processed_directories (path, last_mtime, content_hash, processed_at, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_mtime = excluded.last_mtime,
			content_hash = excluded.content_hash,
			processed_at = excluded.processed_at,
			status = excluded.status
	`, e.Path, e.LastMtime, e.ContentHash, e.ProcessedAt, e.Status)
	if err != nil {
		return fmt.Errorf("upsert dir entry %s: %w", e.Path, err)
	}
	return nil
}

// ShouldSkip implements the incremental-mode decision of spec §4.1: skip
// a directory iff the state store reports status=ok with a matching
// content hash.
func (s *StateStore) ShouldSkip(dir string, incremental bool) (bool, error) {
	if !incremental {
		return false, nil
	}
	hash, err := ContentHash(dir)
	if err != nil {
		return false, err
	}
	entry, err := s.GetDirEntry(dir)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return entry.Status == StatusOK && entry.ContentHash == hash, nil
}

// RecordFile inserts/updates a processed_files row for a single audio
// file discovered within dir.
func (s *StateStore) RecordFile(dir, path string, size, mtime int64, contentKey string) error {
	_, err := s.db.Exec(`
		INSERT INTO processed_files (path, directory_path, size_bytes, mtime_unix, content_key)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			directory_path = excluded.directory_path,
			size_bytes = excluded.size_bytes,
			mtime_unix = excluded.mtime_unix,
			content_key = excluded.content_key
	`, filepath.Clean(path), dir, size, mtime, contentKey)
	if err != nil {
		return fmt.Errorf("record file %s: %w", path, err)
	}
	return nil
}

// Checkpoint is the resumable position written at batch boundaries and on
// cooperative cancellation (spec §4.8, §5).
type Checkpoint struct {
	Position  int
	Processed int
	Total     int
	UpdatedAt time.Time
}

// WriteCheckpoint persists the single checkpoint row.
func (s *StateStore) WriteCheckpoint(c Checkpoint) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = nowUTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO checkpoint (id, position, processed, total, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position, processed = excluded.processed,
			total = excluded.total, updated_at = excluded.updated_at
	`, c.Position, c.Processed, c.Total, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint returns the last written checkpoint, or nil if none.
func (s *StateStore) ReadCheckpoint() (*Checkpoint, error) {
	c := &Checkpoint{}
	err := s.db.QueryRow(`SELECT position, processed, total, updated_at FROM checkpoint WHERE id = 1`).
		Scan(&c.Position, &c.Processed, &c.Total, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return c, nil
}

// CountByStatus returns the count of processed_directories rows in each
// terminal status, for the end-of-run summary (spec §7).
func (s *StateStore) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM processed_directories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{StatusOK: 0, StatusSkipped: 0, StatusNeedsReview: 0, StatusFailed: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
