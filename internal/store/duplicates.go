package store

import (
	"database/sql"
	"fmt"
	"time"
)

// FingerprintRow is one row of audio_fingerprints (spec §3, §4.7).
type FingerprintRow struct {
	ID           int64
	AlbumPath    string
	Fingerprint  string
	MetadataHash string
	DurationMs   int64
	FileCount    int
	TotalSize    int64
	QualityScore float64
	Format       string
	AvgBitrate   float64
	CreatedAt    time.Time
}

// UpsertFingerprint inserts or replaces the fingerprint row for an album.
func (s *DuplicatesStore) UpsertFingerprint(f FingerprintRow) (int64, error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = nowUTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO audio_fingerprints (
			album_path, fingerprint, metadata_hash, duration_ms, file_count,
			total_size, quality_score, format, avg_bitrate, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(album_path) DO UPDATE SET
			fingerprint = excluded.fingerprint, metadata_hash = excluded.metadata_hash,
			duration_ms = excluded.duration_ms, file_count = excluded.file_count,
			total_size = excluded.total_size, quality_score = excluded.quality_score,
			format = excluded.format, avg_bitrate = excluded.avg_bitrate
	`, f.AlbumPath, f.Fingerprint, f.MetadataHash, f.DurationMs, f.FileCount,
		f.TotalSize, f.QualityScore, f.Format, f.AvgBitrate, f.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("upsert fingerprint %s: %w", f.AlbumPath, err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		// On conflict-update, LastInsertId is unreliable; look it up.
		var existing int64
		if qerr := s.db.QueryRow(`SELECT id FROM audio_fingerprints WHERE album_path = ?`, f.AlbumPath).Scan(&existing); qerr == nil {
			return existing, nil
		}
	}
	return id, nil
}

// AllFingerprints returns every fingerprint row ordered by quality score
// descending, the order the grouping pass in spec §4.7 requires.
func (s *DuplicatesStore) AllFingerprints() ([]FingerprintRow, error) {
	rows, err := s.db.Query(`
		SELECT id, album_path, fingerprint, metadata_hash, duration_ms, file_count,
		       total_size, quality_score, COALESCE(format, ''), COALESCE(avg_bitrate, 0), created_at
		FROM audio_fingerprints ORDER BY quality_score DESC, total_size DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()

	var out []FingerprintRow
	for rows.Next() {
		var f FingerprintRow
		if err := rows.Scan(&f.ID, &f.AlbumPath, &f.Fingerprint, &f.MetadataHash, &f.DurationMs,
			&f.FileCount, &f.TotalSize, &f.QualityScore, &f.Format, &f.AvgBitrate, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GroupRow is one row of duplicate_groups.
type GroupRow struct {
	ID             int64
	GroupHash      string
	AlbumCount     int
	TotalSize      int64
	BestQualityID  int64
	DuplicateScore float64
	CreatedAt      time.Time
}

// MemberRow is one row of duplicate_members.
type MemberRow struct {
	GroupID             int64
	FingerprintID       int64
	IsRecommendedKeep   bool
	IsMarkedForDeletion bool
}

// InsertGroup creates a duplicate_groups row plus its duplicate_members
// rows in one transaction.
func (s *DuplicatesStore) InsertGroup(group GroupRow, members []MemberRow) (int64, error) {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = nowUTC()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin group insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO duplicate_groups (group_hash, album_count, total_size, best_quality_id, duplicate_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, group.GroupHash, group.AlbumCount, group.TotalSize, group.BestQualityID, group.DuplicateScore, group.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert duplicate_group %s: %w", group.GroupHash, err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, m := range members {
		if _, err := tx.Exec(`
			INSERT INTO duplicate_members (group_id, fingerprint_id, is_recommended_keep, is_marked_for_deletion)
			VALUES (?, ?, ?, ?)
		`, groupID, m.FingerprintID, m.IsRecommendedKeep, m.IsMarkedForDeletion); err != nil {
			return 0, fmt.Errorf("insert duplicate_member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit duplicate group: %w", err)
	}
	return groupID, nil
}

// ScanProgress is the single scan_progress row (SUPPLEMENTED FEATURES in
// SPEC_FULL.md). `duplicates scan` does not write or read it.
type ScanProgress struct {
	LastAlbumPath string
	Scanned       int
	Total         int
	UpdatedAt     time.Time
}

func (s *DuplicatesStore) WriteScanProgress(p ScanProgress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = nowUTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO scan_progress (id, last_album_path, scanned, total, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_album_path = excluded.last_album_path, scanned = excluded.scanned,
			total = excluded.total, updated_at = excluded.updated_at
	`, p.LastAlbumPath, p.Scanned, p.Total, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write scan progress: %w", err)
	}
	return nil
}

func (s *DuplicatesStore) ReadScanProgress() (*ScanProgress, error) {
	p := &ScanProgress{}
	err := s.db.QueryRow(`SELECT last_album_path, scanned, total, updated_at FROM scan_progress WHERE id = 1`).
		Scan(&p.LastAlbumPath, &p.Scanned, &p.Total, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan progress: %w", err)
	}
	return p, nil
}
