package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/halvard/crate/internal/album"
)

// AlbumRow is the persisted form of album.Album (spec §3 "albums" table).
type AlbumRow struct {
	SourcePath       string
	Artist           string
	AlbumTitle       string
	Year             string
	Label            string
	CatalogNumber    string
	Genre            string
	TrackCount       int
	TotalBytes       int64
	AvgBitrateKbps   float64
	Quality          string
	DiscNumber       int
	IsCompilation    bool
	IsUnderground    bool
	IsRemixHeavy     bool
	NeedsReview      bool
	Confidence       float64
	EnrichmentSource string
	Fingerprint      string
	MetadataHash     string
	OriginalPath     string
	NewPath          string
	ProcessedAt      time.Time
	MoveOperationID  string
	Status           string
}

func fromAlbum(a *album.Album, status string) AlbumRow {
	return AlbumRow{
		SourcePath:       a.SourcePath,
		Artist:           a.Artist,
		AlbumTitle:       a.AlbumTitle,
		Year:             a.Year,
		Label:            a.Label,
		CatalogNumber:    a.CatalogNum,
		Genre:            a.Genre,
		TrackCount:       a.TrackCount,
		TotalBytes:       a.TotalBytes,
		AvgBitrateKbps:   a.AvgBitrateKbps,
		Quality:          string(a.Quality),
		DiscNumber:       a.DiscNumber,
		IsCompilation:    a.IsCompilation,
		IsUnderground:    a.IsUnderground,
		IsRemixHeavy:     a.IsRemixHeavy,
		NeedsReview:      a.NeedsReview,
		Confidence:       a.Confidence,
		EnrichmentSource: string(a.EnrichmentSource),
		Fingerprint:      a.Fingerprint,
		MetadataHash:     a.MetadataHash,
		OriginalPath:     a.SourcePath,
		NewPath:          a.NewPath,
		MoveOperationID:  a.MoveOpID,
		Status:           status,
	}
}

// UpsertAlbum inserts or updates the canonical album record for
// row.SourcePath.
func (s *MetadataStore) UpsertAlbum(ex sqlExecer, row AlbumRow) error {
	now := row.ProcessedAt
	if now.IsZero() {
		now = nowUTC()
	}
	_, err := ex.Exec(`
		INSERT INTO albums (
			source_path, artist, album_title, year, label, catalog_number, genre,
			track_count, total_bytes, avg_bitrate_kbps, quality, disc_number,
			is_compilation, is_underground, is_remix_heavy, needs_review,
			confidence, enrichment_source, fingerprint, metadata_hash,
			original_path, new_path, processed_at, move_operation_id, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			artist = excluded.artist, album_title = excluded.album_title,
			year = excluded.year, label = excluded.label,
			catalog_number = excluded.catalog_number, genre = excluded.genre,
			track_count = excluded.track_count, total_bytes = excluded.total_bytes,
			avg_bitrate_kbps = excluded.avg_bitrate_kbps, quality = excluded.quality,
			disc_number = excluded.disc_number, is_compilation = excluded.is_compilation,
			is_underground = excluded.is_underground, is_remix_heavy = excluded.is_remix_heavy,
			needs_review = excluded.needs_review, confidence = excluded.confidence,
			enrichment_source = excluded.enrichment_source, fingerprint = excluded.fingerprint,
			metadata_hash = excluded.metadata_hash, new_path = excluded.new_path,
			processed_at = excluded.processed_at, move_operation_id = excluded.move_operation_id,
			status = excluded.status
	`,
		row.SourcePath, row.Artist, row.AlbumTitle, row.Year, row.Label, row.CatalogNumber, row.Genre,
		row.TrackCount, row.TotalBytes, row.AvgBitrateKbps, row.Quality, row.DiscNumber,
		row.IsCompilation, row.IsUnderground, row.IsRemixHeavy, row.NeedsReview,
		row.Confidence, row.EnrichmentSource, row.Fingerprint, row.MetadataHash,
		row.OriginalPath, row.NewPath, now, row.MoveOperationID, row.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert album %s: %w", row.SourcePath, err)
	}
	return nil
}

// UpsertAlbumFromRecord is a convenience over UpsertAlbum for callers that
// have an in-memory album.Album rather than a pre-built AlbumRow.
func (s *MetadataStore) UpsertAlbumFromRecord(ex sqlExecer, a *album.Album, status string) error {
	return s.UpsertAlbum(ex, fromAlbum(a, status))
}

// GetAlbum retrieves one album record by source path. Returns nil, nil if
// not found.
func (s *MetadataStore) GetAlbum(sourcePath string) (*AlbumRow, error) {
	row := &AlbumRow{}
	err := s.db.QueryRow(`
		SELECT source_path, artist, album_title, COALESCE(year, ''), COALESCE(label, ''),
		       COALESCE(catalog_number, ''), COALESCE(genre, ''), track_count, total_bytes,
		       COALESCE(avg_bitrate_kbps, 0), quality, COALESCE(disc_number, 0),
		       is_compilation, is_underground, is_remix_heavy, needs_review, confidence,
		       enrichment_source, COALESCE(fingerprint, ''), COALESCE(metadata_hash, ''),
		       original_path, COALESCE(new_path, ''), COALESCE(processed_at, CURRENT_TIMESTAMP),
		       COALESCE(move_operation_id, ''), status
		FROM albums WHERE source_path = ?
	`, sourcePath).Scan(
		&row.SourcePath, &row.Artist, &row.AlbumTitle, &row.Year, &row.Label,
		&row.CatalogNumber, &row.Genre, &row.TrackCount, &row.TotalBytes,
		&row.AvgBitrateKbps, &row.Quality, &row.DiscNumber,
		&row.IsCompilation, &row.IsUnderground, &row.IsRemixHeavy, &row.NeedsReview, &row.Confidence,
		&row.EnrichmentSource, &row.Fingerprint, &row.MetadataHash,
		&row.OriginalPath, &row.NewPath, &row.ProcessedAt,
		&row.MoveOperationID, &row.Status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album %s: %w", sourcePath, err)
	}
	return row, nil
}

// ListAlbums returns every album record, optionally filtered to one
// status (StatusOK, StatusNeedsReview, ...), ordered by new_path so
// callers building a tree view see destination siblings together. An
// empty status lists every album regardless of status.
func (s *MetadataStore) ListAlbums(status string) ([]AlbumRow, error) {
	query := `
		SELECT source_path, artist, album_title, COALESCE(year, ''), COALESCE(label, ''),
		       COALESCE(catalog_number, ''), COALESCE(genre, ''), track_count, total_bytes,
		       COALESCE(avg_bitrate_kbps, 0), quality, COALESCE(disc_number, 0),
		       is_compilation, is_underground, is_remix_heavy, needs_review, confidence,
		       enrichment_source, COALESCE(fingerprint, ''), COALESCE(metadata_hash, ''),
		       original_path, COALESCE(new_path, ''), COALESCE(processed_at, CURRENT_TIMESTAMP),
		       COALESCE(move_operation_id, ''), status
		FROM albums`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY new_path`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	var out []AlbumRow
	for rows.Next() {
		var row AlbumRow
		if err := rows.Scan(
			&row.SourcePath, &row.Artist, &row.AlbumTitle, &row.Year, &row.Label,
			&row.CatalogNumber, &row.Genre, &row.TrackCount, &row.TotalBytes,
			&row.AvgBitrateKbps, &row.Quality, &row.DiscNumber,
			&row.IsCompilation, &row.IsUnderground, &row.IsRemixHeavy, &row.NeedsReview, &row.Confidence,
			&row.EnrichmentSource, &row.Fingerprint, &row.MetadataHash,
			&row.OriginalPath, &row.NewPath, &row.ProcessedAt,
			&row.MoveOperationID, &row.Status,
		); err != nil {
			return nil, fmt.Errorf("scan album row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountAlbumsByArtist supports the hybrid organization mode's
// label-vs-artist release comparison (spec §4.4), counting committed
// albums attributed to artist regardless of quality bucket.
func (s *MetadataStore) CountAlbumsByArtist(artist string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM albums WHERE artist = ? AND status = ?`, artist, StatusOK).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count albums by artist %s: %w", artist, err)
	}
	return n, nil
}

// CountAlbumsByLabel mirrors CountAlbumsByArtist for the label side of
// the same comparison.
func (s *MetadataStore) CountAlbumsByLabel(label string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM albums WHERE label = ? AND status = ?`, label, StatusOK).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count albums by label %s: %w", label, err)
	}
	return n, nil
}

// MoveOperation is the persisted form of a single atomic move (spec §3).
type MoveOperation struct {
	ID          string
	Source      string
	Destination string
	Status      string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

const (
	MoveStatusPending    = "pending"
	MoveStatusInProgress = "in_progress"
	MoveStatusCommitted  = "committed"
	MoveStatusFailed     = "failed"
	MoveStatusRolledBack = "rolled_back"
)

// InsertMoveOperation records a new move_operations row (step 1 of the
// move executor's contract, spec §4.5).
func (s *MetadataStore) InsertMoveOperation(ex sqlExecer, op MoveOperation) error {
	_, err := ex.Exec(`
		INSERT INTO move_operations (id, source, destination, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Source, op.Destination, op.Status, op.Error, op.StartedAt, op.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert move_operation %s: %w", op.ID, err)
	}
	return nil
}

// UpdateMoveOperationStatus transitions a move_operations row's status,
// optionally recording an error and completion time.
func (s *MetadataStore) UpdateMoveOperationStatus(ex sqlExecer, id, status, errMsg string, completedAt *time.Time) error {
	_, err := ex.Exec(`
		UPDATE move_operations SET status = ?, error = ?, completed_at = ? WHERE id = ?
	`, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("update move_operation %s: %w", id, err)
	}
	return nil
}

// GetMoveOperation retrieves a move_operations row by id.
func (s *MetadataStore) GetMoveOperation(id string) (*MoveOperation, error) {
	op := &MoveOperation{ID: id}
	var completedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT source, destination, status, COALESCE(error, ''), started_at, completed_at
		FROM move_operations WHERE id = ?
	`, id).Scan(&op.Source, &op.Destination, &op.Status, &op.Error, &op.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get move_operation %s: %w", id, err)
	}
	if completedAt.Valid {
		op.CompletedAt = &completedAt.Time
	}
	return op, nil
}

// CountMoveOperationsByStatus supports the testable property "the number
// of move_operations rows with status=committed equals the number of
// unique destinations created" (spec §8).
func (s *MetadataStore) CountMoveOperationsByStatus(status string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM move_operations WHERE status = ?`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count move_operations: %w", err)
	}
	return n, nil
}

// sqlExecer is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run standalone or as part of a larger Transaction.
type sqlExecer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}
