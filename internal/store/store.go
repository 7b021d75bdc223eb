package store

import (
	"database/sql"
)

// SQLiteVersion reports the embedded SQLite engine version, used by the
// `doctor` command.
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		return ""
	}
	return version
}

// StateStore wraps the processed_directories/processed_files/checkpoint
// database.
type StateStore struct{ db *sql.DB }

// OpenState opens (creating if necessary) the state store at path.
func OpenState(path string) (*StateStore, error) {
	db, err := openDB(path, StateSchemaV1)
	if err != nil {
		return nil, err
	}
	return &StateStore{db: db}, nil
}

func (s *StateStore) DB() *sql.DB       { return s.db }
func (s *StateStore) Close() error      { return s.db.Close() }
func (s *StateStore) CheckIntegrity() error { return CheckIntegrity(s.db) }

// MetadataStore wraps the albums/move_operations database.
type MetadataStore struct{ db *sql.DB }

// OpenMetadata opens (creating if necessary) the metadata store at path.
func OpenMetadata(path string) (*MetadataStore, error) {
	db, err := openDB(path, MetadataSchemaV1)
	if err != nil {
		return nil, err
	}
	return &MetadataStore{db: db}, nil
}

func (s *MetadataStore) DB() *sql.DB       { return s.db }
func (s *MetadataStore) Close() error      { return s.db.Close() }
func (s *MetadataStore) CheckIntegrity() error { return CheckIntegrity(s.db) }

// DuplicatesStore wraps the audio_fingerprints/duplicate_groups/
// duplicate_members/scan_progress database.
type DuplicatesStore struct{ db *sql.DB }

// OpenDuplicates opens (creating if necessary) the duplicates store at path.
func OpenDuplicates(path string) (*DuplicatesStore, error) {
	db, err := openDB(path, DuplicatesSchemaV1)
	if err != nil {
		return nil, err
	}
	return &DuplicatesStore{db: db}, nil
}

func (s *DuplicatesStore) DB() *sql.DB       { return s.db }
func (s *DuplicatesStore) Close() error      { return s.db.Close() }
func (s *DuplicatesStore) CheckIntegrity() error { return CheckIntegrity(s.db) }
