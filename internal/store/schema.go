package store

// StateSchemaV1 is the state store's schema (spec §3): processed_directories
// records the incremental-scan decision per album directory;
// processed_files is the optional per-file tracking table.
var StateSchemaV1 = []string{`
CREATE TABLE IF NOT EXISTS processed_directories (
  path TEXT PRIMARY KEY,
  last_mtime INTEGER,
  content_hash TEXT NOT NULL,
  processed_at DATETIME NOT NULL,
  status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_directories_status ON processed_directories(status);

CREATE TABLE IF NOT EXISTS processed_files (
  path TEXT PRIMARY KEY,
  directory_path TEXT NOT NULL REFERENCES processed_directories(path) ON DELETE CASCADE,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  content_key TEXT
);

CREATE INDEX IF NOT EXISTS idx_processed_files_directory ON processed_files(directory_path);

CREATE TABLE IF NOT EXISTS checkpoint (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  position INTEGER NOT NULL,
  processed INTEGER NOT NULL,
  total INTEGER NOT NULL,
  updated_at DATETIME NOT NULL
);
`}

// MetadataSchemaV1 is the metadata store's schema (spec §3): albums holds
// the canonical record plus move bookkeeping; move_operations tracks the
// lifecycle of each atomic directory move.
var MetadataSchemaV1 = []string{`
CREATE TABLE IF NOT EXISTS albums (
  source_path TEXT PRIMARY KEY,
  artist TEXT NOT NULL,
  album_title TEXT NOT NULL,
  year TEXT,
  label TEXT,
  catalog_number TEXT,
  genre TEXT,
  track_count INTEGER NOT NULL,
  total_bytes INTEGER NOT NULL,
  avg_bitrate_kbps REAL,
  quality TEXT NOT NULL,
  disc_number INTEGER,
  is_compilation INTEGER NOT NULL DEFAULT 0,
  is_underground INTEGER NOT NULL DEFAULT 0,
  is_remix_heavy INTEGER NOT NULL DEFAULT 0,
  needs_review INTEGER NOT NULL DEFAULT 0,
  confidence REAL NOT NULL DEFAULT 0,
  enrichment_source TEXT NOT NULL DEFAULT 'none',
  fingerprint TEXT,
  metadata_hash TEXT,
  original_path TEXT NOT NULL,
  new_path TEXT,
  processed_at DATETIME,
  move_operation_id TEXT,
  status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist);
CREATE INDEX IF NOT EXISTS idx_albums_status ON albums(status);
CREATE INDEX IF NOT EXISTS idx_albums_fingerprint ON albums(fingerprint);

CREATE TABLE IF NOT EXISTS move_operations (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  destination TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT,
  started_at DATETIME NOT NULL,
  completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_move_operations_status ON move_operations(status);
`}

// DuplicatesSchemaV1 is the duplicates store's schema (spec §3):
// audio_fingerprints one row per album, duplicate_groups one row per
// elected group, duplicate_members the group/fingerprint relation.
var DuplicatesSchemaV1 = []string{`
CREATE TABLE IF NOT EXISTS audio_fingerprints (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  album_path TEXT NOT NULL UNIQUE,
  fingerprint TEXT NOT NULL,
  metadata_hash TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  file_count INTEGER NOT NULL,
  total_size INTEGER NOT NULL,
  quality_score REAL NOT NULL,
  format TEXT,
  avg_bitrate REAL,
  created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audio_fingerprints_fingerprint ON audio_fingerprints(fingerprint);

CREATE TABLE IF NOT EXISTS duplicate_groups (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  group_hash TEXT NOT NULL UNIQUE,
  album_count INTEGER NOT NULL,
  total_size INTEGER NOT NULL,
  best_quality_id INTEGER NOT NULL REFERENCES audio_fingerprints(id),
  duplicate_score REAL NOT NULL,
  created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_members (
  group_id INTEGER NOT NULL REFERENCES duplicate_groups(id) ON DELETE CASCADE,
  fingerprint_id INTEGER NOT NULL REFERENCES audio_fingerprints(id) ON DELETE CASCADE,
  is_recommended_keep INTEGER NOT NULL DEFAULT 0,
  is_marked_for_deletion INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (group_id, fingerprint_id)
);

CREATE TABLE IF NOT EXISTS scan_progress (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  last_album_path TEXT NOT NULL,
  scanned INTEGER NOT NULL,
  total INTEGER NOT NULL,
  updated_at DATETIME NOT NULL
);
`}
