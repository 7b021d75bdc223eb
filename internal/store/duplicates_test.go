package store

import (
	"path/filepath"
	"testing"
)

func TestDuplicatesStoreFingerprintUpsertAndList(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenDuplicates(filepath.Join(dir, "duplicates.db"))
	if err != nil {
		t.Fatalf("OpenDuplicates: %v", err)
	}
	defer s.Close()

	id1, err := s.UpsertFingerprint(FingerprintRow{
		AlbumPath: "/library/a", Fingerprint: "fp-a", MetadataHash: "mh-a",
		DurationMs: 1000, FileCount: 10, TotalSize: 5000, QualityScore: 0.9, Format: "flac",
	})
	if err != nil {
		t.Fatalf("UpsertFingerprint: %v", err)
	}
	if id1 == 0 {
		t.Fatal("expected nonzero id")
	}

	id2, err := s.UpsertFingerprint(FingerprintRow{
		AlbumPath: "/library/b", Fingerprint: "fp-b", MetadataHash: "mh-b",
		DurationMs: 1000, FileCount: 10, TotalSize: 2000, QualityScore: 0.5, Format: "mp3",
	})
	if err != nil {
		t.Fatalf("UpsertFingerprint: %v", err)
	}

	// Re-upserting the same album_path must update, not duplicate.
	idAgain, err := s.UpsertFingerprint(FingerprintRow{
		AlbumPath: "/library/a", Fingerprint: "fp-a-v2", MetadataHash: "mh-a",
		DurationMs: 1000, FileCount: 10, TotalSize: 5000, QualityScore: 0.95, Format: "flac",
	})
	if err != nil {
		t.Fatalf("second UpsertFingerprint: %v", err)
	}
	if idAgain != id1 {
		t.Fatalf("expected same id %d on conflict update, got %d", id1, idAgain)
	}

	all, err := s.AllFingerprints()
	if err != nil {
		t.Fatalf("AllFingerprints: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(all))
	}
	// Ordered by quality_score descending: the updated 0.95 row comes first.
	if all[0].ID != id1 || all[0].Fingerprint != "fp-a-v2" {
		t.Fatalf("unexpected order: %+v", all)
	}
	_ = id2
}

func TestDuplicatesStoreInsertGroup(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenDuplicates(filepath.Join(dir, "duplicates.db"))
	if err != nil {
		t.Fatalf("OpenDuplicates: %v", err)
	}
	defer s.Close()

	keepID, err := s.UpsertFingerprint(FingerprintRow{AlbumPath: "/a", Fingerprint: "fp", MetadataHash: "mh", QualityScore: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	dupID, err := s.UpsertFingerprint(FingerprintRow{AlbumPath: "/b", Fingerprint: "fp", MetadataHash: "mh", QualityScore: 0.4})
	if err != nil {
		t.Fatal(err)
	}

	groupID, err := s.InsertGroup(
		GroupRow{GroupHash: "grp-1", AlbumCount: 2, TotalSize: 100, BestQualityID: keepID, DuplicateScore: 0.95},
		[]MemberRow{
			{FingerprintID: keepID, IsRecommendedKeep: true},
			{FingerprintID: dupID, IsMarkedForDeletion: true},
		},
	)
	if err != nil {
		t.Fatalf("InsertGroup: %v", err)
	}
	if groupID == 0 {
		t.Fatal("expected nonzero group id")
	}
}

func TestDuplicatesStoreScanProgressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenDuplicates(filepath.Join(dir, "duplicates.db"))
	if err != nil {
		t.Fatalf("OpenDuplicates: %v", err)
	}
	defer s.Close()

	if p, err := s.ReadScanProgress(); err != nil || p != nil {
		t.Fatalf("expected no progress initially, got %+v err=%v", p, err)
	}

	want := ScanProgress{LastAlbumPath: "/library/z", Scanned: 5, Total: 20}
	if err := s.WriteScanProgress(want); err != nil {
		t.Fatalf("WriteScanProgress: %v", err)
	}

	got, err := s.ReadScanProgress()
	if err != nil {
		t.Fatalf("ReadScanProgress: %v", err)
	}
	if got == nil || got.LastAlbumPath != want.LastAlbumPath || got.Scanned != want.Scanned {
		t.Fatalf("progress mismatch: got %+v want %+v", got, want)
	}

	want.Scanned = 10
	if err := s.WriteScanProgress(want); err != nil {
		t.Fatalf("second WriteScanProgress: %v", err)
	}
	got, err = s.ReadScanProgress()
	if err != nil {
		t.Fatalf("ReadScanProgress: %v", err)
	}
	if got.Scanned != 10 {
		t.Fatalf("scanned not updated: %+v", got)
	}
}
