package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/halvard/crate/internal/album"
)

func TestMetadataStoreUpsertAlbumRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenMetadata(filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatalf("OpenMetadata: %v", err)
	}
	defer s.Close()

	a := &album.Album{
		SourcePath: "/music/incoming/Artist - Album",
		Artist:     "Artist",
		AlbumTitle: "Album",
		Year:       "1998",
		TrackCount: 10,
		TotalBytes: 123456,
		Quality:    album.QualityLossless,
		Confidence: 0.92,
		NewPath:    "/music/library/Artist/1998 - Album",
	}
	if err := s.UpsertAlbumFromRecord(s.DB(), a, StatusOK); err != nil {
		t.Fatalf("UpsertAlbumFromRecord: %v", err)
	}

	row, err := s.GetAlbum(a.SourcePath)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if row == nil {
		t.Fatal("expected row, got nil")
	}
	if row.Artist != "Artist" || row.AlbumTitle != "Album" || row.TrackCount != 10 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Quality != string(album.QualityLossless) {
		t.Fatalf("quality = %q, want %q", row.Quality, album.QualityLossless)
	}

	// Upsert again with a changed field to exercise the ON CONFLICT path.
	a.NeedsReview = true
	a.Confidence = 0.5
	if err := s.UpsertAlbumFromRecord(s.DB(), a, StatusNeedsReview); err != nil {
		t.Fatalf("second UpsertAlbumFromRecord: %v", err)
	}
	row, err = s.GetAlbum(a.SourcePath)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if !row.NeedsReview || row.Status != StatusNeedsReview {
		t.Fatalf("update did not apply: %+v", row)
	}
}

func TestMetadataStoreGetAlbumMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenMetadata(filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatalf("OpenMetadata: %v", err)
	}
	defer s.Close()

	row, err := s.GetAlbum("/nope")
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil row, got %+v", row)
	}
}

func TestMetadataStoreMoveOperationLifecycle(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenMetadata(filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatalf("OpenMetadata: %v", err)
	}
	defer s.Close()

	op := MoveOperation{
		ID:          "move-1",
		Source:      "/incoming/a",
		Destination: "/library/a",
		Status:      MoveStatusPending,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.InsertMoveOperation(s.DB(), op); err != nil {
		t.Fatalf("InsertMoveOperation: %v", err)
	}

	got, err := s.GetMoveOperation("move-1")
	if err != nil {
		t.Fatalf("GetMoveOperation: %v", err)
	}
	if got == nil || got.Status != MoveStatusPending {
		t.Fatalf("unexpected move operation: %+v", got)
	}

	completed := time.Now().UTC()
	if err := s.UpdateMoveOperationStatus(s.DB(), "move-1", MoveStatusCommitted, "", &completed); err != nil {
		t.Fatalf("UpdateMoveOperationStatus: %v", err)
	}

	got, err = s.GetMoveOperation("move-1")
	if err != nil {
		t.Fatalf("GetMoveOperation: %v", err)
	}
	if got.Status != MoveStatusCommitted || got.CompletedAt == nil {
		t.Fatalf("status not updated: %+v", got)
	}

	n, err := s.CountMoveOperationsByStatus(MoveStatusCommitted)
	if err != nil {
		t.Fatalf("CountMoveOperationsByStatus: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}
