package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/halvard/crate/internal/store"
)

func openTestMetadataStore(t *testing.T) *store.MetadataStore {
	t.Helper()
	meta, err := store.OpenMetadata(filepath.Join(t.TempDir(), "metadata.db"))
	if err != nil {
		t.Fatalf("OpenMetadata: %v", err)
	}
	t.Cleanup(func() { meta.Close() })
	return meta
}

func TestReleaseCounterSeedsFromPriorRuns(t *testing.T) {
	meta := openTestMetadataStore(t)
	row := store.AlbumRow{
		SourcePath: "/music/a", Artist: "Aphex Twin", AlbumTitle: "Selected Ambient Works",
		TrackCount: 1, TotalBytes: 100, Quality: "lossless", OriginalPath: "/music/a",
		Status: store.StatusOK,
	}
	if err := meta.UpsertAlbum(meta.DB(), row); err != nil {
		t.Fatalf("UpsertAlbum: %v", err)
	}

	counter := newReleaseCounter(meta)
	if n := counter.ArtistReleases("Aphex Twin"); n != 1 {
		t.Errorf("ArtistReleases = %d, want 1", n)
	}
}

func TestReleaseCounterTalliesCommitsWithinRun(t *testing.T) {
	meta := openTestMetadataStore(t)
	counter := newReleaseCounter(meta)

	if n := counter.ArtistReleases("Boards of Canada"); n != 0 {
		t.Fatalf("expected 0 before any commit, got %d", n)
	}

	counter.record("Boards of Canada", "Warp")
	counter.record("Boards of Canada", "Warp")

	if n := counter.ArtistReleases("Boards of Canada"); n != 2 {
		t.Errorf("ArtistReleases after 2 records = %d, want 2", n)
	}
	if n := counter.LabelReleases("Warp"); n != 2 {
		t.Errorf("LabelReleases after 2 records = %d, want 2", n)
	}
}

func TestReleaseCounterFoldsCaseAndWhitespace(t *testing.T) {
	meta := openTestMetadataStore(t)
	counter := newReleaseCounter(meta)

	counter.record("Aphex Twin", "")
	if n := counter.ArtistReleases("APHEX TWIN"); n != 1 {
		t.Errorf("ArtistReleases case-folded = %d, want 1", n)
	}
}

func TestReleaseCounterIgnoresEmptyLabel(t *testing.T) {
	meta := openTestMetadataStore(t)
	counter := newReleaseCounter(meta)

	counter.record("Solo Artist", "")
	if n := counter.LabelReleases(""); n != 0 {
		t.Errorf("LabelReleases(\"\") = %d, want 0", n)
	}
}
