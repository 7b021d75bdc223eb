package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/store"
	"github.com/halvard/crate/internal/xerr"
)

func TestClassifyErrNilIsOK(t *testing.T) {
	if got := classifyErr(nil); got != store.StatusOK {
		t.Errorf("classifyErr(nil) = %q, want %q", got, store.StatusOK)
	}
}

func TestClassifyErrNoAudioIsSkipped(t *testing.T) {
	err := fmt.Errorf("%s: %w", "/music/x", xerr.NoAudio)
	if got := classifyErr(err); got != store.StatusSkipped {
		t.Errorf("classifyErr(NoAudio) = %q, want %q", got, store.StatusSkipped)
	}
}

func TestClassifyErrArtistInvalidIsNeedsReview(t *testing.T) {
	err := fmt.Errorf("%s: %w", "/music/x", xerr.ArtistInvalid)
	if got := classifyErr(err); got != store.StatusNeedsReview {
		t.Errorf("classifyErr(ArtistInvalid) = %q, want %q", got, store.StatusNeedsReview)
	}
}

func TestClassifyErrOtherIsFailed(t *testing.T) {
	err := errors.New("disk full")
	if got := classifyErr(err); got != store.StatusFailed {
		t.Errorf("classifyErr(other) = %q, want %q", got, store.StatusFailed)
	}
}

func TestTotalDurationMsSumsTracks(t *testing.T) {
	a := &album.Album{Tracks: []album.Track{{DurationMs: 1000}, {DurationMs: 2500}}}
	if got := totalDurationMs(a); got != 3500 {
		t.Errorf("totalDurationMs = %d, want 3500", got)
	}
}

func TestDominantFormatPicksMostCommon(t *testing.T) {
	a := &album.Album{Tracks: []album.Track{
		{Format: "flac"}, {Format: "flac"}, {Format: "mp3"},
	}}
	if got := dominantFormat(a); got != "flac" {
		t.Errorf("dominantFormat = %q, want flac", got)
	}
}

func TestDominantFormatEmptyTracks(t *testing.T) {
	a := &album.Album{}
	if got := dominantFormat(a); got != "" {
		t.Errorf("dominantFormat = %q, want empty", got)
	}
}

func TestCleanupEmptySourcesRemovesEmptyDirs(t *testing.T) {
	root := t.TempDir()
	emptyLeaf := filepath.Join(root, "Artist", "EmptyAlbum")
	if err := os.MkdirAll(emptyLeaf, 0o755); err != nil {
		t.Fatal(err)
	}

	d := &Driver{}
	d.cleanupEmptySources(root)

	if _, err := os.Stat(emptyLeaf); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed", emptyLeaf)
	}
	if _, err := os.Stat(filepath.Join(root, "Artist")); !os.IsNotExist(err) {
		t.Error("expected now-empty parent 'Artist' to be removed too")
	}
}

func TestCleanupEmptySourcesLeavesNonEmptyDirs(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Artist", "Album")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leftover.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := &Driver{}
	d.cleanupEmptySources(root)

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected %s to survive cleanup, got %v", dir, err)
	}
}
