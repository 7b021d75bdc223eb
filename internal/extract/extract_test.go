package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/halvard/crate/internal/xerr"
)

func TestDirectoryNoAudio(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Directory(context.Background(), nil, dir)
	if !errors.Is(err, xerr.NoAudio) {
		t.Fatalf("expected xerr.NoAudio, got %v", err)
	}
}

func TestAggregateArtistAlbumArtistUnanimous(t *testing.T) {
	tags := []trackTags{
		{albumArtist: "Band X", artist: "Band X"},
		{albumArtist: "Band X", artist: "Guest"},
	}
	if got := aggregateArtist(tags); got != "Band X" {
		t.Errorf("aggregateArtist = %q, want Band X", got)
	}
}

func TestAggregateArtistFallsBackToArtist(t *testing.T) {
	tags := []trackTags{
		{artist: "Band Y"},
		{artist: "Band Y"},
	}
	if got := aggregateArtist(tags); got != "Band Y" {
		t.Errorf("aggregateArtist = %q, want Band Y", got)
	}
}

func TestAggregateArtistCompilationSentinel(t *testing.T) {
	tags := []trackTags{
		{artist: "Artist A"},
		{artist: "Artist B"},
		{artist: "Artist C"},
	}
	if got := aggregateArtist(tags); got != CompilationSentinel {
		t.Errorf("aggregateArtist = %q, want %q", got, CompilationSentinel)
	}
}

func TestMostFrequentTieBrokenByFirstOccurrence(t *testing.T) {
	values := []string{"B", "A", "B", "A"}
	if got := mostFrequent(values); got != "B" {
		t.Errorf("mostFrequent = %q, want B (first occurring of the tied max)", got)
	}
}

func TestEarliestYear(t *testing.T) {
	tags := []trackTags{{year: "2005"}, {year: "1998"}, {year: "2010"}}
	if got := earliestYear(tags); got != "1998" {
		t.Errorf("earliestYear = %q, want 1998", got)
	}
}

func TestParseSidecarXML(t *testing.T) {
	content := `<release><title>My Album</title><artist>My Artist</artist><year>2001</year></release>`
	s := parseSidecar(content)
	if s == nil {
		t.Fatal("expected parsed sidecar")
	}
	if s.Title != "My Album" || s.Artist != "My Artist" || s.Year != "2001" {
		t.Errorf("unexpected sidecar: %+v", s)
	}
}

func TestParseSidecarEmptyReturnsNil(t *testing.T) {
	if s := parseSidecar("not xml at all"); s != nil {
		t.Errorf("expected nil for unparseable content, got %+v", s)
	}
}

func TestReadSidecarMissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	s, err := ReadSidecar(dir)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil sidecar, got %+v", s)
	}
}
