package dup

import (
	"testing"

	"github.com/halvard/crate/internal/album"
)

func sampleAlbum() *album.Album {
	return &album.Album{
		Artist:     "Atom Heart",
		AlbumTitle: "Pure Funktion",
		Year:       "1994",
		TrackCount: 2,
		Tracks: []album.Track{
			{Format: "flac", BitrateKbps: 1000, DurationMs: 180000},
			{Format: "flac", BitrateKbps: 1000, DurationMs: 200000},
		},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a, b := sampleAlbum(), sampleAlbum()
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("Fingerprint should be deterministic for identical albums")
	}
}

func TestFingerprintDiffersOnDuration(t *testing.T) {
	a, b := sampleAlbum(), sampleAlbum()
	b.Tracks[1].DurationMs = 999999
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("Fingerprint should differ when total duration differs")
	}
}

func TestMetadataHashIgnoresDuration(t *testing.T) {
	a, b := sampleAlbum(), sampleAlbum()
	b.Tracks[1].DurationMs = 999999
	if MetadataHash(a) != MetadataHash(b) {
		t.Error("MetadataHash should be insensitive to duration, only artist/album/year/track_count")
	}
}

func TestQualityScoreFlacIsHigherThanMp3(t *testing.T) {
	flac := sampleAlbum()
	mp3 := sampleAlbum()
	for i := range mp3.Tracks {
		mp3.Tracks[i].Format = "mp3"
		mp3.Tracks[i].BitrateKbps = 320
	}
	if QualityScore(mp3) >= QualityScore(flac) {
		t.Errorf("expected FLAC quality score (%v) to exceed MP3 320 (%v)", QualityScore(flac), QualityScore(mp3))
	}
}

func TestQualityScoreBitrateTiers(t *testing.T) {
	a := &album.Album{Tracks: []album.Track{{Format: "mp3", BitrateKbps: 192}}}
	b := &album.Album{Tracks: []album.Track{{Format: "mp3", BitrateKbps: 128}}}
	if QualityScore(a) <= QualityScore(b) {
		t.Error("192kbps should score higher than 128kbps")
	}
}

func TestQualityScoreUnrecognizedFormatScoresZeroContribution(t *testing.T) {
	a := &album.Album{Tracks: []album.Track{{Format: "xyz", BitrateKbps: 320}}}
	if got := QualityScore(a); got != 0.3*100 {
		t.Errorf("unrecognized format should contribute 0 format score, got %v", got)
	}
}

func TestBitrateScoreBelowLowestTier(t *testing.T) {
	if got := bitrateScore(64); got != 0 {
		t.Errorf("bitrateScore(64) = %v, want 0", got)
	}
}
