// Package dup implements the duplicate engine (spec §4.7): per-album
// fingerprinting and quality scoring, pairwise similarity, grouping with
// keeper election, and quarantine-bucket resolution with a sidecar
// explanation file.
package dup

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/normalize"
)

// Fingerprint computes the content fingerprint spec §4.7 defines:
// H(normalize(artist) | normalize(album) | track_count | file_count |
// total_duration_ms). This is the single fingerprint function used
// throughout the engine — nothing else hashes album identity.
func Fingerprint(a *album.Album) string {
	return hashJoin(
		normalize.Fold(a.Artist),
		normalize.Fold(a.AlbumTitle),
		strconv.Itoa(a.TrackCount),
		strconv.Itoa(len(a.Tracks)),
		strconv.FormatInt(totalDurationMs(a), 10),
	)
}

// MetadataHash computes H(normalize(artist) | normalize(album) | year |
// track_count), the weaker identity hash spec §4.7 uses as the pairwise
// score's secondary signal when fingerprints don't match exactly.
func MetadataHash(a *album.Album) string {
	return hashJoin(
		normalize.Fold(a.Artist),
		normalize.Fold(a.AlbumTitle),
		a.Year,
		strconv.Itoa(a.TrackCount),
	)
}

func hashJoin(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func totalDurationMs(a *album.Album) int64 {
	var total int64
	for _, t := range a.Tracks {
		total += t.DurationMs
	}
	return total
}

// formatScores and bitrate tiers implement spec §4.7's quality-score
// table exactly.
var formatScores = map[string]float64{
	"flac": 100, "wav": 95, "aiff": 95, "alac": 90,
	"mp3": 60, "aac": 55, "m4a": 55, "ogg": 50, "wma": 30,
}

var bitrateTiers = []struct {
	rate  int
	score float64
}{
	{320, 100}, {256, 85}, {192, 70}, {128, 50}, {96, 30},
}

// QualityScore computes the per-album quality score: the mean over
// audio files of (format_score*0.7 + bitrate_score*0.3).
func QualityScore(a *album.Album) float64 {
	if len(a.Tracks) == 0 {
		return 0
	}
	var total float64
	for _, t := range a.Tracks {
		total += formatScore(t.Format)*0.7 + bitrateScore(t.BitrateKbps)*0.3
	}
	return total / float64(len(a.Tracks))
}

func formatScore(format string) float64 {
	if s, ok := formatScores[strings.ToLower(format)]; ok {
		return s
	}
	return 0
}

// bitrateScore returns the score of the largest supported tier <= rate.
func bitrateScore(rate int) float64 {
	var best float64
	for _, tier := range bitrateTiers {
		if rate >= tier.rate {
			return tier.score
		}
		best = 0
	}
	return best
}
