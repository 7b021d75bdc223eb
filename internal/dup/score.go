package dup

import (
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/halvard/crate/internal/normalize"
	"github.com/halvard/crate/internal/store"
)

// pathArtistAlbumRe extracts "Artist - Album" from a generated album
// directory name, tolerating a trailing " (year)", "[label]" or
// "(Disc N)" suffix the organize engine appends.
var pathArtistAlbumRe = regexp.MustCompile(`^(.+?) - (.+?)(?: \(\d{4}\))?(?: \[.+?\])?(?: \(Disc \d+\))?$`)

// pathArtistAlbum derives an (artist, album) guess from a fingerprint
// row's stored album_path, used as the pairwise score's fallback when
// content fingerprints and metadata hashes both disagree.
func pathArtistAlbum(albumPath string) (artist, album string) {
	base := albumPath
	if i := strings.LastIndexAny(albumPath, "/\\"); i >= 0 {
		base = albumPath[i+1:]
	}
	m := pathArtistAlbumRe.FindStringSubmatch(base)
	if m == nil {
		return base, ""
	}
	return m[1], m[2]
}

func substringSimilarity(a, b string) float64 {
	a, b = normalize.Fold(a), normalize.Fold(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return 1.0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return sim
}

// PairwiseScore implements spec §4.7's weighted-sum duplicate score
// between two fingerprint rows.
func PairwiseScore(a, b store.FingerprintRow, durationToleranceSeconds int) float64 {
	var score float64

	if a.Fingerprint != "" && a.Fingerprint == b.Fingerprint {
		score += 0.40
	}

	if a.MetadataHash != "" && a.MetadataHash == b.MetadataHash {
		score += 0.25
	} else {
		aArtist, aAlbum := pathArtistAlbum(a.AlbumPath)
		bArtist, bAlbum := pathArtistAlbum(b.AlbumPath)
		avg := (substringSimilarity(aArtist, bArtist) + substringSimilarity(aAlbum, bAlbum)) / 2
		score += avg * 0.25
	}

	toleranceMs := int64(durationToleranceSeconds) * 1000
	if toleranceMs <= 0 {
		toleranceMs = 2000
	}
	deltaMs := a.DurationMs - b.DurationMs
	if deltaMs < 0 {
		deltaMs = -deltaMs
	}
	switch {
	case deltaMs <= toleranceMs:
		score += 0.15
	case deltaMs <= toleranceMs*5:
		score += 0.15 * (1 - float64(deltaMs)/float64(toleranceMs*5))
	}

	switch {
	case a.FileCount == b.FileCount:
		score += 0.10
	case a.FileCount > 0 && b.FileCount > 0:
		lo, hi := a.FileCount, b.FileCount
		if lo > hi {
			lo, hi = hi, lo
		}
		score += 0.10 * float64(lo) / float64(hi)
	}

	qualityDelta := a.QualityScore - b.QualityScore
	if qualityDelta < 0 {
		qualityDelta = -qualityDelta
	}
	if qualityDelta <= 10 {
		score += 0.10
	}

	return score
}

// Group is one resolved duplicate group: the elected keeper plus every
// other member, all ordered by quality descending (the same order
// AllFingerprints returns).
type Group struct {
	Members []store.FingerprintRow
	Keeper  store.FingerprintRow
	Scores  map[int64]float64 // fingerprint ID -> pairwise score against the seed/keeper
}

// GroupFingerprints implements spec §4.7's grouping pass: rows must
// already be ordered by quality score descending, total size
// descending, created_at ascending (AllFingerprints's contract) since
// that ordering doubles as the keeper tie-break.
func GroupFingerprints(rows []store.FingerprintRow, threshold float64, durationToleranceSeconds int) []Group {
	grouped := make([]bool, len(rows))
	var groups []Group

	for i := range rows {
		if grouped[i] {
			continue
		}
		seed := rows[i]
		group := Group{Members: []store.FingerprintRow{seed}, Keeper: seed, Scores: map[int64]float64{seed.ID: 1.0}}
		grouped[i] = true

		for j := i + 1; j < len(rows); j++ {
			if grouped[j] {
				continue
			}
			s := PairwiseScore(seed, rows[j], durationToleranceSeconds)
			if s >= threshold {
				group.Members = append(group.Members, rows[j])
				group.Scores[rows[j].ID] = s
				grouped[j] = true
			}
		}

		if len(group.Members) > 1 {
			groups = append(groups, group)
		}
	}

	return groups
}
