package enrich

import (
	"math"
	"strconv"

	"github.com/hbollon/go-edlib"

	"github.com/halvard/crate/internal/normalize"
)

// nameSimilarity implements spec §4.6's name comparator: 1.0 for exact
// normalized equality, 0.7 for substring containment, else 0.0. Jaro-
// Winkler similarity (via go-edlib) upgrades the containment tier to
// catch near-matches plain substring search misses (a trailing "The",
// a transliterated character) while keeping the same three-tier scale.
func nameSimilarity(a, b string) float64 {
	fa, fb := normalize.Fold(a), normalize.Fold(b)
	if fa == fb {
		return 1.0
	}
	if fa == "" || fb == "" {
		return 0.0
	}

	contains := containsSubstring(fa, fb)
	sim, err := edlib.StringsSimilarity(fa, fb, edlib.JaroWinkler)
	if err != nil {
		sim = 0
	}

	if contains || sim >= 0.85 {
		return 0.7
	}
	return 0.0
}

func containsSubstring(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	return len(shorter) > 0 && indexOf(longer, shorter) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// yearSimilarity implements spec §4.6's year comparator: 1.0 exact,
// 0.5 within +/-2 years, else 0.0. An empty query or candidate year
// means "unknown", scoring neither for nor against the match.
func yearSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	ya, erra := strconv.Atoi(a)
	yb, errb := strconv.Atoi(b)
	if erra != nil || errb != nil {
		if a == b {
			return 1.0
		}
		return 0.0
	}
	diff := int(math.Abs(float64(ya - yb)))
	switch {
	case diff == 0:
		return 1.0
	case diff <= 2:
		return 0.5
	default:
		return 0.0
	}
}

// artistWeight, albumWeight, and yearWeight sum to 1.0; artist and album
// carry equal weight since both must match for a release to be right,
// year is a softer tiebreaker (spec §4.6 leaves exact weighting
// unspecified beyond "weighted sum").
const (
	artistWeight = 0.4
	albumWeight  = 0.4
	yearWeight   = 0.2
)

// Score computes a candidate's confidence against q, in [0, 1].
func Score(q Query, c Candidate) float64 {
	return artistWeight*nameSimilarity(q.Artist, c.Artist) +
		albumWeight*nameSimilarity(q.Album, c.Album) +
		yearWeight*yearSimilarity(q.Year, c.Year)
}
