// Package normalize implements the pure, deterministic artist-name
// cleaning pipeline and the comparison/fingerprint folding function used
// throughout extraction, organization, and duplicate detection.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// defaultAliasCanon is the built-in portion of the canonical-alias table
// (step 8 of the artist normalizer). Operators extend this via
// config.ArtistAliasGroups; this map covers the always-on sentinels the
// organization engine itself depends on (Various/Unknown Artist).
var defaultAliasCanon = map[string]string{
	"various":        "Various Artists",
	"va":              "Various Artists",
	"v.a.":            "Various Artists",
	"v/a":             "Various Artists",
	"unknown":         "Unknown Artist",
	"unknown artist":  "Unknown Artist",
	"no artist":       "Unknown Artist",
	"atomtm":          "Atom™",
	"atom™":          "Atom™",
	"atom tm":         "Atom™",
	"atom(tm)":        "Atom™",
}

var (
	trackPrefixRe  = regexp.MustCompile(`^\d{1,2}[).-]\s*`)
	trackPrefixRe2 = regexp.MustCompile(`^\d{1,2}\.\s*`)
	akaRe          = regexp.MustCompile(`(?i)\s+(?:aka|a\.k\.a\.|also known as)\s+.*$`)
	catalogPrefixRe = regexp.MustCompile(`^\[[A-Za-z0-9]{2,10}\]\s*`)
	controlCharRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	nullTokenRe    = regexp.MustCompile(`0?null\d+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	bareYearRe     = regexp.MustCompile(`^\d{4}$`)
	digitsOnlyRe   = regexp.MustCompile(`^\d+$`)
	trackTitleRe   = regexp.MustCompile(`^\d{1,2}\.\s+\S`)
	nnnBassRe      = regexp.MustCompile(`(?i)^\d+\s+bass mechanics$`)
)

var sceneTails = []string{
	" - By ", "-Dew-", "-Sweet", " Musicdonkey Org", "[256K]", "[mp3]", "[flac]",
	"256Kbs", "192Cbr", "Lofi-192", "(Fullalbum Cover Tags)", "-13Tracks-",
	"Full Album", "vinyl-N",
}

// CleanArtistName applies the spec's nine-step artist normalizer to a raw
// tag value, returning the canonical display name and whether it is
// valid. aliasCanon is the configured artist_alias_groups table as a
// lowercase-name -> primary map; it is consulted after the built-in
// canonical aliases.
func CleanArtistName(raw string, aliasCanon map[string]string) (string, bool) {
	s := raw

	// 1. control chars and null<digits>/0null<digits> tokens.
	s = controlCharRe.ReplaceAllString(s, "")
	s = nullTokenRe.ReplaceAllString(s, "")

	// 2. leading track-number prefixes.
	s = trackPrefixRe.ReplaceAllString(s, "")
	s = trackPrefixRe2.ReplaceAllString(s, "")

	// 3. alias trailers.
	s = akaRe.ReplaceAllString(s, "")

	// 4. catalog bracket prefix, keep segment before next hyphen.
	if catalogPrefixRe.MatchString(s) {
		s = catalogPrefixRe.ReplaceAllString(s, "")
		if idx := strings.Index(s, "-"); idx >= 0 {
			s = s[:idx]
		}
	}

	// 5. scene/uploader tails.
	for _, tail := range sceneTails {
		s = strings.ReplaceAll(s, tail, " ")
	}

	// 6. collapse whitespace, strip leading/trailing punctuation.
	s = norm.NFC.String(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " \t.,;:!?-_")
	s = strings.TrimSpace(s)

	if s == "" {
		return "", false
	}

	// 7. title-case unless already a short all-caps acronym.
	s = titleCaseUnlessAcronym(s)

	// 8. canonical alias mapping.
	key := strings.ToLower(s)
	if canon, ok := defaultAliasCanon[key]; ok {
		s = canon
	} else if aliasCanon != nil {
		if canon, ok := aliasCanon[key]; ok {
			s = canon
		}
	}

	// 9. rejection rules.
	if !isValidArtist(s) {
		return s, false
	}

	return s, true
}

func titleCaseUnlessAcronym(s string) string {
	if isAcronym(s) {
		return s
	}
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		r[0] = unicode.ToUpper(r[0])
		for j := 1; j < len(r); j++ {
			r[j] = unicode.ToLower(r[j])
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// isAcronym reports whether s is 2-5 all-caps letters, kept verbatim by
// step 7 rather than title-cased.
func isAcronym(s string) bool {
	if len(s) < 2 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isValidArtist(s string) bool {
	lower := strings.ToLower(s)
	switch lower {
	case "null", "0", "about this product":
		return false
	}
	if bareYearRe.MatchString(s) {
		return false
	}
	if digitsOnlyRe.MatchString(s) {
		return false
	}
	if len(s) < 3 && !isAcronym(s) {
		return false
	}
	if trackTitleRe.MatchString(s) {
		return false
	}
	if nnnBassRe.MatchString(s) {
		return false
	}
	return true
}

// Fold produces the case/unicode/whitespace/punctuation-insensitive
// comparison key used for fingerprinting and duplicate detection
// (spec §4.7, §8: "Artist normalization is idempotent").
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = removePunctuation(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func removePunctuation(s string) string {
	replacer := strings.NewReplacer(
		".", "", ",", "", "!", "", "?", "", "'", "", "\"", "",
		":", "", ";", "", "-", " ", "_", " ", "&", "and", "/", " ",
	)
	return replacer.Replace(s)
}
