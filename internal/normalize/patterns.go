package normalize

import "regexp"

// PathCandidate is a single artist/title/catalog/year extraction yielded
// by InferFromPath.
type PathCandidate struct {
	Artist  string
	Title   string
	Catalog string
	Year    string
}

var pathPatterns = []*regexp.Regexp{
	// `[CAT] Artist - Album`
	regexp.MustCompile(`^\[([A-Za-z0-9]{2,12})\]\s*(.+?)\s*-\s*(.+)$`),
	// `Artist - Title (YYYY) [Catalog]`
	regexp.MustCompile(`^(.+?)\s*-\s*(.+?)\s*\((\d{4})\)\s*\[([A-Za-z0-9]{2,12})\]$`),
	// `Artist – Title [Catalog]` (em-dash)
	regexp.MustCompile(`^(.+?)\s*–\s*(.+?)\s*\[([A-Za-z0-9]{2,12})\]$`),
	// `(Catalog) Artist - Title (YYYY)`
	regexp.MustCompile(`^\(([A-Za-z0-9]{2,12})\)\s*(.+?)\s*-\s*(.+?)\s*\((\d{4})\)$`),
	// scene: `artist_tokens-title_tokens-cat-YYYY-group`
	regexp.MustCompile(`^([\w]+(?:_[\w]+)*)-([\w]+(?:_[\w]+)*)-([A-Za-z0-9]+)-(\d{4})-\w+$`),
	// simpler scene: `artist_tokens-title-YYYY-group`
	regexp.MustCompile(`^([\w]+(?:_[\w]+)*)-([\w]+(?:_[\w]+)*)-(\d{4})-\w+$`),
	// `artist___collab_-_title__extras`
	regexp.MustCompile(`^([\w]+)_{2,3}([\w]+)_-_([\w]+)(?:_{2}.*)?$`),
	// generic `Artist - Title`
	regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`),
}

// InferFromPath applies the spec's ordered path-based inference patterns
// (§4.3) to a directory or file basename, returning the first match.
func InferFromPath(name string) (PathCandidate, bool) {
	for i, re := range pathPatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		switch i {
		case 0: // [CAT] Artist - Album
			return PathCandidate{Catalog: m[1], Artist: m[2], Title: m[3]}, true
		case 1: // Artist - Title (YYYY) [Catalog]
			return PathCandidate{Artist: m[1], Title: m[2], Year: m[3], Catalog: m[4]}, true
		case 2: // Artist – Title [Catalog]
			return PathCandidate{Artist: m[1], Title: m[2], Catalog: m[3]}, true
		case 3: // (Catalog) Artist - Title (YYYY)
			return PathCandidate{Catalog: m[1], Artist: m[2], Title: m[3], Year: m[4]}, true
		case 4: // artist_tokens-title_tokens-cat-YYYY-group
			return PathCandidate{Artist: detokenize(m[1]), Title: detokenize(m[2]), Catalog: m[3], Year: m[4]}, true
		case 5: // artist_tokens-title-YYYY-group
			return PathCandidate{Artist: detokenize(m[1]), Title: detokenize(m[2]), Year: m[3]}, true
		case 6: // artist___collab_-_title__extras
			return PathCandidate{Artist: detokenize(m[1] + " " + m[2]), Title: detokenize(m[3])}, true
		case 7: // generic Artist - Title
			return PathCandidate{Artist: m[1], Title: m[2]}, true
		}
	}
	return PathCandidate{}, false
}

func detokenize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '_' {
			out = append(out, ' ')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
