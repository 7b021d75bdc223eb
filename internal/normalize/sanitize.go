package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	illegalCharRe   = regexp.MustCompile(`[\\/:*?"<>|]`)
	underscoreRunRe = regexp.MustCompile(`_+`)
	spaceRunRe      = regexp.MustCompile(` +`)
)

// SanitizePathSegment implements spec §4.4's path-component sanitization:
// replace illegal/control characters with '_', collapse repeated '_',
// trim leading/trailing '_', collapse space runs, and truncate to 255
// bytes. It never produces newlines, tabs, or carriage returns.
func SanitizePathSegment(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = illegalCharRe.ReplaceAllString(s, "_")
	s = controlCharRe.ReplaceAllString(s, "_")
	s = strings.ReplaceAll(s, "\n", "_")
	s = strings.ReplaceAll(s, "\t", "_")
	s = strings.ReplaceAll(s, "\r", "_")
	s = underscoreRunRe.ReplaceAllString(s, "_")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, "_")
	s = strings.TrimSpace(s)

	return truncateBytes(s, 255)
}

// SanitizeTitleSegment applies SanitizePathSegment plus the title-specific
// truncation rule: titles longer than 100 characters before sanitization
// are cut to 97 bytes with a "..." suffix.
func SanitizeTitleSegment(title string) string {
	if len([]rune(title)) > 100 {
		title = truncateBytes(title, 97) + "..."
	}
	return SanitizePathSegment(title)
}

func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	b := []byte(s)[:max]
	// Avoid cutting a multi-byte rune in half.
	for len(b) > 0 && !isRuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return string(b)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
