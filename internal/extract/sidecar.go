package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Sidecar holds the fields a malformed, XML-ish info file might supply
// when tags are entirely absent (spec §4.2 step 6).
type Sidecar struct {
	Title  string
	Artist string
	Year   string
	Genre  string
}

var sidecarNames = []string{"info.nfo", "info.xml", "album.nfo", "folder.nfo", "release.nfo"}

var sidecarTagRe = regexp.MustCompile(`(?is)<\s*(title|artist|albumartist|album_artist|year|genre)\s*>\s*(.*?)\s*<\s*/\s*\1\s*>`)

// ReadSidecar scans dir for a recognized sidecar file and extracts
// title/artist/year/genre from its XML-ish tags. A missing or malformed
// sidecar is never an error — ReadSidecar returns (nil, nil) rather
// than raising when nothing usable is found.
func ReadSidecar(dir string) (*Sidecar, error) {
	for _, name := range sidecarNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return parseSidecar(string(data)), nil
	}
	return nil, nil
}

func parseSidecar(content string) *Sidecar {
	s := &Sidecar{}
	matches := sidecarTagRe.FindAllStringSubmatch(content, -1)
	for _, m := range matches {
		key := strings.ToLower(m[1])
		val := strings.TrimSpace(m[2])
		switch key {
		case "title":
			s.Title = val
		case "artist", "albumartist", "album_artist":
			if s.Artist == "" {
				s.Artist = val
			}
		case "year":
			s.Year = val
		case "genre":
			s.Genre = val
		}
	}
	if s.Title == "" && s.Artist == "" && s.Year == "" && s.Genre == "" {
		return nil
	}
	return s
}
