// Package extract discovers audio files inside an album directory, reads
// their tags (falling back to ffprobe for audio properties dhowden/tag
// cannot provide), and aggregates the per-track results into a single
// album.Album record (spec §4.2).
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/normalize"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/xerr"
)

// TagTimeout bounds how long a single file's tag read may take before it
// is skipped (spec §4.2: "TagReadTimeout for per-file stalls, ≥60s
// default, skip that file").
var TagTimeout = 60 * time.Second

// CompilationSentinel is the artist value assigned when tracks disagree
// on both album-artist and artist (spec §4.2 step 3).
const CompilationSentinel = "Various Artists"

// trackTags holds the tag fields read from a single audio file, before
// they are aggregated into the album record.
type trackTags struct {
	path          string
	artist        string
	albumArtist   string
	album         string
	title         string
	trackNum      int
	discNum       int
	year          string
	genre         string
	label         string
	catalogNum    string
	format        string
	durationMs    int
	bitrateKbps   int
	sampleRate    int
	bitDepth      int
	lossless      bool
}

// Directory reads every recognized audio file in dir and aggregates them
// into an Album. Unreadable/corrupt files are logged and excluded rather
// than aborting the whole album; an empty result is reported via
// xerr.NoAudio.
func Directory(ctx context.Context, log *util.Logger, dir string) (*album.Album, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var tagsList []trackTags
	var excluded []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if !album.IsRecognized(ext) {
			continue
		}
		path := filepath.Join(dir, e.Name())

		tt, err := readOneWithTimeout(path, ext)
		if err != nil {
			if log != nil {
				log.Warn("-", "skipping unreadable file %s: %v", path, err)
			}
			excluded = append(excluded, path)
			continue
		}
		tagsList = append(tagsList, *tt)
	}

	if len(tagsList) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, xerr.NoAudio)
	}

	a := aggregate(dir, tagsList)
	_ = ctx
	return a, nil
}

func readOneWithTimeout(path, ext string) (*trackTags, error) {
	type result struct {
		tt  *trackTags
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tt, err := readOne(path, ext)
		ch <- result{tt, err}
	}()

	select {
	case r := <-ch:
		return r.tt, r.err
	case <-time.After(TagTimeout):
		return nil, fmt.Errorf("%s: %w", path, xerr.TagReadTimeout)
	}
}

func readOne(path, ext string) (*trackTags, error) {
	tt := &trackTags{path: path, format: ext}

	if info, err := os.Stat(path); err == nil {
		_ = info
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if m, err := tag.ReadFrom(f); err == nil {
		tt.artist = m.Artist()
		tt.albumArtist = m.AlbumArtist()
		tt.album = m.Album()
		tt.title = m.Title()
		tt.genre = m.Genre()
		if m.Year() > 0 {
			tt.year = strconv.Itoa(m.Year())
		}
		track, _ := m.Track()
		tt.trackNum = track
		disc, _ := m.Disc()
		tt.discNum = disc
		if fmtStr := string(m.Format()); fmtStr != "" {
			tt.format = strings.ToLower(fmtStr)
		}
		tt.label, tt.catalogNum = rawLabelCatalog(m.Raw())
	}

	if props, err := probe(path); err == nil && props != nil {
		if props.durationMs > 0 {
			tt.durationMs = props.durationMs
		}
		if props.bitrateKbps > 0 {
			tt.bitrateKbps = props.bitrateKbps
		}
		tt.sampleRate = props.sampleRate
		tt.bitDepth = props.bitDepth
		if props.codec != "" {
			tt.lossless = isLosslessCodec(props.codec)
		}
	} else {
		tt.lossless = album.IsLossless(ext)
	}

	return tt, nil
}

// rawLabelCatalog pulls label/catalog-number hints out of the raw tag
// frame map, where available (ID3 TPUB/organization frames vary by
// format, so this is best-effort).
func rawLabelCatalog(raw map[string]interface{}) (label, catalog string) {
	for _, key := range []string{"TPUB", "publisher", "PUBLISHER", "label", "LABEL", "organization"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				label = s
				break
			}
		}
	}
	for _, key := range []string{"catalognumber", "CATALOGNUMBER", "CATALOG#", "catalog_number"} {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				catalog = s
				break
			}
		}
	}
	return label, catalog
}

func isLosslessCodec(codec string) bool {
	codec = strings.ToLower(codec)
	if strings.HasPrefix(codec, "pcm_") {
		return true
	}
	switch codec {
	case "flac", "alac", "ape", "wavpack", "wv", "tta":
		return true
	}
	return false
}

// aggregate implements spec §4.2 step 3's field-merge rules.
func aggregate(dir string, tags []trackTags) *album.Album {
	a := &album.Album{SourcePath: dir, TrackCount: len(tags)}

	a.Artist = aggregateArtist(tags)
	a.AlbumTitle = mostFrequent(mapField(tags, func(t trackTags) string { return t.album }))
	a.Year = earliestYear(tags)
	a.Label = firstNonEmpty(mapField(tags, func(t trackTags) string { return t.label }))
	a.CatalogNum = firstNonEmpty(mapField(tags, func(t trackTags) string { return t.catalogNum }))
	a.Genre = firstNonEmpty(mapField(tags, func(t trackTags) string { return t.genre }))

	var totalBitrate, bitrateCount int
	var totalBytes int64
	tracks := make([]album.Track, 0, len(tags))
	for _, t := range tags {
		size := int64(0)
		if info, err := os.Stat(t.path); err == nil {
			size = info.Size()
		}
		totalBytes += size
		if t.bitrateKbps > 0 {
			totalBitrate += t.bitrateKbps
			bitrateCount++
		}
		tracks = append(tracks, album.Track{
			FilePath:    t.path,
			TrackNumber: t.trackNum,
			DiscNumber:  t.discNum,
			Title:       t.title,
			DurationMs:  t.durationMs,
			BitrateKbps: t.bitrateKbps,
			SampleRate:  t.sampleRate,
			BitDepth:    t.bitDepth,
			Format:      t.format,
			Artist:      t.artist,
			AlbumArtist: t.albumArtist,
			Album:       t.album,
			Year:        t.year,
			Genre:       t.genre,
			Label:       t.label,
			CatalogNum:  t.catalogNum,
		})
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].DiscNumber != tracks[j].DiscNumber {
			return tracks[i].DiscNumber < tracks[j].DiscNumber
		}
		return tracks[i].TrackNumber < tracks[j].TrackNumber
	})
	a.Tracks = tracks
	a.TotalBytes = totalBytes
	if bitrateCount > 0 {
		a.AvgBitrateKbps = float64(totalBitrate) / float64(bitrateCount)
	}
	a.Quality = album.DeriveQuality(tracks)

	if a.AlbumTitle == "" {
		a.AlbumTitle = normalize.SanitizePathSegment(filepath.Base(dir))
	}

	cleaned, ok := normalize.CleanArtistName(a.Artist, nil)
	if ok {
		a.Artist = cleaned
	} else {
		resolved, found := fallbackArtist(dir, tags)
		if found {
			a.Artist = resolved
		} else {
			a.NeedsReview = true
		}
	}

	return a
}

func aggregateArtist(tags []trackTags) string {
	if albumArtist, ok := unanimous(mapField(tags, func(t trackTags) string { return t.albumArtist })); ok {
		return albumArtist
	}
	if artist, ok := unanimous(mapField(tags, func(t trackTags) string { return t.artist })); ok {
		return artist
	}
	return CompilationSentinel
}

func unanimous(values []string) (string, bool) {
	var nonEmpty []string
	for _, v := range values {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	if len(nonEmpty) == 0 {
		return "", false
	}
	first := nonEmpty[0]
	for _, v := range nonEmpty[1:] {
		if v != first {
			return "", false
		}
	}
	return first, true
}

func mapField(tags []trackTags, f func(trackTags) string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = f(t)
	}
	return out
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mostFrequent(values []string) string {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	for i, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
		if _, ok := firstSeen[v]; !ok {
			firstSeen[v] = i
		}
	}
	best := ""
	bestCount := -1
	bestFirst := len(values)
	for v, c := range counts {
		if c > bestCount || (c == bestCount && firstSeen[v] < bestFirst) {
			best = v
			bestCount = c
			bestFirst = firstSeen[v]
		}
	}
	return best
}

func earliestYear(tags []trackTags) string {
	best := ""
	for _, t := range tags {
		y := extractYear(t.year)
		if y == "" {
			continue
		}
		if best == "" || y < best {
			best = y
		}
	}
	return best
}

func extractYear(s string) string {
	if len(s) < 4 {
		return ""
	}
	for i := 0; i+4 <= len(s); i++ {
		candidate := s[i : i+4]
		allDigits := true
		for _, r := range candidate {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return candidate
		}
	}
	return ""
}

// fallbackArtist implements spec §4.2 step 6: path-pattern extraction,
// then sidecar parsing, then directory-name inference.
func fallbackArtist(dir string, tags []trackTags) (string, bool) {
	base := filepath.Base(dir)
	if c, ok := normalize.InferFromPath(base); ok {
		if cleaned, ok := normalize.CleanArtistName(c.Artist, nil); ok {
			return cleaned, true
		}
	}

	if sidecar, err := ReadSidecar(dir); err == nil && sidecar != nil {
		if cleaned, ok := normalize.CleanArtistName(sidecar.Artist, nil); ok {
			return cleaned, true
		}
	}

	if c, ok := normalize.InferFromPath(filepath.Base(filepath.Dir(dir))); ok {
		if cleaned, ok := normalize.CleanArtistName(c.Artist, nil); ok {
			return cleaned, true
		}
	}

	return "", false
}
