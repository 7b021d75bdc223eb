// Package organize implements the organization engine: mode selection,
// compilation/underground/remix classification, artist alias resolution,
// and destination-path construction (spec §4.4).
package organize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/config"
	"github.com/halvard/crate/internal/normalize"
)

// Mode is an alias of config.OrgMode. SelectMode returns ModeHybrid only
// for a hybrid-mode compilation or underground release, which BuildPath
// resolves to its own template.
type Mode = config.OrgMode

// ReleaseCounts supplies the per-artist/per-label release tallies the
// hybrid mode's label-vs-artist comparison needs (spec §4.4: "label
// release count ... artist release count"). The pipeline driver supplies
// them from its run-wide counter. The artist count is looked up for the
// alias-resolved primary name only; releases recorded under the other
// names of its alias group are not added.
type ReleaseCounts struct {
	ArtistReleases func(artist string) int
	LabelReleases  func(label string) int
}

// Engine classifies albums and builds destination paths per a single
// configuration snapshot.
type Engine struct {
	cfg         *config.Config
	vaPattern   *regexp.Regexp
	underground *regexp.Regexp
	remix       *regexp.Regexp
	aliasCanon  map[string]string // lowercase name -> primary
	counts      ReleaseCounts
}

var seriesCatalogRe = regexp.MustCompile(`^[A-Za-z]+[0-9]{3,}$`)
var seriesPrefixTrailingDigitsRe = regexp.MustCompile(`[0-9]+$`)

// New builds an Engine from configuration, compiling the configured
// pattern lists and the artist-alias table once.
func New(cfg *config.Config, counts ReleaseCounts) (*Engine, error) {
	va, err := compilePattern(cfg.VAPatterns, "Various Artists|Various|VA|V.A.|Compilation")
	if err != nil {
		return nil, fmt.Errorf("va_patterns: %w", err)
	}
	underground, err := compilePattern(cfg.UndergroundPatterns, "white|promo|bootleg|unreleased|dubplate|test press")
	if err != nil {
		return nil, fmt.Errorf("underground_patterns: %w", err)
	}
	remix, err := compilePattern(cfg.RemixKeywords, "remix|rmx|mix|edit|rework|bootleg")
	if err != nil {
		return nil, fmt.Errorf("remix_keywords: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		vaPattern:   va,
		underground: underground,
		remix:       remix,
		counts:      counts,
	}
	if cfg.GroupArtistAliases {
		e.aliasCanon = parseAliasGroups(cfg.ArtistAliasGroups)
	}
	return e, nil
}

func compilePattern(configured, fallback string) (*regexp.Regexp, error) {
	pattern := configured
	if pattern == "" {
		pattern = fallback
	}
	return regexp.Compile(`(?i)` + pattern)
}

// parseAliasGroups turns the "|"-separated, comma-separated, primary-first
// artist_alias_groups string into a lowercase-name -> primary map.
func parseAliasGroups(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, group := range strings.Split(raw, "|") {
		names := strings.Split(group, ",")
		if len(names) == 0 {
			continue
		}
		primary := strings.TrimSpace(names[0])
		if primary == "" {
			continue
		}
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			out[strings.ToLower(n)] = primary
		}
	}
	return out
}

// ResolveAlias maps artist to its alias group's primary name, or returns
// it unchanged if alias resolution is disabled or it has no group.
func (e *Engine) ResolveAlias(artist string) string {
	if e.aliasCanon == nil {
		return artist
	}
	if primary, ok := e.aliasCanon[strings.ToLower(artist)]; ok {
		return primary
	}
	return artist
}

// IsCompilation implements spec §4.4's compilation detection: VA pattern
// match on album-artist, OR more than three distinct track artists.
func (e *Engine) IsCompilation(a *album.Album) bool {
	if e.vaPattern.MatchString(a.Artist) {
		return true
	}
	return distinctTrackArtists(a) > 3
}

func distinctTrackArtists(a *album.Album) int {
	seen := map[string]struct{}{}
	for _, t := range a.Tracks {
		artist := t.Artist
		if artist == "" {
			continue
		}
		seen[normalize.Fold(artist)] = struct{}{}
	}
	return len(seen)
}

// IsUnderground implements spec §4.4's underground detection.
func (e *Engine) IsUnderground(a *album.Album) bool {
	return e.underground.MatchString(a.AlbumTitle) || e.underground.MatchString(a.CatalogNum)
}

// IsRemixHeavy implements spec §4.4: at least half of track titles match
// the configured remix keywords.
func (e *Engine) IsRemixHeavy(a *album.Album) bool {
	if len(a.Tracks) == 0 {
		return false
	}
	matches := 0
	for _, t := range a.Tracks {
		if e.remix.MatchString(t.Title) {
			matches++
		}
	}
	return float64(matches)/float64(len(a.Tracks)) >= 0.5
}

// SelectMode implements spec §4.4's mode-selection ladder, mutating the
// album's classification flags (IsCompilation/IsUnderground/
// IsRemixHeavy) as a side effect since later stages (duplicate grouping,
// reporting) need them too.
func (e *Engine) SelectMode(a *album.Album) Mode {
	a.IsCompilation = e.IsCompilation(a)
	a.IsUnderground = e.IsUnderground(a)
	a.IsRemixHeavy = e.IsRemixHeavy(a)

	if !e.cfg.EnableElectronicOrganization {
		return config.ModeArtist
	}

	switch e.cfg.Mode {
	case config.ModeLabel:
		if a.Label != "" {
			return config.ModeLabel
		}
		return config.ModeArtist
	case config.ModeSeries:
		if seriesCatalogRe.MatchString(a.CatalogNum) {
			return config.ModeSeries
		}
		return config.ModeArtist
	case config.ModeHybrid:
		if a.IsCompilation {
			return config.ModeHybrid // resolved to compilation template by BuildPath
		}
		if a.IsUnderground {
			return config.ModeHybrid
		}
		if a.Label != "" && e.labelBeatsArtist(a) {
			return config.ModeLabel
		}
		return config.ModeArtist
	default:
		return config.ModeArtist
	}
}

func (e *Engine) labelBeatsArtist(a *album.Album) bool {
	if e.counts.ArtistReleases == nil || e.counts.LabelReleases == nil {
		return false
	}
	labelReleases := e.counts.LabelReleases(a.Label)
	if labelReleases < e.cfg.MinLabelReleases {
		return false
	}
	artistReleases := e.counts.ArtistReleases(e.ResolveAlias(a.Artist))
	return float64(labelReleases) > float64(artistReleases)*e.cfg.LabelPriorityThreshold
}

// BuildPath classifies a, resolves its alias, and constructs the
// sanitized destination path relative to destRoot per spec §4.4's
// templates. The hybrid ladder's compilation/underground branches are
// resolved here since they are not concrete Mode values.
func (e *Engine) BuildPath(destRoot string, a *album.Album) string {
	mode := e.SelectMode(a)
	quality := a.Quality.QualityDir()

	artist := e.ResolveAlias(a.Artist)

	var rel string
	switch {
	case mode == config.ModeHybrid && a.IsCompilation:
		rel = compilationPath(quality, a)
	case mode == config.ModeHybrid && a.IsUnderground:
		rel = undergroundPath(quality, a)
	case mode == config.ModeLabel:
		rel = labelPath(quality, a)
	case mode == config.ModeSeries:
		rel = seriesPath(quality, artist, a)
	default:
		rel = artistPath(quality, artist, a)
	}

	if e.cfg.SeparateRemixes && a.IsRemixHeavy {
		rel = remixPath(quality, artist, a)
	}

	return filepath.Join(destRoot, rel)
}

func artistPath(quality, artist string, a *album.Album) string {
	name := normalize.SanitizePathSegment(artist)
	title := normalize.SanitizeTitleSegment(a.AlbumTitle)
	dir := filepath.Join(quality, name)
	file := fmt.Sprintf("%s - %s", name, title)
	file += optYear(a.Year)
	file += optBracket(a.Label)
	file += optBracket(a.CatalogNum)
	file += optDisc(a.DiscNumber)
	return filepath.Join(dir, normalize.SanitizePathSegment(file))
}

func labelPath(quality string, a *album.Album) string {
	label := normalize.SanitizePathSegment(a.Label)
	artist := normalize.SanitizePathSegment(a.Artist)
	title := normalize.SanitizeTitleSegment(a.AlbumTitle)
	file := fmt.Sprintf("%s - %s", artist, title)
	file += optBracket(a.CatalogNum)
	return filepath.Join(quality, "Labels", label, normalize.SanitizePathSegment(file))
}

func seriesPath(quality, artist string, a *album.Album) string {
	catalog := a.CatalogNum
	prefix := seriesPrefixTrailingDigitsRe.ReplaceAllString(catalog, "")
	prefix = normalize.SanitizePathSegment(prefix)
	title := normalize.SanitizeTitleSegment(a.AlbumTitle)
	file := fmt.Sprintf("%s - %s - %s", normalize.SanitizePathSegment(catalog), normalize.SanitizePathSegment(artist), title)
	return filepath.Join(quality, "Series", prefix, normalize.SanitizePathSegment(file))
}

func compilationPath(quality string, a *album.Album) string {
	const va = "Various Artists"
	title := normalize.SanitizeTitleSegment(a.AlbumTitle)
	file := fmt.Sprintf("%s - %s", va, title)
	file += optYear(a.Year)
	file += optBracket(a.Label)
	file += optBracket(a.CatalogNum)
	return filepath.Join(quality, va, normalize.SanitizePathSegment(file))
}

func undergroundPath(quality string, a *album.Album) string {
	bucket := a.CatalogNum
	if bucket == "" {
		bucket = a.Year
	}
	if bucket == "" {
		bucket = "Unknown"
	}
	title := normalize.SanitizeTitleSegment(a.AlbumTitle)
	return filepath.Join(quality, "Underground", normalize.SanitizePathSegment(bucket), title)
}

func remixPath(quality, artist string, a *album.Album) string {
	title := normalize.SanitizeTitleSegment(a.AlbumTitle)
	return filepath.Join(quality, "Remixes", normalize.SanitizePathSegment(artist), title)
}

func optYear(year string) string {
	if year == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", year)
}

func optBracket(v string) string {
	if v == "" {
		return ""
	}
	return fmt.Sprintf(" [%s]", v)
}

func optDisc(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" (Disc %d)", n)
}
