// Package album defines the in-memory Album/Track records that flow
// through the pipeline from scan-match to commit (spec §3).
package album

import "time"

// Quality is the derived classification of an album from its audio
// formats.
type Quality string

const (
	QualityLossless Quality = "Lossless"
	QualityLossy    Quality = "Lossy"
	QualityMixed    Quality = "Mixed"
	QualityUnknown  Quality = "Unknown"
)

// EnrichmentSource identifies which enrichment provider, if any,
// contributed to an album's metadata.
type EnrichmentSource string

const (
	EnrichmentNone      EnrichmentSource = "none"
	EnrichmentPrimary   EnrichmentSource = "primary"
	EnrichmentSecondary EnrichmentSource = "secondary"
)

// AudioExtensions are the recognized audio file extensions for directory
// discovery (spec §4.2 step 1), without the leading dot, lower-cased.
var AudioExtensions = map[string]bool{
	"mp3": true, "flac": true, "wav": true, "aiff": true, "alac": true,
	"aac": true, "m4a": true, "ogg": true, "opus": true, "wma": true, "ape": true,
}

// VideoExtensions are container formats optionally treated as lossy audio
// carriers (spec §4.2 step 1). Open Question 1 (SPEC_FULL.md) resolves
// these unconditionally to Lossy regardless of the embedded audio codec.
var VideoExtensions = map[string]bool{
	"mp4": true, "mkv": true, "avi": true, "mov": true, "webm": true,
}

// losslessFormats are the extensions counted as Lossless in the quality
// derivation rule (spec §3: "quality = Mixed iff the set of formats
// contains both a lossless and a lossy member").
var losslessFormats = map[string]bool{
	"flac": true, "wav": true, "aiff": true, "alac": true,
}

// IsRecognized reports whether ext (no leading dot, any case) is an audio
// or optionally-audio container extension this system discovers.
func IsRecognized(ext string) bool {
	return AudioExtensions[ext] || VideoExtensions[ext]
}

// IsLossless reports whether ext is a lossless audio format. Video
// containers are never lossless (Open Question 1).
func IsLossless(ext string) bool {
	return losslessFormats[ext]
}

// Track is a single audio file subordinate to an Album.
type Track struct {
	FilePath    string
	TrackNumber int
	DiscNumber  int
	Title       string
	DurationMs  int64
	BitrateKbps int
	SampleRate  int
	BitDepth    int
	Format      string // lower-cased extension, no dot

	Artist      string
	AlbumArtist string
	Album       string
	Year        string
	Genre       string
	Label       string
	CatalogNum  string
}

// Album is the in-memory record owned exclusively by the worker
// processing it, from extraction through commit (spec §3 Lifecycle).
type Album struct {
	SourcePath string

	Artist       string
	AlbumTitle   string
	Year         string
	Label        string
	CatalogNum   string
	Genre        string

	TrackCount     int
	TotalBytes     int64
	AvgBitrateKbps float64

	Quality Quality

	DiscNumber int

	IsCompilation  bool
	IsUnderground  bool
	IsRemixHeavy   bool
	NeedsReview    bool

	Confidence       float64
	EnrichmentSource EnrichmentSource

	Fingerprint  string
	MetadataHash string

	Tracks []Track

	NewPath      string
	MoveOpID     string
	ProcessedAt  time.Time
}

// DeriveQuality computes Quality from the distinct set of track formats,
// per spec §3's invariant.
func DeriveQuality(tracks []Track) Quality {
	if len(tracks) == 0 {
		return QualityUnknown
	}
	sawLossless, sawLossy := false, false
	for _, t := range tracks {
		if t.Format == "" {
			continue
		}
		if IsLossless(t.Format) {
			sawLossless = true
		} else {
			sawLossy = true
		}
	}
	switch {
	case sawLossless && sawLossy:
		return QualityMixed
	case sawLossless:
		return QualityLossless
	case sawLossy:
		return QualityLossy
	default:
		return QualityUnknown
	}
}

// QualityDir returns the top-level directory name used by the
// organization engine's path templates ("Lossless"/"Lossy"/etc.).
func (q Quality) QualityDir() string {
	return string(q)
}
