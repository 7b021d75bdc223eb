package organize

import (
	"strings"
	"testing"

	"github.com/halvard/crate/internal/album"
	"github.com/halvard/crate/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.EnableElectronicOrganization = true
	cfg.Mode = config.ModeHybrid
	cfg.MinLabelReleases = 3
	cfg.LabelPriorityThreshold = 1.5
	cfg.SeparateRemixes = true
	cfg.SeparateCompilations = true
	return cfg
}

func mustEngine(t *testing.T, cfg *config.Config, counts ReleaseCounts) *Engine {
	t.Helper()
	e, err := New(cfg, counts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestIsCompilationByVAPattern(t *testing.T) {
	e := mustEngine(t, baseConfig(), ReleaseCounts{})
	a := &album.Album{Artist: "Various Artists", AlbumTitle: "Summer Jams"}
	if !e.IsCompilation(a) {
		t.Error("expected VA-pattern match to be a compilation")
	}
}

func TestIsCompilationByTrackArtistVariance(t *testing.T) {
	e := mustEngine(t, baseConfig(), ReleaseCounts{})
	a := &album.Album{
		Artist: "Mix Vol 1",
		Tracks: []album.Track{
			{Artist: "A"}, {Artist: "B"}, {Artist: "C"}, {Artist: "D"},
		},
	}
	if !e.IsCompilation(a) {
		t.Error("expected >3 distinct track artists to be a compilation")
	}
}

func TestIsCompilationFalseForOrdinaryAlbum(t *testing.T) {
	e := mustEngine(t, baseConfig(), ReleaseCounts{})
	a := &album.Album{
		Artist: "Band X",
		Tracks: []album.Track{{Artist: "Band X"}, {Artist: "Band X"}},
	}
	if e.IsCompilation(a) {
		t.Error("did not expect ordinary album to be a compilation")
	}
}

func TestIsUndergroundByCatalog(t *testing.T) {
	cfg := baseConfig()
	cfg.UndergroundPatterns = "promo|white label"
	e := mustEngine(t, cfg, ReleaseCounts{})
	a := &album.Album{AlbumTitle: "Untitled", CatalogNum: "Promo 001"}
	if !e.IsUnderground(a) {
		t.Error("expected catalog match to be underground")
	}
}

func TestIsRemixHeavyThreshold(t *testing.T) {
	e := mustEngine(t, baseConfig(), ReleaseCounts{})
	a := &album.Album{
		Tracks: []album.Track{
			{Title: "Track (Remix)"},
			{Title: "Track (Original Mix)"},
			{Title: "Plain Track"},
		},
	}
	if !e.IsRemixHeavy(a) {
		t.Error("expected 2/3 remix-titled tracks to be remix-heavy")
	}
}

func TestSelectModeDisabledForcesArtist(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableElectronicOrganization = false
	e := mustEngine(t, cfg, ReleaseCounts{})
	a := &album.Album{Artist: "Band X", Label: "Some Label"}
	if got := e.SelectMode(a); got != config.ModeArtist {
		t.Errorf("SelectMode = %v, want artist", got)
	}
}

func TestSelectModeHybridLabelBeatsArtist(t *testing.T) {
	cfg := baseConfig()
	counts := ReleaseCounts{
		ArtistReleases: func(string) int { return 1 },
		LabelReleases:  func(string) int { return 10 },
	}
	e := mustEngine(t, cfg, counts)
	a := &album.Album{Artist: "Band X", Label: "Big Label"}
	if got := e.SelectMode(a); got != config.ModeLabel {
		t.Errorf("SelectMode = %v, want label", got)
	}
}

func TestSelectModeHybridFallsBackToArtist(t *testing.T) {
	cfg := baseConfig()
	counts := ReleaseCounts{
		ArtistReleases: func(string) int { return 10 },
		LabelReleases:  func(string) int { return 3 },
	}
	e := mustEngine(t, cfg, counts)
	a := &album.Album{Artist: "Band X", Label: "Small Label"}
	if got := e.SelectMode(a); got != config.ModeArtist {
		t.Errorf("SelectMode = %v, want artist", got)
	}
}

func TestResolveAliasMapsToPrimary(t *testing.T) {
	cfg := baseConfig()
	cfg.GroupArtistAliases = true
	cfg.ArtistAliasGroups = "Uwe Schmidt,Atom Heart,Atom TM|Squarepusher,Chaos A.D."
	e := mustEngine(t, cfg, ReleaseCounts{})
	if got := e.ResolveAlias("Atom Heart"); got != "Uwe Schmidt" {
		t.Errorf("ResolveAlias = %q, want Uwe Schmidt", got)
	}
	if got := e.ResolveAlias("Chaos A.D."); got != "Squarepusher" {
		t.Errorf("ResolveAlias = %q, want Squarepusher", got)
	}
	if got := e.ResolveAlias("Unrelated Artist"); got != "Unrelated Artist" {
		t.Errorf("ResolveAlias changed an unrelated artist: %q", got)
	}
}

func TestResolveAliasDisabledLeavesUnchanged(t *testing.T) {
	cfg := baseConfig()
	cfg.GroupArtistAliases = false
	cfg.ArtistAliasGroups = "Uwe Schmidt,Atom Heart"
	e := mustEngine(t, cfg, ReleaseCounts{})
	if got := e.ResolveAlias("Atom Heart"); got != "Atom Heart" {
		t.Errorf("ResolveAlias = %q, want unchanged", got)
	}
}

func TestBuildPathArtistTemplate(t *testing.T) {
	cfg := baseConfig()
	cfg.EnableElectronicOrganization = false
	e := mustEngine(t, cfg, ReleaseCounts{})
	a := &album.Album{
		Artist:     "Band X",
		AlbumTitle: "Great Album",
		Year:       "2001",
		Quality:    album.QualityLossless,
	}
	got := e.BuildPath("/dest", a)
	if !strings.Contains(got, "Lossless/Band X/Band X - Great Album (2001)") {
		t.Errorf("BuildPath = %q", got)
	}
}

func TestBuildPathCompilationTemplate(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = config.ModeHybrid
	e := mustEngine(t, cfg, ReleaseCounts{})
	a := &album.Album{
		Artist:     "Various Artists",
		AlbumTitle: "Best Of",
		Quality:    album.QualityLossy,
	}
	got := e.BuildPath("/dest", a)
	if !strings.Contains(got, "Lossy/Various Artists/Various Artists - Best Of") {
		t.Errorf("BuildPath = %q", got)
	}
}

func TestBuildPathRemixOverride(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = config.ModeArtist
	e := mustEngine(t, cfg, ReleaseCounts{})
	a := &album.Album{
		Artist:     "Band X",
		AlbumTitle: "Remix Pack",
		Quality:    album.QualityLossy,
		Tracks: []album.Track{
			{Title: "One (Remix)"}, {Title: "Two (Remix)"},
		},
	}
	got := e.BuildPath("/dest", a)
	if !strings.Contains(got, "Remixes/Band X") {
		t.Errorf("BuildPath = %q, want remix override applied", got)
	}
}

func TestBuildPathRemixOverrideAppliesUnderHybrid(t *testing.T) {
	cfg := baseConfig()
	cfg.Mode = config.ModeHybrid
	cfg.SeparateRemixes = true
	e := mustEngine(t, cfg, ReleaseCounts{})
	a := &album.Album{
		Artist:     "Band X",
		AlbumTitle: "Remix Pack",
		Quality:    album.QualityLossy,
		Tracks: []album.Track{
			{Title: "One (Remix)"}, {Title: "Two (Remix)"},
		},
	}
	got := e.BuildPath("/dest", a)
	if !strings.Contains(got, "Remixes/Band X") {
		t.Errorf("BuildPath = %q, want remix override applied under hybrid mode", got)
	}
}

func TestParseAliasGroupsPrimaryFirst(t *testing.T) {
	m := parseAliasGroups("A,B,C|D,E")
	if m["b"] != "A" || m["c"] != "A" || m["a"] != "A" {
		t.Errorf("unexpected group A mapping: %+v", m)
	}
	if m["e"] != "D" {
		t.Errorf("unexpected group D mapping: %+v", m)
	}
}
