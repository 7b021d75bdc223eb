package normalize

import "testing"

func TestCleanArtistNameBasic(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantOK  bool
	}{
		{"01. Artist Name", "Artist Name", true},
		{"the beatles", "The Beatles", true},
		{"various", "Various Artists", true},
		{"VA", "Various Artists", true},
		{"unknown artist", "Unknown Artist", true},
		{"Artist Name aka Other Name", "Artist Name", true},
		{"null", "", false},
		{"1998", "", false},
		{"12345", "", false},
		{"AB", "", false},
	}
	for _, tt := range tests {
		got, ok := CleanArtistName(tt.raw, nil)
		if ok != tt.wantOK {
			t.Errorf("CleanArtistName(%q) ok = %v, want %v (got %q)", tt.raw, ok, tt.wantOK, got)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("CleanArtistName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCleanArtistNameKeepsAcronym(t *testing.T) {
	got, ok := CleanArtistName("REM", nil)
	if !ok || got != "REM" {
		t.Errorf("CleanArtistName(REM) = %q, %v; want REM, true", got, ok)
	}
}

func TestCleanArtistNameAliasOverride(t *testing.T) {
	aliases := map[string]string{"atom heart": "Uwe Schmidt"}
	got, ok := CleanArtistName("Atom Heart", aliases)
	if !ok || got != "Uwe Schmidt" {
		t.Errorf("CleanArtistName with alias = %q, %v; want Uwe Schmidt, true", got, ok)
	}
}

func TestFoldIdempotent(t *testing.T) {
	cases := []string{"The Beatles", "Atom™", "AC/DC", "  Spaced   Out  "}
	for _, s := range cases {
		once := Fold(s)
		twice := Fold(once)
		if once != twice {
			t.Errorf("Fold not idempotent for %q: once=%q twice=%q", s, once, twice)
		}
	}
}

func TestFoldEquatesVariants(t *testing.T) {
	if Fold("AC/DC") != Fold("AC-DC") {
		t.Errorf("expected AC/DC and AC-DC to fold equal")
	}
}

func TestInferFromPathGeneric(t *testing.T) {
	c, ok := InferFromPath("Artist Name - Some Album")
	if !ok {
		t.Fatal("expected match")
	}
	if c.Artist != "Artist Name" || c.Title != "Some Album" {
		t.Errorf("unexpected candidate: %+v", c)
	}
}

func TestInferFromPathCatalogPrefix(t *testing.T) {
	c, ok := InferFromPath("[CAT123] Artist Name - Album Title")
	if !ok {
		t.Fatal("expected match")
	}
	if c.Catalog != "CAT123" || c.Artist != "Artist Name" {
		t.Errorf("unexpected candidate: %+v", c)
	}
}

func TestSanitizePathSegment(t *testing.T) {
	got := SanitizePathSegment("Artist/Name: Best?")
	if got != "Artist_Name_ Best" {
		t.Errorf("SanitizePathSegment = %q", got)
	}
}
