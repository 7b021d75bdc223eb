package album

import "testing"

func TestDeriveQuality(t *testing.T) {
	tests := []struct {
		name   string
		tracks []Track
		want   Quality
	}{
		{"empty", nil, QualityUnknown},
		{"all flac", []Track{{Format: "flac"}, {Format: "flac"}}, QualityLossless},
		{"all mp3", []Track{{Format: "mp3"}, {Format: "mp3"}}, QualityLossy},
		{"mixed", []Track{{Format: "flac"}, {Format: "mp3"}}, QualityMixed},
		{"video container is lossy", []Track{{Format: "flac"}, {Format: "mp4"}}, QualityMixed},
		{"only video", []Track{{Format: "mkv"}}, QualityLossy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveQuality(tt.tracks); got != tt.want {
				t.Errorf("DeriveQuality() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRecognized(t *testing.T) {
	for _, ext := range []string{"mp3", "flac", "mp4", "mkv"} {
		if !IsRecognized(ext) {
			t.Errorf("IsRecognized(%q) = false, want true", ext)
		}
	}
	if IsRecognized("txt") {
		t.Error("IsRecognized(txt) = true, want false")
	}
}
