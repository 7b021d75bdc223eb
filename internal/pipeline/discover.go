package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halvard/crate/internal/album"
)

// DiscoverAlbumDirs walks root and returns every directory that directly
// contains at least one recognized audio file (spec §4.1 step 1's unit of
// work is the album directory, not the individual file). A directory
// containing both audio files and subdirectories with their own audio
// files is reported as two separate albums — nested releases are not
// merged.
//
// Generalized from the teacher's internal/scan.Scanner, which walked the
// same tree at file granularity; album discovery only needs the
// directory-level decision, so the per-file channel fan-out that
// scanner used is unnecessary here.
func DiscoverAlbumDirs(ctx context.Context, root string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !d.IsDir() {
			return nil
		}
		hasAudio, rerr := dirHasAudio(path)
		if rerr != nil {
			return nil
		}
		if hasAudio {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(dirs)
	return dirs, nil
}

func dirHasAudio(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if album.IsRecognized(ext) {
			return true, nil
		}
	}
	return false, nil
}
