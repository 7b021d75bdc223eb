package pipeline

import (
	"sync"

	"github.com/halvard/crate/internal/normalize"
	"github.com/halvard/crate/internal/store"
)

// releaseCounter backs organize.ReleaseCounts with the run's visibility
// across albums processed so far this run, combined with whatever the
// metadata store already committed in prior runs. The hybrid mode's
// label-vs-artist comparison (spec §4.4) needs counts current as of each
// album's own processing, so this is updated after every commit rather
// than computed once up front.
type releaseCounter struct {
	meta *store.MetadataStore

	mu     sync.Mutex
	artist map[string]int
	label  map[string]int
}

func newReleaseCounter(meta *store.MetadataStore) *releaseCounter {
	return &releaseCounter{
		meta:   meta,
		artist: map[string]int{},
		label:  map[string]int{},
	}
}

func (c *releaseCounter) ArtistReleases(artist string) int {
	n, _ := c.meta.CountAlbumsByArtist(artist)
	c.mu.Lock()
	n += c.artist[normalize.Fold(artist)]
	c.mu.Unlock()
	return n
}

func (c *releaseCounter) LabelReleases(label string) int {
	n, _ := c.meta.CountAlbumsByLabel(label)
	c.mu.Lock()
	n += c.label[normalize.Fold(label)]
	c.mu.Unlock()
	return n
}

// record bumps the in-run tallies once an album has actually committed,
// so later albums in the same run see it.
func (c *releaseCounter) record(artist, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if artist != "" {
		c.artist[normalize.Fold(artist)]++
	}
	if label != "" {
		c.label[normalize.Fold(label)]++
	}
}
