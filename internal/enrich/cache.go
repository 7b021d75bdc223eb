package enrich

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/halvard/crate/internal/normalize"
)

// cacheKey returns the hex digest of the normalized (artist, album, year)
// tuple, per spec §4.6's cache-key definition.
func cacheKey(q Query) string {
	normalized := strings.Join([]string{normalize.Fold(q.Artist), normalize.Fold(q.Album), q.Year}, "\x1f")
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	Release   Release   `json:"release"`
	CachedAt  time.Time `json:"cached_at"`
}

// FileCache is a flat-JSON-file-per-provider on-disk cache. A read drops
// the looked-up entry if it is older than expiry, and every write purges
// all expired entries before persisting; writes are best-effort, matching
// spec §4.6's "cache unavailable must not fail a lookup."
type FileCache struct {
	mu      sync.Mutex
	path    string
	expiry  time.Duration
	entries map[string]cacheEntry
	loaded  bool
}

// NewFileCache builds a cache backed by <dir>/<provider>.json. An empty
// dir resolves to the XDG cache home (spec's <provider>_cache_dir unset
// case), matching the pack's xdg-based cache resolution.
func NewFileCache(dir, provider string, expiryHours int) (*FileCache, error) {
	if dir == "" {
		resolved, err := xdg.CacheFile(filepath.Join("crate", provider+".json"))
		if err != nil {
			return nil, fmt.Errorf("resolve default cache path: %w", err)
		}
		dir = filepath.Dir(resolved)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{
		path:    filepath.Join(dir, provider+".json"),
		expiry:  time.Duration(expiryHours) * time.Hour,
		entries: map[string]cacheEntry{},
	}, nil
}

func (c *FileCache) ensureLoaded() {
	if c.loaded {
		return
	}
	c.loaded = true
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var raw map[string]cacheEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	c.entries = raw
}

// Get returns the cached release for q. If that entry has expired it is
// removed from the in-memory map instead (persisted back on the next
// Put); other entries are not examined.
func (c *FileCache) Get(q Query) (*Release, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded()

	key := cacheKey(q)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expiry > 0 && time.Since(entry.CachedAt) > c.expiry {
		delete(c.entries, key)
		return nil, false
	}
	release := entry.Release
	return &release, true
}

// Put stores release for q and flushes to disk. A write failure is
// swallowed: the cache is an optimization, not a correctness dependency.
func (c *FileCache) Put(q Query, release Release) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded()

	c.entries[cacheKey(q)] = cacheEntry{Release: release, CachedAt: time.Now().UTC()}
	c.flushLocked()
}

func (c *FileCache) flushLocked() {
	if c.expiry > 0 {
		for k, e := range c.entries {
			if time.Since(e.CachedAt) > c.expiry {
				delete(c.entries, k)
			}
		}
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	os.Rename(tmp, c.path)
}
