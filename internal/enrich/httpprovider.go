package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/halvard/crate/internal/config"
)

// searchResponse and releaseResponse model a generic "artist/album search
// + release lookup" JSON API, shaped after MusicBrainz's release-group
// search and lookup endpoints (spec §4.6 leaves the concrete provider
// unspecified; this is the primary client's wire format, grounded on the
// teacher's ArtistSearchResult/Artist types).
type searchResponse struct {
	Releases []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Date         string `json:"date"`
		ArtistCredit []struct {
			Name string `json:"name"`
		} `json:"artist-credit"`
	} `json:"releases"`
}

type releaseResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	ArtistCredit []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
	LabelInfo []struct {
		Label struct {
			Name string `json:"name"`
		} `json:"label"`
	} `json:"label-info"`
	Media []struct {
		Tracks []struct {
			Title string `json:"title"`
		} `json:"tracks"`
	} `json:"media"`
	Genre string `json:"genre"`
}

// HTTPProvider is a generic release-search/lookup client sharing the
// rate-limiter + cache + auth contract both enrichment providers use,
// grounded on the teacher's musicbrainz.Client (waitForRateLimit,
// User-Agent header, 503/non-200 handling).
type HTTPProvider struct {
	name       string
	httpClient *http.Client
	baseURL    string
	userAgent  string
	auth       authMode
	limiter    *RateLimiter
	cache      *FileCache
}

type authMode struct {
	token        string
	key, secret  string
}

// NewHTTPProvider builds a provider from cfg. Missing credentials (spec
// §4.6: "missing credentials degrade to unauthenticated with lower
// limits") are tolerated: the client still issues requests, just without
// auth headers.
func NewHTTPProvider(name, userAgent string, cfg config.ProviderConfig, statePath string) (*HTTPProvider, error) {
	cache, err := NewFileCache(cfg.CacheDir, name, cfg.CacheExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("enrich provider %s: %w", name, err)
	}
	return &HTTPProvider{
		name:       name,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.BaseURL,
		userAgent:  userAgent,
		auth:       authMode{token: cfg.Token, key: cfg.Key, secret: cfg.Secret},
		limiter:    NewRateLimiter(cfg.RateLimitPerMinute, filepath.Join(filepath.Dir(statePath), name+".ratelimit")),
		cache:      cache,
	}, nil
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if cached, ok := p.cache.Get(q); ok {
		return []Candidate{{ID: cached.ID, Artist: cached.Artist, Album: cached.Album, Year: cached.Year}}, nil
	}

	p.limiter.Wait()

	query := fmt.Sprintf("artist:%s AND release:%s", q.Artist, q.Album)
	u := fmt.Sprintf("%s/release/?query=%s&fmt=json&limit=5", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	p.applyAuth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(parsed.Releases))
	for _, r := range parsed.Releases {
		artist := ""
		if len(r.ArtistCredit) > 0 {
			artist = r.ArtistCredit[0].Name
		}
		candidates = append(candidates, Candidate{ID: r.ID, Artist: artist, Album: r.Title, Year: yearOf(r.Date)})
	}
	return candidates, nil
}

func (p *HTTPProvider) GetRelease(ctx context.Context, id string) (*Release, error) {
	p.limiter.Wait()

	u := fmt.Sprintf("%s/release/%s?fmt=json&inc=labels+recordings", p.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	p.applyAuth(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("release lookup: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed releaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode release response: %w", err)
	}

	artist := ""
	if len(parsed.ArtistCredit) > 0 {
		artist = parsed.ArtistCredit[0].Name
	}
	label := ""
	if len(parsed.LabelInfo) > 0 {
		label = parsed.LabelInfo[0].Label.Name
	}
	var tracks []string
	for _, m := range parsed.Media {
		for _, t := range m.Tracks {
			tracks = append(tracks, t.Title)
		}
	}

	release := Release{
		ID:     parsed.ID,
		Artist: artist,
		Album:  parsed.Title,
		Year:   yearOf(parsed.Date),
		Label:  label,
		Genre:  parsed.Genre,
		Tracks: tracks,
	}

	p.cache.Put(Query{Artist: artist, Album: parsed.Title, Year: release.Year}, release)
	return &release, nil
}

func (p *HTTPProvider) applyAuth(req *http.Request) {
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")
	switch {
	case p.auth.token != "":
		req.Header.Set("Authorization", "Bearer "+p.auth.token)
	case p.auth.key != "" && p.auth.secret != "":
		req.SetBasicAuth(p.auth.key, p.auth.secret)
	}
}

func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
