// Package enrich implements the pluggable external metadata lookup used
// to supplement extracted tags (spec §4.6): two interchangeable
// providers, each with its own rate limiter and on-disk cache, and a
// confidence scorer that decides whether a candidate is trustworthy
// enough to use.
package enrich

import (
	"context"
	"fmt"

	"github.com/halvard/crate/internal/config"
	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/xerr"
)

// Query is the local metadata a lookup is performed against.
type Query struct {
	Artist string
	Album  string
	Year   string // optional, may be empty
}

// Candidate is one search result from a provider, prior to confidence
// scoring.
type Candidate struct {
	ID     string
	Artist string
	Album  string
	Year   string
}

// Release is the detailed record behind one candidate's ID.
type Release struct {
	ID     string
	Artist string
	Album  string
	Year   string
	Label  string
	Genre  string
	Tracks []string
}

// Provider is the shared contract both enrichment clients implement
// (spec §4.6): search for candidates, then fetch full details for one.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
	GetRelease(ctx context.Context, id string) (*Release, error)
}

// Result is what a successful enrichment lookup returns to the caller.
type Result struct {
	Provider   string
	Release    Release
	Confidence float64
}

// Manager tries the primary provider, then the secondary, returning the
// first accepted candidate (score >= the provider's configured
// threshold). Any error, empty result, or low-confidence match at a
// provider is never fatal: it simply falls through to the next provider
// or to "no enrichment" (spec §4.6 final paragraph).
type Manager struct {
	providers []scoredProvider
	log       *util.Logger
}

type scoredProvider struct {
	provider  Provider
	threshold float64
}

// NewManager builds a Manager from configured providers in priority
// order (primary first). Providers with Enabled=false are skipped.
func NewManager(log *util.Logger, providers ...ConfiguredProvider) *Manager {
	m := &Manager{log: log}
	for _, cp := range providers {
		if cp.Config.Enabled {
			m.providers = append(m.providers, scoredProvider{provider: cp.Provider, threshold: cp.Config.ConfidenceThreshold})
		}
	}
	return m
}

// ConfiguredProvider pairs a Provider implementation with the
// configuration block governing its enable flag and threshold.
type ConfiguredProvider struct {
	Provider Provider
	Config   config.ProviderConfig
}

// Lookup runs q against each enabled provider in order, returning the
// first accepted result.
func (m *Manager) Lookup(ctx context.Context, q Query) (*Result, error) {
	for _, sp := range m.providers {
		candidates, err := sp.provider.Search(ctx, q)
		if err != nil {
			if m.log != nil {
				m.log.Warn("-", "enrichment provider %s search failed: %v", sp.provider.Name(), err)
			}
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		best, score := bestCandidate(q, candidates)
		if score < sp.threshold {
			if m.log != nil {
				m.log.Debug("-", "enrichment provider %s: best candidate scored %.2f, below threshold %.2f", sp.provider.Name(), score, sp.threshold)
			}
			continue
		}

		release, err := sp.provider.GetRelease(ctx, best.ID)
		if err != nil || release == nil {
			if m.log != nil {
				m.log.Warn("-", "enrichment provider %s: GetRelease(%s) failed: %v", sp.provider.Name(), best.ID, err)
			}
			continue
		}

		return &Result{Provider: sp.provider.Name(), Release: *release, Confidence: score}, nil
	}
	return nil, fmt.Errorf("%w: no provider returned an accepted candidate", xerr.EnrichmentUnavailable)
}

func bestCandidate(q Query, candidates []Candidate) (Candidate, float64) {
	var best Candidate
	var bestScore float64
	for i, c := range candidates {
		score := Score(q, c)
		if i == 0 || score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}
