// Package static provides a search.Provider that returns a fixed result set
// regardless of the query. It stands in for a real search backend.
package static

import (
	"context"

	"github.com/MrWong99/gaia/pkg/provider/search"
	"github.com/MrWong99/gaia/pkg/types"
)

// DefaultResults is the canned result set served by New.
var DefaultResults = []types.SearchResult{
	{
		Title:   "Understanding Quantum Computing: A Beginner's Guide",
		URL:     "https://example.com/quantum-guide",
		Snippet: "A comprehensive introduction to quantum computing principles, covering qubits, superposition, and quantum algorithms in accessible language.",
	},
	{
		Title:   "The Consciousness Conundrum in AI Systems",
		URL:     "https://example.com/ai-consciousness",
		Snippet: "Recent research explores whether artificial intelligence systems can develop consciousness and what that might mean for the future of AI.",
	},
}

// Provider serves a fixed list of results.
type Provider struct {
	results []types.SearchResult
}

// New returns a Provider serving DefaultResults.
func New() *Provider { return WithResults(DefaultResults) }

// WithResults returns a Provider serving a copy of results.
func WithResults(results []types.SearchResult) *Provider {
	cp := make([]types.SearchResult, len(results))
	copy(cp, results)
	return &Provider{results: cp}
}

// Search returns the configured results; the query is not consulted.
func (p *Provider) Search(ctx context.Context, _ string) ([]types.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]types.SearchResult, len(p.results))
	copy(out, p.results)
	return out, nil
}

var _ search.Provider = (*Provider)(nil)
