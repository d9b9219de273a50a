// Package search defines the collaborator contract for looking up resources
// related to a memory-retrieval opportunity.
//
// Only a static implementation ships today (see the static sub-package); a
// real search backend plugs in behind the same interface.
package search

import (
	"context"

	"github.com/MrWong99/gaia/pkg/types"
)

// Provider returns results for a free-text query.
//
// Implementations must be safe for concurrent use. An error means "no results
// this time"; callers degrade to an empty list.
type Provider interface {
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}
