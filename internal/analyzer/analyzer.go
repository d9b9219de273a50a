// Package analyzer detects "opportunities to help" in a slice of conversation
// transcript.
//
// An opportunity is one of three things: an open question nobody present can
// answer, a half-remembered fact or source, or a hypothetical "what if"
// moment. The [Service] asks a language model to classify transcript text and
// returns suggestion cards; the [Client] does the same through a remote
// /analyze-opportunities endpoint.
//
// Analysis never fails from the caller's point of view. Every failure mode
// (no model configured, transport error, timeout, malformed output) is logged
// and degrades to an empty result, so a flaky backend costs at most one
// analysis cycle.
package analyzer

import (
	"context"
	"errors"

	"github.com/MrWong99/gaia/pkg/types"
)

var (
	// ErrUnavailable reports that no language model or credential is
	// configured.
	ErrUnavailable = errors.New("analyzer: no language model configured")

	// ErrSchemaValidation reports model output that does not satisfy the
	// opportunity schema.
	ErrSchemaValidation = errors.New("analyzer: schema validation failed")
)

// Analyzer turns transcript text into opportunity cards. Implementations must
// be safe for concurrent use and must return an empty (possibly nil) slice on
// any failure.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) []types.OpportunityCard
}

// Func adapts an ordinary function to the Analyzer interface.
type Func func(ctx context.Context, transcript string) []types.OpportunityCard

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, transcript string) []types.OpportunityCard {
	return f(ctx, transcript)
}
