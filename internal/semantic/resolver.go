// Package semantic calls the Anthropic API for the decisions rule-based
// matching cannot make. It resolves unfamiliar model names and option
// tokens, and it scores assembled specs against the price list line they
// came from.
package semantic

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// ErrNoMatch is returned when the resolver cannot place the input with
// any plausibility. Callers fall back to their miss handling rather than
// treating it as an infrastructure failure.
var ErrNoMatch = eris.New("semantic: no plausible match")

// MatchQuery describes one price list entry to place in the catalog.
type MatchQuery struct {
	Brand      string
	ModelName  string
	Package    string
	ModelYear  int
	Candidates []string
}

// BaseModelMatch is a resolved model family with the resolver's own
// confidence in the placement.
type BaseModelMatch struct {
	Family     string
	Confidence float64
	Reasoning  string
}

// ModifierQuery describes one option token the registry did not know.
type ModifierQuery struct {
	Brand       string
	Token       string
	ModelFamily string
	ModelYear   int
}

// ModifierResolution is the externally resolved meaning of an option
// token.
type ModifierResolution struct {
	Category   model.ModifierCategory
	Deltas     []model.FieldDelta
	Confidence float64
}

// Resolver answers the semantic questions the reconciliation engine
// cannot settle deterministically. Implementations must be safe for
// concurrent use; the engine calls them from parallel row workers.
type Resolver interface {
	MatchBaseModel(ctx context.Context, q MatchQuery) (*BaseModelMatch, error)
	ResolveModifier(ctx context.Context, q ModifierQuery) (*ModifierResolution, error)
	CheckConsistency(ctx context.Context, spec model.SpecTree, rowText string) (float64, error)
}
