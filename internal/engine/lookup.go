package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
)

// Confidence recorded for a normalized-key catalog hit. Semantic
// fallback matches carry the resolver's own confidence instead.
const exactLookupConfidence = 0.98

type lookupResult struct {
	template   *model.BaseModelTemplate
	method     string
	confidence float64
	key        string
}

// lookupBaseModel finds the template for a row: exact normalized key
// first, semantic matching against the brand's model families as the
// fallback. A nil template with a nil error means the row is
// unmatched; a non-nil error means the catalog itself is unavailable.
func (e *Engine) lookupBaseModel(ctx context.Context, row model.PriceListRow) (*lookupResult, error) {
	key := catalog.LookupKey(row.Brand, row.ModelName, row.Package, row.ModelYear)
	res := &lookupResult{key: key}

	tmpl, err := e.catalog.GetBaseModel(ctx, key)
	if err == nil {
		res.template = tmpl
		res.method = "exact_key"
		res.confidence = exactLookupConfidence
		return res, nil
	}
	if !eris.Is(err, catalog.ErrNotFound) {
		return nil, eris.Wrapf(err, "engine: catalog lookup %s", key)
	}

	candidates, err := e.catalog.ListCandidates(ctx, row.Brand)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: list candidates for %s", row.Brand)
	}
	if len(candidates) == 0 {
		return res, nil
	}

	match, err := e.resolver.MatchBaseModel(ctx, semantic.MatchQuery{
		Brand:      row.Brand,
		ModelName:  row.ModelName,
		Package:    row.Package,
		ModelYear:  row.ModelYear,
		Candidates: candidates,
	})
	if err != nil {
		// Resolver trouble looks like a miss from the row's point of
		// view. Other rows keep going.
		if !eris.Is(err, semantic.ErrNoMatch) {
			zap.L().Warn("engine: semantic match failed",
				zap.String("model_name", row.ModelName),
				zap.Error(err),
			)
		}
		return res, nil
	}
	if match.Confidence < e.cfg.SemanticMatchFloor {
		zap.L().Warn("engine: semantic match below floor",
			zap.String("model_name", row.ModelName),
			zap.String("family", match.Family),
			zap.Float64("confidence", match.Confidence),
			zap.Float64("floor", e.cfg.SemanticMatchFloor),
		)
		return res, nil
	}

	tmpl, err = e.catalog.GetBaseModel(ctx, catalog.LookupKey(row.Brand, match.Family, "", row.ModelYear))
	if eris.Is(err, catalog.ErrNotFound) {
		zap.L().Warn("engine: semantic match names unknown family",
			zap.String("model_name", row.ModelName),
			zap.String("family", match.Family),
		)
		return res, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "engine: catalog lookup family %s", match.Family)
	}

	res.template = tmpl
	res.method = "semantic_match"
	res.confidence = match.Confidence
	return res, nil
}
