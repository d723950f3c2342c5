package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/registry"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
)

// Confidence recorded when neither the registry nor the external
// resolver can place a token. Neutral-low: the record survives but
// carries the doubt.
const unresolvedModifierConfidence = 0.5

// applyModifiers resolves each option modifier token on the row and
// overlays its field deltas onto the spec. Registry hits carry their
// stored confidence; external resolutions carry the resolver's
// confidence minus the configured penalty. External results are never
// written back to the registry here; promotion is a separate explicit
// step.
func (e *Engine) applyModifiers(ctx context.Context, rec *model.FinalProductRecord, row model.PriceListRow) error {
	tokens := row.ModifierTokens()
	if len(tokens) == 0 {
		return nil
	}

	for _, token := range tokens {
		app, err := e.resolveModifier(ctx, rec, row, token)
		if err != nil {
			return err
		}
		rec.Modifiers = append(rec.Modifiers, *app)

		inputs := map[string]any{"token": token}
		if app.Category != "" {
			inputs["category"] = string(app.Category)
		}
		if len(app.FieldsChanged) > 0 {
			inputs["fields_changed"] = app.FieldsChanged
		}
		rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
			Stage:                  model.StageModifiers,
			Decision:               string(app.Method),
			Inputs:                 inputs,
			ConfidenceContribution: app.Confidence,
		})
	}
	return nil
}

func (e *Engine) resolveModifier(ctx context.Context, rec *model.FinalProductRecord, row model.PriceListRow, token string) (*model.ModifierApplication, error) {
	entry, err := e.registry.Lookup(ctx, row.Brand, token)
	if err == nil {
		return &model.ModifierApplication{
			Token:         token,
			Method:        model.ResolutionRegistry,
			Category:      entry.Category,
			Deltas:        entry.Deltas,
			FieldsChanged: applyDeltas(rec.Spec, entry.Deltas),
			Confidence:    entry.Confidence,
		}, nil
	}
	if !eris.Is(err, registry.ErrNotFound) {
		return nil, eris.Wrapf(err, "engine: modifier lookup %q", token)
	}

	res, err := e.resolver.ResolveModifier(ctx, semantic.ModifierQuery{
		Brand:       row.Brand,
		Token:       token,
		ModelFamily: rec.ModelFamily,
		ModelYear:   row.ModelYear,
	})
	if err != nil {
		zap.L().Warn("engine: modifier unresolved",
			zap.String("brand", row.Brand),
			zap.String("token", token),
			zap.Error(err),
		)
		return &model.ModifierApplication{
			Token:      token,
			Method:     model.ResolutionUnresolved,
			Confidence: unresolvedModifierConfidence,
		}, nil
	}

	confidence := res.Confidence - e.cfg.ExternalPenalty
	if confidence < 0 {
		confidence = 0
	}
	return &model.ModifierApplication{
		Token:         token,
		Method:        model.ResolutionExternal,
		Category:      res.Category,
		Deltas:        res.Deltas,
		FieldsChanged: applyDeltas(rec.Spec, res.Deltas),
		Confidence:    confidence,
	}, nil
}

// applyDeltas lands each field delta on the spec and returns the
// touched paths in delta order.
func applyDeltas(spec model.SpecTree, deltas []model.FieldDelta) []string {
	var changed []string
	for _, d := range deltas {
		if d.Path == "" {
			continue
		}
		switch d.Op {
		case model.OpMerge:
			spec.MergePath(d.Path, d.Value)
		default:
			spec.SetPath(d.Path, d.Value)
		}
		changed = append(changed, d.Path)
	}
	return changed
}
