// Package engine reconciles price list rows into validated product
// records. Each row walks five stages: base model lookup, spec
// inheritance, variant selection, option modifier resolution and
// confidence validation. Every decision taken along the way lands in
// the record's audit trail.
package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/config"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/registry"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
)

// Engine assembles final product records from price list rows using the
// base model catalog, the option modifier registry and the semantic
// resolver. It is safe for concurrent use; all shared collaborators are
// read-only from the engine's side.
type Engine struct {
	catalog  catalog.Catalog
	registry registry.Registry
	resolver semantic.Resolver
	fields   *model.SpecFieldRegistry
	cfg      config.EngineConfig
}

// New creates an Engine. Zero-valued thresholds, penalties and weights
// fall back to the shipped defaults so callers can pass a partial
// config.
func New(cat catalog.Catalog, reg registry.Registry, res semantic.Resolver, fields *model.SpecFieldRegistry, cfg config.EngineConfig) *Engine {
	if cfg.AutoAcceptThreshold <= 0 {
		cfg.AutoAcceptThreshold = 0.95
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.80
	}
	if cfg.SemanticMatchFloor <= 0 {
		cfg.SemanticMatchFloor = 0.70
	}
	if cfg.ExternalPenalty <= 0 {
		cfg.ExternalPenalty = 0.05
	}
	if cfg.BusinessRulePenalty <= 0 {
		cfg.BusinessRulePenalty = 0.15
	}
	if cfg.Weights.Tech+cfg.Weights.Business+cfg.Weights.Semantic <= 0 {
		cfg.Weights = config.ScoreWeights{Tech: 0.3, Business: 0.3, Semantic: 0.4}
	}
	if fields == nil {
		fields = model.NewSpecFieldRegistry(model.DefaultSpecFields())
	}
	return &Engine{
		catalog:  cat,
		registry: reg,
		resolver: res,
		fields:   fields,
		cfg:      cfg,
	}
}

// Reconcile runs all five stages for one row. A nil error with a failed
// record means the row itself could not be reconciled; a non-nil error
// means a collaborator is unavailable and the whole batch should stop.
func (e *Engine) Reconcile(ctx context.Context, row model.PriceListRow) (*model.FinalProductRecord, error) {
	if err := row.Validate(); err != nil {
		return nil, eris.Wrap(err, "engine: invalid row")
	}

	log := zap.L().With(
		zap.String("brand", row.Brand),
		zap.String("model_code", row.ModelCode),
		zap.Int("model_year", row.ModelYear),
	)

	rec := &model.FinalProductRecord{
		ID:               model.RecordID(row),
		Row:              row,
		Brand:            row.Brand,
		ModelYear:        row.ModelYear,
		ValidationStatus: model.StatusPending,
	}

	lookup, err := e.lookupBaseModel(ctx, row)
	if err != nil {
		return nil, err
	}
	rec.LookupKey = lookup.key

	// An unmatched base model is fatal for the row: later stages have
	// nothing to build on, so the record fails with this single audit
	// entry.
	if lookup.template == nil {
		rec.ValidationStatus = model.StatusFailed
		rec.FailureReason = "no_base_model_match"
		rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
			Stage:    model.StageLookup,
			Decision: "unmatched",
			Inputs:   map[string]any{"key": lookup.key},
		})
		log.Warn("engine: no base model match", zap.String("key", lookup.key))
		return rec, nil
	}

	inputs := map[string]any{"key": lookup.key}
	if lookup.method == "semantic_match" {
		inputs["model_family"] = lookup.template.ModelFamily
	}
	rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
		Stage:                  model.StageLookup,
		Decision:               lookup.method,
		Inputs:                 inputs,
		ConfidenceContribution: lookup.confidence,
	})

	working := e.inherit(rec, lookup.template)
	e.selectVariants(rec, working, row)
	if err := e.applyModifiers(ctx, rec, row); err != nil {
		return nil, err
	}
	e.validate(ctx, rec)

	log.Info("engine: row reconciled",
		zap.String("status", string(rec.ValidationStatus)),
		zap.Float64("confidence", rec.Scores.Final),
	)
	return rec, nil
}
