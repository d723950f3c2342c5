package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// trackBounds gives the plausible track length in mm per category.
var trackBounds = map[string][2]float64{
	"touring":   {3200, 4000},
	"crossover": {3300, 3800},
	"mountain":  {3700, 4600},
	"trail":     {2900, 3500},
	"sport":     {2900, 3500},
	"utility":   {3300, 4600},
}

// marketCurrency maps ISO market codes to the currency a price list for
// that market is expected to quote.
var marketCurrency = map[string]string{
	"SE": "SEK",
	"FI": "EUR",
	"NO": "NOK",
	"DK": "DKK",
	"DE": "EUR",
	"FR": "EUR",
	"RU": "RUB",
	"US": "USD",
	"CA": "CAD",
}

// priceBounds gives the plausible retail price range for a new
// snowmobile per currency.
var priceBounds = map[string][2]float64{
	"SEK": {60000, 400000},
	"NOK": {60000, 400000},
	"DKK": {45000, 300000},
	"EUR": {6000, 40000},
	"RUB": {600000, 4000000},
	"USD": {6000, 45000},
	"CAD": {6000, 45000},
}

// validate runs the three confidence checks in order and settles the
// record's final score and status. Hard structural violations fail the
// record before the business and semantic checks run.
func (e *Engine) validate(ctx context.Context, rec *model.FinalProductRecord) {
	view := e.fieldView(rec)
	defaulted := e.applyDefaults(rec, view)

	tech, missing, hardViolations := e.techCheck(view)
	rec.Scores.Tech = tech

	techInputs := map[string]any{"mandatory": len(e.fields.Required())}
	if len(defaulted) > 0 {
		techInputs["defaulted"] = defaulted
	}
	if len(missing) > 0 {
		techInputs["missing"] = missing
	}
	if len(hardViolations) > 0 {
		techInputs["hard_violations"] = hardViolations
	}
	rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
		Stage:                  model.StageValidation,
		Decision:               "tech_check",
		Inputs:                 techInputs,
		ConfidenceContribution: tech,
	})

	if len(hardViolations) > 0 {
		rec.HardViolations = hardViolations
		rec.Scores.Final = CombineScores(e.cfg.Weights, tech, 0, 0)
		rec.ValidationStatus = model.StatusFailed
		rec.FailureReason = "structural_violation"
		rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
			Stage:                  model.StageValidation,
			Decision:               "failed",
			ConfidenceContribution: rec.Scores.Final,
		})
		zap.L().Warn("engine: hard structural violation",
			zap.String("model_code", rec.Row.ModelCode),
			zap.Strings("violations", hardViolations),
		)
		return
	}

	business, violations := e.businessCheck(rec, view)
	rec.Scores.Business = business
	businessInputs := map[string]any{}
	if len(violations) > 0 {
		businessInputs["violations"] = violations
	}
	rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
		Stage:                  model.StageValidation,
		Decision:               "business_check",
		Inputs:                 businessInputs,
		ConfidenceContribution: business,
	})

	rec.Scores.Semantic = e.semanticCheck(ctx, rec)

	rec.Scores.Final = CombineScores(e.cfg.Weights, rec.Scores.Tech, rec.Scores.Business, rec.Scores.Semantic)
	status, accepted := decide(e.cfg, rec.Scores.Final, false)
	rec.ValidationStatus = status
	rec.AutoAccepted = accepted

	decision := "failed"
	switch status {
	case model.StatusPassed:
		decision = "auto_accepted"
	case model.StatusRequiresReview:
		decision = "requires_review"
	default:
		rec.FailureReason = "low_confidence"
	}
	rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
		Stage:                  model.StageValidation,
		Decision:               decision,
		ConfidenceContribution: rec.Scores.Final,
	})
}

// fieldView flattens the assembled spec and injects the record-level
// fields the descriptors refer to by bare name.
func (e *Engine) fieldView(rec *model.FinalProductRecord) map[string]any {
	view := rec.Spec.Flatten()
	view["brand"] = rec.Brand
	view["model_year"] = rec.ModelYear
	view["model_code"] = rec.Row.ModelCode
	view["price"] = rec.Row.Price
	return view
}

// recordLevelFields live on the record itself, not in the spec tree.
var recordLevelFields = map[string]struct{}{
	"brand":      {},
	"model_year": {},
	"model_code": {},
	"price":      {},
}

// applyDefaults writes declared field defaults into the spec for paths
// still missing after assembly, returning the defaulted paths in
// descriptor order.
func (e *Engine) applyDefaults(rec *model.FinalProductRecord, view map[string]any) []string {
	var defaulted []string
	for i := range e.fields.Fields {
		f := &e.fields.Fields[i]
		if f.Default == nil {
			continue
		}
		if _, record := recordLevelFields[f.Path]; record {
			continue
		}
		if _, ok := view[f.Path]; ok {
			continue
		}
		rec.Spec.SetPath(f.Path, f.Default)
		view[f.Path] = f.Default
		defaulted = append(defaulted, f.Path)
	}
	return defaulted
}

// techCheck scores mandatory-field completeness and collects hard
// violations. The score is the fraction of mandatory fields present and
// well-typed; an empty descriptor set scores 1.0.
func (e *Engine) techCheck(view map[string]any) (float64, []string, []string) {
	required := e.fields.Required()
	tech := 1.0
	var missing []string
	if len(required) > 0 {
		present := 0
		for _, f := range required {
			if v, ok := view[f.Path]; ok && f.Check(v) {
				present++
				continue
			}
			missing = append(missing, f.Path)
		}
		tech = float64(present) / float64(len(required))
	}

	var hard []string
	for _, f := range e.fields.Hard() {
		v, ok := view[f.Path]
		if !ok {
			hard = append(hard, f.Path+": missing")
			continue
		}
		if !f.Check(v) {
			hard = append(hard, f.Path+": invalid")
		}
	}
	return tech, missing, hard
}

// businessCheck applies the domain plausibility rules. Each violation
// subtracts the configured penalty from 1.0, floored at zero. Rules
// whose inputs are absent are skipped rather than counted against the
// record.
func (e *Engine) businessCheck(rec *model.FinalProductRecord, view map[string]any) (float64, []string) {
	var violations []string

	weight, wok := numericAt(view, "dry_weight_kg")
	disp, dok := numericAt(view, "engine.displacement_cc")
	if wok && dok && disp > 0 {
		ratio := weight / disp
		if ratio < 0.2 || ratio > 0.6 {
			violations = append(violations, fmt.Sprintf("weight/displacement ratio %.2f outside [0.20, 0.60]", ratio))
		}
	}

	length, lok := numericAt(view, "track.length_mm")
	if cat, cok := view["category"].(string); cok && lok {
		if b, known := trackBounds[strings.ToLower(strings.TrimSpace(cat))]; known {
			if length < b[0] || length > b[1] {
				violations = append(violations, fmt.Sprintf("track length %.0fmm implausible for category %s", length, cat))
			}
		}
	}

	market := strings.ToUpper(strings.TrimSpace(rec.Row.Market))
	currency := strings.ToUpper(strings.TrimSpace(rec.Row.Currency))
	if want, known := marketCurrency[market]; known && currency != "" && currency != want {
		violations = append(violations, fmt.Sprintf("currency %s does not match market %s", currency, market))
	}

	if b, known := priceBounds[currency]; known {
		price := rec.Row.Price.InexactFloat64()
		if price < b[0] || price > b[1] {
			violations = append(violations, fmt.Sprintf("price %s %s outside plausible market range", rec.Row.Price, currency))
		}
	}

	business := 1.0 - e.cfg.BusinessRulePenalty*float64(len(violations))
	if business < 0 {
		business = 0
	}
	return business, violations
}

// semanticCheck asks the resolver how well the assembled spec matches
// the original price list line. Resolver failure degrades to a neutral
// score instead of failing the row.
func (e *Engine) semanticCheck(ctx context.Context, rec *model.FinalProductRecord) float64 {
	entry := model.AuditEntry{Stage: model.StageValidation, Decision: "semantic_check"}
	score, err := e.resolver.CheckConsistency(ctx, rec.Spec, rec.Row.Text())
	if err != nil {
		zap.L().Warn("engine: consistency check failed",
			zap.String("model_code", rec.Row.ModelCode),
			zap.Error(err),
		)
		score = 0.5
		entry.Inputs = map[string]any{"error": err.Error()}
	}
	entry.ConfidenceContribution = score
	rec.AuditTrail = append(rec.AuditTrail, entry)
	return score
}

func numericAt(view map[string]any, path string) (float64, bool) {
	v, ok := view[path]
	if !ok {
		return 0, false
	}
	return model.NumericValue(v)
}
