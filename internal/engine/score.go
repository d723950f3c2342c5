package engine

import (
	"github.com/borealmotors/reconcile-cli/internal/config"
	"github.com/borealmotors/reconcile-cli/internal/model"
)

// CombineScores folds the three check scores into the final confidence
// using the configured weights. The combination is a plain weighted
// average, so the order the checks ran in never affects the result.
func CombineScores(w config.ScoreWeights, tech, business, semantic float64) float64 {
	total := w.Tech + w.Business + w.Semantic
	if total <= 0 {
		w = config.ScoreWeights{Tech: 0.3, Business: 0.3, Semantic: 0.4}
		total = 1.0
	}
	return (w.Tech*tech + w.Business*business + w.Semantic*semantic) / total
}

// decide maps a final score onto a validation status. Auto-acceptance
// requires both the threshold and a structurally clean record, and a
// record is passed exactly when it is auto-accepted.
func decide(cfg config.EngineConfig, final float64, hardViolation bool) (model.ValidationStatus, bool) {
	if hardViolation {
		return model.StatusFailed, false
	}
	switch {
	case final >= cfg.AutoAcceptThreshold:
		return model.StatusPassed, true
	case final >= cfg.ReviewThreshold:
		return model.StatusRequiresReview, false
	default:
		return model.StatusFailed, false
	}
}
