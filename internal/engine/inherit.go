package engine

import "github.com/borealmotors/reconcile-cli/internal/model"

// inherit copies the template's platform attributes onto the record.
// The working copy is returned so variant selection can consume its
// option sets; templates are shared across concurrent rows, so nothing
// from the catalog may be referenced directly.
func (e *Engine) inherit(rec *model.FinalProductRecord, tmpl *model.BaseModelTemplate) *model.BaseModelTemplate {
	working := tmpl.DeepCopy()
	if working.Platform == nil {
		working.Platform = make(model.SpecTree)
	}
	rec.ModelFamily = working.ModelFamily
	rec.Spec = working.Platform
	rec.AuditTrail = append(rec.AuditTrail, model.AuditEntry{
		Stage:    model.StageInherit,
		Decision: "inherited",
		Inputs: map[string]any{
			"model_family":    working.ModelFamily,
			"platform_fields": len(working.Platform.Flatten()),
		},
		ConfidenceContribution: 1.0,
	})
	return working
}
