package engine

import (
	"github.com/shopspring/decimal"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/config"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/registry"
	"github.com/borealmotors/reconcile-cli/internal/semantic"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		AutoAcceptThreshold: 0.95,
		ReviewThreshold:     0.80,
		SemanticMatchFloor:  0.70,
		ExternalPenalty:     0.05,
		BusinessRulePenalty: 0.15,
		Weights:             config.ScoreWeights{Tech: 0.3, Business: 0.3, Semantic: 0.4},
	}
}

func newTestEngine(cat catalog.Catalog, reg registry.Registry, res semantic.Resolver) *Engine {
	return New(cat, reg, res, nil, testEngineConfig())
}

// raveTemplate is a 2026 Lynx Rave RE catalog entry with two engine and
// two track options.
func raveTemplate() model.BaseModelTemplate {
	return model.BaseModelTemplate{
		Brand:       "Lynx",
		ModelFamily: "Rave RE",
		ModelYear:   2026,
		Platform: model.SpecTree{
			"category":      "sport",
			"dry_weight_kg": 194,
			"fuel_tank_l":   37.1,
			"chassis":       model.SpecTree{"type": "Radien"},
			"suspension": model.SpecTree{
				"front": "LFS+",
				"rear":  "PPS 3300",
			},
		},
		OptionSets: map[model.Axis][]model.Option{
			model.AxisEngine: {
				{Token: "600R E-TEC", Attrs: model.SpecTree{
					"type":            "600R E-TEC",
					"displacement_cc": 599,
					"cylinders":       2,
				}},
				{Token: "850 E-TEC", Attrs: model.SpecTree{
					"type":            "850 E-TEC",
					"displacement_cc": 849,
					"cylinders":       2,
				}},
			},
			model.AxisTrack: {
				{Token: "129in", Attrs: model.SpecTree{
					"length_mm":  3300,
					"width_mm":   381,
					"profile_mm": 38,
				}},
				{Token: "137in", Attrs: model.SpecTree{
					"length_mm":  3500,
					"width_mm":   381,
					"profile_mm": 44,
				}},
			},
		},
	}
}

// raveRow is the price list line the raveTemplate resolves exactly.
func raveRow() model.PriceListRow {
	return model.PriceListRow{
		Brand:       "Lynx",
		ModelYear:   2026,
		ModelCode:   "LTTA",
		ModelName:   "Rave",
		Package:     "RE",
		EngineToken: "600R E-TEC",
		TrackToken:  "129in 3300mm",
		Price:       decimal.NewFromInt(189900),
		Currency:    "SEK",
		Market:      "SE",
	}
}

func auditEntries(rec *model.FinalProductRecord, stage model.Stage) []model.AuditEntry {
	var entries []model.AuditEntry
	for _, e := range rec.AuditTrail {
		if e.Stage == stage {
			entries = append(entries, e)
		}
	}
	return entries
}
