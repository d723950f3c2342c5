package registry

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/store"
)

// PromotionPolicy gates which externally resolved modifiers may enter
// the registry.
type PromotionPolicy struct {
	MinConfidence float64
	MinSightings  int
}

// Candidate is one externally resolved modifier observed across passed
// records, with the outcome of its promotion attempt.
type Candidate struct {
	Brand      string
	Name       string
	Category   model.ModifierCategory
	Deltas     []model.FieldDelta
	Confidence float64
	Sightings  int
	Promoted   bool
	Reason     string

	bestRecordID string
}

// Promoter scans reconciled records for external modifier resolutions
// and promotes the ones that satisfy the policy. External resolutions
// are never written to the registry during reconciliation itself; this
// is the only path in.
type Promoter struct {
	store    store.Store
	registry Registry
	policy   PromotionPolicy
}

// NewPromoter builds a Promoter over the given store and registry.
func NewPromoter(st store.Store, reg Registry, policy PromotionPolicy) *Promoter {
	return &Promoter{store: st, registry: reg, policy: policy}
}

// Run collects candidates from passed records and attempts promotion.
// The returned slice covers every candidate seen, promoted or not,
// sorted by brand then name.
func (p *Promoter) Run(ctx context.Context) ([]Candidate, error) {
	candidates, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Candidate, 0, len(candidates))
	for _, k := range keys {
		c := candidates[k]
		p.decide(ctx, c)
		out = append(out, *c)
	}
	return out, nil
}

// collect pages through passed records and aggregates external
// modifier applications by brand and normalized name.
func (p *Promoter) collect(ctx context.Context) (map[string]*Candidate, error) {
	const pageSize = 500

	candidates := make(map[string]*Candidate)
	for offset := 0; ; offset += pageSize {
		recs, err := p.store.ListRecords(ctx, store.RecordFilter{
			Status: model.StatusPassed,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, eris.Wrap(err, "registry: promote: list records")
		}

		for i := range recs {
			rec := &recs[i]
			for _, app := range rec.Modifiers {
				if app.Method != model.ResolutionExternal {
					continue
				}
				key := entryKey(rec.Brand, app.Token)
				c, ok := candidates[key]
				if !ok {
					c = &Candidate{Brand: rec.Brand, Name: app.Token}
					candidates[key] = c
				}
				c.Sightings++
				// Keep the deltas from the most confident sighting; ties go
				// to the lowest record id so reruns produce identical output.
				if app.Confidence > c.Confidence ||
					(app.Confidence == c.Confidence && (c.bestRecordID == "" || rec.ID < c.bestRecordID)) {
					c.Confidence = app.Confidence
					c.Category = app.Category
					c.Deltas = append([]model.FieldDelta(nil), app.Deltas...)
					c.bestRecordID = rec.ID
				}
			}
		}

		if len(recs) < pageSize {
			return candidates, nil
		}
	}
}

// decide applies the policy to one candidate and upserts it on success.
func (p *Promoter) decide(ctx context.Context, c *Candidate) {
	switch {
	case c.Sightings < p.policy.MinSightings:
		c.Reason = "insufficient_sightings"
	case c.Confidence < p.policy.MinConfidence:
		c.Reason = "below_confidence"
	case len(c.Deltas) == 0:
		c.Reason = "no_deltas"
	default:
		if _, err := p.registry.Lookup(ctx, c.Brand, c.Name); err == nil {
			c.Reason = "already_registered"
			return
		} else if !eris.Is(err, ErrNotFound) {
			c.Reason = "lookup_failed"
			zap.L().Warn("promote: registry lookup failed",
				zap.String("brand", c.Brand),
				zap.String("name", c.Name),
				zap.Error(err),
			)
			return
		}

		err := p.registry.Upsert(ctx, &model.OptionModifierRecord{
			Brand:      c.Brand,
			Name:       c.Name,
			Category:   c.Category,
			Deltas:     c.Deltas,
			Confidence: c.Confidence,
			Source:     model.SourceRegistry,
			Sightings:  c.Sightings,
		})
		if err != nil {
			c.Reason = "upsert_failed"
			zap.L().Warn("promote: registry upsert failed",
				zap.String("brand", c.Brand),
				zap.String("name", c.Name),
				zap.Error(err),
			)
			return
		}
		c.Promoted = true
		c.Reason = "promoted"
		zap.L().Info("promote: modifier promoted to registry",
			zap.String("brand", c.Brand),
			zap.String("name", c.Name),
			zap.Float64("confidence", c.Confidence),
			zap.Int("sightings", c.Sightings),
		)
	}
}
