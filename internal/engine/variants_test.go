package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borealmotors/reconcile-cli/internal/catalog"
	"github.com/borealmotors/reconcile-cli/internal/model"
	"github.com/borealmotors/reconcile-cli/internal/registry"
)

func TestMatchOptions_ExactWinsFirst(t *testing.T) {
	opts := []model.Option{
		{Token: "600R E-TEC"},
		{Token: "600R E-TEC SHOT"},
	}

	m := matchOptions("600r e-tec", opts)
	assert.Equal(t, methodExact, m.method)
	assert.Equal(t, []int{0}, m.indexes)
}

func TestMatchOptions_SubstringFallback(t *testing.T) {
	opts := []model.Option{
		{Token: "129in"},
		{Token: "137in"},
	}

	m := matchOptions("129in 3300mm", opts)
	assert.Equal(t, methodSubstring, m.method)
	assert.Equal(t, []int{0}, m.indexes)
}

func TestMatchOptions_NumericFallback(t *testing.T) {
	opts := []model.Option{
		{Token: "129in 3300mm"},
		{Token: "137in 3500mm"},
	}

	m := matchOptions("track 3500", opts)
	assert.Equal(t, methodNumeric, m.method)
	assert.Equal(t, []int{1}, m.indexes)
}

func TestMatchOptions_DecimalCommaEqualsDot(t *testing.T) {
	opts := []model.Option{
		{Token: "Ripsaw 1,5in"},
		{Token: "Ice Ripper 1,25in"},
	}

	m := matchOptions("1.5in lug", opts)
	assert.Equal(t, methodNumeric, m.method)
	assert.Equal(t, []int{0}, m.indexes)
}

func TestMatchOptions_AmbiguousKeepsDeclarationOrder(t *testing.T) {
	opts := []model.Option{
		{Token: "600R E-TEC"},
		{Token: "600 EFI"},
	}

	m := matchOptions("600", opts)
	assert.Equal(t, methodSubstring, m.method)
	assert.Equal(t, []int{0, 1}, m.indexes)
}

func TestMatchOptions_NoMatch(t *testing.T) {
	opts := []model.Option{
		{Token: "850 E-TEC"},
		{Token: "900 ACE Turbo R"},
	}

	m := matchOptions("V-800", opts)
	assert.Empty(t, m.indexes)
}

func TestMatchOptions_EmptyTokenNeverMatches(t *testing.T) {
	opts := []model.Option{
		{Token: "850 E-TEC"},
	}

	assert.Empty(t, matchOptions("", opts).indexes)
	assert.Empty(t, matchOptions("  ---  ", opts).indexes)
}

func TestMatchOptions_SkipsBlankOptionTokens(t *testing.T) {
	opts := []model.Option{
		{Token: ""},
		{Token: "850 E-TEC"},
	}

	m := matchOptions("850 E-TEC", opts)
	assert.Equal(t, methodExact, m.method)
	assert.Equal(t, []int{1}, m.indexes)
}

func TestSelectVariants_FlattensMatchedOptions(t *testing.T) {
	eng := newTestEngine(catalog.NewMemoryCatalog(), registry.NewMemoryRegistry(), new(mockResolver))

	tmpl := raveTemplate()
	rec := &model.FinalProductRecord{}
	working := eng.inherit(rec, &tmpl)
	eng.selectVariants(rec, working, raveRow())

	engineType, ok := rec.Spec.GetPath("engine.type")
	require.True(t, ok)
	assert.Equal(t, "600R E-TEC", engineType)
	length, ok := rec.Spec.GetPath("track.length_mm")
	require.True(t, ok)
	assert.Equal(t, 3300, length)
	assert.Empty(t, rec.UnresolvedAxes)

	entries := auditEntries(rec, model.StageVariants)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "matched", entry.Decision)
		assert.InDelta(t, 1.0, entry.ConfidenceContribution, 1e-9)
	}
}

func TestSelectVariants_UnmatchedTokenLeavesAxisUnresolved(t *testing.T) {
	eng := newTestEngine(catalog.NewMemoryCatalog(), registry.NewMemoryRegistry(), new(mockResolver))

	tmpl := raveTemplate()
	rec := &model.FinalProductRecord{}
	working := eng.inherit(rec, &tmpl)

	row := raveRow()
	row.EngineToken = "V-800"
	eng.selectVariants(rec, working, row)

	assert.Equal(t, []model.Axis{model.AxisEngine}, rec.UnresolvedAxes)
	_, ok := rec.Spec.GetPath("engine")
	assert.False(t, ok)

	entries := auditEntries(rec, model.StageVariants)
	require.Len(t, entries, 2)
	assert.Equal(t, "unresolved", entries[0].Decision)
	assert.Zero(t, entries[0].ConfidenceContribution)
	assert.Equal(t, "matched", entries[1].Decision)
}

func TestSelectVariants_MissingTokenLeavesAxisUnresolved(t *testing.T) {
	eng := newTestEngine(catalog.NewMemoryCatalog(), registry.NewMemoryRegistry(), new(mockResolver))

	tmpl := raveTemplate()
	rec := &model.FinalProductRecord{}
	working := eng.inherit(rec, &tmpl)

	row := raveRow()
	row.TrackToken = ""
	eng.selectVariants(rec, working, row)

	assert.Equal(t, []model.Axis{model.AxisTrack}, rec.UnresolvedAxes)
	_, ok := rec.Spec.GetPath("track")
	assert.False(t, ok)
}

func TestSelectVariants_AmbiguousTakesFirstDeclared(t *testing.T) {
	eng := newTestEngine(catalog.NewMemoryCatalog(), registry.NewMemoryRegistry(), new(mockResolver))

	tmpl := raveTemplate()
	tmpl.OptionSets[model.AxisEngine] = []model.Option{
		{Token: "600R E-TEC", Attrs: model.SpecTree{"displacement_cc": 599}},
		{Token: "600 EFI", Attrs: model.SpecTree{"displacement_cc": 599}},
	}
	rec := &model.FinalProductRecord{}
	working := eng.inherit(rec, &tmpl)

	row := raveRow()
	row.EngineToken = "600"
	eng.selectVariants(rec, working, row)

	entries := auditEntries(rec, model.StageVariants)
	require.NotEmpty(t, entries)
	assert.Equal(t, "ambiguous", entries[0].Decision)
	assert.Equal(t, "600R E-TEC", entries[0].Inputs["option"])
	assert.Equal(t, 2, entries[0].Inputs["candidates"])
	assert.InDelta(t, 0.7, entries[0].ConfidenceContribution, 1e-9)
}

func TestSelectVariants_SkipsUndeclaredAxesWithoutTokens(t *testing.T) {
	eng := newTestEngine(catalog.NewMemoryCatalog(), registry.NewMemoryRegistry(), new(mockResolver))

	tmpl := raveTemplate()
	rec := &model.FinalProductRecord{}
	working := eng.inherit(rec, &tmpl)
	eng.selectVariants(rec, working, raveRow())

	// Starter, display and color declare no options and the row carries
	// no tokens for them, so they produce neither audit entries nor
	// unresolved warnings.
	entries := auditEntries(rec, model.StageVariants)
	assert.Len(t, entries, 2)
	assert.Empty(t, rec.UnresolvedAxes)
}

func TestSelectVariants_DeterministicAcrossRuns(t *testing.T) {
	eng := newTestEngine(catalog.NewMemoryCatalog(), registry.NewMemoryRegistry(), new(mockResolver))

	run := func() *model.FinalProductRecord {
		tmpl := raveTemplate()
		rec := &model.FinalProductRecord{}
		working := eng.inherit(rec, &tmpl)
		eng.selectVariants(rec, working, raveRow())
		return rec
	}

	first := run()
	second := run()
	assert.Equal(t, first.AuditTrail, second.AuditTrail)
	assert.Equal(t, first.Spec, second.Spec)
}
