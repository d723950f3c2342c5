package catalog

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

func raveTemplate() model.BaseModelTemplate {
	return model.BaseModelTemplate{
		Brand:       "Lynx",
		ModelFamily: "Rave RE",
		ModelYear:   2026,
		Platform: model.SpecTree{
			"category":      "sport",
			"dry_weight_kg": 229,
		},
		OptionSets: map[model.Axis][]model.Option{
			model.AxisEngine: {
				{Token: "600R E-TEC", Attrs: model.SpecTree{"displacement_cc": 599}},
				{Token: "850 E-TEC", Attrs: model.SpecTree{"displacement_cc": 849}},
			},
		},
	}
}

func TestMemoryCatalog_GetBaseModel(t *testing.T) {
	cat := NewMemoryCatalog(raveTemplate())

	tmpl, err := cat.GetBaseModel(context.Background(), "LYNX_RAVE_RE_2026")
	require.NoError(t, err)
	assert.Equal(t, "Rave RE", tmpl.ModelFamily)

	_, err = cat.GetBaseModel(context.Background(), "LYNX_RAVE_RE_2031")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestMemoryCatalog_GetReturnsCopy(t *testing.T) {
	cat := NewMemoryCatalog(raveTemplate())

	first, err := cat.GetBaseModel(context.Background(), "LYNX_RAVE_RE_2026")
	require.NoError(t, err)
	first.Platform.SetPath("dry_weight_kg", 999)

	second, err := cat.GetBaseModel(context.Background(), "LYNX_RAVE_RE_2026")
	require.NoError(t, err)
	v, _ := second.Platform.GetPath("dry_weight_kg")
	assert.Equal(t, 229, v)
}

func TestMemoryCatalog_ListCandidates(t *testing.T) {
	xterrain := raveTemplate()
	xterrain.ModelFamily = "Xterrain RE"
	skidoo := raveTemplate()
	skidoo.Brand = "Ski-Doo"
	skidoo.ModelFamily = "Expedition SE"

	cat := NewMemoryCatalog(raveTemplate(), xterrain, skidoo)

	names, err := cat.ListCandidates(context.Background(), "LYNX")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rave RE", "Xterrain RE"}, names)

	names, err = cat.ListCandidates(context.Background(), "ski-doo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Expedition SE"}, names)
}

func TestMemoryCatalog_Upsert(t *testing.T) {
	cat := NewMemoryCatalog()

	tmpl := raveTemplate()
	require.NoError(t, cat.UpsertBaseModel(context.Background(), &tmpl))

	got, err := cat.GetBaseModel(context.Background(), "LYNX_RAVE_RE_2026")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.ModelYear)

	// Upsert replaces.
	tmpl.Platform.SetPath("dry_weight_kg", 231)
	require.NoError(t, cat.UpsertBaseModel(context.Background(), &tmpl))
	got, err = cat.GetBaseModel(context.Background(), "LYNX_RAVE_RE_2026")
	require.NoError(t, err)
	v, _ := got.Platform.GetPath("dry_weight_kg")
	assert.Equal(t, 231, v)

	bad := model.BaseModelTemplate{Brand: "Lynx"}
	assert.Error(t, cat.UpsertBaseModel(context.Background(), &bad))
}
