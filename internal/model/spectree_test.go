package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecTree_DeepCopyIsIndependent(t *testing.T) {
	orig := SpecTree{
		"engine":   map[string]any{"displacement_cc": 599},
		"features": []any{"heated grips"},
	}
	cp := orig.DeepCopy()

	cp.SetPath("engine.displacement_cc", 849)
	cp.MergePath("features", "1+1 seat")

	v, ok := orig.GetPath("engine.displacement_cc")
	require.True(t, ok)
	assert.Equal(t, 599, v)
	feats, _ := orig.GetPath("features")
	assert.Len(t, feats, 1)
}

func TestSpecTree_SetPathCreatesIntermediates(t *testing.T) {
	tree := SpecTree{}
	tree.SetPath("suspension.rear.travel_mm", 267)

	v, ok := tree.GetPath("suspension.rear.travel_mm")
	require.True(t, ok)
	assert.Equal(t, 267, v)

	_, ok = tree.GetPath("suspension.front")
	assert.False(t, ok)
}

func TestSpecTree_GetPathMissing(t *testing.T) {
	tree := SpecTree{"track": map[string]any{"length_mm": 3968}}

	_, ok := tree.GetPath("track.width_mm")
	assert.False(t, ok)

	// Descending through a scalar is a miss, not a panic.
	_, ok = tree.GetPath("track.length_mm.unit")
	assert.False(t, ok)
}

func TestSpecTree_MergePathPromotesScalar(t *testing.T) {
	tree := SpecTree{"features": "heated grips"}
	tree.MergePath("features", "LinQ rack")

	v, ok := tree.GetPath("features")
	require.True(t, ok)
	assert.Equal(t, []any{"heated grips", "LinQ rack"}, v)
}

func TestSpecTree_MergePathCreatesList(t *testing.T) {
	tree := SpecTree{}
	tree.MergePath("accessories", "tunnel bag")

	v, _ := tree.GetPath("accessories")
	assert.Equal(t, []any{"tunnel bag"}, v)
}

func TestSpecTree_MergePathAppendsSlice(t *testing.T) {
	tree := SpecTree{"features": []any{"a"}}
	tree.MergePath("features", []any{"b", "c"})

	v, _ := tree.GetPath("features")
	assert.Equal(t, []any{"a", "b", "c"}, v)
}

func TestSpecTree_Flatten(t *testing.T) {
	tree := SpecTree{
		"brand": "Lynx",
		"engine": map[string]any{
			"displacement_cc": 599,
			"type":            "2-stroke",
		},
		"features": []any{"heated grips"},
	}

	flat := tree.Flatten()
	assert.Equal(t, "Lynx", flat["brand"])
	assert.Equal(t, 599, flat["engine.displacement_cc"])
	assert.Equal(t, "2-stroke", flat["engine.type"])
	assert.Equal(t, []any{"heated grips"}, flat["features"])
	assert.Len(t, flat, 4)
}

func TestSpecTree_DeletePath(t *testing.T) {
	tree := SpecTree{"engine": map[string]any{"displacement_cc": 599, "type": "2-stroke"}}
	tree.DeletePath("engine.type")

	_, ok := tree.GetPath("engine.type")
	assert.False(t, ok)
	_, ok = tree.GetPath("engine.displacement_cc")
	assert.True(t, ok)
}
