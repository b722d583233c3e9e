package fixture

import (
	"testing"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapPinRefs(t *testing.T) {
	expected := map[string]*RepoState{
		"meta": {
			Refs: map[string]string{
				"master": "c2",
			},
			Submodules: map[string]*RepoState{
				"lib": {
					Refs: map[string]string{
						"master":               "s2",
						models.PinRef("s1"):    "s1",
						models.PinRef("s2"):    "s2",
						models.PinRef("other"): "other",
					},
				},
			},
		},
	}

	reverse := map[string]string{
		"s1": "f1f1f1",
		"s2": "f2f2f2",
		"c2": "aaaaaa", // mapped but never used in a pin name
	}

	got := RemapPinRefs(expected, reverse)

	lib := got["meta"].Submodules["lib"]
	require.NotNil(t, lib)

	// Pin names are rewritten to physical IDs; the values stay logical.
	assert.Equal(t, "s1", lib.Refs[models.PinRef("f1f1f1")])
	assert.Equal(t, "s2", lib.Refs[models.PinRef("f2f2f2")])

	// A pin with no mapping keeps its logical name.
	assert.Equal(t, "other", lib.Refs[models.PinRef("other")])

	// Non-pin refs are untouched, even when their target has a mapping.
	assert.Equal(t, "s2", lib.Refs["master"])
	assert.Equal(t, "c2", got["meta"].Refs["master"])

	// The input was not modified.
	assert.Contains(t, expected["meta"].Submodules["lib"].Refs, models.PinRef("s1"))
	assert.NotContains(t, expected["meta"].Submodules["lib"].Refs, models.PinRef("f1f1f1"))
}

func TestRemapPinRefs_Nil(t *testing.T) {
	assert.Nil(t, RemapPinRefs(nil, map[string]string{"a": "b"}))

	got := RemapPinRefs(map[string]*RepoState{"meta": nil}, nil)
	require.Contains(t, got, "meta")
	assert.Nil(t, got["meta"])
}

func TestRepoStateClone(t *testing.T) {
	orig := &RepoState{
		Refs: map[string]string{"master": "c1"},
		Submodules: map[string]*RepoState{
			"lib": {Refs: map[string]string{"master": "s1"}},
		},
	}

	clone := orig.Clone()
	clone.Refs["master"] = "c2"
	clone.Submodules["lib"].Refs["master"] = "s2"

	assert.Equal(t, "c1", orig.Refs["master"])
	assert.Equal(t, "s1", orig.Submodules["lib"].Refs["master"])
}
