package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name        string
		description string
		want        Analysis
	}{
		{
			name:        "full description",
			description: "a large modern steel chair with leather seat, foldable",
			want: Analysis{
				AssetType: "chair",
				Style:     "modern",
				Materials: []string{"metal", "fabric"},
				Size:      "large",
				SizeScale: 1.2,
				Features:  []string{"foldable"},
				Profile:   StyleProfile{LegStyle: "straight", Material: "metal"},
			},
		},
		{
			name:        "defaults applied",
			description: "a table",
			want: Analysis{
				AssetType: "table",
				Style:     "modern",
				Materials: []string{"wood"},
				Size:      "medium",
				SizeScale: 1.0,
				Profile:   StyleProfile{LegStyle: "straight", Material: "metal"},
			},
		},
		{
			name:        "traditional profile",
			description: "a traditional mahogany table",
			want: Analysis{
				AssetType: "table",
				Style:     "traditional",
				Materials: []string{"wood"},
				Size:      "medium",
				SizeScale: 1.0,
				Profile:   StyleProfile{LegStyle: "single_stand", Material: "wood"},
			},
		},
		{
			name:        "material synonyms",
			description: "small rustic oak table",
			want: Analysis{
				AssetType: "table",
				Style:     "rustic",
				Materials: []string{"wood"},
				Size:      "small",
				SizeScale: 0.8,
				Profile:   StyleProfile{LegStyle: "straight", Material: "metal"},
			},
		},
		{
			name:        "no asset type",
			description: "something nice and transparent",
			want: Analysis{
				Style:     "modern",
				Materials: []string{"glass"},
				Size:      "medium",
				SizeScale: 1.0,
				Profile:   StyleProfile{LegStyle: "straight", Material: "metal"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Analyze(tt.description))
		})
	}
}

func TestAnalyzeCatalogTypes(t *testing.T) {
	a := NewAnalyzer("office_chair", "tv_stand", "chair")

	// Catalog names beat core names and match with spaces.
	got := a.Analyze("a comfy office chair in black leather")
	assert.Equal(t, "office_chair", got.AssetType)

	got = a.Analyze("a walnut tv_stand")
	assert.Equal(t, "tv_stand", got.AssetType)

	got = a.Analyze("a dining chair")
	assert.Equal(t, "chair", got.AssetType)
}

func TestComplete(t *testing.T) {
	a := NewAnalyzer()
	assert.True(t, a.Complete("a wooden chair"))
	// Materials default to wood, so any recognized type is complete.
	assert.True(t, a.Complete("a chair"))
	assert.False(t, a.Complete("a pile of rocks"))
}

func TestMaterialsOrderStable(t *testing.T) {
	got := Materials("glass and steel and pine")
	assert.Equal(t, []string{"wood", "metal", "glass"}, got)
}

func TestOptions(t *testing.T) {
	assert.Contains(t, StyleOptions(), "industrial")
	assert.Contains(t, MaterialOptions(), "ceramic")
	assert.Equal(t, []string{"small", "medium", "large"}, SizeOptions())
	assert.Contains(t, FeatureOptions(), "stackable")
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, StyleProfile{LegStyle: "single_stand", Material: "wood"}, StyleFor("traditional"))
	// Styles without their own profile borrow the modern one.
	assert.Equal(t, StyleFor("modern"), StyleFor("industrial"))
	assert.Equal(t, StyleFor("modern"), StyleFor(""))
}

func TestFormat(t *testing.T) {
	out := Format("chair", TemplateInput{
		Style:     "minimalist",
		Materials: []string{"metal", "glass"},
		Size:      "small",
	})
	assert.Contains(t, out, "Create a minimalist chair")
	assert.Contains(t, out, "Material: metal, glass")
	assert.Contains(t, out, "Size: small")
	assert.Contains(t, out, "Features: none")

	// Unknown types are spelled out with defaults filled.
	out = Format("tv_stand", TemplateInput{})
	assert.Contains(t, out, "tv stand")
	assert.Contains(t, out, "Material: wood")
	assert.Contains(t, out, "Size: medium")
}
