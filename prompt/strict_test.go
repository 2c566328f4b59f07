package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/meshflow/types"
)

func TestValidateStrict(t *testing.T) {
	a := NewAnalyzer()

	tests := []struct {
		name        string
		description string
		wantCode    types.ErrorCode
	}{
		{
			name:        "known asset and material",
			description: "a modern oak chair",
		},
		{
			name:        "no material mentioned",
			description: "a small table",
		},
		{
			name:        "unknown asset type",
			description: "a floating modern bookshelf",
			wantCode:    types.ErrUnsupportedAsset,
		},
		{
			name:        "unknown material",
			description: "a chair made of titanium",
			wantCode:    types.ErrUnsupportedMaterial,
		},
		{
			name:        "qualified known material",
			description: "a table made of solid oak",
		},
		{
			name:        "qualified unknown material",
			description: "a table made from reclaimed bamboo",
			wantCode:    types.ErrUnsupportedMaterial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.ValidateStrict(tt.description)
			if tt.wantCode == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
		})
	}
}

func TestValidateStrictCatalogAssets(t *testing.T) {
	a := NewAnalyzer("office_chair", "bookshelf")
	assert.Nil(t, a.ValidateStrict("a tall bookshelf in oak"))
	assert.Nil(t, a.ValidateStrict("an office chair"))
}

func TestUnknownMaterial(t *testing.T) {
	assert.Empty(t, UnknownMaterial("a plain wooden chair"))
	assert.Empty(t, UnknownMaterial("a chair made of oak"))
	assert.Empty(t, UnknownMaterial("a chair crafted from brushed steel"))
	assert.Equal(t, "titanium", UnknownMaterial("a chair made of titanium"))
	assert.Equal(t, "concrete", UnknownMaterial("a bench made out of concrete."))
	assert.Empty(t, UnknownMaterial("made of"))
}
