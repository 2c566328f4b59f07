package prompt

import (
	"fmt"
	"strings"

	"github.com/BaSui01/meshflow/types"
)

// materialCues introduce an explicit material request. Only cued
// mentions are validated; bare nouns stay with the keyword extractor.
var materialCues = []string{
	"made of ",
	"made from ",
	"made out of ",
	"crafted from ",
	"built from ",
}

// materialQualifiers are adjectives that commonly precede a material
// word and carry no material meaning of their own.
var materialQualifiers = map[string]struct{}{
	"solid": {}, "dark": {}, "light": {}, "polished": {},
	"brushed": {}, "natural": {}, "reclaimed": {}, "pure": {},
	"a": {}, "an": {}, "the": {},
}

// ValidateStrict gates serve-mode prompts: the asset type must be in
// the catalog, and explicitly requested materials must map to a known
// family. The generate CLI skips this gate and lets the LLM classifier
// decide.
func (a *Analyzer) ValidateStrict(description string) *types.Error {
	analysis := a.Analyze(description)
	if analysis.AssetType == "" {
		return types.NewError(types.ErrUnsupportedAsset,
			"no supported asset type found in prompt")
	}
	if m := UnknownMaterial(description); m != "" {
		return types.NewError(types.ErrUnsupportedMaterial,
			fmt.Sprintf("material %q is not supported", m))
	}
	return nil
}

// UnknownMaterial returns the first explicitly requested material that
// is outside the catalog, or "" when every request maps to a known
// family.
func UnknownMaterial(description string) string {
	lower := strings.ToLower(description)
	for _, cue := range materialCues {
		rest := lower
		for {
			i := strings.Index(rest, cue)
			if i < 0 {
				break
			}
			rest = rest[i+len(cue):]
			if word := firstMaterialWord(rest); word != "" && !knownMaterialWord(word) {
				return word
			}
		}
	}
	return ""
}

// firstMaterialWord picks the first non-qualifier token after a cue.
func firstMaterialWord(s string) string {
	for _, word := range strings.Fields(s) {
		word = strings.Trim(word, ".,;:!?")
		if word == "" {
			continue
		}
		if _, qualifier := materialQualifiers[word]; qualifier {
			continue
		}
		return word
	}
	return ""
}

func knownMaterialWord(word string) bool {
	for _, keywords := range materialKeywords {
		for _, kw := range keywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}
