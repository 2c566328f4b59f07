// Package prompt analyzes natural-language furniture descriptions.
//
// The analyzer is keyword-based and intentionally cheap. It feeds hints to
// the LLM stages and powers the suggestion endpoints; the classifier stage
// remains the authority on whether a description is buildable.
package prompt

import (
	"strings"
)

// Core asset types recognized without a catalog.
var coreAssetTypes = []string{"chair", "table", "lamp", "window"}

// materialKeywords maps canonical material families to trigger words.
var materialKeywords = map[string][]string{
	"wood":    {"wood", "oak", "mahogany", "pine"},
	"metal":   {"metal", "steel", "aluminum", "brass"},
	"glass":   {"glass", "transparent", "clear"},
	"fabric":  {"fabric", "cloth", "textile", "leather"},
	"plastic": {"plastic", "synthetic"},
	"ceramic": {"ceramic", "porcelain", "clay"},
}

// styleNames in matching order. The first hit wins.
var styleNames = []string{"modern", "traditional", "minimalist", "industrial", "rustic", "contemporary"}

// sizeScales maps size words to uniform scale factors.
var sizeScales = map[string]float64{
	"small":  0.8,
	"medium": 1.0,
	"large":  1.2,
}

var sizeNames = []string{"small", "medium", "large"}

var featureNames = []string{"adjustable", "foldable", "stackable", "portable", "customizable"}

const (
	defaultStyle    = "modern"
	defaultSize     = "medium"
	defaultMaterial = "wood"
)

// StyleProfile carries the construction defaults a style implies.
type StyleProfile struct {
	LegStyle string `json:"leg_style"`
	Material string `json:"material"`
}

// styleProfiles maps style words to construction defaults. Styles without
// their own entry share the modern profile.
var styleProfiles = map[string]StyleProfile{
	"modern":      {LegStyle: "straight", Material: "metal"},
	"traditional": {LegStyle: "single_stand", Material: "wood"},
	"minimalist":  {LegStyle: "straight", Material: "metal"},
}

// StyleFor returns the construction profile for a style word.
func StyleFor(style string) StyleProfile {
	if p, ok := styleProfiles[style]; ok {
		return p
	}
	return styleProfiles[defaultStyle]
}

// Analysis is the structured reading of a description.
type Analysis struct {
	// AssetType is the detected furniture type, empty when none matched.
	AssetType string `json:"asset_type,omitempty"`

	// Style defaults to "modern".
	Style string `json:"style"`

	// Materials lists detected material families, defaulting to wood.
	Materials []string `json:"materials"`

	// Size defaults to "medium".
	Size string `json:"size"`

	// SizeScale is the uniform scale factor for the detected size.
	SizeScale float64 `json:"size_scale"`

	// Features lists detected feature words.
	Features []string `json:"features,omitempty"`

	// Profile is the construction profile implied by Style.
	Profile StyleProfile `json:"style_profile"`
}

// Analyzer extracts hints from descriptions. The zero value recognizes the
// core asset types only.
type Analyzer struct {
	assetTypes []string
}

// NewAnalyzer creates an analyzer recognizing the given asset types in
// addition to the core set. Catalog names use underscores ("office_chair");
// they match both as-is and with spaces.
func NewAnalyzer(assetTypes ...string) *Analyzer {
	return &Analyzer{assetTypes: assetTypes}
}

// Analyze reads a description into an Analysis.
func (a *Analyzer) Analyze(description string) Analysis {
	lower := strings.ToLower(description)

	analysis := Analysis{
		AssetType: a.assetType(lower),
		Style:     extractFirst(lower, styleNames, defaultStyle),
		Materials: Materials(description),
		Size:      extractFirst(lower, sizeNames, defaultSize),
		Features:  extractAll(lower, featureNames),
	}
	analysis.SizeScale = sizeScales[analysis.Size]
	analysis.Profile = StyleFor(analysis.Style)
	return analysis
}

// Complete reports whether a description carries enough signal to skip
// clarification: an asset type plus at least one material.
func (a *Analyzer) Complete(description string) bool {
	analysis := a.Analyze(description)
	return analysis.AssetType != "" && len(analysis.Materials) > 0
}

func (a *Analyzer) assetType(lower string) string {
	// Catalog names first: they are more specific ("office_chair" should
	// win over "chair").
	for _, name := range a.assetTypes {
		spaced := strings.ReplaceAll(name, "_", " ")
		if strings.Contains(lower, spaced) || strings.Contains(lower, name) {
			return name
		}
	}
	for _, name := range coreAssetTypes {
		if strings.Contains(lower, name) {
			return name
		}
	}
	return ""
}

// Materials returns the material families mentioned in a description,
// defaulting to wood when none match.
func Materials(description string) []string {
	lower := strings.ToLower(description)
	var found []string
	for _, family := range []string{"wood", "metal", "glass", "fabric", "plastic", "ceramic"} {
		for _, kw := range materialKeywords[family] {
			if strings.Contains(lower, kw) {
				found = append(found, family)
				break
			}
		}
	}
	if len(found) == 0 {
		return []string{defaultMaterial}
	}
	return found
}

func extractFirst(lower string, candidates []string, fallback string) string {
	for _, c := range candidates {
		if strings.Contains(lower, c) {
			return c
		}
	}
	return fallback
}

func extractAll(lower string, candidates []string) []string {
	var found []string
	for _, c := range candidates {
		if strings.Contains(lower, c) {
			found = append(found, c)
		}
	}
	return found
}

// StyleOptions lists the recognized style words.
func StyleOptions() []string {
	out := make([]string, len(styleNames))
	copy(out, styleNames)
	return out
}

// MaterialOptions lists the recognized material families.
func MaterialOptions() []string {
	return []string{"wood", "metal", "glass", "fabric", "plastic", "ceramic"}
}

// SizeOptions lists the recognized size words.
func SizeOptions() []string {
	out := make([]string, len(sizeNames))
	copy(out, sizeNames)
	return out
}

// FeatureOptions lists the recognized feature words.
func FeatureOptions() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}
