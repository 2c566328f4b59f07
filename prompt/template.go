package prompt

import (
	"fmt"
	"strings"
)

// TemplateInput fills a description template.
type TemplateInput struct {
	Style     string
	Materials []string
	Size      string
	Features  []string
	Details   string
}

var assetTemplates = map[string]string{
	"chair":  "Create a %s chair with:\n- Material: %s\n- Size: %s\n- Features: %s\n- Additional details: %s",
	"table":  "Generate a %s table with:\n- Material: %s\n- Size: %s\n- Features: %s\n- Additional details: %s",
	"lamp":   "Make a %s lamp with:\n- Material: %s\n- Size: %s\n- Features: %s\n- Additional details: %s",
	"window": "Create a %s window with:\n- Material: %s\n- Size: %s\n- Features: %s\n- Additional details: %s",
}

// Format renders a structured description for the given asset type.
// Unknown asset types get the chair template shape with the type inlined.
func Format(assetType string, in TemplateInput) string {
	if in.Style == "" {
		in.Style = defaultStyle
	}
	if len(in.Materials) == 0 {
		in.Materials = []string{defaultMaterial}
	}
	if in.Size == "" {
		in.Size = defaultSize
	}
	features := "none"
	if len(in.Features) > 0 {
		features = strings.Join(in.Features, ", ")
	}
	details := in.Details
	if details == "" {
		details = "none"
	}

	tpl, ok := assetTemplates[assetType]
	if !ok {
		tpl = "Create a %s " + strings.ReplaceAll(assetType, "_", " ") +
			" with:\n- Material: %s\n- Size: %s\n- Features: %s\n- Additional details: %s"
	}
	return fmt.Sprintf(tpl, in.Style, strings.Join(in.Materials, ", "), in.Size, features, details)
}
