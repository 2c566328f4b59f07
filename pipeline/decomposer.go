package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/structured"
	"github.com/BaSui01/meshflow/types"
)

const decomposerSystemPrompt = `You are a 3D modeling expert specializing in geometric decomposition. Break down objects into their core components, being EXPLICIT about quantities of identical components.

Example 1 - Office Chair:
Input: "A height-adjustable office chair with armrests"
Output: {
    "description": "A height-adjustable seat mounted on a central support column that branches into a five-pronged star-shaped base. Each prong terminates in a caster wheel. The seat is padded with a contoured surface. A curved backrest extends upward from the rear, featuring lumbar support. Two identical adjustable armrests are mounted to the sides.",
    "components": [
        {
            "name": "Seat_Base",
            "quantity": 1,
            "description": "Main padded sitting surface with slight contour",
            "geometric_properties": {
                "shape": "curved rectangular prism",
                "proportions": "width slightly greater than depth"
            }
        },
        {
            "name": "Armrest",
            "quantity": 2,
            "description": "Curved support structures for arms",
            "geometric_properties": {
                "shape": "curved bar",
                "identical": true,
                "mirrored_positions": "left and right of seat"
            }
        },
        {
            "name": "Star_Base_Prong",
            "quantity": 5,
            "description": "Radial support arms with wheels",
            "geometric_properties": {
                "shape": "elongated triangle",
                "identical": true,
                "radial_arrangement": "72 degrees apart"
            }
        }
    ],
    "spatial_relationships": [
        "Seat Base centered on central column",
        "Armrests symmetrically placed on left and right sides",
        "Five identical prongs arranged radially"
    ]
}

REQUIREMENTS:
1. Always specify exact quantities for each component
2. Mark identical components with "identical": true
3. Describe spatial arrangement for multiple components
4. Use precise measurements where possible
5. Specify if components are mirrored, radial, or linearly arranged
6. Group truly identical components together with a quantity
7. Break down nested identical components (e.g., chair legs within chairs)

Provide a similar breakdown for the given object, focusing on:
1. Exact quantities of each component
2. Identification of identical components
3. Precise geometric description
4. Spatial relationships between components
5. Nested identical components

Avoid mentioning colors, materials, or textures unless specifically relevant to the shape.`

// Decomposer breaks a description into named components with quantities.
type Decomposer struct {
	caller *caller
	cfg    config.StageConfig
	logger *zap.Logger
}

// NewDecomposer creates the decomposition stage.
func NewDecomposer(c *caller, cfg config.StageConfig, logger *zap.Logger) *Decomposer {
	return &Decomposer{caller: c, cfg: cfg, logger: logger.With(zap.String("stage", StageDecompose))}
}

// Decompose runs the stage.
func (d *Decomposer) Decompose(ctx context.Context, description string) (types.Decomposition, types.StageUsage, error) {
	start := time.Now()

	req := &llm.ChatRequest{
		Model: d.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: decomposerSystemPrompt + "\nIMPORTANT: Output ONLY valid JSON with no additional text."},
			{Role: llm.RoleUser, Content: description},
		},
		Temperature:    d.cfg.Temperature,
		MaxTokens:      d.cfg.MaxTokens,
		ResponseFormat: llm.JSONObject(),
	}

	resp, err := d.caller.complete(ctx, req)
	if err != nil {
		return types.Decomposition{}, usageFor(StageDecompose, d.cfg.Model, nil, start), err
	}

	decomposition, err := structured.Decode[types.Decomposition](resp.Content())
	usage := usageFor(StageDecompose, d.cfg.Model, resp, start)
	if err != nil {
		d.logger.Debug("unparseable decomposition reply", zap.String("raw", snippet(resp.Content())))
		return types.Decomposition{}, usage,
			types.NewError(types.ErrPlanInvalid, "decomposer returned malformed JSON").
				WithStage(StageDecompose).WithCause(err)
	}
	if len(decomposition.Components) == 0 {
		return types.Decomposition{}, usage,
			types.NewError(types.ErrPlanInvalid, "decomposer produced no components").
				WithStage(StageDecompose)
	}
	for _, comp := range decomposition.Components {
		if comp.Name == "" {
			return types.Decomposition{}, usage,
				types.NewError(types.ErrPlanInvalid, "decomposed component missing name").
					WithStage(StageDecompose)
		}
		if comp.Quantity < 1 {
			return types.Decomposition{}, usage,
				types.NewError(types.ErrPlanInvalid, fmt.Sprintf("component %q has quantity %d", comp.Name, comp.Quantity)).
					WithStage(StageDecompose)
		}
	}

	d.logger.Info("decomposition complete",
		zap.Int("components", len(decomposition.Components)),
		zap.Int("total_quantity", decomposition.TotalQuantity()))
	return decomposition, usage, nil
}
