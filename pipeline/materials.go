package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/structured"
	"github.com/BaSui01/meshflow/types"
)

const materialsSystemPrompt = `You are a materials expert. Analyze the components and output a JSON with appropriate material assignments for each furniture component.

AVAILABLE MATERIALS:
1. From infinigen.assets.materials.metal.brushed_metal:
   - Used for modern metallic finishes
   - Parameters: scale (float), base_color (optional [r,g,b,1.0]), seed (optional float)
   - Example: scale=1.0, base_color=[0.8, 0.8, 0.8, 1.0], seed=42.0

Output format example:
{
    "Table_Leg_1": {
        "material_path": "infinigen.assets.materials.metal.brushed_metal",
        "material_params": {
            "scale": 1.0,
            "base_color": [0.8, 0.8, 0.8, 1.0],
            "seed": 42.0
        },
        "selection": null,
        "reason": "Modern metallic finish suitable for table support"
    }
}`

// MaterialAssigner attaches material paths and parameters to components.
// The stage is best effort: components come back unmodified when the model
// call or the reply parse fails.
type MaterialAssigner struct {
	caller *caller
	cfg    config.StageConfig
	logger *zap.Logger
}

// NewMaterialAssigner creates the material assignment stage.
func NewMaterialAssigner(c *caller, cfg config.StageConfig, logger *zap.Logger) *MaterialAssigner {
	return &MaterialAssigner{caller: c, cfg: cfg, logger: logger.With(zap.String("stage", StageMaterials))}
}

// Assign annotates each component named in the model reply with its material
// block. Unnamed components keep whatever material they already carry.
func (a *MaterialAssigner) Assign(ctx context.Context, components []types.Component) ([]types.Component, types.StageUsage, error) {
	start := time.Now()

	payload, err := json.Marshal(components)
	if err != nil {
		return components, types.StageUsage{}, err
	}

	req := &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: materialsSystemPrompt},
			{Role: llm.RoleUser, Content: "Please analyze these components and provide a JSON response with material assignments: " + string(payload)},
		},
		Temperature:    a.cfg.Temperature,
		MaxTokens:      a.cfg.MaxTokens,
		ResponseFormat: llm.JSONObject(),
	}

	resp, err := a.caller.complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return components, usageFor(StageMaterials, a.cfg.Model, nil, start), ctx.Err()
		}
		a.logger.Warn("material assignment call failed, keeping components bare", zap.Error(err))
		return components, usageFor(StageMaterials, a.cfg.Model, nil, start), nil
	}

	usage := usageFor(StageMaterials, a.cfg.Model, resp, start)

	assignments, err := structured.Decode[map[string]types.MaterialAssignment](resp.Content())
	if err != nil {
		a.logger.Warn("material assignment reply unparseable, keeping components bare", zap.Error(err))
		return components, usage, nil
	}

	assigned := 0
	for i := range components {
		info, ok := assignments[components[i].Name]
		if !ok || info.MaterialPath == "" {
			continue
		}
		components[i].Material = &types.Material{
			Path:      info.MaterialPath,
			Params:    info.MaterialParams,
			Selection: info.Selection,
		}
		assigned++
		a.logger.Debug("material assigned",
			zap.String("component", components[i].Name),
			zap.String("material", info.MaterialPath),
			zap.String("reason", info.Reason))
	}

	a.logger.Info("material assignment complete",
		zap.Int("assigned", assigned),
		zap.Int("components", len(components)))
	return components, usage, nil
}
