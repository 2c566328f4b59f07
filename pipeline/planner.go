package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/structured"
	"github.com/BaSui01/meshflow/pipeline/catalog"
	"github.com/BaSui01/meshflow/types"
)

const plannerPromptHeader = `You are a 3D modeling expert. Convert each component into optimal operations.

CRITICAL ORDERING RULES:
1. Always start with ground-touching components (legs, base supports)
2. Then build upward components that connect to them (the locations must connect, they must touch, this is extremely important)
3. Finally add decorative elements (handles, trim)

Example Order for Chair:
1. Legs (ground up)
2. Seat base (connects to legs)
3. Back support posts (connects to seat)
4. Seat back (connects to posts)
5. Armrest supports (connects to seat)
6. Armrests (connects to supports)

Example Order for Cabinet:
1. Base supports/legs
2. Bottom panel
3. Side panels (connect to bottom)
4. Back panel
5. Shelves (connect to sides)
6. Drawer tracks
7. Drawers
8. Drawer fronts
9. Handles/knobs
10. Top panel

FACTORY EXAMPLES FOR REFERENCE:
`

const plannerPromptRules = `
AVAILABLE FUNCTIONS (Choose the best for each component):
CRITICAL RULES:
1. ONLY use operations from the list above
2. DO NOT invent new operations
3. DO NOT add extra parameters to operations
4. Each operation MUST match the exact format shown

From infinigen/assets/utils/mesh.py:
- mesh.build_box_mesh(width=1.0, depth=1.0, height=1.0)  # Perfect for flat surfaces and straight edges
- mesh.build_plane_mesh(width=1.0, depth=1.0)  # For thin flat surfaces
- mesh.build_prism_mesh(n=6, r_min=1.0, r_max=1.5, height=0.3, tilt=0.3)  # For angular shapes
- mesh.build_cylinder_mesh(radius=1.0, height=2.0, segments=32)  # For perfect cylinders
- mesh.build_cone_mesh(radius=1.0, height=2.0, segments=32)  # For conical shapes
- mesh.build_sphere_mesh(radius=1.0, segments=32, rings=16)  # For spherical shapes; use 1,1,1 for scale ONLY IF YOU NEED A PERFECT SPHERE
- mesh.build_torus_mesh(major_radius=1.0, minor_radius=0.25, major_segments=32, minor_segments=16)  # For ring shapes, the center is hollow
- mesh.bevel(obj, width)  # Add bevels

From infinigen/assets/utils/draw.py:
- draw.bezier_curve(anchors, vector_locations=(), resolution=None, to_mesh=True)  # For smooth curves

Blender Operations (use only when needed):
- bpy.ops.object.modifier_add(type='BEVEL')  # Smooth edges
- bpy.ops.object.modifier_add(type='SUBSURF')  # Smooth surfaces
- bpy.ops.object.shade_smooth()  # Improve appearance

Very important: if component is a leg or connecting THIN component, and shape is curved_component (not straight), use draw.bezier_curve.
If component is a cushion, try using mesh.build_sphere_mesh and scale it appropriately.
COMPONENT-BASED STRUCTURE:
Each component from the decomposition must have its own set of operations. Output format:

{
    "components": [
        {
            "name": "Table Top",
            "operations": [
                {
                    "operation": "mesh.build_box_mesh",
                    "params": {
                        "width": 1.2,
                        "depth": 0.8,
                        "height": 0.03
                    },
                    "transform": {
                        "location": [0, 0, 0.75],
                        "rotation": [0, 0, 0],
                        "scale": [1, 1, 1]
                    }
                },
                {
                    "operation": "bpy.ops.object.shade_smooth",
                    "params": {}
                }
            ]
        },
        {
            "name": "Table Leg 1",
            "operations": [
                {
                    "operation": "mesh.build_cylinder_mesh",
                    "params": {
                        "radius": 0.03,
                        "height": 0.72,
                        "segments": 16
                    },
                    "transform": {
                        "location": [0.57, 0.37, 0.36],
                        "rotation": [0, 0, 0],
                        "scale": [1, 1, 1]
                    }
                }
            ]
        }
    ]
}

HANDLING COMPONENT QUANTITIES:
1. Check the "quantity" field for each component
2. For quantity > 1:
   - Create ONE base component specification
   - Duplicate it exactly "quantity" times
   - ONLY modify position/rotation for each instance
   - ALL other parameters must be identical
   - Name format: "{Component}_{Number}" (e.g., "Table_Leg_1")

QUANTITY VALIDATION RULES:
1. Number of generated components MUST match quantities from decomposition
2. For quantity > 1:
   - All instances must have identical operations
   - All instances must have identical parameters
   - Only transform values may differ
   - Names must follow sequential numbering
3. Spatial arrangements must match decomposition:
   - "mirrored_positions" -> symmetrical placement
   - "radial_arrangement" -> circular placement
   - "corner_positions" -> at corners with proper insets
   - "distributed" -> evenly spaced

VALIDATION RULES:
1. Each component from the decomposition must have exactly one entry in the components list
2. Component names must match those from the decomposition
3. Each component must have at least one operation
4. Operations must be properly sequenced (create mesh first, then modify)
5. All spatial constraints still apply
6. Components must be properly connected in 3D space

CONNECTION DIMENSION RULES:
1. Supporting components (legs, posts, etc.) must have EXACT dimensions:
   - height = distance from ground to supported component's bottom
   - For Table Leg example:
     if table_top.location.z = 0.75 and table_top.height = 0.03
     then leg.height MUST = 0.75 (to reach from ground to table bottom)

2. Connecting components (crossbars, supports) must span EXACT distance:
   - length = distance between connection points
   - For Crossbar example:
     if leg1.location = [0.57, 0.37, 0] and leg2.location = [-0.57, 0.37, 0]
     then crossbar.length MUST = 1.14 (exact distance between legs)

3. Nested components must have precise clearances:
   - outer.dimensions > inner.dimensions
   - clearance gaps must be specified and consistent
   - Example: drawer inside cabinet must have exact width/depth to slide

4. Stacked components must align exactly:
   - bottom_component.top_face = top_component.bottom_face
   - shared dimensions must match (width/depth for vertical stacking)
   - Example: table leg height must exactly match table top bottom surface

5. Dimension Calculation Rules:
   - Always calculate exact distances between connection points
   - Use vector math for angled connections
   - Account for component thickness in calculations
   - No gaps or overlaps allowed unless specified
   - Maintain symmetry for identical components

Example - Crossbar between Table Legs:
{
    "name": "Table_Crossbar",
    "operations": [
        {
            "operation": "mesh.build_box_mesh",
            "params": {
                "width": 1.14,
                "depth": 0.03,
                "height": 0.03
            },
            "transform": {
                "location": [0, 0.37, 0.2],
                "rotation": [0, 0, 0],
                "scale": [1, 1, 1]
            },
            "connections": [
                {
                    "type": "end_mount",
                    "target": "Table_Leg_1",
                    "point": [0.57, 0.37, 0.2]
                },
                {
                    "type": "end_mount",
                    "target": "Table_Leg_2",
                    "point": [-0.57, 0.37, 0.2]
                }
            ]
        }
    ]
}

CRITICAL COMPONENT COMPLETENESS RULES:
1. EVERY component from the decomposition MUST be included:
   - Check the decomposition output carefully
   - Create operations for EVERY listed component
   - No components can be skipped or omitted
   - Verify final component count matches the decomposition exactly

2. Component Matching Requirements:
   - Names must match the decomposition exactly
   - Quantities must match the decomposition exactly
   - All properties must be implemented
   - All connections must be specified
   - All spatial relationships must be maintained

VERIFICATION REQUIREMENT:
Before outputting, verify that EVERY SINGLE component from the decomposition has corresponding operations defined. NO EXCEPTIONS.

Output ONLY valid JSON with no additional text.`

// plannerResponse is the wire shape of the planner stage output.
type plannerResponse struct {
	Components []types.Component `json:"components"`
}

// Planner turns a decomposition into per-component primitive operations.
type Planner struct {
	caller *caller
	cfg    config.StageConfig
	logger *zap.Logger
}

// NewPlanner creates the primitive planning stage.
func NewPlanner(c *caller, cfg config.StageConfig, logger *zap.Logger) *Planner {
	return &Planner{caller: c, cfg: cfg, logger: logger.With(zap.String("stage", StagePlan))}
}

// Plan runs the stage. The decomposition is serialized as the user message;
// the factory catalog rides along in the system prompt.
func (p *Planner) Plan(ctx context.Context, decomposition types.Decomposition) ([]types.Component, types.StageUsage, error) {
	start := time.Now()

	payload, err := json.Marshal(decomposition)
	if err != nil {
		return nil, types.StageUsage{}, err
	}

	req := &llm.ChatRequest{
		Model: p.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: plannerPromptHeader + catalog.Context() + plannerPromptRules},
			{Role: llm.RoleUser, Content: string(payload)},
		},
		Temperature:    p.cfg.Temperature,
		MaxTokens:      p.cfg.MaxTokens,
		ResponseFormat: llm.JSONObject(),
	}

	resp, err := p.caller.complete(ctx, req)
	if err != nil {
		return nil, usageFor(StagePlan, p.cfg.Model, nil, start), err
	}

	plan, err := structured.Decode[plannerResponse](resp.Content())
	usage := usageFor(StagePlan, p.cfg.Model, resp, start)
	if err != nil {
		p.logger.Debug("unparseable plan reply", zap.String("raw", snippet(resp.Content())))
		return nil, usage,
			types.NewError(types.ErrPlanInvalid, "planner returned malformed JSON").
				WithStage(StagePlan).WithCause(err)
	}
	if len(plan.Components) == 0 {
		return nil, usage,
			types.NewError(types.ErrPlanInvalid, "planner produced no components").
				WithStage(StagePlan)
	}

	components := normalizeComponents(plan.Components)

	p.logger.Info("primitive plan complete", zap.Int("components", len(components)))
	return components, usage, nil
}

// normalizeComponents fills transform defaults and drops malformed
// operations so downstream stages see a consistent shape.
func normalizeComponents(components []types.Component) []types.Component {
	out := make([]types.Component, 0, len(components))
	for _, comp := range components {
		if comp.Name == "" || len(comp.Operations) == 0 {
			continue
		}
		comp.Normalize()
		ops := comp.Operations[:0]
		for _, op := range comp.Operations {
			if op.Operation == "" {
				continue
			}
			ops = append(ops, op)
		}
		comp.Operations = ops
		if len(comp.Operations) == 0 {
			continue
		}
		out = append(out, comp)
	}
	return out
}
