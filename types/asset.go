package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Operation names the geometry layer special-cases. Everything else is
// passed through to the bridge script untouched.
const (
	OpBoxMesh      = "mesh.build_box_mesh"
	OpPlaneMesh    = "mesh.build_plane_mesh"
	OpPrismMesh    = "mesh.build_prism_mesh"
	OpCylinderMesh = "mesh.build_cylinder_mesh"
	OpConeMesh     = "mesh.build_cone_mesh"
	OpSphereMesh   = "mesh.build_sphere_mesh"
	OpTorusMesh    = "mesh.build_torus_mesh"
	OpBezierCurve  = "draw.bezier_curve"
)

// Transform places a primitive in the scene. Location and Rotation default
// to [0,0,0] and Scale to [1,1,1] when absent from the wire format.
type Transform struct {
	Location []float64 `json:"location"`
	Rotation []float64 `json:"rotation"`
	Scale    []float64 `json:"scale"`
}

// Normalize fills missing or short axes with the wire-format defaults.
func (t *Transform) Normalize() {
	t.Location = padAxes(t.Location, 0)
	t.Rotation = padAxes(t.Rotation, 0)
	if len(t.Scale) == 0 {
		t.Scale = []float64{1, 1, 1}
	} else {
		t.Scale = padAxes(t.Scale, 1)
	}
}

func padAxes(v []float64, fill float64) []float64 {
	if len(v) >= 3 {
		return v[:3]
	}
	out := make([]float64, 3)
	for i := range out {
		if i < len(v) {
			out[i] = v[i]
		} else {
			out[i] = fill
		}
	}
	return out
}

// Connection records a mount point between two components, as emitted by
// the planner stage. The geometry layer treats it as advisory.
type Connection struct {
	Type   string    `json:"type"`
	Target string    `json:"target"`
	Point  []float64 `json:"point,omitempty"`
}

// Operation is a single mesh-building call with its placement.
type Operation struct {
	Operation   string         `json:"operation"`
	Params      map[string]any `json:"params,omitempty"`
	Transform   Transform      `json:"transform"`
	Connections []Connection   `json:"connections,omitempty"`
}

// ShortName returns the operation name without its module prefix,
// e.g. "mesh.build_box_mesh" becomes "build_box_mesh".
func (o *Operation) ShortName() string {
	if i := strings.LastIndex(o.Operation, "."); i >= 0 {
		return o.Operation[i+1:]
	}
	return o.Operation
}

// IsBezier reports whether the operation builds a bezier curve.
func (o *Operation) IsBezier() bool {
	return o.Operation == OpBezierCurve
}

// ParamFloat reads a numeric parameter. JSON numbers decode as float64,
// but callers may also have set native ints.
func (o *Operation) ParamFloat(key string, def float64) float64 {
	v, ok := o.Params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Anchors reads the bezier anchor points, one [x,y,z] triple per anchor.
// Returns nil when the parameter is absent or malformed.
func (o *Operation) Anchors() [][]float64 {
	raw, ok := o.Params["anchors"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		// Already normalized by a previous pass.
		if typed, ok := raw.([][]float64); ok {
			return typed
		}
		return nil
	}
	anchors := make([][]float64, 0, len(list))
	for _, item := range list {
		point, ok := item.([]any)
		if !ok || len(point) < 3 {
			return nil
		}
		xyz := make([]float64, 3)
		for i := 0; i < 3; i++ {
			f, ok := point[i].(float64)
			if !ok {
				return nil
			}
			xyz[i] = f
		}
		anchors = append(anchors, xyz)
	}
	return anchors
}

// SetAnchors writes bezier anchor points back into the params map.
func (o *Operation) SetAnchors(anchors [][]float64) {
	if o.Params == nil {
		o.Params = make(map[string]any)
	}
	o.Params["anchors"] = anchors
}

// Material is the per-component material block consumed by the bridge
// script: an import path, keyword params, and an optional selection mask.
type Material struct {
	Path      string         `json:"path"`
	Params    map[string]any `json:"params,omitempty"`
	Selection any            `json:"selection"`
}

// MaterialAssignment is the materials stage response for one component.
type MaterialAssignment struct {
	MaterialPath   string         `json:"material_path"`
	MaterialParams map[string]any `json:"material_params"`
	Selection      any            `json:"selection,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// Component is a named part of the asset, built from one or more
// operations, optionally carrying a material.
type Component struct {
	Name       string      `json:"name"`
	Operations []Operation `json:"operations"`
	Material   *Material   `json:"material,omitempty"`
}

// Normalize fills transform defaults on every operation.
func (c *Component) Normalize() {
	for i := range c.Operations {
		c.Operations[i].Transform.Normalize()
	}
}

// PrimitiveSpec is the flattened export form: one operation with its module
// prefix stripped, placed at the top level of the raw plan array.
type PrimitiveSpec struct {
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params,omitempty"`
	Transform Transform      `json:"transform"`
}

// Flatten expands components into the raw export array.
func Flatten(components []Component) []PrimitiveSpec {
	specs := make([]PrimitiveSpec, 0, len(components))
	for _, c := range components {
		for _, op := range c.Operations {
			specs = append(specs, PrimitiveSpec{
				Operation: op.ShortName(),
				Params:    op.Params,
				Transform: op.Transform,
			})
		}
	}
	return specs
}

// Classification is the furniture gate verdict for a prompt.
type Classification struct {
	Verdict     string `json:"classification"`
	Explanation string `json:"explanation"`
}

// Verdict values returned by the classifier stage.
const (
	VerdictPass = "pass"
	VerdictFail = "does not pass"
)

// Passed reports whether the prompt cleared the furniture gate.
func (c *Classification) Passed() bool {
	return c.Verdict == VerdictPass
}

// GeometricProperties describes the shape hints for one planned component.
type GeometricProperties struct {
	Shape             string `json:"shape,omitempty"`
	Proportions       string `json:"proportions,omitempty"`
	Identical         bool   `json:"identical,omitempty"`
	MirroredPositions string `json:"mirrored_positions,omitempty"`
	RadialArrangement string `json:"radial_arrangement,omitempty"`
	CornerPositions   string `json:"corner_positions,omitempty"`
}

// ComponentPlan is one entry of the semantic decomposition.
type ComponentPlan struct {
	Name                string              `json:"name"`
	Quantity            int                 `json:"quantity"`
	Description         string              `json:"description"`
	GeometricProperties GeometricProperties `json:"geometric_properties"`
}

// Decomposition is the structured breakdown of a prompt into components
// and their spatial relationships.
type Decomposition struct {
	Description          string          `json:"description"`
	Components           []ComponentPlan `json:"components"`
	SpatialRelationships []string        `json:"spatial_relationships,omitempty"`
}

// TotalQuantity sums the planned quantities across all components.
func (d *Decomposition) TotalQuantity() int {
	total := 0
	for _, c := range d.Components {
		if c.Quantity > 0 {
			total += c.Quantity
		}
	}
	return total
}

// StageUsage captures token consumption for one pipeline stage.
type StageUsage struct {
	Stage            string        `json:"stage"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
}

// Result is the final outcome of a generation run.
type Result struct {
	Prompt         string         `json:"prompt"`
	Classification Classification `json:"classification"`
	Decomposition  *Decomposition `json:"decomposition,omitempty"`
	Components     []Component    `json:"components,omitempty"`
	RawPath        string         `json:"raw_path,omitempty"`
	ValidatedPath  string         `json:"validated_path,omitempty"`
	BlendPath      string         `json:"blend_path,omitempty"`
	Stages         []StageUsage   `json:"stages,omitempty"`
	Duration       time.Duration  `json:"duration,omitempty"`
}
