package geometry

import (
	"math"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/types"
)

// Dimension fallbacks for operations that omit their params.
const (
	defaultRadius = 0.5
	defaultHeight = 1.0
)

// ConnPoint is a candidate mount location on a component. Higher priority
// points are preferred when choosing where two components meet.
type ConnPoint struct {
	Point    [3]float64
	Priority int
}

// pointOrder fixes the preference among equal priorities.
var pointOrder = []string{"top", "bottom", "center"}

// ConnectionPoints returns the named mount points of a component, derived
// from its first operation. Spheres and extruded shapes expose top and
// bottom faces; anything else only its center.
func (v *Validator) ConnectionPoints(c *types.Component) map[string]ConnPoint {
	if len(c.Operations) == 0 {
		return map[string]ConnPoint{"center": {}}
	}
	op := &c.Operations[0]
	loc := op.Transform.Location
	scale := op.Transform.Scale
	center := [3]float64{loc[0], loc[1], loc[2]}

	switch op.Operation {
	case types.OpSphereMesh:
		r := op.ParamFloat("radius", defaultRadius) * scale[2]
		return map[string]ConnPoint{
			"top":    {Point: [3]float64{loc[0], loc[1], loc[2] + r}, Priority: 1},
			"bottom": {Point: [3]float64{loc[0], loc[1], loc[2] - r}, Priority: 1},
			"center": {Point: center},
		}
	case types.OpCylinderMesh, types.OpBoxMesh:
		h := op.ParamFloat("height", defaultHeight) * scale[2]
		return map[string]ConnPoint{
			"top":    {Point: [3]float64{loc[0], loc[1], loc[2] + h/2}, Priority: 1},
			"bottom": {Point: [3]float64{loc[0], loc[1], loc[2] - h/2}, Priority: 1},
			"center": {Point: center},
		}
	default:
		return map[string]ConnPoint{"center": {Point: center}}
	}
}

// point looks up one named connection point.
func (v *Validator) point(c *types.Component, name string) ([3]float64, bool) {
	p, ok := v.ConnectionPoints(c)[name]
	return p.Point, ok
}

// priorityPoint picks the preferred connection point, top faces first.
func (v *Validator) priorityPoint(c *types.Component) [3]float64 {
	points := v.ConnectionPoints(c)
	best, bestPriority := [3]float64{}, -1
	for _, name := range pointOrder {
		if p, ok := points[name]; ok && p.Priority > bestPriority {
			best, bestPriority = p.Point, p.Priority
		}
	}
	return best
}

// LowestPoint returns the lowest z coordinate a component reaches. Bezier
// curves are measured across their anchors, extruded shapes by height and
// spheres by radius. Unknown operations fall back to the location z.
func (v *Validator) LowestPoint(c *types.Component) float64 {
	if len(c.Operations) == 0 {
		v.logger.Warn("component has no operations, lowest point unknown", zap.String("component", c.Name))
		return 0
	}
	op := &c.Operations[0]
	loc := op.Transform.Location

	switch op.Operation {
	case types.OpBezierCurve:
		anchors := op.Anchors()
		if len(anchors) == 0 {
			v.logger.Warn("bezier curve without anchors", zap.String("component", c.Name))
			return loc[2]
		}
		lowest := math.Inf(1)
		for _, a := range anchors {
			if a[2] < lowest {
				lowest = a[2]
			}
		}
		return lowest
	case types.OpCylinderMesh, types.OpBoxMesh:
		return loc[2] - op.ParamFloat("height", defaultHeight)/2
	case types.OpSphereMesh:
		return loc[2] - op.ParamFloat("radius", defaultRadius)
	default:
		v.logger.Warn("unknown operation for lowest point, using location z",
			zap.String("component", c.Name), zap.String("operation", op.Operation))
		return loc[2]
	}
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
