// Package geometry deterministically repairs planned components: base
// parts are dropped to the ground plane, legs are aligned under seats,
// and mapped components are snapped together along the z axis.
package geometry

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/types"
)

// Ground plane height and the distance below which two points count as
// touching.
const (
	groundLevel      = 0.0
	connectThreshold = 0.01
)

// legSpreadTolerance is how far a leg top may sit from the seat bottom
// horizontally before it is pulled back under the seat.
const legSpreadTolerance = 0.1

// Validator repairs component placement. All adjustments move transforms
// or bezier anchors; params and component count are never changed.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a geometry validator.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger.With(zap.String("component", "geometry"))}
}

// ValidateAndFix runs ground repair followed by connection repair and
// returns the adjusted components. The slice is modified in place.
func (v *Validator) ValidateAndFix(components []types.Component, connections map[string][]string) []types.Component {
	if len(components) == 0 {
		return components
	}
	v.logger.Info("validating components", zap.Int("count", len(components)))

	for i := range components {
		components[i].Normalize()
	}

	components = v.EnsureGroundContact(components)
	components = v.ValidateConnections(components, connections)
	return components
}

// EnsureGroundContact shifts the whole assembly so the lowest base
// component touches z=0. Base components are those whose name contains
// frame, base, or leg. Without any, nothing moves.
func (v *Validator) EnsureGroundContact(components []types.Component) []types.Component {
	var baseIdx []int
	for i := range components {
		if isBase(components[i].Name) {
			baseIdx = append(baseIdx, i)
		}
	}
	if len(baseIdx) == 0 {
		v.logger.Debug("no base components, skipping ground repair")
		return components
	}

	lowest := math.Inf(1)
	for _, i := range baseIdx {
		if z := v.LowestPoint(&components[i]); z < lowest {
			lowest = z
		}
	}
	adjustment := lowest - groundLevel
	v.logger.Info("ground adjustment", zap.Float64("offset", adjustment))

	for _, i := range baseIdx {
		v.shiftComponent(&components[i], -adjustment)
	}
	isBaseIdx := make(map[int]bool, len(baseIdx))
	for _, i := range baseIdx {
		isBaseIdx[i] = true
	}
	for i := range components {
		if isBaseIdx[i] {
			continue
		}
		if len(components[i].Operations) == 0 {
			v.logger.Warn("cannot adjust component without operations", zap.String("component", components[i].Name))
			continue
		}
		components[i].Operations[0].Transform.Location[2] -= adjustment
	}
	return components
}

// shiftComponent moves a component vertically by dz. Bezier curves move
// through their anchors, everything else through the transform.
func (v *Validator) shiftComponent(c *types.Component, dz float64) {
	if len(c.Operations) == 0 {
		v.logger.Warn("cannot adjust component without operations", zap.String("component", c.Name))
		return
	}
	op := &c.Operations[0]
	if op.IsBezier() {
		anchors := op.Anchors()
		if anchors == nil {
			v.logger.Warn("bezier curve without anchors, not adjusted", zap.String("component", c.Name))
			return
		}
		for _, a := range anchors {
			a[2] += dz
		}
		op.SetAnchors(anchors)
		return
	}
	op.Transform.Location[2] += dz
}

// ValidateConnections aligns components according to the connection map:
// chair legs are recentered under the seat, the seat (or table top) is
// snapped to the highest leg, and remaining mapped components are pulled
// together along z when their mount points drift apart.
func (v *Validator) ValidateConnections(components []types.Component, connections map[string][]string) []types.Component {
	seatIdx, tableIdx := -1, -1
	var legIdx []int
	for i := range components {
		name := components[i].Name
		if seatIdx < 0 && strings.Contains(name, "Seat") {
			seatIdx = i
		}
		if tableIdx < 0 && strings.Contains(name, "Table_Top") {
			tableIdx = i
		}
		if strings.Contains(name, "Leg") {
			legIdx = append(legIdx, i)
		}
	}

	// Legs spread too far from the seat move under it. Chairs only; table
	// legs keep their planned spread.
	if seatIdx >= 0 && len(legIdx) > 0 {
		if seatBottom, ok := v.point(&components[seatIdx], "bottom"); ok {
			for _, li := range legIdx {
				top, ok := v.point(&components[li], "top")
				if !ok || len(components[li].Operations) == 0 {
					continue
				}
				spread := math.Hypot(top[0]-seatBottom[0], top[1]-seatBottom[1])
				if spread > legSpreadTolerance {
					loc := components[li].Operations[0].Transform.Location
					loc[0], loc[1] = seatBottom[0], seatBottom[1]
					v.logger.Info("recentered leg under seat",
						zap.String("leg", components[li].Name), zap.Float64("spread", spread))
				}
			}
		}
	}

	// Snap the seat, else the table top, onto the highest leg. Without
	// legs there is nothing to snap to.
	if len(legIdx) > 0 {
		highest := math.Inf(-1)
		for _, li := range legIdx {
			if top, ok := v.point(&components[li], "top"); ok && top[2] > highest {
				highest = top[2]
			}
		}
		surfaceIdx := seatIdx
		if surfaceIdx < 0 {
			surfaceIdx = tableIdx
		}
		if surfaceIdx >= 0 && !math.IsInf(highest, -1) {
			if bottom, ok := v.point(&components[surfaceIdx], "bottom"); ok && len(components[surfaceIdx].Operations) > 0 {
				offset := highest - bottom[2]
				components[surfaceIdx].Operations[0].Transform.Location[2] += offset
				v.logger.Info("snapped surface to legs",
					zap.String("surface", components[surfaceIdx].Name),
					zap.Float64("height", highest), zap.Float64("offset", offset))
			}
		}
	}

	// Remaining mapped components (backrests, armrests, shelves) snap to
	// their targets. Iteration is sorted for deterministic repair order.
	names := make([]string, 0, len(connections))
	for name := range connections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, compName := range names {
		if strings.Contains(compName, "Leg") || strings.Contains(compName, "Seat") || strings.Contains(compName, "Table_Top") {
			continue
		}
		ci := indexByName(components, compName)
		if ci < 0 {
			continue
		}
		for _, targetName := range connections[compName] {
			ti := indexByName(components, targetName)
			if ti < 0 {
				continue
			}

			var from, to [3]float64
			if strings.Contains(compName, "Backrest") {
				var ok bool
				if from, ok = v.point(&components[ci], "bottom"); !ok {
					continue
				}
				if to, ok = v.point(&components[ti], "top"); !ok {
					continue
				}
			} else {
				from = v.priorityPoint(&components[ci])
				to = v.priorityPoint(&components[ti])
			}

			if gap := distance(from, to); gap >= connectThreshold {
				v.logger.Info("snapping component to target",
					zap.String("component", compName), zap.String("target", targetName),
					zap.Float64("gap", gap))
				v.snapToPoint(&components[ci], from, to)
			}
		}
	}

	return components
}

// snapToPoint moves a component vertically so that from aligns with to.
// X and Y are preserved for every branch.
func (v *Validator) snapToPoint(c *types.Component, from, to [3]float64) {
	if len(c.Operations) == 0 {
		return
	}
	zOffset := to[2] - from[2]
	op := &c.Operations[0]

	switch {
	case strings.Contains(c.Name, "Leg"):
		if op.IsBezier() {
			anchors := op.Anchors()
			if anchors == nil {
				v.logger.Warn("bezier leg without anchors, not snapped", zap.String("component", c.Name))
				return
			}
			for _, a := range anchors {
				a[2] += zOffset
			}
			op.SetAnchors(anchors)
			return
		}
		op.Transform.Location[2] += zOffset
	case strings.Contains(c.Name, "Seat"), strings.Contains(c.Name, "Top"):
		op.Transform.Location[2] += zOffset
	default:
		// Other component families receive the same z correction.
		op.Transform.Location[2] += zOffset
	}
}

func isBase(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"frame", "base", "leg"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func indexByName(components []types.Component, name string) int {
	for i := range components {
		if components[i].Name == name {
			return i
		}
	}
	return -1
}
