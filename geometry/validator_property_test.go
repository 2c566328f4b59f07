package geometry

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/meshflow/types"
)

// drawComponents generates a randomized furniture assembly mixing base and
// non-base names across the shape families the repair logic understands.
func drawComponents(rt *rapid.T) []types.Component {
	count := rapid.IntRange(1, 8).Draw(rt, "count")
	components := make([]types.Component, 0, count)

	for i := 0; i < count; i++ {
		kind := rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("kind%d", i))
		x := rapid.Float64Range(-2, 2).Draw(rt, fmt.Sprintf("x%d", i))
		y := rapid.Float64Range(-2, 2).Draw(rt, fmt.Sprintf("y%d", i))
		z := rapid.Float64Range(-3, 3).Draw(rt, fmt.Sprintf("z%d", i))

		var comp types.Component
		switch kind {
		case 0:
			name := rapid.SampledFrom([]string{"Leg", "Table_Leg", "Support_Leg"}).Draw(rt, fmt.Sprintf("legname%d", i))
			comp = cylinder(fmt.Sprintf("%s_%d", name, i), rapid.Float64Range(0.1, 1.5).Draw(rt, fmt.Sprintf("h%d", i)), x, y, z)
		case 1:
			name := rapid.SampledFrom([]string{"Shelf", "Panel", "Drawer", "Armrest"}).Draw(rt, fmt.Sprintf("boxname%d", i))
			comp = box(fmt.Sprintf("%s_%d", name, i), rapid.Float64Range(0.02, 0.6).Draw(rt, fmt.Sprintf("h%d", i)), x, y, z)
		case 2:
			comp = sphere(fmt.Sprintf("Cushion_%d", i), rapid.Float64Range(0.05, 0.5).Draw(rt, fmt.Sprintf("r%d", i)), x, y, z)
		default:
			anchorCount := rapid.IntRange(2, 4).Draw(rt, fmt.Sprintf("anchors%d", i))
			anchors := make([][]float64, anchorCount)
			for j := range anchors {
				anchors[j] = []float64{
					rapid.Float64Range(-1, 1).Draw(rt, fmt.Sprintf("ax%d_%d", i, j)),
					rapid.Float64Range(-1, 1).Draw(rt, fmt.Sprintf("ay%d_%d", i, j)),
					rapid.Float64Range(-2, 2).Draw(rt, fmt.Sprintf("az%d_%d", i, j)),
				}
			}
			comp = bezier(fmt.Sprintf("Frame_%d", i), anchors)
		}
		components = append(components, comp)
	}
	return components
}

func TestProperty_GroundContact_BasesTouchGround(t *testing.T) {
	v := NewValidator(zap.NewNop())

	rapid.Check(t, func(rt *rapid.T) {
		components := drawComponents(rt)

		hasBase := false
		for _, c := range components {
			if isBase(c.Name) {
				hasBase = true
				break
			}
		}

		got := v.EnsureGroundContact(components)

		if !hasBase {
			return
		}
		lowest := math.Inf(1)
		for i := range got {
			if isBase(got[i].Name) {
				if z := v.LowestPoint(&got[i]); z < lowest {
					lowest = z
				}
			}
		}
		assert.InDelta(rt, 0, lowest, 1e-9, "lowest base point must touch the ground")
	})
}

func TestProperty_GroundContact_RelativeOffsetsPreserved(t *testing.T) {
	v := NewValidator(zap.NewNop())

	rapid.Check(t, func(rt *rapid.T) {
		components := drawComponents(rt)

		// Bezier curves store height in anchors, so offsets are tracked on
		// the plain-transform components only.
		before := make(map[string]float64)
		for _, c := range components {
			if !c.Operations[0].IsBezier() {
				before[c.Name] = c.Operations[0].Transform.Location[2]
			}
		}

		got := v.EnsureGroundContact(components)

		var names []string
		var zs []float64
		for _, c := range got {
			if z, ok := before[c.Name]; ok {
				names = append(names, c.Name)
				zs = append(zs, c.Operations[0].Transform.Location[2]-z)
			}
		}
		// Every tracked component moved by the same amount.
		for i := 1; i < len(zs); i++ {
			assert.InDelta(rt, zs[0], zs[i], 1e-9, "%s and %s moved by different amounts", names[0], names[i])
		}
	})
}

// flattenPositions collects every transform location and bezier anchor so
// two repair passes can be compared numerically.
func flattenPositions(components []types.Component) []float64 {
	var out []float64
	for _, c := range components {
		for _, op := range c.Operations {
			out = append(out, op.Transform.Location...)
			for _, a := range op.Anchors() {
				out = append(out, a...)
			}
		}
	}
	return out
}

func TestProperty_ValidateAndFix_Idempotent(t *testing.T) {
	v := NewValidator(zap.NewNop())

	rapid.Check(t, func(rt *rapid.T) {
		components := drawComponents(rt)

		// A plausible connection map over the generated names.
		connections := map[string][]string{}
		for i := 1; i < len(components); i++ {
			if rapid.Bool().Draw(rt, fmt.Sprintf("link%d", i)) {
				connections[components[i].Name] = []string{components[0].Name}
			}
		}

		once := v.ValidateAndFix(components, connections)
		snapshot := flattenPositions(once)

		twice := v.ValidateAndFix(once, connections)
		again := flattenPositions(twice)

		require.Len(rt, again, len(snapshot))
		for i := range snapshot {
			assert.InDelta(rt, snapshot[i], again[i], 1e-9, "position %d moved on the second pass", i)
		}
	})
}

func TestProperty_ValidateAndFix_CountAndParamsStable(t *testing.T) {
	v := NewValidator(zap.NewNop())

	rapid.Check(t, func(rt *rapid.T) {
		components := drawComponents(rt)

		type paramKey struct {
			name string
			key  string
		}
		before := map[paramKey]float64{}
		for _, c := range components {
			for key, val := range c.Operations[0].Params {
				if key == "anchors" {
					continue
				}
				if f, ok := val.(float64); ok {
					before[paramKey{c.Name, key}] = f
				}
			}
		}

		got := v.ValidateAndFix(components, nil)

		require.Len(rt, got, len(components))
		for _, c := range got {
			for key, val := range c.Operations[0].Params {
				if key == "anchors" {
					continue
				}
				want, ok := before[paramKey{c.Name, key}]
				require.True(rt, ok, "param %s appeared on %s", key, c.Name)
				assert.Equal(rt, want, val, "param %s changed on %s", key, c.Name)
			}
		}
	})
}
