package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/meshflow/types"
)

func box(name string, height, x, y, z float64) types.Component {
	return types.Component{
		Name: name,
		Operations: []types.Operation{{
			Operation: types.OpBoxMesh,
			Params:    map[string]any{"width": 0.5, "depth": 0.5, "height": height},
			Transform: types.Transform{Location: []float64{x, y, z}, Rotation: []float64{0, 0, 0}, Scale: []float64{1, 1, 1}},
		}},
	}
}

func cylinder(name string, height, x, y, z float64) types.Component {
	return types.Component{
		Name: name,
		Operations: []types.Operation{{
			Operation: types.OpCylinderMesh,
			Params:    map[string]any{"radius": 0.03, "height": height},
			Transform: types.Transform{Location: []float64{x, y, z}, Rotation: []float64{0, 0, 0}, Scale: []float64{1, 1, 1}},
		}},
	}
}

func sphere(name string, radius, x, y, z float64) types.Component {
	return types.Component{
		Name: name,
		Operations: []types.Operation{{
			Operation: types.OpSphereMesh,
			Params:    map[string]any{"radius": radius},
			Transform: types.Transform{Location: []float64{x, y, z}, Rotation: []float64{0, 0, 0}, Scale: []float64{1, 1, 1}},
		}},
	}
}

func bezier(name string, anchors [][]float64) types.Component {
	return types.Component{
		Name: name,
		Operations: []types.Operation{{
			Operation: types.OpBezierCurve,
			Params:    map[string]any{"anchors": anchors},
			Transform: types.Transform{Location: []float64{0, 0, 0}, Rotation: []float64{0, 0, 0}, Scale: []float64{1, 1, 1}},
		}},
	}
}

func locationOf(c types.Component) []float64 {
	return c.Operations[0].Transform.Location
}

func TestLowestPoint(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	tests := []struct {
		name string
		comp types.Component
		want float64
	}{
		{name: "box", comp: box("Panel", 0.4, 0, 0, 1.0), want: 0.8},
		{name: "cylinder", comp: cylinder("Leg", 1.0, 0, 0, 0.5), want: 0},
		{name: "sphere", comp: sphere("Cushion", 0.3, 0, 0, 0.3), want: 0},
		{name: "bezier uses min anchor", comp: bezier("Curved_Leg", [][]float64{{0, 0, 0.9}, {0.1, 0, 0.2}, {0.2, 0, 0.6}}), want: 0.2},
		{
			name: "unknown falls back to location z",
			comp: types.Component{Name: "Cone", Operations: []types.Operation{{
				Operation: types.OpConeMesh,
				Transform: types.Transform{Location: []float64{0, 0, 0.7}},
			}}},
			want: 0.7,
		},
		{
			name: "box default height",
			comp: types.Component{Name: "Slab", Operations: []types.Operation{{
				Operation: types.OpBoxMesh,
				Params:    map[string]any{},
				Transform: types.Transform{Location: []float64{0, 0, 1.0}},
			}}},
			want: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, v.LowestPoint(&tt.comp), 1e-9)
		})
	}
}

func TestConnectionPoints(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	t.Run("box exposes scaled faces", func(t *testing.T) {
		comp := box("Seat", 1.0, 0, 0, 1.0)
		comp.Operations[0].Transform.Scale = []float64{1, 1, 2}

		points := v.ConnectionPoints(&comp)
		require.Len(t, points, 3)
		assert.Equal(t, [3]float64{0, 0, 2.0}, points["top"].Point)
		assert.Equal(t, 1, points["top"].Priority)
		assert.Equal(t, [3]float64{0, 0, 0}, points["bottom"].Point)
		assert.Equal(t, [3]float64{0, 0, 1.0}, points["center"].Point)
		assert.Equal(t, 0, points["center"].Priority)
	})

	t.Run("sphere radius scales on z", func(t *testing.T) {
		comp := sphere("Cushion", 0.5, 0, 0, 1.0)
		comp.Operations[0].Transform.Scale = []float64{1, 1, 0.5}

		points := v.ConnectionPoints(&comp)
		assert.Equal(t, [3]float64{0, 0, 1.25}, points["top"].Point)
		assert.Equal(t, [3]float64{0, 0, 0.75}, points["bottom"].Point)
	})

	t.Run("other shapes expose the center only", func(t *testing.T) {
		comp := types.Component{Name: "Trim", Operations: []types.Operation{{
			Operation: types.OpTorusMesh,
			Transform: types.Transform{Location: []float64{1, 2, 3}, Scale: []float64{1, 1, 1}},
		}}}

		points := v.ConnectionPoints(&comp)
		require.Len(t, points, 1)
		assert.Equal(t, [3]float64{1, 2, 3}, points["center"].Point)
	})

	t.Run("no operations", func(t *testing.T) {
		comp := types.Component{Name: "Ghost"}
		points := v.ConnectionPoints(&comp)
		require.Len(t, points, 1)
		assert.Equal(t, [3]float64{0, 0, 0}, points["center"].Point)
	})
}

func TestEnsureGroundContact(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	t.Run("floating assembly drops to the ground", func(t *testing.T) {
		components := []types.Component{
			cylinder("Table_Leg_1", 0.5, 0.4, 0.4, 0.5),
			cylinder("Table_Leg_2", 0.5, -0.4, 0.4, 0.5),
			box("Table_Top", 0.05, 0, 0, 0.8),
		}

		got := v.EnsureGroundContact(components)

		// Legs sank by 0.25 so their lowest point touches z=0.
		assert.InDelta(t, 0.25, locationOf(got[0])[2], 1e-9)
		assert.InDelta(t, 0, v.LowestPoint(&got[0]), 1e-9)
		// Top moved by the same amount, keeping the relative offset.
		assert.InDelta(t, 0.55, locationOf(got[2])[2], 1e-9)
	})

	t.Run("buried assembly lifts up", func(t *testing.T) {
		components := []types.Component{
			cylinder("Leg", 0.5, 0, 0, -0.1),
			box("Seat", 0.05, 0, 0, 0.2),
		}

		got := v.EnsureGroundContact(components)
		assert.InDelta(t, 0, v.LowestPoint(&got[0]), 1e-9)
		assert.InDelta(t, 0.55, locationOf(got[1])[2], 1e-9)
	})

	t.Run("no base components leaves everything alone", func(t *testing.T) {
		components := []types.Component{box("Shelf", 0.03, 0, 0, 1.5)}
		got := v.EnsureGroundContact(components)
		assert.InDelta(t, 1.5, locationOf(got[0])[2], 1e-9)
	})

	t.Run("bezier base shifts anchors", func(t *testing.T) {
		components := []types.Component{
			bezier("Front_Leg", [][]float64{{0, 0, 0.1}, {0.05, 0, 0.6}}),
			box("Seat", 0.05, 0, 0, 0.7),
		}

		got := v.EnsureGroundContact(components)

		anchors := got[0].Operations[0].Anchors()
		require.Len(t, anchors, 2)
		assert.InDelta(t, 0, anchors[0][2], 1e-9)
		assert.InDelta(t, 0.5, anchors[1][2], 1e-9)
		// The bezier's own location is untouched; the seat shifts instead.
		assert.InDelta(t, 0, locationOf(got[0])[2], 1e-9)
		assert.InDelta(t, 0.6, locationOf(got[1])[2], 1e-9)
	})

	t.Run("base name matching is case insensitive", func(t *testing.T) {
		components := []types.Component{box("BedFRAME", 0.2, 0, 0, 0.3)}
		got := v.EnsureGroundContact(components)
		assert.InDelta(t, 0, v.LowestPoint(&got[0]), 1e-9)
	})
}

func TestValidateConnectionsChair(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	components := []types.Component{
		box("Seat", 0.05, 0, 0, 0.5),
		cylinder("Leg_1", 0.45, 0.18, 0.18, 0.225),
		cylinder("Leg_2", 0.45, -0.18, 0.18, 0.225),
		box("Backrest", 0.4, 0, -0.2, 0.9),
	}
	connections := map[string][]string{
		"Seat":     {"Leg_1", "Leg_2"},
		"Leg_1":    {"Seat"},
		"Leg_2":    {"Seat"},
		"Backrest": {"Seat"},
	}

	got := v.ValidateConnections(components, connections)

	// Chair legs recenter under the seat bottom point.
	assert.InDelta(t, 0, locationOf(got[1])[0], 1e-9)
	assert.InDelta(t, 0, locationOf(got[1])[1], 1e-9)
	assert.InDelta(t, 0, locationOf(got[2])[0], 1e-9)

	// Seat bottom snaps onto the highest leg top (0.45).
	assert.InDelta(t, 0.475, locationOf(got[0])[2], 1e-9)

	// Backrest bottom (0.7) snaps to the new seat top (0.5).
	assert.InDelta(t, 0.7, locationOf(got[3])[2], 1e-9)
	bottom, ok := v.point(&got[3], "bottom")
	require.True(t, ok)
	top, ok := v.point(&got[0], "top")
	require.True(t, ok)
	assert.InDelta(t, top[2], bottom[2], 1e-9)
	// The backrest keeps its planned x/y offset.
	assert.InDelta(t, -0.2, locationOf(got[3])[1], 1e-9)
}

func TestValidateConnectionsTable(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	components := []types.Component{
		box("Table_Top", 0.03, 0, 0, 0.75),
		cylinder("Table_Leg_1", 0.72, 0.5, 0.3, 0.36),
		cylinder("Table_Leg_2", 0.72, -0.5, 0.3, 0.36),
	}
	connections := map[string][]string{
		"Table_Top":   {"Table_Leg_1", "Table_Leg_2"},
		"Table_Leg_1": {"Table_Top"},
		"Table_Leg_2": {"Table_Top"},
	}

	got := v.ValidateConnections(components, connections)

	// Table legs keep their planned spread.
	assert.InDelta(t, 0.5, locationOf(got[1])[0], 1e-9)
	assert.InDelta(t, -0.5, locationOf(got[2])[0], 1e-9)

	// Top bottom face (0.735) drops to the leg tops (0.72).
	assert.InDelta(t, 0.735, locationOf(got[0])[2], 1e-9)
}

func TestValidateConnectionsWithoutLegs(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	components := []types.Component{box("Seat", 0.05, 0, 0, 0.5)}
	got := v.ValidateConnections(components, map[string][]string{})

	// No legs means no snap target; the seat must not move.
	assert.InDelta(t, 0.5, locationOf(got[0])[2], 1e-9)
}

func TestValidateConnectionsUnknownNames(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	components := []types.Component{box("Shelf", 0.03, 0, 0, 1.0)}
	connections := map[string][]string{
		"Shelf":   {"Phantom"},
		"Phantom": {"Shelf"},
	}

	got := v.ValidateConnections(components, connections)
	assert.InDelta(t, 1.0, locationOf(got[0])[2], 1e-9)
}

func TestValidateAndFix(t *testing.T) {
	v := NewValidator(zaptest.NewLogger(t))

	t.Run("full chair repair", func(t *testing.T) {
		components := []types.Component{
			box("Seat", 0.05, 0, 0, 0.6),
			cylinder("Leg_1", 0.45, 0.02, 0.02, 0.325),
			cylinder("Leg_2", 0.45, -0.02, 0.02, 0.325),
		}
		connections := map[string][]string{
			"Seat":  {"Leg_1", "Leg_2"},
			"Leg_1": {"Seat"},
			"Leg_2": {"Seat"},
		}

		got := v.ValidateAndFix(components, connections)

		require.Len(t, got, 3)
		// Legs grounded.
		assert.InDelta(t, 0, v.LowestPoint(&got[1]), 1e-9)
		// Seat bottom meets the leg tops.
		seatBottom, _ := v.point(&got[0], "bottom")
		legTop, _ := v.point(&got[1], "top")
		assert.InDelta(t, legTop[2], seatBottom[2], 1e-9)
	})

	t.Run("params are never modified", func(t *testing.T) {
		components := []types.Component{
			cylinder("Leg", 0.45, 0.3, 0.3, 0.6),
			box("Seat", 0.05, 0, 0, 0.9),
		}
		got := v.ValidateAndFix(components, map[string][]string{})

		assert.Equal(t, 0.45, got[0].Operations[0].Params["height"])
		assert.Equal(t, 0.05, got[1].Operations[0].Params["height"])
	})

	t.Run("short transforms are normalized", func(t *testing.T) {
		components := []types.Component{{
			Name: "Base",
			Operations: []types.Operation{{
				Operation: types.OpBoxMesh,
				Params:    map[string]any{"height": 0.2},
				Transform: types.Transform{Location: []float64{0, 0}},
			}},
		}}
		got := v.ValidateAndFix(components, nil)
		assert.Len(t, locationOf(got[0]), 3)
		assert.Equal(t, []float64{1, 1, 1}, got[0].Operations[0].Transform.Scale)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, v.ValidateAndFix(nil, nil))
	})
}

func TestIsBase(t *testing.T) {
	assert.True(t, isBase("Table_Leg_1"))
	assert.True(t, isBase("Bed_Frame"))
	assert.True(t, isBase("Star_base"))
	assert.False(t, isBase("Seat"))
	assert.False(t, isBase("Backrest"))
}
