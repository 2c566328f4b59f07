// Package fixtures holds canned stage payloads for pipeline tests.
// Together they describe a small three-legged wooden stool.
package fixtures

const (
	// ClassifierPass accepts the prompt as indoor furniture.
	ClassifierPass = `{"classification": "pass", "explanation": "A stool is indoor furniture"}`

	// ClassifierFail rejects the prompt.
	ClassifierFail = `{"classification": "does not pass", "explanation": "Not a physical indoor object"}`

	// Decomposition splits the stool into a seat and three legs.
	Decomposition = `{
		"description": "A small three-legged wooden stool",
		"components": [
			{"name": "Seat", "quantity": 1, "description": "round seat", "geometric_properties": {"shape": "cylinder"}},
			{"name": "Leg", "quantity": 3, "description": "splayed leg", "geometric_properties": {"shape": "cylinder", "identical": true}}
		],
		"spatial_relationships": ["legs support seat"]
	}`

	// Plan holds one build operation per expanded component.
	Plan = `{
		"components": [
			{"name": "Seat", "operations": [{"operation": "mesh.build_cylinder_mesh", "params": {"radius": 0.18, "height": 0.04, "segments": 32}, "transform": {"location": [0, 0, 0.45]}}]},
			{"name": "Leg_1", "operations": [{"operation": "mesh.build_cylinder_mesh", "params": {"radius": 0.02, "height": 0.45, "segments": 16}, "transform": {"location": [0.12, 0, 0.225]}}]},
			{"name": "Leg_2", "operations": [{"operation": "mesh.build_cylinder_mesh", "params": {"radius": 0.02, "height": 0.45, "segments": 16}, "transform": {"location": [-0.06, 0.1, 0.225]}}]},
			{"name": "Leg_3", "operations": [{"operation": "mesh.build_cylinder_mesh", "params": {"radius": 0.02, "height": 0.45, "segments": 16}, "transform": {"location": [-0.06, -0.1, 0.225]}}]}
		]
	}`

	// Connections maps each component to the ones it touches.
	Connections = `{
		"Seat": ["Leg_1", "Leg_2", "Leg_3"],
		"Leg_1": ["Seat"], "Leg_2": ["Seat"], "Leg_3": ["Seat"]
	}`

	// Materials assigns a wood finish to the seat.
	Materials = `{
		"Seat": {
			"material_path": "infinigen.assets.materials.wood.oak",
			"material_params": {"scale": 1.0, "seed": 7.0},
			"selection": null,
			"reason": "Warm oak finish for a plain stool"
		}
	}`
)
