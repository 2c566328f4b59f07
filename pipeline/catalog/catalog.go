// Package catalog holds the curated furniture factory reference that
// grounds the primitive planner.
//
// Entries describe the procedural factories the planner should imitate:
// their construction parameters and the geometry operations they lean on.
// The catalog is static; it trades live source scanning for a reviewed
// summary that cannot drift with checkout layout.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Category groups factories the way the asset library shelves them.
type Category string

const (
	CategorySeating  Category = "seating"
	CategoryStorage  Category = "storage"
	CategoryTables   Category = "tables"
	CategoryElements Category = "elements"
)

// Categories in presentation order.
func Categories() []Category {
	return []Category{CategorySeating, CategoryStorage, CategoryTables, CategoryElements}
}

// Factory describes one procedural furniture factory.
type Factory struct {
	// Name is the catalog key, e.g. "bar_chair".
	Name string

	Category Category

	// Source is the factory's library path, kept for prompt context.
	Source string

	// Class is the factory class name.
	Class string

	// Constructor lists the factory's init parameters.
	Constructor string

	// Parameters lists sampled construction parameters with typical values.
	Parameters []string

	// Operations lists the geometry calls the factory leans on.
	Operations []string
}

var factories = []Factory{
	// --- seating ---
	{
		Name: "bar_chair", Category: CategorySeating,
		Source: "seating/chairs/bar_chair.py", Class: "BarChairFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"seat_height = uniform(0.65, 0.85)",
			"seat_radius = uniform(0.16, 0.2)",
			"leg_radius = uniform(0.015, 0.025)",
			"footrest_height = uniform(0.2, 0.3)",
		},
		Operations: []string{
			"mesh.build_cylinder_mesh(radius=0.18, height=0.06, segments=32)",
			"mesh.build_cylinder_mesh(radius=0.02, height=0.75, segments=16)",
			"mesh.build_torus_mesh(major_radius=0.18, minor_radius=0.015)",
		},
	},
	{
		Name: "chair", Category: CategorySeating,
		Source: "seating/chairs/chair.py", Class: "ChairFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"seat_height = uniform(0.42, 0.47)",
			"seat_width = uniform(0.38, 0.45)",
			"back_height = uniform(0.35, 0.5)",
			"leg_thickness = uniform(0.03, 0.05)",
			"back_tilt = uniform(0.05, 0.15)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.42, depth=0.4, height=0.04)",
			"mesh.build_cylinder_mesh(radius=0.02, height=0.44, segments=16)",
			"draw.bezier_curve(anchors, to_mesh=True)",
		},
	},
	{
		Name: "office_chair", Category: CategorySeating,
		Source: "seating/chairs/office_chair.py", Class: "OfficeChairFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"seat_height = uniform(0.45, 0.55)",
			"base_radius = uniform(0.25, 0.35)",
			"n_wheels = 5",
			"column_radius = uniform(0.03, 0.05)",
		},
		Operations: []string{
			"mesh.build_cylinder_mesh(radius=0.04, height=0.3, segments=24)",
			"mesh.build_sphere_mesh(radius=0.04, segments=16, rings=8)",
			"mesh.build_box_mesh(width=0.48, depth=0.46, height=0.08)",
		},
	},
	{
		Name: "bed", Category: CategorySeating,
		Source: "seating/bed.py", Class: "BedFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.4, 1.9)",
			"length = uniform(2.0, 2.2)",
			"frame_height = uniform(0.25, 0.4)",
			"headboard_height = uniform(0.5, 1.0)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.6, depth=2.1, height=0.3)",
			"mesh.build_box_mesh(width=1.6, depth=0.05, height=0.8)",
		},
	},
	{
		Name: "bedframe", Category: CategorySeating,
		Source: "seating/bedframe.py", Class: "BedFrameFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"rail_height = uniform(0.15, 0.25)",
			"rail_thickness = uniform(0.03, 0.06)",
			"leg_height = uniform(0.1, 0.2)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.65, depth=0.05, height=0.2)",
			"mesh.build_box_mesh(width=0.08, depth=0.08, height=0.15)",
		},
	},
	{
		Name: "mattress", Category: CategorySeating,
		Source: "seating/mattress.py", Class: "MattressFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"thickness = uniform(0.18, 0.3)",
			"corner_bevel = uniform(0.02, 0.05)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.55, depth=2.0, height=0.25)",
			"mesh.bevel(obj, width=0.04)",
			"bpy.ops.object.shade_smooth()",
		},
	},
	{
		Name: "pillow", Category: CategorySeating,
		Source: "seating/pillow.py", Class: "PillowFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.5, 0.7)",
			"depth = uniform(0.35, 0.5)",
			"puffiness = uniform(0.1, 0.18)",
		},
		Operations: []string{
			"mesh.build_sphere_mesh(radius=0.3, segments=32, rings=16)",
			"bpy.ops.object.shade_smooth()",
		},
	},
	{
		Name: "sofa", Category: CategorySeating,
		Source: "seating/sofa.py", Class: "SofaFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.6, 2.4)",
			"seat_height = uniform(0.4, 0.45)",
			"arm_width = uniform(0.15, 0.25)",
			"back_height = uniform(0.35, 0.5)",
			"cushion_count = choice([2, 3])",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=2.0, depth=0.9, height=0.4)",
			"mesh.build_sphere_mesh(radius=0.3, segments=32, rings=16)",
			"mesh.bevel(obj, width=0.05)",
		},
	},

	// --- storage ---
	{
		Name: "single_cabinet", Category: CategoryStorage,
		Source: "shelves/single_cabinet.py", Class: "SingleCabinetFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.5, 0.8)",
			"height = uniform(0.7, 1.2)",
			"depth = uniform(0.35, 0.5)",
			"panel_thickness = 0.018",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.6, depth=0.4, height=0.018)",
			"mesh.build_box_mesh(width=0.018, depth=0.4, height=0.9)",
			"mesh.build_cylinder_mesh(radius=0.01, height=0.03, segments=16)",
		},
	},
	{
		Name: "cell_shelf", Category: CategoryStorage,
		Source: "shelves/cell_shelf.py", Class: "CellShelfFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"n_cells_x = choice([2, 3, 4])",
			"n_cells_z = choice([2, 3, 4])",
			"cell_size = uniform(0.3, 0.4)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.2, depth=0.35, height=0.018)",
			"mesh.build_box_mesh(width=0.018, depth=0.35, height=1.2)",
		},
	},
	{
		Name: "kitchen_cabinet", Category: CategoryStorage,
		Source: "shelves/kitchen_cabinet.py", Class: "KitchenCabinetFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.6, 1.2)",
			"counter_height = 0.9",
			"door_count = choice([1, 2])",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.9, depth=0.6, height=0.9)",
			"mesh.build_box_mesh(width=0.44, depth=0.018, height=0.7)",
		},
	},
	{
		Name: "large_shelf", Category: CategoryStorage,
		Source: "shelves/large_shelf.py", Class: "LargeShelfFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.8, 1.6)",
			"height = uniform(1.6, 2.2)",
			"n_shelves = choice([4, 5, 6])",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.2, depth=0.35, height=0.02)",
			"mesh.build_box_mesh(width=0.02, depth=0.35, height=2.0)",
		},
	},
	{
		Name: "simple_bookcase", Category: CategoryStorage,
		Source: "shelves/simple_bookcase.py", Class: "SimpleBookcaseFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.6, 1.0)",
			"height = uniform(1.2, 2.0)",
			"shelf_spacing = uniform(0.28, 0.38)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.8, depth=0.28, height=0.02)",
			"mesh.build_box_mesh(width=0.02, depth=0.28, height=1.8)",
		},
	},
	{
		Name: "simple_desk", Category: CategoryStorage,
		Source: "shelves/simple_desk.py", Class: "SimpleDeskFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.0, 1.6)",
			"depth = uniform(0.5, 0.8)",
			"height = uniform(0.72, 0.76)",
			"top_thickness = uniform(0.02, 0.04)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.2, depth=0.6, height=0.03)",
			"mesh.build_cylinder_mesh(radius=0.025, height=0.72, segments=16)",
		},
	},
	{
		Name: "triangle_shelf", Category: CategoryStorage,
		Source: "shelves/triangle_shelf.py", Class: "TriangleShelfFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"side = uniform(0.3, 0.5)",
			"n_levels = choice([2, 3])",
		},
		Operations: []string{
			"mesh.build_prism_mesh(n=3, r_min=0.3, r_max=0.3, height=0.02)",
			"mesh.build_box_mesh(width=0.02, depth=0.02, height=0.4)",
		},
	},
	{
		Name: "tv_stand", Category: CategoryStorage,
		Source: "shelves/tv_stand.py", Class: "TVStandFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.2, 1.8)",
			"height = uniform(0.4, 0.6)",
			"depth = uniform(0.35, 0.45)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.5, depth=0.4, height=0.02)",
			"mesh.build_box_mesh(width=0.02, depth=0.4, height=0.5)",
		},
	},
	{
		Name: "kitchen_space", Category: CategoryStorage,
		Source: "shelves/kitchen_space.py", Class: "KitchenSpaceFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"run_length = uniform(1.8, 3.0)",
			"counter_height = 0.9",
			"upper_clearance = uniform(0.45, 0.6)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=2.4, depth=0.6, height=0.9)",
			"mesh.build_box_mesh(width=2.4, depth=0.35, height=0.7)",
		},
	},
	{
		Name: "kitchen_island", Category: CategoryStorage,
		Source: "shelves/kitchen_island.py", Class: "KitchenIslandFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.2, 2.0)",
			"depth = uniform(0.7, 1.0)",
			"counter_overhang = uniform(0.05, 0.25)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.6, depth=0.8, height=0.9)",
			"mesh.build_box_mesh(width=1.7, depth=0.9, height=0.04)",
		},
	},

	// --- tables ---
	{
		Name: "table_dining", Category: CategoryTables,
		Source: "tables/table_dining.py", Class: "TableDiningFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.2, 2.0)",
			"depth = uniform(0.8, 1.0)",
			"height = uniform(0.73, 0.77)",
			"top_thickness = uniform(0.025, 0.04)",
			"leg_style = choice(['straight', 'single_stand'])",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.2, depth=0.8, height=0.03)",
			"mesh.build_cylinder_mesh(radius=0.03, height=0.72, segments=16)",
		},
	},
	{
		Name: "table_cocktail", Category: CategoryTables,
		Source: "tables/table_cocktail.py", Class: "TableCocktailFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"top_radius = uniform(0.25, 0.4)",
			"height = uniform(0.45, 0.55)",
			"base_radius = uniform(0.15, 0.25)",
		},
		Operations: []string{
			"mesh.build_cylinder_mesh(radius=0.35, height=0.03, segments=32)",
			"mesh.build_cylinder_mesh(radius=0.04, height=0.5, segments=24)",
			"mesh.build_cone_mesh(radius=0.2, height=0.05, segments=32)",
		},
	},

	// --- elements ---
	{
		Name: "glass_panel_door", Category: CategoryElements,
		Source: "elements/doors/glass_panel_door.py", Class: "GlassPanelDoorFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.8, 1.0)",
			"height = uniform(2.0, 2.2)",
			"frame_width = uniform(0.08, 0.12)",
			"n_panels = choice([1, 2, 4])",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.9, depth=0.04, height=2.1)",
			"mesh.build_plane_mesh(width=0.7, depth=1.8)",
		},
	},
	{
		Name: "lite_door", Category: CategoryElements,
		Source: "elements/doors/lite_door.py", Class: "LiteDoorFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.8, 1.0)",
			"lite_rows = choice([2, 3, 4])",
			"lite_cols = choice([1, 2])",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.9, depth=0.04, height=2.1)",
			"mesh.build_plane_mesh(width=0.2, depth=0.3)",
		},
	},
	{
		Name: "louver_door", Category: CategoryElements,
		Source: "elements/doors/louver_door.py", Class: "LouverDoorFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.7, 0.9)",
			"slat_angle = uniform(0.3, 0.6)",
			"slat_spacing = uniform(0.04, 0.07)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.8, depth=0.04, height=2.0)",
			"mesh.build_box_mesh(width=0.7, depth=0.01, height=0.05)",
		},
	},
	{
		Name: "panel_door", Category: CategoryElements,
		Source: "elements/doors/panel_door.py", Class: "PanelDoorFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(0.8, 1.0)",
			"n_panels = choice([2, 4, 6])",
			"panel_inset = uniform(0.01, 0.02)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=0.9, depth=0.045, height=2.1)",
			"mesh.inset_faces(obj, face_idx)",
		},
	},
	{
		Name: "rug", Category: CategoryElements,
		Source: "elements/rug.py", Class: "RugFactory",
		Constructor: "(factory_seed, coarse, dimensions)",
		Parameters: []string{
			"width = uniform(1.2, 2.4)",
			"depth = uniform(0.8, 1.6)",
			"thickness = uniform(0.008, 0.015)",
		},
		Operations: []string{
			"mesh.build_box_mesh(width=1.8, depth=1.2, height=0.01)",
			"mesh.bevel(obj, width=0.005)",
		},
	},
}

// All returns every catalog entry.
func All() []Factory {
	out := make([]Factory, len(factories))
	copy(out, factories)
	return out
}

// Names returns all factory names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(factories))
	for _, f := range factories {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Find looks up a factory by name.
func Find(name string) (Factory, bool) {
	for _, f := range factories {
		if f.Name == name {
			return f, true
		}
	}
	return Factory{}, false
}

// ByCategory returns the entries for one category in declaration order.
func ByCategory(c Category) []Factory {
	var out []Factory
	for _, f := range factories {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// Context renders the factory reference block for the planner prompt.
func Context() string {
	var b strings.Builder

	b.WriteString(`
AVAILABLE FURNITURE FACTORY IMPLEMENTATIONS:
The following patterns are extracted from actual furniture factories.
Study these to understand:
1. Available parameters and their typical values
2. Implementation patterns for different furniture types
3. Common geometric construction approaches
4. Standard dimensions and proportions
`)

	for _, category := range Categories() {
		fmt.Fprintf(&b, "\n%s FACTORIES:\n", strings.ToUpper(string(category)))
		for _, f := range ByCategory(category) {
			fmt.Fprintf(&b, "\nFrom %s:\n", f.Source)
			fmt.Fprintf(&b, "Class: %s\n", f.Class)
			fmt.Fprintf(&b, "Constructor:%s\n", f.Constructor)
			if len(f.Parameters) > 0 {
				b.WriteString("sample_parameters:\nDefined Parameters:\n")
				for _, p := range f.Parameters {
					fmt.Fprintf(&b, "- %s\n", p)
				}
			}
			if len(f.Operations) > 0 {
				b.WriteString("Key Operations:\n")
				for _, op := range f.Operations {
					fmt.Fprintf(&b, "  %s\n", op)
				}
			}
		}
	}

	return b.String()
}
