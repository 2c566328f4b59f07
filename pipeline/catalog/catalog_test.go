package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllEntriesComplete(t *testing.T) {
	all := All()
	require.Len(t, all, 25)

	seen := make(map[string]bool)
	for _, f := range all {
		assert.NotEmpty(t, f.Name)
		assert.NotEmpty(t, f.Source)
		assert.NotEmpty(t, f.Class)
		assert.True(t, strings.HasSuffix(f.Class, "Factory"), "class %q should end in Factory", f.Class)
		assert.NotEmpty(t, f.Operations, "%s needs at least one operation", f.Name)
		assert.False(t, seen[f.Name], "duplicate name %q", f.Name)
		seen[f.Name] = true
	}
}

func TestCategoryCounts(t *testing.T) {
	assert.Len(t, ByCategory(CategorySeating), 8)
	assert.Len(t, ByCategory(CategoryStorage), 10)
	assert.Len(t, ByCategory(CategoryTables), 2)
	assert.Len(t, ByCategory(CategoryElements), 5)
}

func TestFind(t *testing.T) {
	f, ok := Find("table_dining")
	require.True(t, ok)
	assert.Equal(t, "TableDiningFactory", f.Class)
	assert.Equal(t, CategoryTables, f.Category)

	_, ok = Find("spaceship")
	assert.False(t, ok)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	require.Len(t, names, 25)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	assert.Contains(t, names, "bar_chair")
	assert.Contains(t, names, "rug")
}

func TestContext(t *testing.T) {
	ctx := Context()

	assert.Contains(t, ctx, "AVAILABLE FURNITURE FACTORY IMPLEMENTATIONS:")
	for _, header := range []string{"SEATING FACTORIES:", "STORAGE FACTORIES:", "TABLES FACTORIES:", "ELEMENTS FACTORIES:"} {
		assert.Contains(t, ctx, header)
	}
	assert.Contains(t, ctx, "From tables/table_dining.py:")
	assert.Contains(t, ctx, "Class: TableDiningFactory")
	assert.Contains(t, ctx, "mesh.build_box_mesh")

	// Seating should be rendered before tables.
	assert.Less(t, strings.Index(ctx, "SEATING FACTORIES:"), strings.Index(ctx, "TABLES FACTORIES:"))
}
