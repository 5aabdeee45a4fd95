package debugui_test

import (
	"reflect"
	"testing"

	"github.com/plus3/kiln/ecs"
	"github.com/plus3/kiln/ecs/debugui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Position struct {
	X, Y float32
}

type Health struct {
	Current int
	Max     int
	label   string
}

type Target struct {
	Pos  *Position
	Name string
}

func newWorld(t *testing.T) (*ecs.World, []ecs.EntityId) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Health](registry)
	world := ecs.NewWorld(registry)

	ids := []ecs.EntityId{
		world.Spawn(Position{X: 1}),
		world.Spawn(Position{X: 2}, Health{Current: 5, Max: 5}),
		world.Spawn(Position{X: 3}, Health{Current: 1, Max: 5}),
		world.Spawn(Health{Current: 9, Max: 9}),
	}
	return world, ids
}

func TestEntityBrowserFilters(t *testing.T) {
	world, ids := newWorld(t)

	browser := debugui.NewEntityBrowser(10)
	browser.Refresh(world)
	require.Len(t, browser.Filtered(), 4)

	browser.SetFilter("health")
	assert.Len(t, browser.Filtered(), 3)

	browser.SetFilter("")
	loc, ok := world.LocationOf(ids[1])
	require.True(t, ok)
	browser.FilterArchetype(loc.Archetype)
	filtered := browser.Filtered()
	require.Len(t, filtered, 2)
	assert.ElementsMatch(t, []ecs.EntityId{ids[1], ids[2]}, []ecs.EntityId{filtered[0].ID, filtered[1].ID})
	assert.Equal(t, 2, filtered[0].ComponentCount)
}

func TestEntityBrowserSortAndRefresh(t *testing.T) {
	world, ids := newWorld(t)

	browser := debugui.NewEntityBrowser(10)
	browser.Refresh(world)
	browser.SortBy(0, false)
	assert.Equal(t, ids[3], browser.Filtered()[0].ID)

	browser.SortBy(3, true)
	assert.Equal(t, 1, browser.Filtered()[0].ComponentCount)

	world.Despawn(ids[0])
	browser.Refresh(world)
	assert.Len(t, browser.Filtered(), 3)
}

func TestArchetypeViewerCountsEntities(t *testing.T) {
	world, ids := newWorld(t)

	viewer := debugui.NewArchetypeViewer()
	viewer.Refresh(world)
	rows := viewer.Rows()
	require.Len(t, rows, len(world.Archetypes()))
	assert.Equal(t, 2, rows[0].EntityCount, "sorted by entity count, largest first")

	world.Despawn(ids[1])
	world.Despawn(ids[2])
	viewer.Refresh(world)
	for _, row := range viewer.Rows() {
		assert.LessOrEqual(t, row.EntityCount, 1)
	}

	viewer.SortBy(0, true)
	for i, row := range viewer.Rows() {
		assert.Equal(t, uint32(i), row.Index)
	}
}

func TestQueryDebuggerMatch(t *testing.T) {
	world, _ := newWorld(t)

	debugger := debugui.NewQueryDebugger()
	assert.Len(t, debugger.Match(world), len(world.Archetypes()), "no requirement matches everything")

	debugger.Toggle(reflect.TypeFor[Position](), true)
	debugger.Toggle(reflect.TypeFor[Health](), true)
	matching := debugger.Match(world)
	require.Len(t, matching, 1)
	assert.Equal(t, 2, matching[0].Len())

	debugger.Toggle(reflect.TypeFor[Position](), false)
	total := 0
	for _, archetype := range debugger.Match(world) {
		total += archetype.Len()
	}
	assert.Equal(t, 3, total)
}

func TestReflectionCacheSkipsUnexportedFields(t *testing.T) {
	cache := debugui.NewReflectionCache()

	fields := cache.GetFields(reflect.TypeFor[Health]())
	require.Len(t, fields, 2)
	assert.Equal(t, "Current", fields[0].Name)
	assert.Equal(t, reflect.Int, fields[1].Kind)

	target := cache.GetFields(reflect.TypeFor[Target]())
	require.Len(t, target, 2)
	assert.True(t, target[0].IsPointer)
	assert.Equal(t, reflect.TypeFor[Position](), target[0].Type)
	assert.Equal(t, reflect.Struct, target[0].Kind)

	assert.Empty(t, cache.GetFields(reflect.TypeFor[int]()))
}

func TestPerformanceStatsAverage(t *testing.T) {
	stats := debugui.NewPerformanceStats(4)
	assert.Zero(t, stats.AverageFrameTime())

	stats.Record(0.010)
	stats.Record(0.020)
	assert.InDelta(t, 15.0, stats.AverageFrameTime(), 1e-4)

	for range 4 {
		stats.Record(0.005)
	}
	assert.InDelta(t, 5.0, stats.AverageFrameTime(), 1e-4)
}
