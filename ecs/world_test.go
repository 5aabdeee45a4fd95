package ecs_test

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/plus3/kiln/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIdEncoding(t *testing.T) {
	tests := []struct {
		index      uint32
		generation uint32
	}{
		{0, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{1, 1},
		{12345, 67890},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("index=%d,generation=%d", tt.index, tt.generation), func(t *testing.T) {
			entityId := ecs.NewEntityId(tt.index, tt.generation)
			assert.Equal(t, tt.index, entityId.Index())
			assert.Equal(t, tt.generation, entityId.Generation())
			assert.False(t, entityId.IsZero())
		})
	}
}

func TestSpawnEntity(t *testing.T) {
	world := newTestWorld()

	id := world.Spawn(&Position{X: 1.0, Y: 2.0}, &Velocity{DX: 0.5, DY: 0.5}, Score(32))
	assert.False(t, id.IsZero())
	assert.Equal(t, uint32(1), id.Generation())
	assert.True(t, world.Contains(id))
	assert.Equal(t, 1, world.EntityCount())

	pos := ecs.GetComponent[Position](world, id)
	require.NotNil(t, pos)
	assert.Equal(t, Position{X: 1, Y: 2}, *pos)
	assert.Equal(t, Score(32), *ecs.GetComponent[Score](world, id))
	assert.Nil(t, ecs.GetComponent[Health](world, id))
}

func TestGetComponentByType(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 3.0, Y: 4.0}, Name{Value: "Test Entity"})

	posComp := world.Get(id, reflect.TypeOf(Position{}))
	require.NotNil(t, posComp)
	assert.Equal(t, float32(3.0), posComp.(*Position).X)

	nameComp := world.Get(id, reflect.TypeOf(Name{}))
	require.NotNil(t, nameComp)
	assert.Equal(t, "Test Entity", nameComp.(*Name).Value)

	assert.Nil(t, world.Get(id, reflect.TypeOf(Velocity{})))
	assert.True(t, world.Has(id, reflect.TypeOf(Position{})))
	assert.False(t, world.Has(id, reflect.TypeOf(Velocity{})))
	assert.Len(t, world.Components(id), 2)
}

func TestDespawnReusesIndexWithNextGeneration(t *testing.T) {
	world := newTestWorld()

	first := world.Spawn(Position{X: 1})
	require.True(t, world.Despawn(first))
	second := world.Spawn(Position{X: 2})

	assert.Equal(t, first.Index(), second.Index())
	assert.Equal(t, first.Generation()+1, second.Generation())

	_, ok := world.LocationOf(first)
	assert.False(t, ok)
	assert.False(t, world.Contains(first))
	assert.Nil(t, ecs.GetComponent[Position](world, first))
	assert.Equal(t, float32(2), ecs.GetComponent[Position](world, second).X)
}

func TestStaleEntityOperationsAreNoOps(t *testing.T) {
	world := newTestWorld()
	stale := world.Spawn(Position{X: 1})
	world.Despawn(stale)
	live := world.Spawn(Position{X: 2})

	assert.False(t, world.Despawn(stale))
	assert.False(t, world.Insert(stale, Velocity{}))
	assert.False(t, ecs.RemoveComponent[Position](world, stale))
	assert.False(t, world.AddChild(live, stale))

	assert.True(t, world.Contains(live))
	assert.False(t, ecs.HasComponent[Velocity](world, live))
	world.CheckInvariants()
}

func TestDespawnSwapsLastRowIntoHole(t *testing.T) {
	world := newTestWorld()
	a := world.Spawn(Position{X: 1})
	b := world.Spawn(Position{X: 2})
	c := world.Spawn(Position{X: 3})

	locA, _ := world.LocationOf(a)
	require.True(t, world.Despawn(a))

	locC, ok := world.LocationOf(c)
	require.True(t, ok)
	assert.Equal(t, locA, locC)

	found, ok := world.EntityAt(locC)
	require.True(t, ok)
	assert.Equal(t, c, found)
	assert.Equal(t, float32(3), ecs.GetComponent[Position](world, c).X)
	assert.Equal(t, float32(2), ecs.GetComponent[Position](world, b).X)
	world.CheckInvariants()
}

func TestInsertMovesEntityToNewArchetype(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1, Y: 2})
	before, _ := world.LocationOf(id)

	require.True(t, world.Insert(id, Velocity{DX: 3, DY: 4}))

	after, _ := world.LocationOf(id)
	assert.NotEqual(t, before.Archetype, after.Archetype)
	assert.Equal(t, Position{X: 1, Y: 2}, *ecs.GetComponent[Position](world, id))
	assert.Equal(t, Velocity{DX: 3, DY: 4}, *ecs.GetComponent[Velocity](world, id))
	world.CheckInvariants()
}

func TestInsertKeepsTicksOfMovedComponents(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1})
	spawnTick := world.CurrentTick()
	world.Tick()

	world.Insert(id, Velocity{})

	added, changed, ok := world.ComponentTicks(id, reflect.TypeFor[Position]())
	require.True(t, ok)
	assert.Equal(t, spawnTick, added)
	assert.Equal(t, ecs.Tick(0), changed)

	added, _, _ = world.ComponentTicks(id, reflect.TypeFor[Velocity]())
	assert.Equal(t, world.CurrentTick(), added)
}

func TestInsertExistingComponentOverwritesInPlace(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Health{Current: 10, Max: 10})
	world.Tick()
	before, _ := world.LocationOf(id)

	require.True(t, world.Insert(id, Health{Current: 5, Max: 10}))

	after, _ := world.LocationOf(id)
	assert.Equal(t, before, after)
	assert.Equal(t, 5, ecs.GetComponent[Health](world, id).Current)

	_, changed, _ := world.ComponentTicks(id, reflect.TypeFor[Health]())
	assert.Equal(t, world.CurrentTick(), changed)
}

func TestMarkChangedAfterUntypedWrite(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Health{Current: 10, Max: 10})
	world.Tick()

	health := world.Get(id, reflect.TypeFor[Health]()).(*Health)
	health.Current = 3
	_, changed, _ := world.ComponentTicks(id, reflect.TypeFor[Health]())
	assert.Less(t, changed, world.CurrentTick())

	require.True(t, world.MarkChanged(id, reflect.TypeFor[Health]()))
	_, changed, _ = world.ComponentTicks(id, reflect.TypeFor[Health]())
	assert.Equal(t, world.CurrentTick(), changed)

	assert.False(t, world.MarkChanged(id, reflect.TypeFor[Velocity]()))
	world.Despawn(id)
	assert.False(t, world.MarkChanged(id, reflect.TypeFor[Health]()))
}

func TestRemoveComponent(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1}, Velocity{DX: 2}, Name{Value: "n"})

	require.True(t, ecs.RemoveComponent[Velocity](world, id))
	assert.False(t, ecs.HasComponent[Velocity](world, id))
	assert.Equal(t, float32(1), ecs.GetComponent[Position](world, id).X)
	assert.Equal(t, "n", ecs.GetComponent[Name](world, id).Value)

	assert.False(t, ecs.RemoveComponent[Velocity](world, id))
	assert.False(t, ecs.RemoveComponent[Health](world, id))

	require.True(t, ecs.RemoveComponent[Position](world, id))
	require.True(t, ecs.RemoveComponent[Name](world, id))
	assert.True(t, world.Contains(id), "an entity without components stays alive")
	world.CheckInvariants()
}

func TestArchetypeEdgesAreReused(t *testing.T) {
	world := newTestWorld()
	a := world.Spawn(Position{})
	b := world.Spawn(Position{})

	world.Insert(a, Velocity{})
	count := len(world.Archetypes())
	world.Insert(b, Velocity{})

	assert.Equal(t, count, len(world.Archetypes()))
	locA, _ := world.LocationOf(a)
	locB, _ := world.LocationOf(b)
	assert.Equal(t, locA.Archetype, locB.Archetype)
}

func TestSpawnComponentOrderDoesNotMatter(t *testing.T) {
	world := newTestWorld()
	a := world.Spawn(Position{}, Velocity{})
	b := world.Spawn(Velocity{}, Position{})

	locA, _ := world.LocationOf(a)
	locB, _ := world.LocationOf(b)
	assert.Equal(t, locA.Archetype, locB.Archetype)
}

func TestSpawnUnregisteredComponentPanics(t *testing.T) {
	world := newTestWorld()
	assert.Panics(t, func() {
		world.Spawn(Damage{Amount: 1})
	})
}

func TestComponentHooks(t *testing.T) {
	registry := newTestRegistry()
	var events []string
	ecs.SetComponentHooks[Damage](registry, ecs.ComponentHooks{
		OnAdd: func(w *ecs.World, e ecs.EntityId) {
			d := ecs.GetComponent[Damage](w, e)
			events = append(events, fmt.Sprintf("add %d", d.Amount))
		},
		OnRemove: func(w *ecs.World, e ecs.EntityId) {
			d := ecs.GetComponent[Damage](w, e)
			require.NotNil(t, d, "component is still readable in OnRemove")
			events = append(events, fmt.Sprintf("remove %d", d.Amount))
		},
	})
	world := ecs.NewWorld(registry)

	a := world.Spawn(Position{}, Damage{Amount: 1})
	b := world.Spawn(Position{})
	world.Insert(b, Damage{Amount: 2})
	world.Insert(b, Damage{Amount: 3})
	ecs.RemoveComponent[Damage](world, b)
	world.Despawn(a)

	assert.Equal(t, []string{"add 1", "add 2", "remove 3", "remove 1"}, events)
}

func TestHooksMaySpawn(t *testing.T) {
	registry := newTestRegistry()
	ecs.SetComponentHooks[Damage](registry, ecs.ComponentHooks{
		OnAdd: func(w *ecs.World, e ecs.EntityId) {
			w.Spawn(Name{Value: "spawned by hook"})
		},
	})
	world := ecs.NewWorld(registry)

	world.Spawn(Damage{Amount: 1}, Position{})

	assert.Equal(t, 2, world.EntityCount())
	world.CheckInvariants()
}

func TestAddChild(t *testing.T) {
	world := newTestWorld()
	parent := world.Spawn(Name{Value: "parent"})
	other := world.Spawn(Name{Value: "other"})
	child := world.Spawn(Name{Value: "child"})

	require.True(t, world.AddChild(parent, child))
	assert.Equal(t, []ecs.EntityId{child}, ecs.GetComponent[ecs.Children](world, parent).Entities)
	p, ok := world.Parent(child)
	require.True(t, ok)
	assert.Equal(t, parent, p)

	t.Run("reparenting detaches from the old parent", func(t *testing.T) {
		require.True(t, world.AddChild(other, child))
		assert.Empty(t, ecs.GetComponent[ecs.Children](world, parent).Entities)
		assert.Equal(t, []ecs.EntityId{child}, ecs.GetComponent[ecs.Children](world, other).Entities)
	})

	t.Run("despawning a child detaches it", func(t *testing.T) {
		world.Despawn(child)
		assert.Empty(t, ecs.GetComponent[ecs.Children](world, other).Entities)
	})

	t.Run("an entity cannot parent itself", func(t *testing.T) {
		assert.False(t, world.AddChild(parent, parent))
	})
}

func TestDespawnParentClearsChildLinks(t *testing.T) {
	world := newTestWorld()
	parent := world.Spawn(Name{Value: "parent"})
	child := world.Spawn(Name{Value: "child"})
	world.AddChild(parent, child)

	world.Despawn(parent)

	assert.True(t, world.Contains(child))
	_, ok := world.Parent(child)
	assert.False(t, ok)
}

func TestAddChildRejectsCycles(t *testing.T) {
	world := newTestWorld()
	a := world.Spawn(Name{Value: "a"})
	b := world.Spawn(Name{Value: "b"})
	c := world.Spawn(Name{Value: "c"})
	require.True(t, world.AddChild(a, b))
	require.True(t, world.AddChild(b, c))

	assert.False(t, world.AddChild(b, a), "a is b's parent")
	assert.False(t, world.AddChild(c, a), "a is c's grandparent")
	_, ok := world.Parent(a)
	assert.False(t, ok)

	require.True(t, world.DespawnRecursive(a))
	assert.False(t, world.Contains(b))
	assert.False(t, world.Contains(c))
	assert.Zero(t, world.EntityCount())
	world.CheckInvariants()
}

func TestDespawnRecursive(t *testing.T) {
	world := newTestWorld()
	root := world.Spawn(Name{Value: "root"})
	mid := world.Spawn(Name{Value: "mid"})
	leaf := world.Spawn(Name{Value: "leaf"})
	bystander := world.Spawn(Name{Value: "bystander"})
	world.AddChild(root, mid)
	world.AddChild(mid, leaf)

	require.True(t, world.DespawnRecursive(root))

	assert.False(t, world.Contains(root))
	assert.False(t, world.Contains(mid))
	assert.False(t, world.Contains(leaf))
	assert.True(t, world.Contains(bystander))
	world.CheckInvariants()
}

func TestTickClearsAddedState(t *testing.T) {
	world := newTestWorld()
	id := world.Spawn(Position{})
	added, _, _ := world.ComponentTicks(id, reflect.TypeFor[Position]())
	assert.Equal(t, world.CurrentTick(), added)

	world.Tick()

	added, _, _ = world.ComponentTicks(id, reflect.TypeFor[Position]())
	assert.NotEqual(t, world.CurrentTick(), added)
	assert.Less(t, added, world.CurrentTick())
}

func TestWorldInvariantsUnderRandomOperations(t *testing.T) {
	world := newTestWorld()
	rng := rand.New(rand.NewSource(42))
	var live []ecs.EntityId

	components := []func() any{
		func() any { return Position{X: rng.Float32()} },
		func() any { return Velocity{DX: rng.Float32()} },
		func() any { return Health{Current: rng.Intn(100)} },
		func() any { return Name{Value: "n"} },
		func() any { return Score(rng.Int31()) },
	}
	types := []reflect.Type{
		reflect.TypeFor[Position](), reflect.TypeFor[Velocity](), reflect.TypeFor[Health](),
		reflect.TypeFor[Name](), reflect.TypeFor[Score](),
	}

	for step := 0; step < 5000; step++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(live) == 0:
			var bundle []any
			for _, gen := range components {
				if rng.Intn(2) == 0 {
					bundle = append(bundle, gen())
				}
			}
			live = append(live, world.Spawn(bundle...))
		case op < 6:
			idx := rng.Intn(len(live))
			require.True(t, world.Despawn(live[idx]))
			live = append(live[:idx], live[idx+1:]...)
		case op < 8:
			world.Insert(live[rng.Intn(len(live))], components[rng.Intn(len(components))]())
		default:
			world.Remove(live[rng.Intn(len(live))], types[rng.Intn(len(types))])
		}
		if step%50 == 0 {
			world.Tick()
		}
	}

	world.CheckInvariants()
	assert.Equal(t, len(live), world.EntityCount())
	for _, e := range live {
		loc, ok := world.LocationOf(e)
		require.True(t, ok)
		found, ok := world.EntityAt(loc)
		require.True(t, ok)
		assert.Equal(t, e, found)

		for _, typ := range types {
			added, changed, ok := world.ComponentTicks(e, typ)
			if ok {
				assert.LessOrEqual(t, added, world.CurrentTick())
				assert.LessOrEqual(t, changed, world.CurrentTick())
			}
		}
	}
}
