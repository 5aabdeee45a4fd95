package ecs_test

import (
	"fmt"

	"github.com/plus3/kiln/ecs"
)

// ExampleWorld shows the life cycle of an entity. Despawning frees the index and the
// next spawn reuses it with a higher generation, so stale ids never resolve.
func ExampleWorld() {
	world := newTestWorld()

	first := world.Spawn(Position{X: 1}, Name{Value: "first"})
	fmt.Println(first, ecs.GetComponent[Name](world, first).Value)

	world.Despawn(first)
	second := world.Spawn(Position{X: 2})
	fmt.Println(second, world.Contains(first), world.Contains(second))

	// Output:
	// 0v1 first
	// 0v2 false true
}

// ExampleCommands demonstrates deferring structural changes. The spawned id can be
// used right away; the entity receives its components when the buffer is applied.
func ExampleCommands() {
	world := newTestWorld()
	commands := ecs.NewCommands(world)

	parent := commands.Spawn(Name{Value: "ship"})
	turret := commands.Spawn(Name{Value: "turret"})
	commands.AddChild(parent, turret)
	commands.Insert(turret, Health{Current: 5, Max: 5})

	fmt.Println("before apply:", ecs.GetComponent[Name](world, turret) == nil)
	commands.Apply(world)

	p, _ := world.Parent(turret)
	fmt.Println("after apply:", ecs.GetComponent[Name](world, p).Value, ecs.GetComponent[Health](world, turret).Current)

	// Output:
	// before apply: true
	// after apply: ship 5
}

// ExampleComponentHooks registers lifecycle callbacks for a component type.
func ExampleComponentHooks() {
	registry := newTestRegistry()
	ecs.SetComponentHooks[Inventory](registry, ecs.ComponentHooks{
		OnAdd: func(w *ecs.World, e ecs.EntityId) {
			fmt.Println("inventory added with", len(ecs.GetComponent[Inventory](w, e).Items), "items")
		},
		OnRemove: func(w *ecs.World, e ecs.EntityId) {
			fmt.Println("dropping", ecs.GetComponent[Inventory](w, e).Items)
		},
	})
	world := ecs.NewWorld(registry)

	e := world.Spawn(Name{Value: "looter"})
	world.Insert(e, Inventory{Items: []string{"sword", "rope"}})
	world.Despawn(e)

	// Output:
	// inventory added with 2 items
	// dropping [sword rope]
}
