package ecs

import "reflect"

// Commands buffers world mutations recorded while a system runs. The scheduler applies
// each system's buffer right after the system returns, in the order commands were issued.
type Commands struct {
	world *World
	queue []command
}

type commandKind uint8

const (
	commandSpawn commandKind = iota
	commandDespawn
	commandDespawnRecursive
	commandInsert
	commandRemove
	commandAddChild
	commandInsertResource
	commandDefer
)

type command struct {
	kind       commandKind
	entity     EntityId
	other      EntityId
	components []any
	value      any
	compType   reflect.Type
	fn         func(w *World)
}

// NewCommands creates an empty buffer for w
func NewCommands(w *World) *Commands {
	return &Commands{world: w}
}

func (c *Commands) initParam(cell *worldCell) error {
	c.world = cell.world
	return nil
}

func (c *Commands) applyParam(w *World) {
	c.Apply(w)
}

// Spawn reserves an entity id now and queues its placement with the given components.
func (c *Commands) Spawn(components ...any) EntityId {
	e := c.world.entities.alloc()
	c.queue = append(c.queue, command{kind: commandSpawn, entity: e, components: components})
	return e
}

// Despawn queues an entity despawn.
func (c *Commands) Despawn(entity EntityId) {
	c.queue = append(c.queue, command{kind: commandDespawn, entity: entity})
}

// DespawnRecursive queues the despawn of entity and all of its descendants.
func (c *Commands) DespawnRecursive(entity EntityId) {
	c.queue = append(c.queue, command{kind: commandDespawnRecursive, entity: entity})
}

// Insert queues a component insertion (or in-place overwrite).
func (c *Commands) Insert(entity EntityId, component any) {
	c.queue = append(c.queue, command{kind: commandInsert, entity: entity, value: component})
}

// Remove queues a component removal.
func (c *Commands) Remove(entity EntityId, compType reflect.Type) {
	c.queue = append(c.queue, command{kind: commandRemove, entity: entity, compType: compType})
}

// RemoveCommand queues the removal of entity's T.
func RemoveCommand[T any](c *Commands, entity EntityId) {
	c.Remove(entity, reflect.TypeFor[T]())
}

// AddChild queues a parent/child link.
func (c *Commands) AddChild(parent EntityId, child EntityId) {
	c.queue = append(c.queue, command{kind: commandAddChild, entity: parent, other: child})
}

// InsertResource queues a resource insertion.
func (c *Commands) InsertResource(value any) {
	c.queue = append(c.queue, command{kind: commandInsertResource, value: value})
}

// Defer queues an arbitrary function run with exclusive world access.
func (c *Commands) Defer(fn func(w *World)) {
	c.queue = append(c.queue, command{kind: commandDefer, fn: fn})
}

// Len returns the number of queued commands
func (c *Commands) Len() int {
	return len(c.queue)
}

// Apply runs every queued command against w in issue order and resets the buffer.
// Commands addressed to dead entities are skipped.
func (c *Commands) Apply(w *World) {
	for i := 0; i < len(c.queue); i++ {
		cmd := c.queue[i]
		switch cmd.kind {
		case commandSpawn:
			w.spawnReserved(cmd.entity, cmd.components)
		case commandDespawn:
			w.Despawn(cmd.entity)
		case commandDespawnRecursive:
			w.DespawnRecursive(cmd.entity)
		case commandInsert:
			w.Insert(cmd.entity, cmd.value)
		case commandRemove:
			w.Remove(cmd.entity, cmd.compType)
		case commandAddChild:
			w.AddChild(cmd.entity, cmd.other)
		case commandInsertResource:
			w.InsertResource(cmd.value)
		case commandDefer:
			cmd.fn(w)
		}
	}

	clear(c.queue)
	c.queue = c.queue[:0]
}
