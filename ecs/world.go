package ecs

import (
	"iter"
	"reflect"
	"slices"

	"github.com/kamstrup/intmap"
)

// World owns entities, archetypes, resources and the current tick.
//
// Structural changes (spawn, despawn, insert, remove) must happen on one goroutine
// at a time; systems normally route them through Commands. Entity-addressed operations
// report false or nil for dead or stale entity ids and never panic on them.
type World struct {
	registry   *ComponentRegistry
	entities   entityStore
	archetypes []*Archetype
	signatures *intmap.Map[uint64, []uint32]
	resources  resourceMap
	events     []eventChannel
	tick       Tick
}

// NewWorld creates an empty world using registry for component types.
// A nil registry creates a private one.
func NewWorld(registry *ComponentRegistry) *World {
	if registry == nil {
		registry = NewComponentRegistry()
	}
	registerHierarchy(registry)

	w := &World{
		registry:   registry,
		signatures: intmap.New[uint64, []uint32](64),
		tick:       1,
	}
	w.resources.init()
	w.archetypeFor(nil)
	return w
}

// Registry returns the component registry used by this world
func (w *World) Registry() *ComponentRegistry {
	return w.registry
}

// CurrentTick returns the tick that change detection compares against
func (w *World) CurrentTick() Tick {
	return w.tick
}

// Tick advances the current tick. The scheduler calls it at the end of every frame.
func (w *World) Tick() {
	w.tick++
}

// Spawn creates an entity with the given components. Each argument is a component
// value or a pointer to one; later duplicates of a type win.
func (w *World) Spawn(components ...any) EntityId {
	e := w.entities.alloc()
	w.place(e, components)
	return e
}

// spawnReserved places an entity reserved earlier by Commands.Spawn.
func (w *World) spawnReserved(e EntityId, components []any) {
	if !w.entities.isAlive(e) {
		return
	}
	if _, placed := w.entities.locationOf(e); placed {
		for _, component := range components {
			w.Insert(e, component)
		}
		return
	}
	w.place(e, components)
}

func (w *World) place(e EntityId, components []any) {
	ids, values := w.sortComponents(components)
	archetype := w.archetypeFor(ids)

	for idx, value := range values {
		if !archetype.storages[idx].push(value, w.tick) {
			panic(invariantViolation("component %T does not match column %s", value, archetype.types[idx]))
		}
	}
	archetype.entities = append(archetype.entities, e)
	w.entities.setLocation(e, Location{Archetype: archetype.index, Row: TableRow(len(archetype.entities) - 1)})

	for _, id := range ids {
		w.fireOnAdd(e, id)
	}
}

func componentTypeOf(component any) reflect.Type {
	if component == nil {
		panic("nil component")
	}
	t := reflect.TypeOf(component)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func (w *World) componentId(component any) ComponentId {
	t := componentTypeOf(component)
	id := w.registry.idOf(t)
	if w.registry.info(id).factory == nil {
		panic("component type " + t.String() + " not registered")
	}
	return id
}

func (w *World) sortComponents(components []any) ([]ComponentId, []any) {
	ids := make([]ComponentId, 0, len(components))
	values := make([]any, 0, len(components))
	for _, component := range components {
		id := w.componentId(component)
		if idx := slices.Index(ids, id); idx != -1 {
			values[idx] = component
			continue
		}
		ids = append(ids, id)
		values = append(values, component)
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return int(ids[a]) - int(ids[b]) })

	sortedIds := make([]ComponentId, len(ids))
	sortedValues := make([]any, len(ids))
	for i, idx := range order {
		sortedIds[i] = ids[idx]
		sortedValues[i] = values[idx]
	}
	return sortedIds, sortedValues
}

// archetypeFor resolves the archetype for a sorted signature, creating it if needed.
func (w *World) archetypeFor(ids []ComponentId) *Archetype {
	hash := hashSignature(ids)
	candidates, _ := w.signatures.Get(hash)
	for _, index := range candidates {
		if slices.Equal(w.archetypes[index].ids, ids) {
			return w.archetypes[index]
		}
	}

	archetype := newArchetype(uint32(len(w.archetypes)), slices.Clone(ids), w.registry)
	w.archetypes = append(w.archetypes, archetype)
	w.signatures.Put(hash, append(candidates, archetype.index))
	return archetype
}

func (w *World) archetypeWith(from *Archetype, id ComponentId) *Archetype {
	if index, ok := from.addEdges.Get(id); ok {
		return w.archetypes[index]
	}
	ids := slices.Clone(from.ids)
	pos, _ := slices.BinarySearch(ids, id)
	ids = slices.Insert(ids, pos, id)

	to := w.archetypeFor(ids)
	from.addEdges.Put(id, to.index)
	to.removeEdges.Put(id, from.index)
	return to
}

func (w *World) archetypeWithout(from *Archetype, id ComponentId) *Archetype {
	if index, ok := from.removeEdges.Get(id); ok {
		return w.archetypes[index]
	}
	ids := slices.DeleteFunc(slices.Clone(from.ids), func(c ComponentId) bool { return c == id })

	to := w.archetypeFor(ids)
	from.removeEdges.Put(id, to.index)
	to.addEdges.Put(id, from.index)
	return to
}

// locate returns the entity's archetype and row, checking that both sides agree.
func (w *World) locate(e EntityId) (*Archetype, TableRow, bool) {
	loc, ok := w.entities.locationOf(e)
	if !ok {
		return nil, 0, false
	}
	archetype := w.archetypes[loc.Archetype]
	if int(loc.Row) >= len(archetype.entities) || archetype.entities[loc.Row] != e {
		panic(invariantViolation("entity %s recorded at archetype %d row %d", e, loc.Archetype, loc.Row))
	}
	return archetype, loc.Row, true
}

// ensurePlaced puts a reserved entity into the empty archetype so it can receive components.
func (w *World) ensurePlaced(e EntityId) (*Archetype, TableRow, bool) {
	if archetype, row, ok := w.locate(e); ok {
		return archetype, row, true
	}
	if !w.entities.isAlive(e) {
		return nil, 0, false
	}
	w.place(e, nil)
	return w.locate(e)
}

// Despawn fires OnRemove for every component of e and then deletes it.
// Returns false when e is not alive.
func (w *World) Despawn(e EntityId) bool {
	if !w.entities.isAlive(e) {
		return false
	}

	if archetype, _, ok := w.locate(e); ok {
		for _, id := range archetype.ids {
			if w.hasId(e, id) {
				w.fireOnRemove(e, id)
			}
		}
		if !w.entities.isAlive(e) {
			return true
		}
	}

	if archetype, row, ok := w.locate(e); ok {
		if moved, ok := archetype.discard(row); ok {
			w.entities.setLocation(moved, Location{Archetype: archetype.index, Row: row})
		}
	}
	w.entities.free(e)
	return true
}

// DespawnRecursive despawns e and every entity below it in the hierarchy.
func (w *World) DespawnRecursive(e EntityId) bool {
	if children := GetComponent[Children](w, e); children != nil {
		for _, child := range slices.Clone(children.Entities) {
			w.DespawnRecursive(child)
		}
	}
	return w.Despawn(e)
}

// Insert adds component to e, or overwrites it in place (marking it changed) when e
// already has that type. Returns false when e is not alive.
func (w *World) Insert(e EntityId, component any) bool {
	id := w.componentId(component)
	archetype, row, ok := w.ensurePlaced(e)
	if !ok {
		return false
	}

	if storage, ok := archetype.storageFor(id); ok {
		storage.set(int(row), component, w.tick)
		return true
	}

	dst := w.archetypeWith(archetype, id)
	w.move(e, archetype, row, dst)
	storage, _ := dst.storageFor(id)
	storage.push(component, w.tick)

	w.fireOnAdd(e, id)
	return true
}

// Remove deletes the component of type t from e. OnRemove fires before the move.
// Returns false when e is not alive or has no such component.
func (w *World) Remove(e EntityId, t reflect.Type) bool {
	id, ok := w.registry.lookup(t)
	if !ok || !w.hasId(e, id) {
		return false
	}

	w.fireOnRemove(e, id)

	archetype, row, ok := w.locate(e)
	if !ok || !archetype.Contains(id) {
		return true
	}
	w.move(e, archetype, row, w.archetypeWithout(archetype, id))
	return true
}

// move relocates e's row from src to dst. Components dst lacks are dropped; columns
// dst has beyond src must be pushed by the caller.
func (w *World) move(e EntityId, src *Archetype, row TableRow, dst *Archetype) {
	table, moved, ok := src.swapRemove(row)
	if ok {
		w.entities.setLocation(moved, Location{Archetype: src.index, Row: row})
	}
	newRow := dst.pushTable(e, table)
	w.entities.setLocation(e, Location{Archetype: dst.index, Row: newRow})
}

func (w *World) fireOnAdd(e EntityId, id ComponentId) {
	if hook := w.registry.info(id).hooks.OnAdd; hook != nil {
		hook(w, e)
	}
}

func (w *World) fireOnRemove(e EntityId, id ComponentId) {
	if hook := w.registry.info(id).hooks.OnRemove; hook != nil {
		hook(w, e)
	}
}

func (w *World) hasId(e EntityId, id ComponentId) bool {
	archetype, _, ok := w.locate(e)
	return ok && archetype.Contains(id)
}

// Get returns a pointer to e's component of type t, or nil
func (w *World) Get(e EntityId, t reflect.Type) any {
	archetype, row, ok := w.locate(e)
	if !ok {
		return nil
	}
	id, ok := w.registry.lookup(t)
	if !ok {
		return nil
	}
	storage, ok := archetype.storageFor(id)
	if !ok {
		return nil
	}
	return storage.get(int(row))
}

// MarkChanged stamps e's component of type t as changed at the current tick. Callers
// that write through a pointer from Get use it so change filters see the write.
func (w *World) MarkChanged(e EntityId, t reflect.Type) bool {
	archetype, row, ok := w.locate(e)
	if !ok {
		return false
	}
	id, ok := w.registry.lookup(t)
	if !ok {
		return false
	}
	storage, ok := archetype.storageFor(id)
	if !ok {
		return false
	}
	storage.markChanged(int(row), w.tick)
	return true
}

// Has checks if e has a component of type t
func (w *World) Has(e EntityId, t reflect.Type) bool {
	id, ok := w.registry.lookup(t)
	return ok && w.hasId(e, id)
}

// Components returns pointers to every component of e in signature order
func (w *World) Components(e EntityId) []any {
	archetype, row, ok := w.locate(e)
	if !ok {
		return nil
	}
	components := make([]any, len(archetype.storages))
	for idx, storage := range archetype.storages {
		components[idx] = storage.get(int(row))
	}
	return components
}

// ComponentTicks returns the added and changed ticks of e's component of type t
func (w *World) ComponentTicks(e EntityId, t reflect.Type) (added Tick, changed Tick, ok bool) {
	archetype, row, ok := w.locate(e)
	if !ok {
		return 0, 0, false
	}
	id, ok := w.registry.lookup(t)
	if !ok {
		return 0, 0, false
	}
	storage, ok := archetype.storageFor(id)
	if !ok {
		return 0, 0, false
	}
	return storage.addedTick(int(row)), storage.changedTick(int(row)), true
}

// Contains reports whether e is alive
func (w *World) Contains(e EntityId) bool {
	return w.entities.isAlive(e)
}

// LocationOf returns the archetype row holding e
func (w *World) LocationOf(e EntityId) (Location, bool) {
	return w.entities.locationOf(e)
}

// EntityAt returns the entity stored at loc
func (w *World) EntityAt(loc Location) (EntityId, bool) {
	if int(loc.Archetype) >= len(w.archetypes) {
		return 0, false
	}
	archetype := w.archetypes[loc.Archetype]
	if int(loc.Row) >= len(archetype.entities) {
		return 0, false
	}
	return archetype.entities[loc.Row], true
}

// EntityCount returns the number of live entities
func (w *World) EntityCount() int {
	return w.entities.len()
}

// Archetypes returns every archetype in creation order. The slice must not be modified.
func (w *World) Archetypes() []*Archetype {
	return w.archetypes
}

// Archetype returns the archetype at index, or nil
func (w *World) Archetype(index uint32) *Archetype {
	if int(index) >= len(w.archetypes) {
		return nil
	}
	return w.archetypes[index]
}

// Entities iterates every placed entity, archetype by archetype
func (w *World) Entities() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for _, archetype := range w.archetypes {
			for _, e := range archetype.entities {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// CheckInvariants verifies location and column bookkeeping, panicking on the first
// inconsistency. It is meant for tests and debug builds.
func (w *World) CheckInvariants() {
	for _, archetype := range w.archetypes {
		archetype.checkInvariants()
		for row, e := range archetype.entities {
			loc, ok := w.entities.locationOf(e)
			if !ok || loc.Archetype != archetype.index || loc.Row != TableRow(row) {
				panic(invariantViolation("entity %s at archetype %d row %d has location %+v",
					e, archetype.index, row, loc))
			}
		}
	}
}

// GetComponent returns e's T, or nil. Reading never marks the component changed.
func GetComponent[T any](w *World, e EntityId) *T {
	ptr, _ := w.Get(e, reflect.TypeFor[T]()).(*T)
	return ptr
}

// GetComponentMut returns e's T and marks it changed at the current tick.
func GetComponentMut[T any](w *World, e EntityId) *T {
	archetype, row, ok := w.locate(e)
	if !ok {
		return nil
	}
	id, ok := w.registry.lookup(reflect.TypeFor[T]())
	if !ok {
		return nil
	}
	storage, ok := archetype.storageFor(id)
	if !ok {
		return nil
	}
	storage.markChanged(int(row), w.tick)
	return (*T)(storage.pointer(int(row)))
}

// HasComponent checks if e has a T
func HasComponent[T any](w *World, e EntityId) bool {
	return w.Has(e, reflect.TypeFor[T]())
}

// RemoveComponent removes e's T
func RemoveComponent[T any](w *World, e EntityId) bool {
	return w.Remove(e, reflect.TypeFor[T]())
}
