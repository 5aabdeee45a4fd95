package ecs

import (
	"hash/fnv"
	"reflect"
	"slices"

	"github.com/kamstrup/intmap"
)

// Archetype stores every entity that has exactly the same set of component types.
// Each component type has one column; row i of every column belongs to entities[i].
type Archetype struct {
	index    uint32
	ids      []ComponentId
	types    []reflect.Type
	storages []iComponentStorage
	entities []EntityId
	columns  *intmap.Map[ComponentId, int]

	addEdges    *intmap.Map[ComponentId, uint32]
	removeEdges *intmap.Map[ComponentId, uint32]
}

func newArchetype(index uint32, ids []ComponentId, registry *ComponentRegistry) *Archetype {
	a := &Archetype{
		index:       index,
		ids:         ids,
		types:       make([]reflect.Type, len(ids)),
		storages:    make([]iComponentStorage, len(ids)),
		columns:     intmap.New[ComponentId, int](len(ids)),
		addEdges:    intmap.New[ComponentId, uint32](4),
		removeEdges: intmap.New[ComponentId, uint32](4),
	}

	for idx, id := range ids {
		info := registry.info(id)
		if info.factory == nil {
			panic("component type " + info.typ.String() + " not registered")
		}
		a.types[idx] = info.typ
		a.storages[idx] = info.factory()
		a.columns.Put(id, idx)
	}

	return a
}

// hashSignature returns the FNV-64 hash of a sorted component id list
func hashSignature(ids []ComponentId) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, id := range ids {
		buf[0] = byte(id)
		buf[1] = byte(id >> 8)
		buf[2] = byte(id >> 16)
		buf[3] = byte(id >> 24)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Index returns the archetype's position in the world
func (a *Archetype) Index() uint32 {
	return a.index
}

// Types returns the component types of this archetype in signature order
func (a *Archetype) Types() []reflect.Type {
	return a.types
}

// ComponentIds returns the sorted signature of this archetype
func (a *Archetype) ComponentIds() []ComponentId {
	return a.ids
}

// Len returns the number of entities (rows) stored in the archetype
func (a *Archetype) Len() int {
	return len(a.entities)
}

// Entities returns the entity stored in each row. The slice must not be modified.
func (a *Archetype) Entities() []EntityId {
	return a.entities
}

// HasComponent checks if this archetype has the given component type
func (a *Archetype) HasComponent(compType reflect.Type) bool {
	return slices.Contains(a.types, compType)
}

// Contains checks if this archetype has a column for id
func (a *Archetype) Contains(id ComponentId) bool {
	return a.columns.Has(id)
}

func (a *Archetype) storageFor(id ComponentId) (iComponentStorage, bool) {
	idx, ok := a.columns.Get(id)
	if !ok {
		return nil, false
	}
	return a.storages[idx], true
}

// GetComponent returns a pointer to the component of compType at row, or nil
func (a *Archetype) GetComponent(row TableRow, compType reflect.Type) any {
	idx := slices.Index(a.types, compType)
	if idx == -1 || int(row) >= len(a.entities) {
		return nil
	}
	return a.storages[idx].get(int(row))
}

func (a *Archetype) wasAdded(row TableRow, id ComponentId, tick Tick) bool {
	storage, ok := a.storageFor(id)
	return ok && storage.addedTick(int(row)) == tick
}

func (a *Archetype) wasChanged(row TableRow, id ComponentId, tick Tick) bool {
	storage, ok := a.storageFor(id)
	return ok && storage.changedTick(int(row)) == tick
}

// rowTable is a type-erased single row lifted out of an archetype.
type rowTable struct {
	ids      []ComponentId
	storages []iComponentStorage
}

func (t rowTable) storageFor(id ComponentId) (iComponentStorage, bool) {
	idx := slices.Index(t.ids, id)
	if idx == -1 {
		return nil, false
	}
	return t.storages[idx], true
}

// swapRemove removes row, moving the last row into its place. It returns the removed
// components and the entity now stored at row, if a different entity was moved.
func (a *Archetype) swapRemove(row TableRow) (rowTable, EntityId, bool) {
	table := rowTable{
		ids:      a.ids,
		storages: make([]iComponentStorage, len(a.storages)),
	}
	for idx, storage := range a.storages {
		table.storages[idx] = storage.swapRemove(int(row))
	}
	moved, ok := a.removeEntity(row)
	return table, moved, ok
}

// discard removes row without keeping the components.
func (a *Archetype) discard(row TableRow) (EntityId, bool) {
	for _, storage := range a.storages {
		storage.discard(int(row))
	}
	return a.removeEntity(row)
}

func (a *Archetype) removeEntity(row TableRow) (EntityId, bool) {
	last := len(a.entities) - 1
	if int(row) == last {
		a.entities = a.entities[:last]
		return 0, false
	}
	moved := a.entities[last]
	a.entities[row] = moved
	a.entities = a.entities[:last]
	return moved, true
}

// pushTable appends e with the matching columns of table. Columns missing from the table
// must be pushed by the caller before the row is observed.
func (a *Archetype) pushTable(e EntityId, table rowTable) TableRow {
	for idx, id := range a.ids {
		if src, ok := table.storageFor(id); ok {
			a.storages[idx].appendFrom(src, 0)
		}
	}
	a.entities = append(a.entities, e)
	return TableRow(len(a.entities) - 1)
}

// checkInvariants panics if any column length disagrees with the entity vector.
func (a *Archetype) checkInvariants() {
	for idx, storage := range a.storages {
		if storage.Len() != len(a.entities) {
			panic(invariantViolation("archetype %d column %s has %d rows, want %d",
				a.index, a.types[idx], storage.Len(), len(a.entities)))
		}
	}
}
