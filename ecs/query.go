package ecs

import (
	"iter"
	"reflect"
	"unsafe"
)

// Query iterates entities whose components match the struct D. See view for the
// field kinds D may declare. Queries cache matching archetypes and refresh the cache
// whenever the world gains an archetype.
//
// Pointers yielded by a query stay valid until the next structural change; systems
// that only use Commands for structural changes can hold them for the whole run.
type Query[D any] struct {
	world              *World
	view               *view
	cachedArchetypes   []queryArchetype
	lastArchetypeCount int
}

type queryArchetype struct {
	archetype      *Archetype
	storageIndices []int
}

// NewQuery creates a standalone query over w, outside of any system.
func NewQuery[D any](w *World) *Query[D] {
	q := &Query[D]{}
	q.Init(w)
	return q
}

// Init initializes or re-initializes the Query with a world.
func (q *Query[D]) Init(w *World) {
	q.world = w
	q.view = newView(reflect.TypeFor[D](), w.registry)
	q.cachedArchetypes = nil
	q.lastArchetypeCount = -1
}

func (q *Query[D]) initParam(cell *worldCell) error {
	q.Init(cell.world)
	access := newAccess()
	access.addComponents(q.view.access)
	return cell.claim(access, "Query["+reflect.TypeFor[D]().String()+"]")
}

func (q *Query[D]) ensureArchetypeCache() {
	currentCount := len(q.world.archetypes)
	if currentCount == q.lastArchetypeCount {
		return
	}
	for _, archetype := range q.world.archetypes[max(q.lastArchetypeCount, 0):] {
		if q.view.matchesArchetype(archetype) {
			q.cachedArchetypes = append(q.cachedArchetypes, queryArchetype{
				archetype:      archetype,
				storageIndices: q.view.buildStorageIndices(archetype),
			})
		}
	}
	q.lastArchetypeCount = currentCount
}

// Iter returns an iterator over entity IDs and component data.
func (q *Query[D]) Iter() iter.Seq2[EntityId, D] {
	return func(yield func(EntityId, D) bool) {
		q.ensureArchetypeCache()
		tick := q.world.tick

		var result D
		resultPtr := unsafe.Pointer(&result)

		for _, cached := range q.cachedArchetypes {
			archetype := cached.archetype
			for row := 0; row < len(archetype.entities); row++ {
				if !q.view.matchesRow(archetype, TableRow(row), tick) {
					continue
				}
				q.view.populateResult(resultPtr, archetype, TableRow(row), cached.storageIndices, tick)
				if !yield(archetype.entities[row], result) {
					return
				}
			}
		}
	}
}

// Values returns an iterator over component data only.
func (q *Query[D]) Values() iter.Seq[D] {
	return func(yield func(D) bool) {
		for _, value := range q.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// Get returns the data for a specific entity. It returns false when the entity is
// dead or does not match the query, including its row filters.
func (q *Query[D]) Get(e EntityId) (D, bool) {
	var result D
	archetype, row, ok := q.world.locate(e)
	if !ok || !q.view.matchesArchetype(archetype) {
		return result, false
	}
	tick := q.world.tick
	if !q.view.matchesRow(archetype, row, tick) {
		return result, false
	}
	q.view.populateResult(unsafe.Pointer(&result), archetype, row, q.view.buildStorageIndices(archetype), tick)
	return result, true
}

// Contains reports whether e currently matches the query
func (q *Query[D]) Contains(e EntityId) bool {
	_, ok := q.Get(e)
	return ok
}

// Count returns the number of matching entities
func (q *Query[D]) Count() int {
	q.ensureArchetypeCache()
	if len(q.view.rowWise) == 0 {
		count := 0
		for _, cached := range q.cachedArchetypes {
			count += len(cached.archetype.entities)
		}
		return count
	}

	count := 0
	for range q.Iter() {
		count++
	}
	return count
}

// Single returns the only match. It returns false when there are zero or several matches.
func (q *Query[D]) Single() (D, bool) {
	var (
		result D
		found  bool
	)
	for _, value := range q.Iter() {
		if found {
			var zero D
			return zero, false
		}
		result, found = value, true
	}
	return result, found
}

// Archetypes returns the archetypes currently matched by the query
func (q *Query[D]) Archetypes() []*Archetype {
	q.ensureArchetypeCache()
	archetypes := make([]*Archetype, len(q.cachedArchetypes))
	for i, cached := range q.cachedArchetypes {
		archetypes[i] = cached.archetype
	}
	return archetypes
}
