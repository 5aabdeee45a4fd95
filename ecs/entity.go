package ecs

import (
	"fmt"
	"math"
	"sync"
)

// EntityId encodes the entity generation (upper 32 bits) and the slot index (lower 32 bits).
// The zero value never names a live entity.
type EntityId uint64

// NewEntityId creates an EntityId from a slot index and generation
func NewEntityId(index uint32, generation uint32) EntityId {
	return EntityId(uint64(generation)<<32 | uint64(index))
}

// Index extracts the slot index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// Generation extracts the generation from the entity ID
func (e EntityId) Generation() uint32 {
	return uint32(e >> 32)
}

// IsZero reports whether e is the zero (invalid) id
func (e EntityId) IsZero() bool {
	return e == 0
}

func (e EntityId) String() string {
	return fmt.Sprintf("%dv%d", e.Index(), e.Generation())
}

// TableRow is a row index inside an archetype. It carries no meaning beyond its position.
type TableRow uint32

// Location addresses the row holding an entity's components.
type Location struct {
	Archetype uint32
	Row       TableRow
}

const invalidArchetype = math.MaxUint32

var unplaced = Location{Archetype: invalidArchetype}

// Valid reports whether the location points at an archetype row
func (l Location) Valid() bool {
	return l.Archetype != invalidArchetype
}

type entitySlot struct {
	generation uint32
	live       bool
	location   Location
}

// entityStore allocates generational entity ids and maps them to locations.
// alloc may be called from concurrently running systems (command queues reserve ids),
// everything else happens on the world thread.
type entityStore struct {
	mu       sync.RWMutex
	slots    []entitySlot
	freeList []uint32
	alive    int
}

// alloc reserves a new entity id. The entity has no location until placed.
func (s *entityStore) alloc() EntityId {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alive++
	if n := len(s.freeList); n > 0 {
		index := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		slot := &s.slots[index]
		slot.live = true
		slot.location = unplaced
		return NewEntityId(index, slot.generation)
	}

	index := uint32(len(s.slots))
	s.slots = append(s.slots, entitySlot{generation: 1, live: true, location: unplaced})
	return NewEntityId(index, 1)
}

// free releases the entity's slot and bumps its generation. Stale ids are ignored.
func (s *entityStore) free(e EntityId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slot(e)
	if !ok {
		return false
	}
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	slot.live = false
	slot.location = unplaced
	s.freeList = append(s.freeList, e.Index())
	s.alive--
	return true
}

// setLocation is a no-op when the id's generation does not match its slot.
func (s *entityStore) setLocation(e EntityId, loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot, ok := s.slot(e); ok {
		slot.location = loc
	}
}

// locationOf returns the entity's location, or false for dead, stale or unplaced ids.
func (s *entityStore) locationOf(e EntityId) (Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slot(e)
	if !ok || !slot.location.Valid() {
		return Location{}, false
	}
	return slot.location, true
}

// isAlive reports whether e is allocated, placed or not.
func (s *entityStore) isAlive(e EntityId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.slot(e)
	return ok
}

func (s *entityStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alive
}

func (s *entityStore) slot(e EntityId) (*entitySlot, bool) {
	index := e.Index()
	if e.IsZero() || int(index) >= len(s.slots) {
		return nil, false
	}
	slot := &s.slots[index]
	if !slot.live || slot.generation != e.Generation() {
		return nil, false
	}
	return slot, true
}
