package asset

import (
	"hash/fnv"
	"iter"

	"github.com/google/uuid"
)

type storeEntry[A any] struct {
	value   A
	version uint64
}

// Store holds the loaded assets of type A and their handle counts. It is a world
// resource and, like every resource, is only mutated from systems that declared write
// access to it.
type Store[A any] struct {
	entries map[Id]*storeEntry[A]
	live    map[Id]int
	queue   *lifetimeQueue
	scratch []lifetimeEvent
}

// NewStore creates an empty store
func NewStore[A any]() *Store[A] {
	return &Store[A]{
		entries: make(map[Id]*storeEntry[A]),
		live:    make(map[Id]int),
		queue:   &lifetimeQueue{},
	}
}

// Get returns the asset behind h, or nil if it is not loaded.
func (s *Store[A]) Get(h *Handle[A]) *A {
	if h == nil {
		return nil
	}
	return s.GetById(h.Id())
}

// GetMut returns the asset behind h for writing and bumps its version.
func (s *Store[A]) GetMut(h *Handle[A]) *A {
	if h == nil {
		return nil
	}
	entry, ok := s.entries[h.Id()]
	if !ok {
		return nil
	}
	entry.version++
	return &entry.value
}

// GetById returns the asset stored under id, or nil
func (s *Store[A]) GetById(id Id) *A {
	if entry, ok := s.entries[id]; ok {
		return &entry.value
	}
	return nil
}

// Version returns how many times the asset was inserted or written through GetMut
func (s *Store[A]) Version(id Id) uint64 {
	if entry, ok := s.entries[id]; ok {
		return entry.version
	}
	return 0
}

// Insert stores value under id, replacing any previous value.
func (s *Store[A]) Insert(id Id, value A) {
	if entry, ok := s.entries[id]; ok {
		entry.value = value
		entry.version++
		return
	}
	s.entries[id] = &storeEntry[A]{value: value, version: 1}
}

// Add stores a runtime-created asset under a fresh id and returns the first handle to it.
func (s *Store[A]) Add(value A) *Handle[A] {
	key := uuid.New()
	h := fnv.New64a()
	h.Write(key[:])
	id := Id(h.Sum64())

	s.Insert(id, value)
	return s.handle(id, "")
}

// handle creates a counted handle backed by this store's lifetime queue
func (s *Store[A]) handle(id Id, p Path) *Handle[A] {
	return newHandle[A](id, p, s.queue)
}

// Remove deletes the asset stored under id and returns it
func (s *Store[A]) Remove(id Id) (A, bool) {
	entry, ok := s.entries[id]
	if !ok {
		var zero A
		return zero, false
	}
	delete(s.entries, id)
	return entry.value, true
}

// Contains reports whether an asset is stored under id
func (s *Store[A]) Contains(id Id) bool {
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of stored assets
func (s *Store[A]) Len() int {
	return len(s.entries)
}

// Ids iterates the ids of every stored asset in no particular order
func (s *Store[A]) Ids() iter.Seq[Id] {
	return func(yield func(Id) bool) {
		for id := range s.entries {
			if !yield(id) {
				return
			}
		}
	}
}

// LiveCount returns the number of outstanding handles to id as of the last Track.
func (s *Store[A]) LiveCount(id Id) int {
	return s.live[id]
}

// Track drains handle lifetime events. Every id whose handle count drops to zero has its
// asset removed and is reported to forget (which may be nil). It returns those ids.
func (s *Store[A]) Track(forget func(Id)) []Id {
	s.scratch = s.queue.drain(s.scratch[:0])

	var candidates []Id
	for _, event := range s.scratch {
		switch event.kind {
		case lifetimeCreated, lifetimeCloned:
			s.live[event.id]++
		case lifetimeDropped:
			s.live[event.id]--
			if s.live[event.id] == 0 {
				candidates = append(candidates, event.id)
			}
		}
	}

	// a handle created after the last drop in the same batch keeps the asset
	var released []Id
	for _, id := range candidates {
		count, ok := s.live[id]
		if !ok || count > 0 {
			continue
		}
		delete(s.live, id)
		s.Remove(id)
		released = append(released, id)
		if forget != nil {
			forget(id)
		}
	}
	return released
}
