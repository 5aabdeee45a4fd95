package ecs

import (
	"reflect"
	"slices"
	"sync"
	"unsafe"
)

// ComponentId is the process-stable identity of a component type within a registry.
type ComponentId uint32

// ComponentHooks are lifecycle callbacks fired by the world. OnAdd runs after the
// component is in place, OnRemove runs while the component is still readable.
type ComponentHooks struct {
	OnAdd    func(w *World, e EntityId)
	OnRemove func(w *World, e EntityId)
}

type componentInfo struct {
	id      ComponentId
	typ     reflect.Type
	factory func() iComponentStorage
	hooks   ComponentHooks
}

// ComponentRegistry manages component type registration for an ECS instance.
// Each World has its own ComponentRegistry, allowing multiple independent worlds
// to coexist without interference.
type ComponentRegistry struct {
	mu    sync.RWMutex
	ids   map[reflect.Type]ComponentId
	infos []*componentInfo
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		ids: make(map[reflect.Type]ComponentId),
	}
}

// RegisterComponent registers a new component type with the given registry.
// This must be called for each component type before it can be spawned.
func RegisterComponent[T any](r *ComponentRegistry) ComponentId {
	t := reflect.TypeFor[T]()
	id := r.idOf(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos[id].factory = func() iComponentStorage {
		return &genericComponentStorage[T]{}
	}
	return id
}

// SetComponentHooks attaches lifecycle hooks to T, registering T if needed.
func SetComponentHooks[T any](r *ComponentRegistry, hooks ComponentHooks) {
	id := RegisterComponent[T](r)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos[id].hooks = hooks
}

// ComponentIdFor returns the id of T, assigning one if T has never been seen.
func ComponentIdFor[T any](r *ComponentRegistry) ComponentId {
	return r.idOf(reflect.TypeFor[T]())
}

// IsRegistered reports whether t has a column factory.
func (r *ComponentRegistry) IsRegistered(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[t]
	return ok && r.infos[id].factory != nil
}

// TypeOf returns the component type for id
func (r *ComponentRegistry) TypeOf(id ComponentId) reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.infos) {
		return nil
	}
	return r.infos[id].typ
}

// Types returns every registered component type in id order
func (r *ComponentRegistry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]reflect.Type, 0, len(r.infos))
	for _, info := range r.infos {
		if info.factory != nil {
			types = append(types, info.typ)
		}
	}
	return types
}

// idOf returns the id of t, assigning a new one on first sight. Unregistered types get
// ids too so that filters can name components that were never spawned.
func (r *ComponentRegistry) idOf(t reflect.Type) ComponentId {
	r.mu.RLock()
	id, ok := r.ids[t]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[t]; ok {
		return id
	}
	id = ComponentId(len(r.infos))
	r.ids[t] = id
	r.infos = append(r.infos, &componentInfo{id: id, typ: t})
	return id
}

func (r *ComponentRegistry) lookup(t reflect.Type) (ComponentId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[t]
	return id, ok
}

func (r *ComponentRegistry) info(id ComponentId) *componentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[id]
}

// genericComponentStorage is the typed column behind iComponentStorage.
// Values are stored contiguously; pointers into it stay valid until the next
// structural change of the owning archetype.
type genericComponentStorage[T any] struct {
	values  []T
	added   []Tick
	changed []Tick
}

func asComponent[T any](item any) (T, bool) {
	switch v := item.(type) {
	case T:
		return v, true
	case *T:
		if v != nil {
			return *v, true
		}
	}
	var zero T
	return zero, false
}

func (cs *genericComponentStorage[T]) Len() int {
	return len(cs.values)
}

func (cs *genericComponentStorage[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

func (cs *genericComponentStorage[T]) push(item any, tick Tick) bool {
	value, ok := asComponent[T](item)
	if !ok {
		return false
	}
	cs.values = append(cs.values, value)
	cs.added = append(cs.added, tick)
	cs.changed = append(cs.changed, 0)
	return true
}

func (cs *genericComponentStorage[T]) insert(row int, item any, tick Tick) bool {
	value, ok := asComponent[T](item)
	if !ok {
		return false
	}
	cs.values = slices.Insert(cs.values, row, value)
	cs.added = slices.Insert(cs.added, row, tick)
	cs.changed = slices.Insert(cs.changed, row, 0)
	return true
}

func (cs *genericComponentStorage[T]) set(row int, item any, tick Tick) bool {
	value, ok := asComponent[T](item)
	if !ok {
		return false
	}
	cs.values[row] = value
	cs.changed[row] = tick
	return true
}

func (cs *genericComponentStorage[T]) get(row int) any {
	return &cs.values[row]
}

func (cs *genericComponentStorage[T]) pointer(row int) unsafe.Pointer {
	return unsafe.Pointer(&cs.values[row])
}

func (cs *genericComponentStorage[T]) addedTick(row int) Tick {
	return cs.added[row]
}

func (cs *genericComponentStorage[T]) changedTick(row int) Tick {
	return cs.changed[row]
}

func (cs *genericComponentStorage[T]) changedSlot(row int) *Tick {
	return &cs.changed[row]
}

func (cs *genericComponentStorage[T]) markChanged(row int, tick Tick) {
	cs.changed[row] = tick
}

func (cs *genericComponentStorage[T]) swapRemove(row int) iComponentStorage {
	removed := &genericComponentStorage[T]{
		values:  []T{cs.values[row]},
		added:   []Tick{cs.added[row]},
		changed: []Tick{cs.changed[row]},
	}
	cs.discard(row)
	return removed
}

func (cs *genericComponentStorage[T]) discard(row int) {
	last := len(cs.values) - 1
	cs.values[row] = cs.values[last]
	cs.added[row] = cs.added[last]
	cs.changed[row] = cs.changed[last]

	var zero T
	cs.values[last] = zero
	cs.values = cs.values[:last]
	cs.added = cs.added[:last]
	cs.changed = cs.changed[:last]
}

func (cs *genericComponentStorage[T]) appendFrom(src iComponentStorage, row int) {
	other := src.(*genericComponentStorage[T])
	cs.values = append(cs.values, other.values[row])
	cs.added = append(cs.added, other.added[row])
	cs.changed = append(cs.changed, other.changed[row])
}

func (cs *genericComponentStorage[T]) empty() iComponentStorage {
	return &genericComponentStorage[T]{}
}
