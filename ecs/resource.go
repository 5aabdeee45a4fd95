package ecs

import (
	"iter"
	"reflect"
	"sync"
)

// ResourceId identifies a resource type within a world.
type ResourceId uint32

type resourceEntry struct {
	value   any
	added   Tick
	changed Tick
}

// resourceMap is the world's typed key/value store. Ids are handed out lazily and may
// be requested concurrently; entries only change on the world thread.
type resourceMap struct {
	mu      sync.RWMutex
	ids     map[reflect.Type]ResourceId
	types   []reflect.Type
	entries []*resourceEntry
}

func (m *resourceMap) init() {
	m.ids = make(map[reflect.Type]ResourceId)
}

func (m *resourceMap) idOf(t reflect.Type) ResourceId {
	m.mu.RLock()
	id, ok := m.ids[t]
	m.mu.RUnlock()
	if ok {
		return id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[t]; ok {
		return id
	}
	id = ResourceId(len(m.types))
	m.ids[t] = id
	m.types = append(m.types, t)
	m.entries = append(m.entries, nil)
	return id
}

func (m *resourceMap) entry(id ResourceId) *resourceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.entries) {
		return nil
	}
	return m.entries[id]
}

func (m *resourceMap) setEntry(id ResourceId, entry *resourceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = entry
}

func (m *resourceMap) typeOf(id ResourceId) reflect.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[id]
}

// InsertResource stores value as the resource of its type. A pointer is stored as-is;
// a plain value is copied into a new allocation. Overwriting an existing resource
// copies into the existing allocation so outstanding pointers stay valid.
func (w *World) InsertResource(value any) {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		panic("nil resource")
	}
	t := v.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	} else {
		ptr := reflect.New(t)
		ptr.Elem().Set(v)
		v = ptr
	}

	id := w.resources.idOf(t)
	if entry := w.resources.entry(id); entry != nil {
		reflect.ValueOf(entry.value).Elem().Set(v.Elem())
		entry.changed = w.tick
		return
	}
	w.resources.setEntry(id, &resourceEntry{value: v.Interface(), added: w.tick, changed: w.tick})
}

// InsertResourceValue is the typed form of World.InsertResource.
func InsertResourceValue[T any](w *World, value T) *T {
	w.InsertResource(&value)
	return GetResource[T](w)
}

// InitResource inserts the zero T unless the resource already exists, and returns it.
func InitResource[T any](w *World) *T {
	if r := GetResource[T](w); r != nil {
		return r
	}
	return InsertResourceValue(w, *new(T))
}

// GetResource returns the resource of type T, or nil
func GetResource[T any](w *World) *T {
	entry := w.resources.entry(w.resources.idOf(reflect.TypeFor[T]()))
	if entry == nil {
		return nil
	}
	return entry.value.(*T)
}

// GetResourceMut returns the resource of type T and marks it changed
func GetResourceMut[T any](w *World) *T {
	entry := w.resources.entry(w.resources.idOf(reflect.TypeFor[T]()))
	if entry == nil {
		return nil
	}
	entry.changed = w.tick
	return entry.value.(*T)
}

// HasResource reports whether a T resource exists
func HasResource[T any](w *World) bool {
	return GetResource[T](w) != nil
}

// RemoveResource deletes the T resource and returns its last value
func RemoveResource[T any](w *World) (T, bool) {
	id := w.resources.idOf(reflect.TypeFor[T]())
	entry := w.resources.entry(id)
	if entry == nil {
		var zero T
		return zero, false
	}
	w.resources.setEntry(id, nil)
	return *entry.value.(*T), true
}

// ResourceTicks returns the added and changed ticks of the T resource
func ResourceTicks[T any](w *World) (added Tick, changed Tick, ok bool) {
	entry := w.resources.entry(w.resources.idOf(reflect.TypeFor[T]()))
	if entry == nil {
		return 0, 0, false
	}
	return entry.added, entry.changed, true
}

// Resources iterates the type and pointer of every present resource
func (w *World) Resources() iter.Seq2[reflect.Type, any] {
	return func(yield func(reflect.Type, any) bool) {
		w.resources.mu.RLock()
		entries := append([]*resourceEntry(nil), w.resources.entries...)
		types := append([]reflect.Type(nil), w.resources.types...)
		w.resources.mu.RUnlock()

		for id, entry := range entries {
			if entry == nil {
				continue
			}
			if !yield(types[id], entry.value) {
				return
			}
		}
	}
}

// Res is a system input granting shared access to the T resource.
type Res[T any] struct {
	world *World
	id    ResourceId
}

func (r *Res[T]) initParam(cell *worldCell) error {
	r.world = cell.world
	r.id = cell.world.resources.idOf(reflect.TypeFor[T]())
	access := newAccess()
	access.readResource(r.id)
	return cell.claim(access, "Res["+reflect.TypeFor[T]().String()+"]")
}

// Get returns the resource, or nil if it has not been inserted.
func (r *Res[T]) Get() *T {
	entry := r.world.resources.entry(r.id)
	if entry == nil {
		return nil
	}
	return entry.value.(*T)
}

// Exists reports whether the resource is present
func (r *Res[T]) Exists() bool {
	return r.world.resources.entry(r.id) != nil
}

// HasChanged reports whether the resource was inserted or written during the current tick.
func (r *Res[T]) HasChanged() bool {
	entry := r.world.resources.entry(r.id)
	return entry != nil && entry.changed == r.world.tick
}

// IsAdded reports whether the resource was inserted during the current tick.
func (r *Res[T]) IsAdded() bool {
	entry := r.world.resources.entry(r.id)
	return entry != nil && entry.added == r.world.tick
}

// ResMut is a system input granting exclusive access to the T resource.
type ResMut[T any] struct {
	world *World
	id    ResourceId
}

func (r *ResMut[T]) initParam(cell *worldCell) error {
	r.world = cell.world
	r.id = cell.world.resources.idOf(reflect.TypeFor[T]())
	access := newAccess()
	access.writeResource(r.id)
	return cell.claim(access, "ResMut["+reflect.TypeFor[T]().String()+"]")
}

// Get returns the resource and marks it changed, or nil if it has not been inserted.
func (r *ResMut[T]) Get() *T {
	entry := r.world.resources.entry(r.id)
	if entry == nil {
		return nil
	}
	entry.changed = r.world.tick
	return entry.value.(*T)
}

// Peek returns the resource without marking it changed
func (r *ResMut[T]) Peek() *T {
	entry := r.world.resources.entry(r.id)
	if entry == nil {
		return nil
	}
	return entry.value.(*T)
}

// Exists reports whether the resource is present
func (r *ResMut[T]) Exists() bool {
	return r.world.resources.entry(r.id) != nil
}

// HasChanged reports whether the resource was inserted or written during the current tick.
func (r *ResMut[T]) HasChanged() bool {
	entry := r.world.resources.entry(r.id)
	return entry != nil && entry.changed == r.world.tick
}
