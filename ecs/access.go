package ecs

import (
	"slices"

	"github.com/kamstrup/intmap"
)

// componentAccess is the component footprint of one query-like input. required and
// excluded describe the archetypes it can touch, which lets two accesses that can never
// see the same archetype coexist even if they write the same component.
type componentAccess struct {
	reads    *intmap.Set[ComponentId]
	writes   *intmap.Set[ComponentId]
	required *intmap.Set[ComponentId]
	excluded *intmap.Set[ComponentId]
}

func newComponentAccess() *componentAccess {
	return &componentAccess{
		reads:    intmap.NewSet[ComponentId](4),
		writes:   intmap.NewSet[ComponentId](4),
		required: intmap.NewSet[ComponentId](4),
		excluded: intmap.NewSet[ComponentId](4),
	}
}

func (c *componentAccess) disjoint(other *componentAccess) bool {
	return intersects(c.required, other.excluded) || intersects(other.required, c.excluded)
}

// Access declares what a system reads and writes.
type Access struct {
	readsAll   bool
	writesAll  bool
	components []*componentAccess
	resReads   *intmap.Set[ResourceId]
	resWrites  *intmap.Set[ResourceId]
}

func newAccess() *Access {
	return &Access{
		resReads:  intmap.NewSet[ResourceId](4),
		resWrites: intmap.NewSet[ResourceId](4),
	}
}

func (a *Access) readResource(id ResourceId)  { a.resReads.Add(id) }
func (a *Access) writeResource(id ResourceId) { a.resWrites.Add(id) }

func (a *Access) addComponents(c *componentAccess) {
	a.components = append(a.components, c)
}

// ReadsAll reports whether the access reads the whole world
func (a *Access) ReadsAll() bool { return a.readsAll }

// WritesAll reports whether the access is exclusive over the whole world
func (a *Access) WritesAll() bool { return a.writesAll }

func (a *Access) writesAnything() bool {
	if a.writesAll || a.resWrites.Len() > 0 {
		return true
	}
	for _, c := range a.components {
		if c.writes.Len() > 0 {
			return true
		}
	}
	return false
}

// extend merges other into a.
func (a *Access) extend(other *Access) {
	a.readsAll = a.readsAll || other.readsAll
	a.writesAll = a.writesAll || other.writesAll
	a.components = append(a.components, other.components...)
	for id := range other.resReads.All() {
		a.resReads.Add(id)
	}
	for id := range other.resWrites.All() {
		a.resWrites.Add(id)
	}
}

// Compatible reports whether a and b may be live at the same time.
func (a *Access) Compatible(b *Access) bool {
	if a.writesAll || b.writesAll {
		return false
	}
	if (a.readsAll && b.writesAnything()) || (b.readsAll && a.writesAnything()) {
		return false
	}
	components, resources := a.conflicts(b)
	return len(components) == 0 && len(resources) == 0
}

// conflicts lists the components and resources on which a and b alias a write.
func (a *Access) conflicts(b *Access) ([]ComponentId, []ResourceId) {
	var components []ComponentId
	for _, ca := range a.components {
		for _, cb := range b.components {
			if ca.disjoint(cb) {
				continue
			}
			components = appendIntersection(components, ca.reads, cb.writes)
			components = appendIntersection(components, ca.writes, cb.reads)
			components = appendIntersection(components, ca.writes, cb.writes)
		}
	}

	var resources []ResourceId
	resources = appendIntersection(resources, a.resReads, b.resWrites)
	resources = appendIntersection(resources, a.resWrites, b.resReads)
	resources = appendIntersection(resources, a.resWrites, b.resWrites)

	slices.Sort(components)
	slices.Sort(resources)
	return slices.Compact(components), slices.Compact(resources)
}

func intersects[K intmap.IntKey](a, b *intmap.Set[K]) bool {
	if a.Len() > b.Len() {
		a, b = b, a
	}
	for k := range a.All() {
		if b.Has(k) {
			return true
		}
	}
	return false
}

func appendIntersection[K intmap.IntKey](dst []K, a, b *intmap.Set[K]) []K {
	for k := range a.All() {
		if b.Has(k) {
			dst = append(dst, k)
		}
	}
	return dst
}

// conflictError describes why a and b are incompatible using the world's type names.
func (w *World) conflictError(systemA, systemB string, a, b *Access) *AccessConflictError {
	err := &AccessConflictError{
		SystemA:   systemA,
		SystemB:   systemB,
		Exclusive: a.writesAll || b.writesAll || (a.readsAll && b.writesAnything()) || (b.readsAll && a.writesAnything()),
	}
	components, resources := a.conflicts(b)
	for _, id := range components {
		err.Components = append(err.Components, w.registry.TypeOf(id).String())
	}
	for _, id := range resources {
		err.Resources = append(err.Resources, w.resources.typeOf(id).String())
	}
	return err
}
