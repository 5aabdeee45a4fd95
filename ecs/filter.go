package ecs

import "reflect"

// Filter marker fields restrict which entities a query yields without fetching data.
// They are declared as (usually blank) fields of the query struct:
//
//	type movers struct {
//		Pos *Position
//		Vel Mut[Velocity]
//		_   Without[Frozen]
//		_   Or[Added[Velocity], Changed[Velocity]]
//	}
type Filter interface {
	filterNode(r *ComponentRegistry) filterNode
}

type filterNode interface {
	matchesArchetype(a *Archetype) bool
	// perRow reports whether matchesRow must be consulted for each row.
	perRow() bool
	matchesRow(a *Archetype, row TableRow, tick Tick) bool
	declare(access *componentAccess)
}

// With matches entities that have a T.
type With[T any] struct{ _ [0]*T }

// Without matches entities that do not have a T.
type Without[T any] struct{ _ [0]*T }

// Added matches entities whose T was added during the current tick.
type Added[T any] struct{ _ [0]*T }

// Changed matches entities whose T was written through a mutable handle during the current tick.
type Changed[T any] struct{ _ [0]*T }

// Or matches entities matching A or B. Nest Or for more alternatives.
type Or[A Filter, B Filter] struct{}

// Not inverts F.
type Not[F Filter] struct{}

func (With[T]) filterNode(r *ComponentRegistry) filterNode {
	return withFilter{id: r.idOf(reflect.TypeFor[T]())}
}

func (Without[T]) filterNode(r *ComponentRegistry) filterNode {
	return withoutFilter{id: r.idOf(reflect.TypeFor[T]())}
}

func (Added[T]) filterNode(r *ComponentRegistry) filterNode {
	return tickFilter{id: r.idOf(reflect.TypeFor[T]()), added: true}
}

func (Changed[T]) filterNode(r *ComponentRegistry) filterNode {
	return tickFilter{id: r.idOf(reflect.TypeFor[T]())}
}

func (Or[A, B]) filterNode(r *ComponentRegistry) filterNode {
	var a A
	var b B
	return orFilter{a.filterNode(r), b.filterNode(r)}
}

func (Not[F]) filterNode(r *ComponentRegistry) filterNode {
	var f F
	return notFilter{f.filterNode(r)}
}

type withFilter struct{ id ComponentId }

func (f withFilter) matchesArchetype(a *Archetype) bool { return a.Contains(f.id) }
func (f withFilter) perRow() bool { return false }
func (f withFilter) matchesRow(*Archetype, TableRow, Tick) bool { return true }
func (f withFilter) declare(access *componentAccess) { access.required.Add(f.id) }

type withoutFilter struct{ id ComponentId }

func (f withoutFilter) matchesArchetype(a *Archetype) bool { return !a.Contains(f.id) }
func (f withoutFilter) perRow() bool { return false }
func (f withoutFilter) matchesRow(*Archetype, TableRow, Tick) bool { return true }
func (f withoutFilter) declare(access *componentAccess) { access.excluded.Add(f.id) }

type tickFilter struct {
	id    ComponentId
	added bool
}

func (f tickFilter) matchesArchetype(a *Archetype) bool { return a.Contains(f.id) }
func (f tickFilter) perRow() bool { return true }

func (f tickFilter) matchesRow(a *Archetype, row TableRow, tick Tick) bool {
	if f.added {
		return a.wasAdded(row, f.id, tick)
	}
	return a.wasChanged(row, f.id, tick)
}

func (f tickFilter) declare(access *componentAccess) {
	access.reads.Add(f.id)
	access.required.Add(f.id)
}

type orFilter struct{ a, b filterNode }

func (f orFilter) matchesArchetype(a *Archetype) bool {
	return f.a.matchesArchetype(a) || f.b.matchesArchetype(a)
}

func (f orFilter) perRow() bool { return f.a.perRow() || f.b.perRow() }

func (f orFilter) matchesRow(a *Archetype, row TableRow, tick Tick) bool {
	return (f.a.matchesArchetype(a) && f.a.matchesRow(a, row, tick)) ||
		(f.b.matchesArchetype(a) && f.b.matchesRow(a, row, tick))
}

// declare only records reads: an alternative proves nothing about the archetypes matched.
func (f orFilter) declare(access *componentAccess) {
	for _, child := range []filterNode{f.a, f.b} {
		scratch := newComponentAccess()
		child.declare(scratch)
		for id := range scratch.reads.All() {
			access.reads.Add(id)
		}
	}
}

type notFilter struct{ f filterNode }

func (f notFilter) matchesArchetype(a *Archetype) bool {
	if f.f.perRow() {
		return true
	}
	return !f.f.matchesArchetype(a)
}

func (f notFilter) perRow() bool { return f.f.perRow() }

func (f notFilter) matchesRow(a *Archetype, row TableRow, tick Tick) bool {
	if !f.f.perRow() {
		return true
	}
	return !(f.f.matchesArchetype(a) && f.f.matchesRow(a, row, tick))
}

func (f notFilter) declare(access *componentAccess) {
	scratch := newComponentAccess()
	f.f.declare(scratch)
	for id := range scratch.reads.All() {
		access.reads.Add(id)
	}
}
