package ecs

import (
	"reflect"
	"unsafe"
)

// Mut is a query field granting exclusive access to a component. Every call to Get
// marks the component changed at the current tick; Peek reads without marking.
type Mut[T any] struct {
	value   *T
	changed *Tick
	tick    Tick
}

// mutLayout mirrors the memory layout of every Mut[T].
type mutLayout struct {
	value   unsafe.Pointer
	changed *Tick
	tick    Tick
}

type mutField interface {
	mutComponentType() reflect.Type
}

func (Mut[T]) mutComponentType() reflect.Type { return reflect.TypeFor[T]() }

// Get returns the component for writing and records the write, or nil when an
// optional component is absent.
func (m Mut[T]) Get() *T {
	if m.value == nil {
		return nil
	}
	*m.changed = m.tick
	return m.value
}

// Peek returns the component without recording a write
func (m Mut[T]) Peek() *T {
	return m.value
}

// Set overwrites the component and records the write
func (m Mut[T]) Set(value T) {
	if p := m.Get(); p != nil {
		*p = value
	}
}

// Valid reports whether the handle points at a component
func (m Mut[T]) Valid() bool {
	return m.value != nil
}

type fieldKind uint8

const (
	fieldRead fieldKind = iota
	fieldWrite
	fieldEntity
)

type viewField struct {
	kind     fieldKind
	typ      reflect.Type
	id       ComponentId
	offset   uintptr
	optional bool
}

// view is the fetch plan for a query struct: which columns to read, where each
// pointer goes in the struct, and which filters restrict the match.
//
// The struct D may contain:
//   - *T fields: shared access to T
//   - Mut[T] fields: exclusive access to T
//   - EntityId fields: the entity being yielded
//   - filter marker fields (With, Without, Added, Changed, Or, Not)
//
// Embedded fields are always required. Named *T and Mut[T] fields can be marked as
// optional using the `ecs:"optional"` struct tag.
type view struct {
	fields  []viewField
	filters []filterNode
	rowWise []filterNode
	access  *componentAccess
}

var (
	entityIdType = reflect.TypeFor[EntityId]()
	filterType   = reflect.TypeFor[Filter]()
	mutFieldType = reflect.TypeFor[mutField]()
)

func newView(structType reflect.Type, registry *ComponentRegistry) *view {
	if structType.Kind() != reflect.Struct {
		panic("Query type parameter must be a struct, got " + structType.String())
	}

	v := &view{access: newComponentAccess()}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldType := field.Type

		isOptional := false
		if !field.Anonymous {
			tag := field.Tag.Get("ecs")
			if tag != "" {
				if tag == "optional" {
					isOptional = true
				} else {
					panic("invalid ecs tag value: \"" + tag + "\" (only \"optional\" is supported)")
				}
			}
		}

		switch {
		case fieldType == entityIdType:
			v.fields = append(v.fields, viewField{kind: fieldEntity, offset: field.Offset})

		case fieldType.Implements(filterType):
			node := reflect.Zero(fieldType).Interface().(Filter).filterNode(registry)
			node.declare(v.access)
			v.filters = append(v.filters, node)
			if node.perRow() {
				v.rowWise = append(v.rowWise, node)
			}

		case fieldType.Implements(mutFieldType):
			componentType := reflect.Zero(fieldType).Interface().(mutField).mutComponentType()
			id := registry.idOf(componentType)
			v.access.writes.Add(id)
			if !isOptional {
				v.access.required.Add(id)
			}
			v.fields = append(v.fields, viewField{
				kind: fieldWrite, typ: componentType, id: id, offset: field.Offset, optional: isOptional,
			})

		case fieldType.Kind() == reflect.Ptr:
			componentType := fieldType.Elem()
			id := registry.idOf(componentType)
			v.access.reads.Add(id)
			if !isOptional {
				v.access.required.Add(id)
			}
			v.fields = append(v.fields, viewField{
				kind: fieldRead, typ: componentType, id: id, offset: field.Offset, optional: isOptional,
			})

		default:
			panic("Query struct field " + field.Name + " has unsupported type " + fieldType.String())
		}
	}
	return v
}

// matchesArchetype checks if an archetype contains all the required component types
// and passes every structural filter
func (v *view) matchesArchetype(archetype *Archetype) bool {
	for _, field := range v.fields {
		if field.kind == fieldEntity || field.optional {
			continue
		}
		if !archetype.Contains(field.id) {
			return false
		}
	}
	for _, filter := range v.filters {
		if !filter.matchesArchetype(archetype) {
			return false
		}
	}
	return true
}

func (v *view) matchesRow(archetype *Archetype, row TableRow, tick Tick) bool {
	for _, filter := range v.rowWise {
		if !filter.matchesRow(archetype, row, tick) {
			return false
		}
	}
	return true
}

// buildStorageIndices resolves each field to its column in archetype, -1 when absent.
func (v *view) buildStorageIndices(archetype *Archetype) []int {
	storageIndices := make([]int, len(v.fields))
	for i, field := range v.fields {
		storageIndices[i] = -1
		if field.kind == fieldEntity {
			continue
		}
		if idx, ok := archetype.columns.Get(field.id); ok {
			storageIndices[i] = idx
		}
	}
	return storageIndices
}

// populateResult writes pointers for row into the struct at resultPtr.
func (v *view) populateResult(resultPtr unsafe.Pointer, archetype *Archetype, row TableRow, storageIndices []int, tick Tick) {
	for i, field := range v.fields {
		fieldPtr := unsafe.Add(resultPtr, field.offset)
		storageIdx := storageIndices[i]

		switch field.kind {
		case fieldEntity:
			*(*EntityId)(fieldPtr) = archetype.entities[row]

		case fieldRead:
			if storageIdx == -1 {
				*(*unsafe.Pointer)(fieldPtr) = nil
				continue
			}
			*(*unsafe.Pointer)(fieldPtr) = archetype.storages[storageIdx].pointer(int(row))

		case fieldWrite:
			handle := (*mutLayout)(fieldPtr)
			if storageIdx == -1 {
				*handle = mutLayout{}
				continue
			}
			storage := archetype.storages[storageIdx]
			*handle = mutLayout{
				value:   storage.pointer(int(row)),
				changed: storage.changedSlot(int(row)),
				tick:    tick,
			}
		}
	}
}
