package ecs

import (
	"reflect"
	"unsafe"
)

// Tick is the world's frame counter used for change detection. It is 64 bits wide so it
// never wraps in practice; a tick of 0 means "never".
type Tick uint64

// iComponentStorage is a type-erased column of component values with per-row
// added/changed ticks. All columns of an archetype have the same length.
type iComponentStorage interface {
	Len() int
	Type() reflect.Type

	// push appends value (a T or *T) with added=tick and changed=0.
	push(value any, tick Tick) bool
	// insert places value at row, shifting later rows.
	insert(row int, value any, tick Tick) bool
	// set overwrites row in place and marks it changed.
	set(row int, value any, tick Tick) bool

	get(row int) any
	pointer(row int) unsafe.Pointer
	addedTick(row int) Tick
	changedTick(row int) Tick
	changedSlot(row int) *Tick
	markChanged(row int, tick Tick)

	// swapRemove removes row by moving the last row into it and returns the removed
	// row as a one-row column, ready to be appended elsewhere.
	swapRemove(row int) iComponentStorage
	// discard removes row like swapRemove without keeping the value.
	discard(row int)
	// appendFrom appends row of src, which must hold the same type, keeping its ticks.
	appendFrom(src iComponentStorage, row int)
	empty() iComponentStorage
}
