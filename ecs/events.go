package ecs

import (
	"iter"
	"reflect"
)

// Events is the resource backing one event channel. Events stay buffered until the
// channel is flushed, once per frame after LateUpdate.
type Events[E any] struct {
	buffer []E
}

// Write appends an event
func (e *Events[E]) Write(event E) {
	e.buffer = append(e.buffer, event)
}

// Read iterates the buffered events in write order
func (e *Events[E]) Read() iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, event := range e.buffer {
			if !yield(event) {
				return
			}
		}
	}
}

// Len returns the number of buffered events
func (e *Events[E]) Len() int {
	return len(e.buffer)
}

// Clear drops every buffered event, keeping the backing storage
func (e *Events[E]) Clear() {
	clear(e.buffer)
	e.buffer = e.buffer[:0]
}

type eventChannel interface {
	Clear()
}

// RegisterEvent creates the channel for E. It is idempotent.
func RegisterEvent[E any](w *World) *Events[E] {
	if events := GetResource[Events[E]](w); events != nil {
		return events
	}
	events := &Events[E]{}
	w.InsertResource(events)
	w.events = append(w.events, events)
	return events
}

// FlushEvents clears every registered channel.
func FlushEvents(w *World) {
	for _, channel := range w.events {
		channel.Clear()
	}
}

// EventWriter is a system input that appends events of type E.
type EventWriter[E any] struct {
	events *Events[E]
}

func (ew *EventWriter[E]) initParam(cell *worldCell) error {
	ew.events = RegisterEvent[E](cell.world)
	access := newAccess()
	access.writeResource(cell.world.resources.idOf(reflect.TypeFor[Events[E]]()))
	return cell.claim(access, "EventWriter["+reflect.TypeFor[E]().String()+"]")
}

// Write appends an event
func (ew *EventWriter[E]) Write(event E) {
	ew.events.Write(event)
}

// WriteBatch appends several events in order
func (ew *EventWriter[E]) WriteBatch(events ...E) {
	for _, event := range events {
		ew.events.Write(event)
	}
}

// EventReader is a system input that reads every buffered event of type E.
type EventReader[E any] struct {
	events *Events[E]
}

func (er *EventReader[E]) initParam(cell *worldCell) error {
	er.events = RegisterEvent[E](cell.world)
	access := newAccess()
	access.readResource(cell.world.resources.idOf(reflect.TypeFor[Events[E]]()))
	return cell.claim(access, "EventReader["+reflect.TypeFor[E]().String()+"]")
}

// Read iterates the buffered events in write order
func (er *EventReader[E]) Read() iter.Seq[E] {
	return er.events.Read()
}

// Len returns the number of buffered events
func (er *EventReader[E]) Len() int {
	return er.events.Len()
}

// IsEmpty reports whether no event is buffered
func (er *EventReader[E]) IsEmpty() bool {
	return er.events.Len() == 0
}
